package acquire

import (
	"context"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Renderer produces fully rendered markup for JS-heavy pages.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// RodRenderer renders a page in a real headless browser (via rod) and
// returns the post-JavaScript document markup.
type RodRenderer struct {
	Timeout time.Duration
}

func NewRodRenderer(timeout time.Duration) *RodRenderer {
	return &RodRenderer{Timeout: timeout}
}

func (r *RodRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		u.Scheme = "http"
	}

	browser := rod.New().Context(ctx).Timeout(r.Timeout)
	if err := browser.Connect(); err != nil {
		return "", err
	}
	defer browser.MustClose()

	page, err := browser.Page(proto.TargetCreateTarget{URL: u.String()})
	if err != nil {
		return "", err
	}
	defer page.MustClose()

	if err := page.WaitLoad(); err != nil {
		return "", err
	}

	// Settle in-flight XHRs before reading content so client-rendered
	// pages are captured after hydration.
	wait := page.WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
	wait()

	return page.HTML()
}
