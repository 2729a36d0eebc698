package sim

import (
	"context"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"agentsight/internal/model"
)

// Browser loads a page under an overridden user agent and reports what
// the agent could see, plus a full-page screenshot.
type Browser interface {
	Visit(ctx context.Context, pageURL, userAgent string) (*model.SimulationObservation, []byte, error)
}

// RodBrowser drives a real headless browser through rod. One browser
// per visit: simulations are rare enough that connection reuse is not
// worth keeping state between jobs.
type RodBrowser struct {
	Timeout time.Duration
}

func NewRodBrowser(timeout time.Duration) *RodBrowser {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RodBrowser{Timeout: timeout}
}

func (b *RodBrowser) Visit(ctx context.Context, pageURL, userAgent string) (*model.SimulationObservation, []byte, error) {
	browser := rod.New().Context(ctx).Timeout(b.Timeout)
	if err := browser.Connect(); err != nil {
		return nil, nil, err
	}
	defer browser.MustClose()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, nil, err
	}
	defer page.MustClose()

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
		return nil, nil, err
	}
	if err := page.Navigate(pageURL); err != nil {
		return nil, nil, err
	}
	if err := page.WaitLoad(); err != nil {
		return nil, nil, err
	}

	wait := page.WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
	wait()

	obs, err := observe(page)
	if err != nil {
		return nil, nil, err
	}

	shot, err := page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, nil, err
	}

	return obs, shot, nil
}

// observe collects the agent-visible readiness signals from the live
// page: every JSON-LD block, the meta tags, the title, and the first
// H1.
func observe(page *rod.Page) (*model.SimulationObservation, error) {
	obs := &model.SimulationObservation{}

	title, err := page.Eval(`() => document.title`)
	if err != nil {
		return nil, err
	}
	obs.Title = title.Value.Str()

	scripts, err := page.Elements(`script[type="application/ld+json"]`)
	if err != nil {
		return nil, err
	}
	for _, s := range scripts {
		text, err := s.Text()
		if err != nil {
			continue
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			obs.VisibleJSONLD = append(obs.VisibleJSONLD, trimmed)
		}
	}

	metas, err := page.Elements(`meta`)
	if err != nil {
		return nil, err
	}
	for _, m := range metas {
		tag := model.MetaTag{}
		if attr, _ := m.Attribute("name"); attr != nil {
			tag.Name = *attr
		}
		if attr, _ := m.Attribute("property"); attr != nil {
			tag.Property = *attr
		}
		if attr, _ := m.Attribute("content"); attr != nil {
			tag.Content = *attr
		}
		if tag.Name != "" || tag.Property != "" {
			obs.Meta = append(obs.Meta, tag)
		}
	}

	if h1, err := page.Elements(`h1`); err == nil && len(h1) > 0 {
		if text, err := h1[0].Text(); err == nil {
			obs.H1 = strings.TrimSpace(text)
		}
	}

	return obs, nil
}
