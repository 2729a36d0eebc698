package agents

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeRegistry struct {
	upserts map[string]string // name -> pattern
	calls   int
}

func (f *fakeRegistry) UpsertAgent(ctx context.Context, name, pattern, exampleUA, source string) error {
	if f.upserts == nil {
		f.upserts = map[string]string{}
	}
	f.upserts[name] = pattern
	f.calls++
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSyncOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"name": "GPTBot", "pattern": "GPTBot", "example_ua": "GPTBot/1.1"},
			{"name": "NewBot", "pattern": "NewBot", "example_ua": "NewBot/0.1"},
			{"name": "", "pattern": "Broken"},
			{"name": "NoPattern"}
		]`))
	}))
	defer srv.Close()

	reg := &fakeRegistry{}
	s := NewSyncer(srv.URL, time.Hour, reg, testLogger())

	if err := s.SyncOnce(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if reg.calls != 2 {
		t.Fatalf("upserts = %d, want 2 (malformed entries skipped)", reg.calls)
	}
	if reg.upserts["NewBot"] != "NewBot" {
		t.Fatalf("NewBot not upserted: %v", reg.upserts)
	}
}

func TestSyncOnce_Idempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"name": "GPTBot", "pattern": "GPTBot"}]`))
	}))
	defer srv.Close()

	reg := &fakeRegistry{}
	s := NewSyncer(srv.URL, time.Hour, reg, testLogger())

	for i := 0; i < 3; i++ {
		if err := s.SyncOnce(context.Background()); err != nil {
			t.Fatalf("sync %d: %v", i, err)
		}
	}
	if len(reg.upserts) != 1 {
		t.Fatalf("registry has %d entries after repeated sync, want 1", len(reg.upserts))
	}
}

func TestSyncOnce_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSyncer(srv.URL, time.Hour, &fakeRegistry{}, testLogger())
	if err := s.SyncOnce(context.Background()); err == nil {
		t.Fatalf("expected error on 500 from remote registry")
	}
}

func TestStart_NoRemoteIsNoop(t *testing.T) {
	reg := &fakeRegistry{}
	s := NewSyncer("", time.Hour, reg, testLogger())

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Start should return immediately without a remote URL")
	}
	if reg.calls != 0 {
		t.Fatalf("no upserts expected without a remote")
	}
}
