package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGate(timeout time.Duration, attempts int) *Gate {
	return New(Options{
		UserAgent:     "MusicNewsInsightsBot/1.0",
		Timeout:       timeout,
		RetryAttempts: attempts,
		RetryDelay:    time.Millisecond,
		Logger:        quietLogger(),
	})
}

func TestGate_FetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if ua := r.Header.Get("User-Agent"); ua != "MusicNewsInsightsBot/1.0" {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><title>ok</title></html>")
	}))
	defer srv.Close()

	page, err := newTestGate(time.Second, 1).Fetch(context.Background(), srv.URL+"/article")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.Status != 200 || string(page.Body) != "<html><title>ok</title></html>" {
		t.Errorf("unexpected page: %d %q", page.Status, page.Body)
	}
	if page.ContentType != "text/html; charset=utf-8" {
		t.Errorf("ContentType = %q", page.ContentType)
	}
}

func TestGate_RobotsDisallowCachedPerHost(t *testing.T) {
	var robotsHits, pageHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			atomic.AddInt32(&robotsHits, 1)
			fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
		default:
			atomic.AddInt32(&pageHits, 1)
			fmt.Fprint(w, "<html></html>")
		}
	}))
	defer srv.Close()

	g := newTestGate(time.Second, 1)
	ctx := context.Background()

	_, err := g.Fetch(ctx, srv.URL+"/private/story")
	if !errors.Is(err, ErrBlockedByRobots) {
		t.Fatalf("expected ErrBlockedByRobots, got %v", err)
	}
	if Reason(err) != "robots" {
		t.Errorf("Reason = %q, want robots", Reason(err))
	}
	if _, err := g.Fetch(ctx, srv.URL+"/public/story"); err != nil {
		t.Fatalf("public fetch: %v", err)
	}
	if _, err := g.Fetch(ctx, srv.URL+"/public/other"); err != nil {
		t.Fatalf("public fetch: %v", err)
	}

	if got := atomic.LoadInt32(&robotsHits); got != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", got)
	}
	if got := atomic.LoadInt32(&pageHits); got != 2 {
		t.Errorf("page hits = %d, want 2 (blocked URL must never be requested)", got)
	}
}

func TestGate_HTTPErrorNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestGate(time.Second, 3).Fetch(context.Background(), srv.URL+"/gone")
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != 404 {
		t.Fatalf("expected HTTPError 404, got %v", err)
	}
	if Reason(err) != "http_404" {
		t.Errorf("Reason = %q", Reason(err))
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("hits = %d, 4xx must not be retried", got)
	}
}

func TestGate_ServerErrorRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	if _, err := newTestGate(time.Second, 2).Fetch(context.Background(), srv.URL+"/flaky"); err != nil {
		t.Fatalf("expected success on second attempt, got %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("hits = %d, want 2", got)
	}
}

func TestGate_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	_, err := newTestGate(50*time.Millisecond, 1).Fetch(context.Background(), srv.URL+"/slow")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if Reason(err) != "timeout" {
		t.Errorf("Reason = %q", Reason(err))
	}
}

func TestGate_HangingRobotsAllowsFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			select {
			case <-time.After(3 * time.Second):
			case <-r.Context().Done():
			}
			return
		}
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	start := time.Now()
	_, err := newTestGate(200*time.Millisecond, 1).Fetch(context.Background(), srv.URL+"/article")
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if elapsed > time.Second {
		t.Errorf("fetch took %v, robots.txt load should stop at the gate timeout", elapsed)
	}
}

func TestRobots_ResetRereads(t *testing.T) {
	var disallow atomic.Bool
	var robotsHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			atomic.AddInt32(&robotsHits, 1)
			if disallow.Load() {
				fmt.Fprint(w, "User-agent: *\nDisallow: /\n")
			}
			return
		}
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	g := newTestGate(time.Second, 1)
	ctx := context.Background()
	if _, err := g.Fetch(ctx, srv.URL+"/a"); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	disallow.Store(true)
	if _, err := g.Fetch(ctx, srv.URL+"/a"); err != nil {
		t.Fatalf("cached robots.txt should still allow: %v", err)
	}

	g.Robots().Reset()
	if _, err := g.Fetch(ctx, srv.URL+"/a"); !errors.Is(err, ErrBlockedByRobots) {
		t.Fatalf("after Reset expected ErrBlockedByRobots, got %v", err)
	}
	if got := atomic.LoadInt32(&robotsHits); got != 2 {
		t.Errorf("robots.txt fetched %d times, want 2", got)
	}
}

func TestGate_LoginRedirectBlocked(t *testing.T) {
	var loginHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			http.NotFound(w, r)
		case "/premium/story":
			http.Redirect(w, r, "/login?next=/premium/story", http.StatusFound)
		case "/login":
			atomic.AddInt32(&loginHits, 1)
			fmt.Fprint(w, "<form>password</form>")
		case "/members":
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	g := newTestGate(time.Second, 1)

	_, err := g.Fetch(context.Background(), srv.URL+"/premium/story")
	if !errors.Is(err, ErrLoginRequired) || !errors.Is(err, ErrBlockedByRobots) {
		t.Fatalf("expected ErrLoginRequired, got %v", err)
	}
	if Reason(err) != "login_required" {
		t.Errorf("Reason = %q", Reason(err))
	}
	if atomic.LoadInt32(&loginHits) != 0 {
		t.Error("login page must not be requested")
	}

	_, err = g.Fetch(context.Background(), srv.URL+"/members")
	if Reason(err) != "login_required" {
		t.Errorf("401 Reason = %q, err %v", Reason(err), err)
	}
}

func TestGate_UnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := newTestGate(time.Second, 1).Fetch(context.Background(), addr+"/x")
	if err == nil {
		t.Fatal("expected error")
	}
	if r := Reason(err); r != "network" {
		t.Errorf("Reason = %q, want network (err %v)", r, err)
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrBlockedByRobots, "robots"},
		{fmt.Errorf("x: %w", ErrLoginRequired), "login_required"},
		{fmt.Errorf("x: %w", ErrTimeout), "timeout"},
		{&HTTPError{Status: 503}, "http_503"},
		{fmt.Errorf("failed after 2 attempts: %w", &NetworkError{Err: errors.New("reset")}), "network"},
		{errors.New("other"), "fetch_error"},
	}
	for _, tt := range tests {
		if got := Reason(tt.err); got != tt.want {
			t.Errorf("Reason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
