package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/deusflow/musicpulse/internal/ratelimit"
)

type robotsEntry struct {
	once sync.Once
	data *robotstxt.RobotsData // nil allows everything
}

// Robots caches one parsed robots.txt per scheme and host until Reset.
type Robots struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	limiter   *ratelimit.HostLimiter
	log       *slog.Logger

	mu    sync.Mutex
	hosts map[string]*robotsEntry
}

// NewRobots returns an empty cache. Each robots.txt load is bounded by timeout.
func NewRobots(client *http.Client, userAgent string, timeout time.Duration, limiter *ratelimit.HostLimiter, log *slog.Logger) *Robots {
	return &Robots{
		client:    client,
		userAgent: userAgent,
		timeout:   timeout,
		limiter:   limiter,
		log:       log,
		hosts:     make(map[string]*robotsEntry),
	}
}

// Reset drops every cached robots.txt so the next run reads them again.
func (r *Robots) Reset() {
	r.mu.Lock()
	r.hosts = make(map[string]*robotsEntry)
	r.mu.Unlock()
}

// Allowed reports whether the user agent may fetch rawURL. A robots.txt that
// cannot be retrieved in time allows all paths.
func (r *Robots) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	key := strings.ToLower(u.Scheme + "://" + u.Host)

	r.mu.Lock()
	entry, ok := r.hosts[key]
	if !ok {
		entry = &robotsEntry{}
		r.hosts[key] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.data = r.load(ctx, key, u.Host)
	})

	if entry.data == nil {
		return true
	}
	return entry.data.TestAgent(u.RequestURI(), r.userAgent)
}

func (r *Robots) load(ctx context.Context, base, host string) *robotstxt.RobotsData {
	robotsURL := base + "/robots.txt"

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.limiter.Wait(ctx, host); err != nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if errors.Is(err, context.DeadlineExceeded) {
		r.log.Warn("robots.txt timed out, allowing", "url", robotsURL, "timeout", r.timeout)
		return nil
	}
	if err != nil {
		r.log.Warn("robots.txt unavailable, allowing", "url", robotsURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		r.log.Warn("robots.txt unreadable, allowing", "url", robotsURL, "error", err)
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		r.log.Warn("robots.txt unparseable, allowing", "url", robotsURL, "error", err)
		return nil
	}
	r.log.Debug("robots.txt loaded", "url", robotsURL, "status", resp.StatusCode)
	return data
}
