// Package fetch retrieves pages while honouring robots.txt and per-host politeness.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/deusflow/musicpulse/internal/logger"
	"github.com/deusflow/musicpulse/internal/news"
	"github.com/deusflow/musicpulse/internal/ratelimit"
	"github.com/deusflow/musicpulse/internal/retry"
)

const maxBodyBytes = 4 << 20

var loginPath = regexp.MustCompile(`(?i)/(login|log-in|signin|sign-in|subscribe|register|my-account|paywall)(/|$)`)

type Options struct {
	UserAgent       string
	Timeout         time.Duration
	PolitenessDelay time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
	Client          *http.Client // optional, for tests
	Logger          *slog.Logger
}

// Gate is the only way the pipeline touches the network.
type Gate struct {
	client    *http.Client
	robots    *Robots
	limiter   *ratelimit.HostLimiter
	userAgent string
	timeout   time.Duration
	retry     retry.RetryConfig
	log       *slog.Logger
	now       func() time.Time
}

func New(opts Options) *Gate {
	log := opts.Logger
	if log == nil {
		log = logger.With("fetch")
	}

	client := &http.Client{}
	if opts.Client != nil {
		c := *opts.Client
		client = &c
	}
	client.Jar = nil

	g := &Gate{
		client:    client,
		limiter:   ratelimit.NewHostLimiter(opts.PolitenessDelay),
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
		retry: retry.RetryConfig{
			MaxAttempts: opts.RetryAttempts,
			Delay:       opts.RetryDelay,
			Backoff:     true,
		},
		log: log,
		now: time.Now,
	}
	if g.timeout <= 0 {
		g.timeout = 18 * time.Second
	}
	robotsClient := *client
	robotsClient.CheckRedirect = nil
	g.robots = NewRobots(&robotsClient, opts.UserAgent, g.timeout, g.limiter, log)
	client.CheckRedirect = g.checkRedirect
	return g
}

func (g *Gate) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	if loginPath.MatchString(req.URL.Path) {
		return ErrLoginRequired
	}
	if !g.robots.Allowed(req.Context(), req.URL.String()) {
		return ErrBlockedByRobots
	}
	return nil
}

// Robots exposes the robots.txt cache.
func (g *Gate) Robots() *Robots {
	return g.robots
}

// Fetch retrieves rawURL. Failures are ErrBlockedByRobots, ErrLoginRequired,
// ErrTimeout, *HTTPError or *NetworkError; use Reason to map them.
func (g *Gate) Fetch(ctx context.Context, rawURL string) (*news.FetchedPage, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &NetworkError{URL: rawURL, Err: fmt.Errorf("unsupported url")}
	}

	if !g.robots.Allowed(ctx, rawURL) {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrBlockedByRobots)
	}

	var page *news.FetchedPage
	err = retry.WithRetry(ctx, g.retry, func() error {
		p, err := g.fetchOnce(ctx, u)
		if err != nil {
			if !retryable(err) {
				return retry.Permanent(err)
			}
			g.log.Debug("transient fetch failure", "url", rawURL, "error", err)
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (g *Gate) fetchOnce(ctx context.Context, u *url.URL) (*news.FetchedPage, error) {
	rawURL := u.String()

	if err := g.limiter.Wait(ctx, u.Host); err != nil {
		return nil, classify(rawURL, err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, classify(rawURL, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			g.log.Debug("failed to close response body", "error", closeErr)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusProxyAuthRequired:
		return nil, fmt.Errorf("%s: %w", rawURL, ErrLoginRequired)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &HTTPError{Status: resp.StatusCode, URL: rawURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classify(rawURL, err)
	}

	return &news.FetchedPage{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		FetchedAt:   g.now(),
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
