// Package discover finds candidate article URLs for each source: homepage
// links first, then RSS/Atom feeds and listing pages when the homepage
// yields too few.
package discover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/musicpulse/internal/logger"
	"github.com/deusflow/musicpulse/internal/metrics"
	"github.com/deusflow/musicpulse/internal/news"
	"github.com/deusflow/musicpulse/internal/rss"
	"github.com/deusflow/musicpulse/internal/sources"
)

// ErrDiscovery is returned when a source's homepage cannot be fetched.
var ErrDiscovery = errors.New("discovery failed")

var blocklist = []string{
	"login", "password", "reset", "subscribe", "newsletter",
	"account", "cookie", "privacy", "terms", "contact",
}

// Fetcher is the part of fetch.Gate discovery needs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*news.FetchedPage, error)
}

type Options struct {
	MaxPerSource  int
	MinCandidates int // default threshold, sources may override
	ListingPages  int
	Logger        *slog.Logger
}

type Discoverer struct {
	fetcher Fetcher
	opts    Options
	log     *slog.Logger
}

func New(f Fetcher, opts Options) *Discoverer {
	if opts.Logger == nil {
		opts.Logger = logger.With("discover")
	}
	if opts.ListingPages <= 0 {
		opts.ListingPages = 4
	}
	return &Discoverer{fetcher: f, opts: opts, log: opts.Logger}
}

// Discover returns the source's candidates in discovery order, homepage
// links before fallback links, capped at MaxPerSource.
func (d *Discoverer) Discover(ctx context.Context, src sources.Source, diag *metrics.RunDiagnostics) ([]news.CandidateURL, error) {
	page, err := d.fetcher.Fetch(ctx, src.Homepage)
	if err != nil {
		diag.Skip(metrics.ReasonDiscoveryFailure)
		return nil, fmt.Errorf("%w: %s: %w", ErrDiscovery, src.Name, err)
	}

	seen := make(map[string]bool)
	var out []news.CandidateURL

	homepage := d.filter(src, pageLinks(page), seen)
	for _, u := range homepage {
		out = append(out, news.CandidateURL{URL: u, Source: src.Name, Method: news.MethodHomepage})
	}
	diag.AddDiscovered(src.Name, news.MethodHomepage, len(homepage))

	threshold := src.MinCandidatesOr(d.opts.MinCandidates)
	if len(homepage) < threshold {
		d.log.Info("homepage yielded few candidates, running fallback",
			"source", src.Name, "candidates", len(homepage), "min", threshold)
		fallback := d.fallback(ctx, src, seen, diag)
		for _, u := range fallback {
			out = append(out, news.CandidateURL{URL: u, Source: src.Name, Method: news.MethodFallback})
		}
		diag.AddDiscovered(src.Name, news.MethodFallback, len(fallback))
	}

	if limit := d.opts.MaxPerSource; limit > 0 && len(out) > limit {
		diag.SkipN(metrics.ReasonMaxPerSource, len(out)-limit)
		out = out[:limit]
	}

	d.log.Info("discovered candidates", "source", src.Name, "count", len(out))
	return out, nil
}

// fallback reads feeds, then listing pages. Failures here are logged and
// never fail the source.
func (d *Discoverer) fallback(ctx context.Context, src sources.Source, seen map[string]bool, diag *metrics.RunDiagnostics) []string {
	var found []string

	for _, feedURL := range src.FallbackFeeds {
		page, err := d.fetcher.Fetch(ctx, feedURL)
		if err != nil {
			d.log.Warn("feed fetch failed", "source", src.Name, "url", feedURL, "error", err)
			continue
		}
		entries, err := rss.ParseFeed(page.Body)
		if err != nil {
			d.log.Warn("feed parse failed", "source", src.Name, "url", feedURL, "error", err)
			continue
		}
		diag.AddFeedEntries(src.Name, len(entries))

		links := make([]string, 0, len(entries))
		for _, link := range entries {
			links = append(links, resolve(page.FinalURL, link))
		}
		found = append(found, d.filter(src, links, seen)...)
	}

	for _, listing := range src.ListingURLs(d.opts.ListingPages) {
		if ctx.Err() != nil {
			break
		}
		page, err := d.fetcher.Fetch(ctx, listing)
		if err != nil {
			d.log.Warn("listing fetch failed", "source", src.Name, "url", listing, "error", err)
			continue
		}
		found = append(found, d.filter(src, pageLinks(page), seen)...)
	}
	return found
}

// filter canonicalizes links and keeps new, on-host, article-like URLs.
func (d *Discoverer) filter(src sources.Source, links []string, seen map[string]bool) []string {
	var out []string
	for _, link := range links {
		canonical := news.CanonicalURL(link)
		if canonical == "" || seen[canonical] {
			continue
		}
		u, err := url.Parse(canonical)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		if !src.AllowsHost(u.Hostname()) || blocked(canonical) || !src.LooksLikeArticle(u.Path) {
			continue
		}
		seen[canonical] = true
		out = append(out, canonical)
	}
	return out
}

func blocked(canonical string) bool {
	lower := strings.ToLower(canonical)
	for _, token := range blocklist {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

func pageLinks(page *news.FetchedPage) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil
	}
	base := page.FinalURL
	if base == "" {
		base = page.URL
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") ||
			strings.HasPrefix(strings.ToLower(href), "mailto:") {
			return
		}
		if abs := resolve(base, href); abs != "" {
			links = append(links, abs)
		}
	})
	return links
}

func resolve(base, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref.String()
	}
	return b.ResolveReference(ref).String()
}
