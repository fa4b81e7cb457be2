package discover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/deusflow/musicpulse/internal/metrics"
	"github.com/deusflow/musicpulse/internal/news"
	"github.com/deusflow/musicpulse/internal/sources"
)

var errDown = errors.New("connection refused")

// fakeFetcher serves fixed bodies by URL and fails for everything else.
type fakeFetcher struct {
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*news.FetchedPage, error) {
	f.calls = append(f.calls, rawURL)
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, errDown)
	}
	return &news.FetchedPage{URL: rawURL, FinalURL: rawURL, Status: 200, Body: []byte(body)}, nil
}

func links(hrefs ...string) string {
	body := "<html><body>"
	for _, h := range hrefs {
		body += fmt.Sprintf(`<a href="%s">link</a>`, h)
	}
	return body + "</body></html>"
}

func testSource() sources.Source {
	return sources.Source{
		Name:             "Example",
		Homepage:         "https://www.example.com/",
		AllowedHosts:     []string{"example.com"},
		FallbackFeeds:    []string{"https://www.example.com/feed/"},
		FallbackListings: []string{"https://www.example.com/news"},
	}
}

func newDiscoverer(f Fetcher, max, min int) *Discoverer {
	return New(f, Options{
		MaxPerSource:  max,
		MinCandidates: min,
		ListingPages:  1,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func urls(c []news.CandidateURL) []string {
	out := make([]string, len(c))
	for i := range c {
		out[i] = c[i].URL
	}
	return out
}

func TestDiscover_HomepageFilters(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://www.example.com/": links(
			"/news/sony-restructures",
			"/news/sony-restructures/",
			"https://www.example.com/news/spotify-raises-prices?utm_source=x",
			"/login",
			"/privacy-policy",
			"https://other.org/news/story",
			"#top",
			"mailto:desk@example.com",
			"/",
		),
	}}
	diag := metrics.NewRunDiagnostics(time.Now())

	got, err := newDiscoverer(f, 80, 2).Discover(context.Background(), testSource(), diag)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	want := []string{
		"https://www.example.com/news/sony-restructures",
		"https://www.example.com/news/spotify-raises-prices",
	}
	if !reflect.DeepEqual(urls(got), want) {
		t.Errorf("urls = %v, want %v", urls(got), want)
	}
	for _, c := range got {
		if c.Method != news.MethodHomepage || c.Source != "Example" {
			t.Errorf("candidate = %+v", c)
		}
	}
	if len(f.calls) != 1 {
		t.Errorf("fallback ran although homepage met the threshold: %v", f.calls)
	}
	snap := diag.Snapshot()
	if snap.DiscoveredURLsHomepage != 2 || snap.DiscoveredURLsFallback != 0 {
		t.Errorf("discovered = %d/%d", snap.DiscoveredURLsHomepage, snap.DiscoveredURLsFallback)
	}
}

func TestDiscover_Fallback(t *testing.T) {
	feed := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Example</title>
<item><title>One</title><link>https://www.example.com/news/one</link></item>
<item><title>Home</title><link>https://www.example.com/news/from-home</link></item>
</channel></rss>`

	f := &fakeFetcher{pages: map[string]string{
		"https://www.example.com/":     links("/news/from-home"),
		"https://www.example.com/feed/": feed,
		"https://www.example.com/news":  links("/news/one", "/news/two"),
	}}
	diag := metrics.NewRunDiagnostics(time.Now())

	got, err := newDiscoverer(f, 80, 5).Discover(context.Background(), testSource(), diag)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	want := []string{
		"https://www.example.com/news/from-home",
		"https://www.example.com/news/one",
		"https://www.example.com/news/two",
	}
	if !reflect.DeepEqual(urls(got), want) {
		t.Fatalf("urls = %v, want %v", urls(got), want)
	}
	if got[0].Method != news.MethodHomepage || got[1].Method != news.MethodFallback || got[2].Method != news.MethodFallback {
		t.Errorf("methods = %s %s %s", got[0].Method, got[1].Method, got[2].Method)
	}

	snap := diag.Snapshot()
	if snap.DiscoveredURLsHomepage != 1 || snap.DiscoveredURLsFallback != 2 {
		t.Errorf("discovered = %d/%d, want 1/2", snap.DiscoveredURLsHomepage, snap.DiscoveredURLsFallback)
	}
	if sc := snap.Sources["Example"]; sc.FeedEntries != 2 || sc.Discovered != 3 {
		t.Errorf("source counters = %+v", sc)
	}
}

func TestDiscover_FallbackFailuresAreNotFatal(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://www.example.com/":     links("/news/only"),
		"https://www.example.com/feed/": "this is not a feed",
	}}
	diag := metrics.NewRunDiagnostics(time.Now())

	got, err := newDiscoverer(f, 80, 5).Discover(context.Background(), testSource(), diag)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("urls = %v", urls(got))
	}
}

func TestDiscover_CapsPerSource(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://www.example.com/": links("/news/a", "/news/b", "/news/c"),
	}}
	diag := metrics.NewRunDiagnostics(time.Now())

	got, err := newDiscoverer(f, 2, 1).Discover(context.Background(), testSource(), diag)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 2 || got[1].URL != "https://www.example.com/news/b" {
		t.Errorf("urls = %v", urls(got))
	}
	snap := diag.Snapshot()
	if n := snap.Skipped(metrics.ReasonMaxPerSource); n != 1 {
		t.Errorf("max_per_source = %d, want 1", n)
	}
	if snap.DiscoveredURLsHomepage != 3 {
		t.Errorf("discovered before cap = %d, want 3", snap.DiscoveredURLsHomepage)
	}
}

func TestDiscover_HomepageFailure(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{}}
	diag := metrics.NewRunDiagnostics(time.Now())

	got, err := newDiscoverer(f, 80, 5).Discover(context.Background(), testSource(), diag)
	if !errors.Is(err, ErrDiscovery) || !errors.Is(err, errDown) {
		t.Fatalf("err = %v", err)
	}
	if got != nil {
		t.Errorf("urls = %v", urls(got))
	}
	if n := diag.Snapshot().Skipped(metrics.ReasonDiscoveryFailure); n != 1 {
		t.Errorf("discovery_failure = %d", n)
	}
	if len(f.calls) != 1 {
		t.Errorf("fallback must not run after a homepage failure: %v", f.calls)
	}
}

func TestDiscover_ArticlePatterns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	yaml := `sources:
  - name: Music Week
    homepage: https://www.musicweek.com/
    article_patterns: ['/read/']
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	list, err := sources.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	f := &fakeFetcher{pages: map[string]string{
		"https://www.musicweek.com/": links(
			"/labels/read/sony-music-restructures/093412",
			"/labels",
			"https://musicweek.com/live/read/festival-season/093400",
		),
	}}
	got, err := newDiscoverer(f, 80, 1).Discover(context.Background(), list[0], metrics.NewRunDiagnostics(time.Now()))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{
		"https://www.musicweek.com/labels/read/sony-music-restructures/093412",
		"https://musicweek.com/live/read/festival-season/093400",
	}
	if !reflect.DeepEqual(urls(got), want) {
		t.Errorf("urls = %v, want %v", urls(got), want)
	}
}
