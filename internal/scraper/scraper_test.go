package scraper

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/deusflow/musicpulse/internal/dates"
	"github.com/deusflow/musicpulse/internal/news"
)

func newExtractor() *Extractor {
	return New(time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func page(url, contentType, body string) *news.FetchedPage {
	return &news.FetchedPage{
		URL:         url,
		FinalURL:    url,
		FetchedAt:   time.Now(),
		Status:      200,
		ContentType: contentType,
		Body:        []byte(body),
	}
}

const fullArticle = `<!doctype html>
<html><head>
<title>Universal Music signs deal | Music Week</title>
<meta property="og:title" content="Universal Music Group signs TikTok licensing deal">
<meta property="og:description" content="Universal Music Group has agreed a new licensing deal with TikTok. The agreement covers Europe and Asia.">
<meta property="article:published_time" content="2025-10-06T09:00:00Z">
<meta name="author" content="Jane Smith">
</head><body><article><h1>Ignored heading</h1><p>Body text that should not be used because og:description exists.</p></article></body></html>`

func TestExtract_FullArticle(t *testing.T) {
	a, err := newExtractor().Extract(page("https://www.musicweek.com/labels/read/umg-tiktok/1?utm_source=x", "text/html; charset=utf-8", fullArticle), "Music Week")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if a.Title != "Universal Music Group signs TikTok licensing deal" {
		t.Errorf("Title = %q", a.Title)
	}
	if a.URL != "https://www.musicweek.com/labels/read/umg-tiktok/1" {
		t.Errorf("URL = %q", a.URL)
	}
	if a.ID != news.ArticleID(a.URL) || len(a.ID) != 16 {
		t.Errorf("ID = %q", a.ID)
	}
	if a.Byline != "Jane Smith" {
		t.Errorf("Byline = %q", a.Byline)
	}
	if a.Published == nil || !a.Published.Equal(time.Date(2025, 10, 6, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("Published = %v", a.Published)
	}
	if a.DateStrategy != dates.StrategyMeta {
		t.Errorf("DateStrategy = %q", a.DateStrategy)
	}
	if !strings.HasPrefix(a.Excerpt, "Universal Music Group has agreed") {
		t.Errorf("Excerpt = %q", a.Excerpt)
	}
	want := []string{
		"Universal Music Group signs TikTok licensing deal",
		"Universal Music Group has agreed a new licensing deal with TikTok.",
	}
	if len(a.Summary) != 2 || a.Summary[0] != want[0] || a.Summary[1] != want[1] {
		t.Errorf("Summary = %q", a.Summary)
	}
	if a.Language != "en" || a.Source != "Music Week" {
		t.Errorf("Language/Source = %q/%q", a.Language, a.Source)
	}
}

func TestExtract_FallbacksAndMissingDate(t *testing.T) {
	body := `<html><head><title>Spotify raises prices - Music Business Worldwide</title>
	<script type="application/ld+json">{"@type":"NewsArticle","author":{"@type":"Person","name":"Tim Ingham"}}</script>
	</head><body><main>
	<p>Short.</p>
	<p>Spotify is raising subscription prices across several markets, the company confirmed on Monday.</p>
	</main></body></html>`

	a, err := newExtractor().Extract(page("https://www.musicbusinessworldwide.com/spotify-raises-prices-again/", "text/html", body), "Music Business Worldwide")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if a.Title != "Spotify raises prices" {
		t.Errorf("Title = %q (site suffix should be trimmed)", a.Title)
	}
	if a.Byline != "Tim Ingham" {
		t.Errorf("Byline = %q", a.Byline)
	}
	if !a.DateMissing() || a.DateStrategy != "" {
		t.Errorf("expected missing date, got %v via %q", a.Published, a.DateStrategy)
	}
	if !strings.HasPrefix(a.Excerpt, "Spotify is raising subscription prices") {
		t.Errorf("Excerpt = %q", a.Excerpt)
	}
}

func TestExtract_ExcerptTruncated(t *testing.T) {
	long := strings.Repeat("word ", 200)
	body := `<html><head><meta property="og:title" content="Long one"><meta name="description" content="` + long + `"></head><body></body></html>`

	a, err := newExtractor().Extract(page("https://example.com/long", "text/html", body), "X")
	if err != nil {
		t.Fatal(err)
	}
	if n := utf8.RuneCountInString(a.Excerpt); n > news.MaxExcerptRunes {
		t.Errorf("excerpt has %d runes", n)
	}
	if !strings.HasSuffix(a.Excerpt, "…") {
		t.Errorf("excerpt should end with an ellipsis: %q", a.Excerpt)
	}
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        error
		reason      string
	}{
		{"pdf", "application/pdf", "%PDF-1.4", ErrNotHTML, "not_html"},
		{"json sniffed", "", `{"a":1}`, ErrNotHTML, "not_html"},
		{"no title", "text/html", `<html><body><p>nothing</p></body></html>`, ErrNoTitle, "no_title"},
		{"login page", "text/html", `<html><head><title>Login to your account</title></head></html>`, ErrForbiddenTitle, "page_title_forbidden"},
		{"subscribe wall", "text/html", `<html><body><h1>Subscribe to read more</h1></body></html>`, ErrForbiddenTitle, "page_title_forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newExtractor().Extract(page("https://example.com/x", tt.contentType, tt.body), "X")
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if got := Reason(err); got != tt.reason {
				t.Errorf("Reason = %q, want %q", got, tt.reason)
			}
		})
	}
}

func TestTrimSiteSuffix(t *testing.T) {
	tests := map[string]string{
		"Headline | Music Week":                 "Headline",
		"Headline - Music Business Worldwide":   "Headline",
		"Jay-Z talks - and a very long second clause that is clearly part of the headline": "Jay-Z talks - and a very long second clause that is clearly part of the headline",
		"Plain headline":                        "Plain headline",
	}
	for in, want := range tests {
		if got := trimSiteSuffix(in); got != want {
			t.Errorf("trimSiteSuffix(%q) = %q, want %q", in, got, want)
		}
	}
}
