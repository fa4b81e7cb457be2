package scraper

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/deusflow/musicpulse/internal/dates"
	"github.com/deusflow/musicpulse/internal/news"
)

var (
	ErrNotHTML        = errors.New("not an html page")
	ErrNoTitle        = errors.New("no title found")
	ErrForbiddenTitle = errors.New("title looks like a login or subscription page")
	ErrParse          = errors.New("html parse error")
)

// SummaryBullets is how many bullet lines each article summary carries.
const SummaryBullets = 2

// forbiddenTitleTokens mark pages that are not articles.
var forbiddenTitleTokens = []string{"password", "login", "subscribe"}

// Reason maps an extraction error to its skipped_by_reason key.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNotHTML):
		return "not_html"
	case errors.Is(err, ErrNoTitle):
		return "no_title"
	case errors.Is(err, ErrForbiddenTitle):
		return "page_title_forbidden"
	default:
		return "parse_error"
	}
}

// Extractor turns fetched pages into articles.
type Extractor struct {
	chain dates.Chain
	loc   *time.Location
	log   *slog.Logger
}

// New creates an Extractor that interprets zone-less dates in loc.
func New(loc *time.Location, log *slog.Logger) *Extractor {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{chain: dates.DefaultChain(), loc: loc, log: log}
}

// Extract parses page into an article for source. A missing date is not an
// error: Published stays nil.
func (e *Extractor) Extract(page *news.FetchedPage, source string) (*news.Article, error) {
	if !isHTML(page) {
		return nil, fmt.Errorf("%s: %w", page.URL, ErrNotHTML)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", page.URL, ErrParse, err)
	}

	title := extractTitle(doc)
	if title == "" {
		return nil, fmt.Errorf("%s: %w", page.URL, ErrNoTitle)
	}
	lower := strings.ToLower(title)
	for _, bad := range forbiddenTitleTokens {
		if strings.Contains(lower, bad) {
			return nil, fmt.Errorf("%s: %w", page.URL, ErrForbiddenTitle)
		}
	}

	canonical := news.CanonicalURL(page.URL)
	article := &news.Article{
		ID:       news.ArticleID(canonical),
		Source:   source,
		URL:      canonical,
		Title:    title,
		Byline:   extractByline(doc),
		Language: "en",
	}

	if published, strategy, ok := e.chain.Extract(doc, e.loc); ok {
		published = published.In(e.loc)
		article.Published = &published
		article.DateStrategy = strategy
	} else {
		e.log.Debug("no publication date", "url", canonical)
	}

	excerpt := extractExcerpt(doc)
	if excerpt == "" {
		excerpt = readableText(page.Body)
	}
	article.Excerpt = news.Truncate(excerpt, news.MaxExcerptRunes)
	article.Summary = news.SummaryBullets(title, article.Excerpt, SummaryBullets)

	return article, nil
}

func isHTML(page *news.FetchedPage) bool {
	ct := strings.ToLower(page.ContentType)
	if ct == "" {
		ct = strings.ToLower(http.DetectContentType(page.Body))
	}
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

func metaContent(doc *goquery.Document, key string) string {
	sel := fmt.Sprintf(`meta[property=%q], meta[name=%q]`, key, key)
	var out string
	doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		out = news.CollapseWhitespace(s.AttrOr("content", ""))
		return out == ""
	})
	return out
}

// extractTitle gets article title
func extractTitle(doc *goquery.Document) string {
	for _, key := range []string{"og:title", "twitter:title"} {
		if title := metaContent(doc, key); title != "" {
			return title
		}
	}

	if h1 := news.CollapseWhitespace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}

	return trimSiteSuffix(news.CollapseWhitespace(doc.Find("title").First().Text()))
}

var titleSeparators = []string{" | ", " - ", " – ", " — "}

// trimSiteSuffix drops a trailing " | Site Name" from a <title>.
func trimSiteSuffix(title string) string {
	for _, sep := range titleSeparators {
		idx := strings.LastIndex(title, sep)
		if idx <= 0 {
			continue
		}
		if utf8.RuneCountInString(title[idx+len(sep):]) <= 40 {
			return strings.TrimSpace(title[:idx])
		}
	}
	return title
}

// extractByline gets the author name
func extractByline(doc *goquery.Document) string {
	for _, key := range []string{"author", "article:author", "parsely-author", "sailthru.author"} {
		if v := metaContent(doc, key); v != "" && !strings.HasPrefix(v, "http") {
			return v
		}
	}

	if v := jsonLDAuthor(doc); v != "" {
		return v
	}

	selectors := []string{
		`[rel="author"]`,
		`[itemprop="author"]`,
		".byline",
		".author",
	}
	for _, selector := range selectors {
		v := news.CollapseWhitespace(doc.Find(selector).First().Text())
		v = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(v, "By "), "by "))
		if v != "" && utf8.RuneCountInString(v) <= 80 {
			return v
		}
	}
	return ""
}

// extractExcerpt gets a short description of the article
func extractExcerpt(doc *goquery.Document) string {
	for _, key := range []string{"og:description", "description", "twitter:description"} {
		if v := metaContent(doc, key); v != "" {
			return v
		}
	}

	selectors := []string{
		"article p",
		"main p",
		".article-body p",
		".entry-content p",
	}
	for _, selector := range selectors {
		var text string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			t := news.CollapseWhitespace(s.Text())
			if utf8.RuneCountInString(t) > 40 {
				text = t
				return false
			}
			return true
		})
		if text != "" {
			return text
		}
	}
	return ""
}

func readableText(body []byte) string {
	article, err := readability.FromReader(bytes.NewReader(body), nil)
	if err != nil {
		return ""
	}
	return news.CollapseWhitespace(article.TextContent)
}
