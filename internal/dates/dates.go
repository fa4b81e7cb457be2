// Package dates finds an article's publication date in an HTML document.
//
// Strategies run in a fixed order and the first one that yields a parseable
// value wins: meta tags, JSON-LD, <time datetime>, then visible text.
package dates

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

// Strategy names, recorded on the article.
const (
	StrategyMeta    = "meta"
	StrategyJSONLD  = "jsonld"
	StrategyTime    = "time_tag"
	StrategyVisible = "visible_text"
)

// Strategy is one way of locating a publication date.
type Strategy struct {
	Name string
	Find func(doc *goquery.Document, loc *time.Location) (time.Time, bool)
}

// Chain is an ordered list of strategies.
type Chain []Strategy

// DefaultChain returns the strategies in precedence order.
func DefaultChain() Chain {
	return Chain{
		{Name: StrategyMeta, Find: fromMeta},
		{Name: StrategyJSONLD, Find: fromJSONLD},
		{Name: StrategyTime, Find: fromTimeTag},
		{Name: StrategyVisible, Find: fromVisibleText},
	}
}

// Extract returns the first date found and the name of the strategy that
// found it. ok is false when every strategy failed.
func (c Chain) Extract(doc *goquery.Document, loc *time.Location) (t time.Time, strategy string, ok bool) {
	if loc == nil {
		loc = time.UTC
	}
	for _, s := range c {
		if t, ok := s.Find(doc, loc); ok {
			return t, s.Name, true
		}
	}
	return time.Time{}, "", false
}

// metaKeys are checked against property, name and itemprop attributes.
var metaKeys = []string{
	"article:published_time",
	"og:article:published_time",
	"og:published_time",
	"datePublished",
	"publishdate",
	"pubdate",
	"parsely-pub-date",
	"sailthru.date",
	"dc.date.issued",
	"dc.date",
	"date",
}

func fromMeta(doc *goquery.Document, loc *time.Location) (time.Time, bool) {
	for _, key := range metaKeys {
		var found time.Time
		ok := false
		doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if !metaMatches(s, key) {
				return true
			}
			content, _ := s.Attr("content")
			found, ok = Parse(content, loc)
			return !ok
		})
		if ok {
			return found, true
		}
	}
	return time.Time{}, false
}

func metaMatches(s *goquery.Selection, key string) bool {
	for _, attr := range []string{"property", "name", "itemprop"} {
		if v, ok := s.Attr(attr); ok && strings.EqualFold(strings.TrimSpace(v), key) {
			return true
		}
	}
	return false
}

func fromJSONLD(doc *goquery.Document, loc *time.Location) (time.Time, bool) {
	var found time.Time
	ok := false
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}
		var data interface{}
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return true
		}
		for _, v := range collectDatePublished(data) {
			if found, ok = Parse(v, loc); ok {
				return false
			}
		}
		return true
	})
	return found, ok
}

// collectDatePublished walks a decoded JSON-LD value, including @graph and
// top-level arrays, and returns every datePublished string in document order.
func collectDatePublished(v interface{}) []string {
	var out []string
	switch node := v.(type) {
	case []interface{}:
		for _, item := range node {
			out = append(out, collectDatePublished(item)...)
		}
	case map[string]interface{}:
		if s, ok := node["datePublished"].(string); ok {
			out = append(out, s)
		}
		if graph, ok := node["@graph"]; ok {
			out = append(out, collectDatePublished(graph)...)
		}
	}
	return out
}

func fromTimeTag(doc *goquery.Document, loc *time.Location) (time.Time, bool) {
	var found time.Time
	ok := false
	doc.Find("time[datetime]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("datetime")
		found, ok = Parse(v, loc)
		return !ok
	})
	return found, ok
}

const months = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?`

var (
	dayMonthYear = regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th)?\s+` + months + `,?\s+\d{4}\b`)
	monthDayYear = regexp.MustCompile(`(?i)\b` + months + `\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b`)
	isoDate      = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	ordinal      = regexp.MustCompile(`(?i)(\d)(st|nd|rd|th)\b`)
)

// visibleSelectors are searched in order; the first with a date wins.
var visibleSelectors = []string{
	".published",
	".post-date",
	".article-date",
	".entry-date",
	".date",
	"[class*=date]",
	"article header",
	"article",
	"main",
}

func fromVisibleText(doc *goquery.Document, loc *time.Location) (time.Time, bool) {
	for _, sel := range visibleSelectors {
		var found time.Time
		ok := false
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found, ok = dateInText(s.Text(), loc)
			return !ok
		})
		if ok {
			return found, true
		}
	}
	return time.Time{}, false
}

func dateInText(text string, loc *time.Location) (time.Time, bool) {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 4000 {
		text = text[:4000]
	}
	for _, re := range []*regexp.Regexp{dayMonthYear, monthDayYear, isoDate} {
		for _, m := range re.FindAllString(text, 3) {
			if t, ok := Parse(m, loc); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

var textLayouts = []string{
	"2 January 2006",
	"2 Jan 2006",
	"January 2 2006",
	"Jan 2 2006",
}

// Parse reads a loosely formatted date. Values without a zone are taken to be
// in loc. Dates before 1990 are rejected as noise.
func Parse(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return plausible(t)
	}
	if t, err := dateparse.ParseIn(value, loc); err == nil {
		return plausible(t)
	}

	cleaned := ordinal.ReplaceAllString(value, "$1")
	cleaned = strings.NewReplacer(",", " ", ".", " ").Replace(cleaned)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if t, err := dateparse.ParseIn(cleaned, loc); err == nil {
		return plausible(t)
	}
	for _, layout := range textLayouts {
		if t, err := time.ParseInLocation(layout, cleaned, loc); err == nil {
			return plausible(t)
		}
	}
	return time.Time{}, false
}

func plausible(t time.Time) (time.Time, bool) {
	if t.Year() < 1990 {
		return time.Time{}, false
	}
	return t, true
}
