// Package news holds the records that flow through the weekly pipeline.
package news

import (
	"time"
)

// Discovery methods for CandidateURL.
const (
	MethodHomepage = "homepage"
	MethodFallback = "fallback"
)

// Entity categories.
const (
	CategoryCompany      = "Company"
	CategoryPerson       = "Person"
	CategoryOrganization = "Organization"
)

// Insight kinds.
const (
	InsightEntity = "entity"
	InsightPair   = "pair"
	InsightTheme  = "theme"
)

// CandidateURL is an article URL found during discovery. It lives for one run.
type CandidateURL struct {
	URL    string // canonical
	Source string
	Method string
}

// FetchedPage is a successful HTTP retrieval. Body is kept in memory only.
type FetchedPage struct {
	URL         string
	FinalURL    string
	FetchedAt   time.Time
	Status      int
	ContentType string
	Body        []byte
}

// Article is the structured record extracted from a page. Published is nil
// when no date could be parsed.
type Article struct {
	ID           string     `json:"id"`
	Source       string     `json:"source"`
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	Byline       string     `json:"byline,omitempty"`
	Published    *time.Time `json:"published,omitempty"`
	DateStrategy string     `json:"date_strategy,omitempty"`
	Excerpt      string     `json:"excerpt"`
	Summary      []string   `json:"summary"`
	Language     string     `json:"language"`

	TitleZH   string   `json:"-"`
	ExcerptZH string   `json:"-"`
	SummaryZH []string `json:"-"`
}

// DateMissing reports whether no publication date was found.
func (a *Article) DateMissing() bool {
	return a.Published == nil
}

// EntityMention is one recognized entity occurrence in one article.
type EntityMention struct {
	Surface   string
	Key       string
	Category  string
	ArticleID string
}

// EntityCount aggregates every mention that normalizes to Key.
type EntityCount struct {
	Key        string
	Name       string
	NameZH     string
	Category   string
	Count      int
	ArticleIDs []string // first-seen order
	FirstSeen  int      // position of the first supporting article in the run
}

// Insight is a ranked statement backed by at least one article.
type Insight struct {
	Kind     string
	Text     string
	TextZH   string
	Score    float64
	Breadth  int
	Evidence []string
}
