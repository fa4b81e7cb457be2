// Package insight ranks evidence-backed statements about the week's entities
// and recurring themes. Generation is pure: the same input always yields the
// same insights in the same order.
package insight

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/deusflow/musicpulse/internal/news"
)

// Options tune candidate scoring.
type Options struct {
	TopK          int
	MaxEvidence   int
	BreadthWeight float64
	// PairPool bounds how many top entities are paired with each other.
	PairPool int
}

func DefaultOptions() Options {
	return Options{TopK: 8, MaxEvidence: 5, BreadthWeight: 1, PairPool: 30}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TopK <= 0 {
		o.TopK = d.TopK
	}
	if o.MaxEvidence <= 0 {
		o.MaxEvidence = d.MaxEvidence
	}
	if o.BreadthWeight < 0 {
		o.BreadthWeight = d.BreadthWeight
	}
	if o.PairPool <= 0 {
		o.PairPool = d.PairPool
	}
	return o
}

type candidate struct {
	insight news.Insight
	latest  time.Time
}

// Generate returns at most TopK insights. Every insight carries at least one
// supporting article ID from articles.
func Generate(counts []news.EntityCount, articles []news.Article, opts Options) []news.Insight {
	opts = opts.withDefaults()

	byID := make(map[string]*news.Article, len(articles))
	for i := range articles {
		byID[articles[i].ID] = &articles[i]
	}

	var cands []candidate
	add := func(kind, text string, mentions int, support []string) {
		evidence, latest := orderEvidence(support, byID)
		if len(evidence) == 0 {
			return
		}
		breadth := len(evidence)
		if len(evidence) > opts.MaxEvidence {
			evidence = evidence[:opts.MaxEvidence]
		}
		cands = append(cands, candidate{
			insight: news.Insight{
				Kind:     kind,
				Text:     text,
				Score:    float64(mentions) + opts.BreadthWeight*float64(breadth),
				Breadth:  breadth,
				Evidence: evidence,
			},
			latest: latest,
		})
	}

	for _, c := range counts {
		breadth := len(c.ArticleIDs)
		if breadth == 0 {
			continue
		}
		add(news.InsightEntity, entityText(c), c.Count, c.ArticleIDs)
	}

	pool := counts
	if len(pool) > opts.PairPool {
		pool = pool[:opts.PairPool]
	}
	for i := 0; i < len(pool); i++ {
		for j := i + 1; j < len(pool); j++ {
			shared := intersect(pool[i].ArticleIDs, pool[j].ArticleIDs)
			if len(shared) < 2 {
				continue
			}
			text := fmt.Sprintf("%s and %s appeared together in %d articles this week.", pool[i].Name, pool[j].Name, len(shared))
			add(news.InsightPair, text, len(shared), shared)
		}
	}

	for _, th := range themes(articles, counts) {
		text := fmt.Sprintf("Theme '%s' appeared across %d articles, suggesting sustained weekly attention.", th.term, len(th.ids))
		add(news.InsightTheme, text, len(th.ids), th.ids)
	}

	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.insight.Score != b.insight.Score {
			return a.insight.Score > b.insight.Score
		}
		if a.insight.Breadth != b.insight.Breadth {
			return a.insight.Breadth > b.insight.Breadth
		}
		if !a.latest.Equal(b.latest) {
			return a.latest.After(b.latest)
		}
		return a.insight.Text < b.insight.Text
	})

	if len(cands) > opts.TopK {
		cands = cands[:opts.TopK]
	}
	out := make([]news.Insight, len(cands))
	for i, c := range cands {
		out[i] = c.insight
	}
	return out
}

func entityText(c news.EntityCount) string {
	articles := "articles"
	if len(c.ArticleIDs) == 1 {
		articles = "article"
	}
	times := "times"
	if c.Count == 1 {
		times = "time"
	}
	return fmt.Sprintf("%s (%s) was mentioned %d %s across %d %s this week.",
		c.Name, strings.ToLower(c.Category), c.Count, times, len(c.ArticleIDs), articles)
}

// orderEvidence keeps IDs of known articles, newest first, then by ID.
// Undated articles sort last. latest is the newest publication time.
func orderEvidence(ids []string, byID map[string]*news.Article) ([]string, time.Time) {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if _, ok := byID[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	published := func(id string) (time.Time, bool) {
		if p := byID[id].Published; p != nil {
			return *p, true
		}
		return time.Time{}, false
	}
	sort.Slice(out, func(i, j int) bool {
		ti, oki := published(out[i])
		tj, okj := published(out[j])
		if oki != okj {
			return oki
		}
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i] < out[j]
	})

	var latest time.Time
	if len(out) > 0 {
		latest, _ = published(out[0])
	}
	return out, latest
}

func intersect(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, id := range b {
		in[id] = true
	}
	var out []string
	for _, id := range a {
		if in[id] {
			out = append(out, id)
		}
	}
	return out
}

// stopTerms never become themes.
var stopTerms = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`music week business worldwide says said new will industry
		about after again against also amid among been before being between could does from have here
		into more most much over says than that their them then there these they this those through under
		what when where which while with would year years first last just back make makes made take takes
		your ours only other some such very week's report reports`) {
		stopTerms[w] = true
	}
}

var wordRe = regexp.MustCompile(`[\p{L}][\p{L}\p{N}'’\-]*`)

type theme struct {
	term string
	ids  []string
}

// themes returns title terms found in at least two articles, excluding words
// that belong to an entity name.
func themes(articles []news.Article, counts []news.EntityCount) []theme {
	entityWords := make(map[string]bool)
	for _, c := range counts {
		for _, w := range strings.Fields(c.Key) {
			entityWords[w] = true
		}
	}

	support := make(map[string][]string)
	var order []string
	for _, a := range articles {
		seen := make(map[string]bool)
		for _, w := range wordRe.FindAllString(strings.ToLower(a.Title), -1) {
			w = strings.TrimRight(strings.TrimSuffix(strings.TrimSuffix(w, "'s"), "’s"), "-")
			if len([]rune(w)) < 4 || stopTerms[w] || entityWords[w] || seen[w] {
				continue
			}
			seen[w] = true
			if _, ok := support[w]; !ok {
				order = append(order, w)
			}
			support[w] = append(support[w], a.ID)
		}
	}

	var out []theme
	for _, term := range order {
		if ids := support[term]; len(ids) >= 2 {
			out = append(out, theme{term: term, ids: ids})
		}
	}
	return out
}
