package entity

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/deusflow/musicpulse/internal/news"
)

// MinNameRunes discards names too short to mean anything.
const MinNameRunes = 2

// corporateSuffixes are stripped from the end of a normalization key.
var corporateSuffixes = toSet("inc ltd limited llc plc corp corporation co gmbh ag sa")

// Normalize returns the aggregation key for a surface form: whitespace
// collapsed, Unicode case-folded, trailing corporate suffixes removed.
func Normalize(surface string) string {
	s := news.CollapseWhitespace(surface)
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) && r != '&'
	})
	s = cases.Fold().String(s)

	words := strings.Fields(s)
	for len(words) > 1 {
		last := strings.TrimRight(words[len(words)-1], ".,")
		if !corporateSuffixes[last] {
			break
		}
		words = words[:len(words)-1]
	}
	return strings.TrimRight(strings.Join(words, " "), ".,")
}

// Aggregator runs a Recognizer over articles and counts the results.
type Aggregator struct {
	rec Recognizer
	log *slog.Logger
}

func NewAggregator(rec Recognizer, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{rec: rec, log: log}
}

type tally struct {
	count      int
	firstSeen  int
	articleIDs []string
	inArticle  map[string]bool
	surfaces   *frequency
	categories *frequency
}

// frequency counts strings and remembers first-seen order for ties.
type frequency struct {
	order  []string
	counts map[string]int
}

func newFrequency() *frequency {
	return &frequency{counts: make(map[string]int)}
}

func (f *frequency) add(s string) {
	if _, ok := f.counts[s]; !ok {
		f.order = append(f.order, s)
	}
	f.counts[s]++
}

// top returns the most frequent value, the earliest seen on ties.
func (f *frequency) top() string {
	best := ""
	for _, s := range f.order {
		if best == "" || f.counts[s] > f.counts[best] {
			best = s
		}
	}
	return best
}

// Aggregate recognizes entities in each article's title and excerpt and
// returns the counts ordered by count desc, first-seen article asc, key asc,
// plus every individual mention. A recognizer failure on one article is
// logged and that article contributes nothing.
func (a *Aggregator) Aggregate(ctx context.Context, articles []news.Article) ([]news.EntityCount, []news.EntityMention) {
	tallies := make(map[string]*tally)
	var mentions []news.EntityMention

	for pos, art := range articles {
		found, err := a.rec.ExtractEntities(ctx, articleText(art))
		if err != nil {
			a.log.Warn("entity recognition failed", "article", art.ID, "recognizer", a.rec.Name(), "error", err)
			continue
		}

		for _, r := range found {
			surface := news.CollapseWhitespace(r.Surface)
			key := Normalize(surface)
			if utf8.RuneCountInString(key) < MinNameRunes {
				continue
			}
			category := r.Category
			if category == "" {
				category = Categorize(surface)
			}

			t, ok := tallies[key]
			if !ok {
				t = &tally{
					firstSeen:  pos,
					inArticle:  make(map[string]bool),
					surfaces:   newFrequency(),
					categories: newFrequency(),
				}
				tallies[key] = t
			}
			t.count++
			t.surfaces.add(surface)
			t.categories.add(category)
			if !t.inArticle[art.ID] {
				t.inArticle[art.ID] = true
				t.articleIDs = append(t.articleIDs, art.ID)
			}

			mentions = append(mentions, news.EntityMention{
				Surface:   surface,
				Key:       key,
				Category:  category,
				ArticleID: art.ID,
			})
		}
	}

	counts := make([]news.EntityCount, 0, len(tallies))
	for key, t := range tallies {
		counts = append(counts, news.EntityCount{
			Key:        key,
			Name:       t.surfaces.top(),
			Category:   t.categories.top(),
			Count:      t.count,
			ArticleIDs: t.articleIDs,
			FirstSeen:  t.firstSeen,
		})
	}
	SortCounts(counts)
	return counts, mentions
}

// SortCounts orders entities by count desc, first-seen asc, key asc.
func SortCounts(counts []news.EntityCount) {
	sort.Slice(counts, func(i, j int) bool {
		a, b := counts[i], counts[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.FirstSeen != b.FirstSeen {
			return a.FirstSeen < b.FirstSeen
		}
		return a.Key < b.Key
	})
}

func articleText(a news.Article) string {
	title := strings.TrimSpace(a.Title)
	if title != "" && !strings.ContainsAny(title[len(title)-1:], ".!?") {
		title += "."
	}
	return strings.TrimSpace(title + " " + a.Excerpt)
}
