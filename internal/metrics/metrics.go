// Package metrics holds the per-run diagnostics counters.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Skip reasons recorded outside the fetch and parse error mappings.
const (
	ReasonDiscoveryFailure = "discovery_failure"
	ReasonMaxPerSource     = "max_per_source"
	ReasonDuplicateURL     = "duplicate_url"
)

// SourceCounters are the per-source counterparts of the run totals.
type SourceCounters struct {
	Discovered  int
	FeedEntries int
	Fetched     int
	Kept        int
}

// ReasonCount is one skipped_by_reason entry.
type ReasonCount struct {
	Reason string
	Count  int
}

// RunDiagnostics collects the counters of one pipeline run. A new value is
// created for every run and passed to each stage; methods are safe for
// concurrent use by fetch workers.
type RunDiagnostics struct {
	mu sync.RWMutex

	RunID     string
	StartedAt time.Time

	discoveredHomepage int
	discoveredFallback int
	fetchedPages       int
	keptArticles       int
	dateMissing        int
	cacheHits          int
	outsideWindow      int
	skipped            map[string]int
	sources            map[string]*SourceCounters

	translationAvailable bool
	translationReason    string
}

func NewRunDiagnostics(now time.Time) *RunDiagnostics {
	return &RunDiagnostics{
		RunID:     uuid.NewString(),
		StartedAt: now,
		skipped:   make(map[string]int),
		sources:   make(map[string]*SourceCounters),
	}
}

func (d *RunDiagnostics) source(name string) *SourceCounters {
	sc, ok := d.sources[name]
	if !ok {
		sc = &SourceCounters{}
		d.sources[name] = sc
	}
	return sc
}

func (d *RunDiagnostics) AddDiscovered(source, method string, n int) {
	if n <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if method == "fallback" {
		d.discoveredFallback += n
	} else {
		d.discoveredHomepage += n
	}
	d.source(source).Discovered += n
}

func (d *RunDiagnostics) AddFeedEntries(source string, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.source(source).FeedEntries += n
}

func (d *RunDiagnostics) IncFetched(source string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fetchedPages++
	d.source(source).Fetched++
}

func (d *RunDiagnostics) IncCacheHit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cacheHits++
}

func (d *RunDiagnostics) IncDateMissing() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dateMissing++
}

func (d *RunDiagnostics) IncOutsideWindow() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outsideWindow++
}

// Skip records one item dropped for reason.
func (d *RunDiagnostics) Skip(reason string) {
	d.SkipN(reason, 1)
}

func (d *RunDiagnostics) SkipN(reason string, n int) {
	if n <= 0 || reason == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.skipped[reason] += n
}

// SetKept records the surviving articles, total and per source.
func (d *RunDiagnostics) SetKept(perSource map[string]int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keptArticles = 0
	for _, sc := range d.sources {
		sc.Kept = 0
	}
	for name, n := range perSource {
		d.keptArticles += n
		d.source(name).Kept = n
	}
}

func (d *RunDiagnostics) SetTranslation(available bool, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.translationAvailable = available
	d.translationReason = reason
}

// Snapshot is an immutable copy of the counters, ready for rendering.
type Snapshot struct {
	RunID                  string
	StartedAt              time.Time
	DiscoveredURLsHomepage int
	DiscoveredURLsFallback int
	FetchedPages           int
	KeptArticles           int
	DateMissingCount       int
	CacheHits              int
	OutsideWindow          int
	SkippedByReason        []ReasonCount // count desc, reason asc
	Sources                map[string]SourceCounters
	SourceNames            []string // sorted
	TranslationAvailable   bool
	TranslationReason      string
}

func (d *RunDiagnostics) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := Snapshot{
		RunID:                  d.RunID,
		StartedAt:              d.StartedAt,
		DiscoveredURLsHomepage: d.discoveredHomepage,
		DiscoveredURLsFallback: d.discoveredFallback,
		FetchedPages:           d.fetchedPages,
		KeptArticles:           d.keptArticles,
		DateMissingCount:       d.dateMissing,
		CacheHits:              d.cacheHits,
		OutsideWindow:          d.outsideWindow,
		Sources:                make(map[string]SourceCounters, len(d.sources)),
		TranslationAvailable:   d.translationAvailable,
		TranslationReason:      d.translationReason,
	}

	for reason, n := range d.skipped {
		s.SkippedByReason = append(s.SkippedByReason, ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(s.SkippedByReason, func(i, j int) bool {
		a, b := s.SkippedByReason[i], s.SkippedByReason[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Reason < b.Reason
	})

	for name, sc := range d.sources {
		s.Sources[name] = *sc
		s.SourceNames = append(s.SourceNames, name)
	}
	sort.Strings(s.SourceNames)

	return s
}

// Skipped returns the count recorded for reason.
func (s Snapshot) Skipped(reason string) int {
	for _, rc := range s.SkippedByReason {
		if rc.Reason == reason {
			return rc.Count
		}
	}
	return 0
}

// GetStats flattens the snapshot for structured logging.
func (s Snapshot) GetStats() map[string]interface{} {
	skipped := make(map[string]int, len(s.SkippedByReason))
	for _, rc := range s.SkippedByReason {
		skipped[rc.Reason] = rc.Count
	}
	return map[string]interface{}{
		"run_id":                   s.RunID,
		"discovered_urls_homepage": s.DiscoveredURLsHomepage,
		"discovered_urls_fallback": s.DiscoveredURLsFallback,
		"fetched_pages":            s.FetchedPages,
		"kept_articles":            s.KeptArticles,
		"date_missing_count":       s.DateMissingCount,
		"cache_hits":               s.CacheHits,
		"outside_window":           s.OutsideWindow,
		"skipped_by_reason":        skipped,
		"translation_available":    s.TranslationAvailable,
	}
}
