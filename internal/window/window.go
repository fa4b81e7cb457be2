// Package window keeps the articles published inside the reporting window.
package window

import (
	"time"

	"github.com/deusflow/musicpulse/internal/metrics"
	"github.com/deusflow/musicpulse/internal/news"
)

// Cutoff returns the inclusive lower bound of a window of days ending at now,
// computed on loc's calendar so DST changes do not shift it.
func Cutoff(now time.Time, days int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).AddDate(0, 0, -days)
}

// Filter returns the articles with cutoff <= Published <= now, in input
// order. Articles without a date are dropped silently since the extractor
// already counted them; dated articles outside the window increment
// outside_window.
func Filter(articles []news.Article, now time.Time, days int, loc *time.Location, diag *metrics.RunDiagnostics) []news.Article {
	cutoff := Cutoff(now, days, loc)

	kept := make([]news.Article, 0, len(articles))
	for _, a := range articles {
		if a.Published == nil {
			continue
		}
		if a.Published.Before(cutoff) || a.Published.After(now) {
			if diag != nil {
				diag.IncOutsideWindow()
			}
			continue
		}
		kept = append(kept, a)
	}
	return kept
}
