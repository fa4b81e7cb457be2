// Package report assembles the weekly Markdown report and its CSV tables.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/deusflow/musicpulse/internal/metrics"
	"github.com/deusflow/musicpulse/internal/news"
)

// MaxReportEntities bounds the entity list in the Markdown report; the CSV
// carries all of them.
const MaxReportEntities = 30

const noArticlesLine = "No articles retained. Please review diagnostics above."

// Input is everything one run hands to the assembler.
type Input struct {
	RunDate     string // YYYY-MM-DD in Location
	Days        int
	Location    *time.Location
	Articles    []news.Article
	Entities    []news.EntityCount
	Insights    []news.Insight
	Diagnostics metrics.Snapshot
}

// Table is one CSV artifact.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

type Report struct {
	RunDate  string
	Markdown string
	Tables   []Table
}

// Build renders the report. It does no I/O.
func Build(in Input) *Report {
	if in.Location == nil {
		in.Location = time.UTC
	}
	degraded := !in.Diagnostics.TranslationAvailable

	byID := make(map[string]news.Article, len(in.Articles))
	for _, a := range in.Articles {
		byID[a.ID] = a
	}

	return &Report{
		RunDate:  in.RunDate,
		Markdown: markdown(in, byID, degraded),
		Tables: []Table{
			articlesTable(in, degraded),
			entitiesTable(in, degraded),
			insightsTable(in, byID, degraded),
			diagnosticsTable(in.Diagnostics),
		},
	}
}

func zh(s string, degraded bool) string {
	if degraded {
		return ""
	}
	return s
}

func articleDate(a news.Article, loc *time.Location) string {
	if a.Published == nil {
		return ""
	}
	return a.Published.In(loc).Format("2006-01-02")
}

func bullets(lines []string) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, "- "+l)
		}
	}
	return strings.Join(out, "\n")
}

func articlesTable(in Input, degraded bool) Table {
	t := Table{
		Name: "articles",
		Header: []string{
			"id", "source", "date", "date_missing", "title_en", "title_zh", "url", "byline",
			"excerpt_en", "excerpt_zh", "summary_en", "summary_zh",
		},
	}
	for _, a := range in.Articles {
		t.Rows = append(t.Rows, []string{
			a.ID,
			a.Source,
			articleDate(a, in.Location),
			strconv.FormatBool(a.DateMissing()),
			a.Title,
			zh(a.TitleZH, degraded),
			a.URL,
			a.Byline,
			a.Excerpt,
			zh(a.ExcerptZH, degraded),
			bullets(a.Summary),
			zh(bullets(a.SummaryZH), degraded),
		})
	}
	return t
}

func entitiesTable(in Input, degraded bool) Table {
	t := Table{
		Name:   "entities",
		Header: []string{"entity_en", "entity_zh", "category", "count", "articles", "article_ids"},
	}
	for _, e := range in.Entities {
		t.Rows = append(t.Rows, []string{
			e.Name,
			zh(e.NameZH, degraded),
			e.Category,
			strconv.Itoa(e.Count),
			strconv.Itoa(len(e.ArticleIDs)),
			strings.Join(e.ArticleIDs, ";"),
		})
	}
	return t
}

func insightsTable(in Input, byID map[string]news.Article, degraded bool) Table {
	t := Table{
		Name:   "insights",
		Header: []string{"rank", "kind", "insight_en", "insight_zh", "score", "supporting_articles", "evidence_ids"},
	}
	for i, ins := range in.Insights {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(i + 1),
			ins.Kind,
			ins.Text,
			zh(ins.TextZH, degraded),
			strconv.FormatFloat(ins.Score, 'f', -1, 64),
			evidenceRefs(ins, byID, in.Location),
			strings.Join(ins.Evidence, ";"),
		})
	}
	return t
}

func evidenceRefs(ins news.Insight, byID map[string]news.Article, loc *time.Location) string {
	refs := make([]string, 0, len(ins.Evidence))
	for _, id := range ins.Evidence {
		a, ok := byID[id]
		if !ok {
			continue
		}
		date := articleDate(a, loc)
		if date == "" {
			date = "date missing"
		}
		refs = append(refs, fmt.Sprintf("%s (%s | %s)", a.Title, a.Source, date))
	}
	return strings.Join(refs, " ; ")
}

func diagnosticsTable(d metrics.Snapshot) Table {
	t := Table{Name: "diagnostics", Header: []string{"metric", "value"}}
	add := func(k, v string) { t.Rows = append(t.Rows, []string{k, v}) }

	add("run_id", d.RunID)
	add("started_at", d.StartedAt.Format(time.RFC3339))
	add("discovered_urls_homepage", strconv.Itoa(d.DiscoveredURLsHomepage))
	add("discovered_urls_fallback", strconv.Itoa(d.DiscoveredURLsFallback))
	add("fetched_pages", strconv.Itoa(d.FetchedPages))
	add("kept_articles", strconv.Itoa(d.KeptArticles))
	add("date_missing_count", strconv.Itoa(d.DateMissingCount))
	add("cache_hits", strconv.Itoa(d.CacheHits))
	add("outside_window", strconv.Itoa(d.OutsideWindow))
	for _, rc := range d.SkippedByReason {
		add("skipped_by_reason."+rc.Reason, strconv.Itoa(rc.Count))
	}
	for _, name := range d.SourceNames {
		sc := d.Sources[name]
		add("source."+name+".discovered", strconv.Itoa(sc.Discovered))
		add("source."+name+".feed_entries", strconv.Itoa(sc.FeedEntries))
		add("source."+name+".fetched", strconv.Itoa(sc.Fetched))
		add("source."+name+".kept", strconv.Itoa(sc.Kept))
	}
	add("translation_available", strconv.FormatBool(d.TranslationAvailable))
	add("translation_reason", d.TranslationReason)
	return t
}

func skippedInline(d metrics.Snapshot) string {
	if len(d.SkippedByReason) == 0 {
		return "{}"
	}
	parts := make([]string, len(d.SkippedByReason))
	for i, rc := range d.SkippedByReason {
		parts[i] = fmt.Sprintf("%q: %d", rc.Reason, rc.Count)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func markdown(in Input, byID map[string]news.Article, degraded bool) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\n")
	}
	d := in.Diagnostics

	line("# Weekly Music Industry Report (%s)", in.RunDate)
	line("")
	line("Time window: Last %d days (%s)", in.Days, in.Location.String())
	line("")
	if degraded {
		reason := d.TranslationReason
		if reason == "" {
			reason = "translation disabled"
		}
		line("> Note: Chinese translation is unavailable for this run (%s). English output is complete; Chinese fields are empty.", reason)
		line("")
	}

	line("## Diagnostics")
	line("- run_id: %s", d.RunID)
	line("- discovered_urls_homepage: %d", d.DiscoveredURLsHomepage)
	line("- discovered_urls_fallback: %d", d.DiscoveredURLsFallback)
	line("- fetched_pages: %d", d.FetchedPages)
	line("- kept_articles: %d", d.KeptArticles)
	line("- date_missing_count: %d", d.DateMissingCount)
	line("- cache_hits: %d", d.CacheHits)
	line("- outside_window: %d", d.OutsideWindow)
	line("- skipped_by_reason: %s", skippedInline(d))
	for _, name := range d.SourceNames {
		sc := d.Sources[name]
		line("- %s: discovered %d, feed entries %d, fetched %d, kept %d", name, sc.Discovered, sc.FeedEntries, sc.Fetched, sc.Kept)
	}
	line("")

	if len(in.Articles) == 0 {
		line("## Articles")
		line(noArticlesLine)
		return b.String()
	}

	line("## Industry Insights (EN)")
	if len(in.Insights) == 0 {
		line("- No insight had enough supporting evidence this week.")
	}
	for _, ins := range in.Insights {
		line("- %s", ins.Text)
		if refs := evidenceRefs(ins, byID, in.Location); refs != "" {
			line("  - Evidence: %s", refs)
		}
	}
	line("")

	line("## 行业洞察 (ZH)")
	switch {
	case degraded:
		line("翻译不可用：本次运行未生成中文内容。 (Translation unavailable for this run.)")
	case len(in.Insights) == 0:
		line("- 本周没有证据充分的洞察。")
	}
	if !degraded {
		for _, ins := range in.Insights {
			line("- %s", ins.TextZH)
		}
	}
	line("")

	line("## Top Entities")
	for i, e := range in.Entities {
		if i >= MaxReportEntities {
			break
		}
		line("- %s | %s | %s | %d", e.Name, zh(e.NameZH, degraded), e.Category, e.Count)
	}
	line("")

	line("## Articles")
	for _, a := range in.Articles {
		title := a.Title
		if z := zh(a.TitleZH, degraded); z != "" {
			title += " / " + z
		}
		date := articleDate(a, in.Location)
		if date == "" {
			date = "date missing"
		}
		line("### %s", title)
		line("- Source: %s", a.Source)
		line("- Date: %s", date)
		line("- URL: %s", a.URL)
		if a.Byline != "" {
			line("- Byline: %s", a.Byline)
		}
		line("- Excerpt (EN): %s", a.Excerpt)
		line("- 摘要 (ZH): %s", zh(a.ExcerptZH, degraded))
		line("- Summary (EN):")
		line("%s", indent(bullets(a.Summary)))
		line("- 总结 (ZH):")
		if s := zh(bullets(a.SummaryZH), degraded); s != "" {
			line("%s", indent(s))
		}
		line("")
	}
	return b.String()
}

func indent(s string) string {
	if s == "" {
		return s
	}
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
