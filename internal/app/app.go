// Package app wires the pipeline stages together and runs one weekly report.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/musicpulse/internal/cache"
	"github.com/deusflow/musicpulse/internal/config"
	"github.com/deusflow/musicpulse/internal/discover"
	"github.com/deusflow/musicpulse/internal/entity"
	"github.com/deusflow/musicpulse/internal/fetch"
	"github.com/deusflow/musicpulse/internal/gemini"
	"github.com/deusflow/musicpulse/internal/insight"
	"github.com/deusflow/musicpulse/internal/logger"
	"github.com/deusflow/musicpulse/internal/metrics"
	"github.com/deusflow/musicpulse/internal/news"
	"github.com/deusflow/musicpulse/internal/report"
	"github.com/deusflow/musicpulse/internal/scraper"
	"github.com/deusflow/musicpulse/internal/sources"
	"github.com/deusflow/musicpulse/internal/storage"
	"github.com/deusflow/musicpulse/internal/translate"
	"github.com/deusflow/musicpulse/internal/window"
)

// Deps overrides the collaborators New would otherwise build from config.
// The zero value builds everything from config.
type Deps struct {
	HTTPClient *http.Client
	Store      storage.Store
	Recognizer entity.Recognizer
	Translator translate.Backend
	Now        func() time.Time
	Logger     *slog.Logger
}

// Result is what one run leaves behind.
type Result struct {
	Paths       []string
	Diagnostics metrics.Snapshot
}

type App struct {
	cfg     *config.Config
	sources []sources.Source
	log     *slog.Logger
	now     func() time.Time

	gate       *fetch.Gate
	discoverer *discover.Discoverer
	cache      *cache.Cache
	extractor  *scraper.Extractor
	aggregator *entity.Aggregator
	translator translate.Backend

	closers []func() error

	mu   sync.RWMutex
	last *RunStatus
}

// RunStatus describes the most recent run for monitoring.
type RunStatus struct {
	FinishedAt  time.Time
	Err         error
	Diagnostics metrics.Snapshot
}

func New(ctx context.Context, cfg *config.Config, deps Deps) (*App, error) {
	log := deps.Logger
	if log == nil {
		log = logger.With("app")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	srcs, err := sources.Load(cfg.SourcesPath)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}

	a := &App{cfg: cfg, sources: srcs, log: log, now: now}

	a.gate = fetch.New(fetch.Options{
		UserAgent:       cfg.UserAgent,
		Timeout:         cfg.FetchTimeout,
		PolitenessDelay: cfg.PolitenessDelay,
		RetryAttempts:   cfg.RetryAttempts,
		RetryDelay:      cfg.RetryDelay,
		Client:          deps.HTTPClient,
		Logger:          log.With("component", "fetch"),
	})
	a.discoverer = discover.New(a.gate, discover.Options{
		MaxPerSource:  cfg.MaxPerSource,
		MinCandidates: cfg.MinCandidates,
		ListingPages:  cfg.ListingPages,
		Logger:        log.With("component", "discover"),
	})
	a.extractor = scraper.New(cfg.Location, log.With("component", "scraper"))

	c, err := a.openCache(ctx, deps.Store)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.cache = c

	var gem *gemini.Client
	needGemini := cfg.NER == "gemini" || (cfg.Translator == "gemini" && !cfg.NoTranslate && deps.Translator == nil)
	if needGemini && deps.Recognizer == nil && cfg.GeminiAPIKey != "" {
		gem, err = gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			log.Warn("gemini client unavailable", "error", err)
		} else {
			a.closers = append(a.closers, func() error { gem.Close(); return nil })
		}
	}

	rec := deps.Recognizer
	if rec == nil {
		rec = entity.NewHeuristic()
		if cfg.NER == "gemini" && gem != nil {
			rec = entity.NewLLM(gem)
		}
	}
	a.aggregator = entity.NewAggregator(rec, log.With("component", "entity"))

	a.translator = deps.Translator
	if a.translator == nil {
		a.translator = translationBackend(cfg, gem)
	}

	log.Info("pipeline ready",
		"sources", len(srcs),
		"recognizer", rec.Name(),
		"cache", c.Enabled(),
		"translate", !cfg.NoTranslate)
	return a, nil
}

// translationBackend returns nil when the configured backend lacks credentials;
// the run is then degraded.
func translationBackend(cfg *config.Config, gem *gemini.Client) translate.Backend {
	switch cfg.Translator {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil
		}
		return translate.NewOpenAI(cfg.OpenAIAPIKey, "")
	case "gemini":
		if gem == nil {
			return nil
		}
		return gem
	default:
		return translate.NewGoogle(&http.Client{Timeout: cfg.TranslateTimeout})
	}
}

// Close releases the cache store and API clients.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// LastRun returns the status of the most recent run, or nil before the first.
func (a *App) LastRun() *RunStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}

// Run executes the pipeline once and writes the report artifacts.
func (a *App) Run(ctx context.Context) (*Result, error) {
	res, err := a.run(ctx)

	status := &RunStatus{FinishedAt: a.now(), Err: err}
	if res != nil {
		status.Diagnostics = res.Diagnostics
	}
	a.mu.Lock()
	a.last = status
	a.mu.Unlock()
	return res, err
}

func (a *App) run(ctx context.Context) (*Result, error) {
	started := a.now()
	diag := metrics.NewRunDiagnostics(started)
	log := a.log.With("run_id", diag.RunID)
	log.Info("run started", "days", a.cfg.Days, "timezone", a.cfg.Location.String())

	// robots.txt is read once per run, not once per process.
	a.gate.Robots().Reset()

	candidates := a.discoverAll(ctx, diag)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Info("discovery finished", "candidates", len(candidates))

	articles, err := a.fetchAll(ctx, candidates, diag)
	if err != nil {
		return nil, err
	}

	kept := window.Filter(articles, a.now(), a.cfg.Days, a.cfg.Location, diag)
	perSource := make(map[string]int)
	for _, art := range kept {
		perSource[art.Source]++
	}
	diag.SetKept(perSource)
	log.Info("window applied", "articles", len(articles), "kept", len(kept))

	var counts []news.EntityCount
	var insights []news.Insight
	if len(kept) > 0 {
		counts, _ = a.aggregator.Aggregate(ctx, kept)
		opts := insight.DefaultOptions()
		opts.TopK = a.cfg.TopInsights
		opts.MaxEvidence = a.cfg.MaxEvidence
		insights = insight.Generate(counts, kept, opts)
		log.Info("analysis finished", "entities", len(counts), "insights", len(insights))
	}

	a.translateAll(ctx, kept, counts, insights, diag)

	snap := diag.Snapshot()
	rep := report.Build(report.Input{
		RunDate:     started.In(a.cfg.Location).Format("2006-01-02"),
		Days:        a.cfg.Days,
		Location:    a.cfg.Location,
		Articles:    kept,
		Entities:    counts,
		Insights:    insights,
		Diagnostics: snap,
	})
	paths, err := report.Write(a.cfg.OutDir, rep)
	if err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	log.Info("run finished",
		"duration", a.now().Sub(started).Round(time.Millisecond),
		"stats", snap.GetStats(),
		"report", paths[0])
	return &Result{Paths: paths, Diagnostics: snap}, nil
}

// discoverAll runs discovery per source and drops URLs already claimed by an
// earlier source.
func (a *App) discoverAll(ctx context.Context, diag *metrics.RunDiagnostics) []news.CandidateURL {
	var out []news.CandidateURL
	seen := make(map[string]string)
	for _, src := range a.sources {
		if ctx.Err() != nil {
			break
		}
		found, err := a.discoverer.Discover(ctx, src, diag)
		if err != nil {
			a.log.Warn("source skipped", "source", src.Name, "error", err)
			continue
		}
		for _, c := range found {
			if owner, dup := seen[c.URL]; dup {
				a.log.Debug("duplicate url across sources", "url", c.URL, "kept_for", owner)
				diag.Skip(metrics.ReasonDuplicateURL)
				continue
			}
			seen[c.URL] = c.Source
			out = append(out, c)
		}
	}
	return out
}

// fetchAll fetches and parses candidates on a bounded pool. Each source has
// its own concurrency budget. Output keeps discovery order.
func (a *App) fetchAll(ctx context.Context, candidates []news.CandidateURL, diag *metrics.RunDiagnostics) ([]news.Article, error) {
	perSource := make(map[string]chan struct{})
	for _, c := range candidates {
		if _, ok := perSource[c.Source]; !ok {
			perSource[c.Source] = make(chan struct{}, a.cfg.PerSourceConcurrency)
		}
	}

	results := make([]*news.Article, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)

	for i, c := range candidates {
		g.Go(func() error {
			sem := perSource[c.Source]
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			results[i] = a.process(gctx, c, diag)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	articles := make([]news.Article, 0, len(results))
	for _, art := range results {
		if art != nil {
			articles = append(articles, *art)
		}
	}
	return articles, nil
}

// process turns one candidate into an article, from the cache when possible.
// Failures are counted and yield nil.
func (a *App) process(ctx context.Context, c news.CandidateURL, diag *metrics.RunDiagnostics) *news.Article {
	key := cache.Key(c.URL)

	if e, ok := a.cache.Lookup(ctx, key); ok {
		diag.IncCacheHit()
		diag.IncFetched(c.Source)
		art := e.Article
		if art.DateMissing() {
			diag.IncDateMissing()
		}
		return &art
	}

	page, err := a.gate.Fetch(ctx, c.URL)
	if err != nil {
		reason := fetch.Reason(err)
		a.log.Info("fetch skipped", "url", c.URL, "reason", reason, "error", err)
		diag.Skip(reason)
		return nil
	}
	diag.IncFetched(c.Source)

	art, err := a.extractor.Extract(page, c.Source)
	if err != nil {
		reason := scraper.Reason(err)
		a.log.Info("parse skipped", "url", c.URL, "reason", reason, "error", err)
		diag.Skip(reason)
		return nil
	}
	if art.DateMissing() {
		diag.IncDateMissing()
	}

	entry := cache.Entry{URL: key, Status: page.Status, FetchedAt: page.FetchedAt, Article: *art}
	if err := a.cache.Store(ctx, key, entry); err != nil {
		a.log.Warn("cache write failed", "url", c.URL, "error", err)
	}
	return art
}

// translateAll fills the Chinese fields, or leaves every one of them empty.
func (a *App) translateAll(ctx context.Context, articles []news.Article, counts []news.EntityCount, insights []news.Insight, diag *metrics.RunDiagnostics) {
	svc := translate.NewService(a.translator, translate.Options{
		Enabled: !a.cfg.NoTranslate,
		Timeout: a.cfg.TranslateTimeout,
		Logger:  a.log.With("component", "translate"),
	})

	mode := svc.Detect(ctx)
	if mode.Available && len(articles) > 0 {
		batch := &translate.Batch{}
		for i := range articles {
			batch.Add(articles[i].Title, &articles[i].TitleZH)
			batch.Add(articles[i].Excerpt, &articles[i].ExcerptZH)
			batch.AddSlice(articles[i].Summary, &articles[i].SummaryZH)
		}
		for i := range counts {
			batch.Add(counts[i].Name, &counts[i].NameZH)
		}
		for i := range insights {
			batch.Add(insights[i].Text, &insights[i].TextZH)
		}
		if err := svc.TranslateAll(ctx, batch); err != nil {
			a.log.Warn("translation degraded", "error", err)
		}
		mode = svc.Mode()
	}
	diag.SetTranslation(mode.Available, mode.Reason)
}
