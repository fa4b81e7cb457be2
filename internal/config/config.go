// Package config loads run options from command-line flags and the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// ErrHelp is returned by Load when --help was requested and usage has been printed.
var ErrHelp = errors.New("help requested")

type rawConfig struct {
	// Run window and output
	Days         int    `long:"days" env:"DAYS" default:"7" description:"Lookback window in days"`
	OutDir       string `long:"outdir" env:"OUTDIR" default:"output" description:"Directory for report artifacts"`
	MaxPerSource int    `long:"max-per-source" env:"MAX_PER_SOURCE" default:"80" description:"Maximum article URLs fetched per source"`
	Verbose      bool   `long:"verbose" short:"v" env:"VERBOSE" description:"Enable debug logging"`
	Timezone     string `long:"timezone" env:"REPORT_TZ" default:"Europe/London" description:"Timezone of the reporting window"`

	// Sources
	SourcesPath   string `long:"sources" env:"SOURCES_PATH" description:"YAML file with news sources (built-in sources when empty)"`
	MinCandidates int    `long:"min-candidates" env:"MIN_CANDIDATES" default:"10" description:"Homepage candidates below which fallback discovery runs"`
	ListingPages  int    `long:"listing-pages" env:"LISTING_PAGES" default:"4" description:"Listing pages visited by fallback discovery"`

	// Fetching
	UserAgent            string        `long:"user-agent" env:"USER_AGENT" default:"MusicNewsInsightsBot/1.0" description:"User agent for HTTP requests and robots.txt"`
	Workers              int           `long:"workers" env:"WORKERS" default:"6" description:"Size of the fetch worker pool"`
	PerSourceConcurrency int           `long:"per-source-concurrency" env:"PER_SOURCE_CONCURRENCY" default:"2" description:"Concurrent fetches allowed per source"`
	PolitenessDelay      time.Duration `long:"politeness-delay" env:"POLITENESS_DELAY" default:"1s" description:"Minimum delay between requests to one host"`
	FetchTimeout         time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"18s" description:"Timeout for a single fetch"`
	RetryAttempts        int           `long:"retry-attempts" env:"RETRY_ATTEMPTS" default:"2" description:"Attempts per fetch for transient failures"`
	RetryDelay           time.Duration `long:"retry-delay" env:"RETRY_DELAY" default:"500ms" description:"Base delay between fetch attempts"`

	// Cache
	NoCache      bool   `long:"no-cache" env:"NO_CACHE" description:"Bypass the dedup cache for this run"`
	ClearCache   bool   `long:"clear-cache" env:"CLEAR_CACHE" description:"Remove all cache entries before the run"`
	CacheBackend string `long:"cache-backend" env:"CACHE_BACKEND" default:"sqlite" choice:"sqlite" choice:"postgres" choice:"file" description:"Dedup cache storage backend"`
	CacheDSN     string `long:"cache-dsn" env:"CACHE_DSN" description:"SQLite path, PostgreSQL connection string or JSON file path"`

	// Analysis
	TopInsights int    `long:"top-insights" env:"TOP_INSIGHTS" default:"8" description:"Maximum insights in the report"`
	MaxEvidence int    `long:"max-evidence" env:"MAX_EVIDENCE" default:"5" description:"Maximum evidence articles per insight"`
	NER         string `long:"ner" env:"NER_BACKEND" default:"heuristic" choice:"heuristic" choice:"gemini" description:"Named entity recognizer"`

	// Translation
	NoTranslate      bool          `long:"no-translate" env:"NO_TRANSLATE" description:"Disable English to Chinese translation"`
	Translator       string        `long:"translator" env:"TRANSLATOR" default:"gtx" choice:"gtx" choice:"openai" choice:"gemini" description:"Translation backend"`
	TranslateTimeout time.Duration `long:"translate-timeout" env:"TRANSLATE_TIMEOUT" default:"20s" description:"Timeout for the translation health check and each call"`
	OpenAIAPIKey     string        `long:"openai-api-key" env:"OPENAI_API_KEY" description:"OpenAI API key"`
	GeminiAPIKey     string        `long:"gemini-api-key" env:"GEMINI_API_KEY" description:"Gemini API key"`

	// Scheduling
	Schedule    string `long:"schedule" env:"SCHEDULE" description:"Cron spec for repeated runs; empty runs once"`
	MonitorAddr string `long:"monitor-addr" env:"MONITORING_ADDR" description:"Address for the /health and /metrics endpoints in scheduled mode"`
}

type Config struct {
	Days         int
	OutDir       string
	MaxPerSource int
	Verbose      bool
	Timezone     string
	Location     *time.Location

	SourcesPath   string
	MinCandidates int
	ListingPages  int

	UserAgent            string
	Workers              int
	PerSourceConcurrency int
	PolitenessDelay      time.Duration
	FetchTimeout         time.Duration
	RetryAttempts        int
	RetryDelay           time.Duration

	NoCache      bool
	ClearCache   bool
	CacheBackend string
	CacheDSN     string

	TopInsights int
	MaxEvidence int
	NER         string

	NoTranslate      bool
	Translator       string
	TranslateTimeout time.Duration
	OpenAIAPIKey     string
	GeminiAPIKey     string

	Schedule    string
	MonitorAddr string
}

// Load parses args (without the program name) and the environment.
func Load(args []string) (*Config, error) {
	var raw rawConfig

	parser := flags.NewParser(&raw, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, ErrHelp
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Config{
		Days:                 raw.Days,
		OutDir:               raw.OutDir,
		MaxPerSource:         raw.MaxPerSource,
		Verbose:              raw.Verbose,
		Timezone:             raw.Timezone,
		SourcesPath:          raw.SourcesPath,
		MinCandidates:        raw.MinCandidates,
		ListingPages:         raw.ListingPages,
		UserAgent:            raw.UserAgent,
		Workers:              raw.Workers,
		PerSourceConcurrency: raw.PerSourceConcurrency,
		PolitenessDelay:      raw.PolitenessDelay,
		FetchTimeout:         raw.FetchTimeout,
		RetryAttempts:        raw.RetryAttempts,
		RetryDelay:           raw.RetryDelay,
		NoCache:              raw.NoCache,
		ClearCache:           raw.ClearCache,
		CacheBackend:         raw.CacheBackend,
		CacheDSN:             raw.CacheDSN,
		TopInsights:          raw.TopInsights,
		MaxEvidence:          raw.MaxEvidence,
		NER:                  raw.NER,
		NoTranslate:          raw.NoTranslate,
		Translator:           raw.Translator,
		TranslateTimeout:     raw.TranslateTimeout,
		OpenAIAPIKey:         raw.OpenAIAPIKey,
		GeminiAPIKey:         raw.GeminiAPIKey,
		Schedule:             raw.Schedule,
		MonitorAddr:          raw.MonitorAddr,
	}

	if cfg.CacheDSN == "" {
		cfg.CacheDSN = defaultCacheDSN(cfg.CacheBackend)
	}

	return cfg, cfg.Validate()
}

func defaultCacheDSN(backend string) string {
	switch backend {
	case "file":
		return "cache/musicpulse_cache.json"
	case "sqlite":
		return "cache/musicpulse.db"
	}
	return ""
}

// Validate checks option ranges and resolves the reporting timezone.
func (c *Config) Validate() error {
	if c.Days <= 0 {
		return fmt.Errorf("days must be positive, got %d", c.Days)
	}
	if c.MaxPerSource <= 0 {
		return fmt.Errorf("max-per-source must be positive, got %d", c.MaxPerSource)
	}
	if c.OutDir == "" {
		return fmt.Errorf("outdir is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.PerSourceConcurrency <= 0 {
		return fmt.Errorf("per-source-concurrency must be positive, got %d", c.PerSourceConcurrency)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch-timeout must be positive")
	}
	if c.RetryAttempts < 1 {
		c.RetryAttempts = 1
	}
	if c.TopInsights <= 0 || c.MaxEvidence <= 0 {
		return fmt.Errorf("top-insights and max-evidence must be positive")
	}
	if c.CacheBackend == "postgres" && c.CacheDSN == "" {
		return fmt.Errorf("cache-dsn is required for the postgres backend")
	}
	if c.NER == "gemini" && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required for the gemini recognizer")
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	c.Location = loc
	return nil
}
