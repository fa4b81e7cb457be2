// Package sources describes the news sites the pipeline reads from.
package sources

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source is one configured news site. It is immutable once loaded.
type Source struct {
	Name             string   `yaml:"name"`
	Homepage         string   `yaml:"homepage"`
	AllowedHosts     []string `yaml:"allowed_hosts"`
	ArticlePatterns  []string `yaml:"article_patterns"`
	FallbackFeeds    []string `yaml:"fallback_feeds"`
	FallbackListings []string `yaml:"fallback_listings"` // URL templates, {page} is replaced
	ListingPages     int      `yaml:"listing_pages"`
	MinCandidates    int      `yaml:"min_candidates"`

	patterns []*regexp.Regexp
}

// SourcesConfig is the YAML document:
//
//	sources:
//	  - name: Music Week
//	    homepage: https://www.musicweek.com/
type SourcesConfig struct {
	Sources []Source `yaml:"sources"`
}

// Defaults returns the built-in sources.
func Defaults() []Source {
	list := []Source{
		{
			Name:            "Music Week",
			Homepage:        "https://www.musicweek.com/",
			AllowedHosts:    []string{"musicweek.com"},
			ArticlePatterns: []string{`/read/`},
			FallbackListings: []string{
				"https://www.musicweek.com/news",
				"https://www.musicweek.com/news/page/{page}/",
			},
		},
		{
			Name:            "Music Business Worldwide",
			Homepage:        "https://www.musicbusinessworldwide.com/",
			AllowedHosts:    []string{"musicbusinessworldwide.com"},
			ArticlePatterns: []string{`^/[a-z0-9]+(?:-[a-z0-9]+){2,}$`},
			FallbackFeeds:   []string{"https://www.musicbusinessworldwide.com/feed/"},
		},
	}
	for i := range list {
		if err := list[i].compile(); err != nil {
			panic(err)
		}
	}
	return list
}

// Load reads sources from a YAML file. An empty path yields Defaults.
func Load(path string) ([]Source, error) {
	if path == "" {
		return Defaults(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg SourcesConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("%s: no sources defined", path)
	}

	seen := make(map[string]bool)
	for i := range cfg.Sources {
		s := &cfg.Sources[i]
		if seen[s.Name] {
			return nil, fmt.Errorf("%s: duplicate source %q", path, s.Name)
		}
		seen[s.Name] = true
		if err := s.compile(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return cfg.Sources, nil
}

func (s *Source) compile() error {
	if s.Name == "" {
		return fmt.Errorf("source without name")
	}
	u, err := url.Parse(s.Homepage)
	if err != nil || u.Host == "" {
		return fmt.Errorf("source %q: invalid homepage %q", s.Name, s.Homepage)
	}
	if len(s.AllowedHosts) == 0 {
		s.AllowedHosts = []string{strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")}
	}
	s.patterns = s.patterns[:0]
	for _, p := range s.ArticlePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("source %q: pattern %q: %w", s.Name, p, err)
		}
		s.patterns = append(s.patterns, re)
	}
	return nil
}

// AllowsHost reports whether host belongs to the source (subdomains included).
func (s *Source) AllowsHost(host string) bool {
	host = strings.ToLower(host)
	for _, h := range s.AllowedHosts {
		h = strings.ToLower(h)
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// LooksLikeArticle matches a URL path against the source's article patterns.
// Sources without patterns accept any path except the root.
func (s *Source) LooksLikeArticle(path string) bool {
	if path == "" || path == "/" {
		return false
	}
	if len(s.patterns) == 0 {
		return true
	}
	for _, re := range s.patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// ListingURLs expands the fallback listing templates for pages 1..pages.
// Templates without {page} are visited once. A {page} template nested under
// a plain listing (".../news" and ".../news/page/{page}/") starts at page 2,
// since the plain listing is its page one.
func (s *Source) ListingURLs(pages int) []string {
	if s.ListingPages > 0 {
		pages = s.ListingPages
	}

	var out []string
	seen := make(map[string]bool)
	for _, tpl := range s.FallbackListings {
		if !strings.Contains(tpl, "{page}") {
			if !seen[tpl] {
				seen[tpl] = true
				out = append(out, tpl)
			}
			continue
		}
		first := 1
		if s.pairedWithPlain(tpl) {
			first = 2
		}
		for p := first; p <= pages; p++ {
			u := strings.ReplaceAll(tpl, "{page}", strconv.Itoa(p))
			if !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	return out
}

func (s *Source) pairedWithPlain(tpl string) bool {
	prefix := tpl[:strings.Index(tpl, "{page}")]
	for _, plain := range s.FallbackListings {
		if strings.Contains(plain, "{page}") {
			continue
		}
		base := strings.TrimSuffix(plain, "/")
		if strings.HasPrefix(prefix, base+"/") || strings.HasPrefix(prefix, base+"?") {
			return true
		}
	}
	return false
}

// MinCandidatesOr returns the source threshold or def when unset.
func (s *Source) MinCandidatesOr(def int) int {
	if s.MinCandidates > 0 {
		return s.MinCandidates
	}
	return def
}
