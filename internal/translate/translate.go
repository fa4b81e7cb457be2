// Package translate renders English report fields in Simplified Chinese.
//
// Translation is best effort: a Service checks its backend once per run and
// either translates every field of a batch or none of them.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/deusflow/musicpulse/internal/retry"
)

// Target language of every backend.
const Target = "zh-CN"

var ErrUnavailable = errors.New("translation unavailable")

// Backend translates English text into Simplified Chinese.
type Backend interface {
	Name() string
	Translate(ctx context.Context, text string) (string, error)
}

// Mode is the run-level translation state consumed by the report.
type Mode struct {
	Available bool
	Reason    string
}

type Options struct {
	Enabled bool
	Timeout time.Duration
	Retry   retry.RetryConfig
	Logger  *slog.Logger
}

// Service wraps a Backend with the availability check and the
// all-or-nothing batch policy.
type Service struct {
	backend Backend
	opts    Options
	log     *slog.Logger

	once sync.Once
	mu   sync.RWMutex
	mode Mode
}

// NewService creates a Service. backend may be nil, in which case the run
// is degraded.
func NewService(backend Backend, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = retry.RetryConfig{MaxAttempts: 2, Delay: 500 * time.Millisecond, Backoff: true}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{backend: backend, opts: opts, log: log}
}

// Detect decides once per Service whether translation is available. Later
// calls return the first result.
func (s *Service) Detect(ctx context.Context) Mode {
	s.once.Do(func() {
		mode := s.detect(ctx)
		s.setMode(mode)
		if mode.Available {
			s.log.Info("translation available", "backend", s.backend.Name())
		} else {
			s.log.Warn("translation unavailable; Chinese fields will be empty", "reason", mode.Reason)
		}
	})
	return s.Mode()
}

func (s *Service) detect(ctx context.Context) Mode {
	switch {
	case !s.opts.Enabled:
		return Mode{Reason: "disabled by --no-translate"}
	case s.backend == nil:
		return Mode{Reason: "no translation backend configured"}
	}

	err := retry.WithRetry(ctx, s.opts.Retry, func() error {
		out, err := s.translateOne(ctx, "Music industry news")
		if err != nil {
			return err
		}
		if strings.TrimSpace(out) == "" {
			return errors.New("empty health check translation")
		}
		return nil
	})
	if err != nil {
		return Mode{Reason: fmt.Sprintf("%s health check failed: %v", s.backend.Name(), err)}
	}
	return Mode{Available: true}
}

func (s *Service) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Service) Available() bool {
	return s.Mode().Available
}

func (s *Service) setMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

func (s *Service) translateOne(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	out, err := s.backend.Translate(ctx, text)
	if err != nil {
		return "", err
	}
	return SanitizeAIText(out), nil
}

// Batch collects source texts and the fields their translations go to.
type Batch struct {
	texts []string
	set   []func(results map[string]string)
}

// Add queues src; on success *dst receives its translation.
func (b *Batch) Add(src string, dst *string) {
	b.texts = append(b.texts, src)
	b.set = append(b.set, func(results map[string]string) {
		*dst = results[src]
	})
}

// AddSlice queues every element of src; on success *dst receives the
// translations in the same order.
func (b *Batch) AddSlice(src []string, dst *[]string) {
	b.texts = append(b.texts, src...)
	items := append([]string(nil), src...)
	b.set = append(b.set, func(results map[string]string) {
		out := make([]string, len(items))
		for i, s := range items {
			out[i] = results[s]
		}
		*dst = out
	})
}

func (b *Batch) Len() int { return len(b.texts) }

// TranslateAll translates every non-empty text in b. Destinations are only
// written when all translations succeed; any failure leaves them untouched
// and switches the Service to degraded mode for the rest of the run.
func (s *Service) TranslateAll(ctx context.Context, b *Batch) error {
	if !s.Available() {
		return ErrUnavailable
	}

	results := make(map[string]string)
	for _, text := range b.texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if _, done := results[text]; done {
			continue
		}

		var out string
		err := retry.WithRetry(ctx, s.opts.Retry, func() error {
			var err error
			out, err = s.translateOne(ctx, text)
			if err == nil && strings.TrimSpace(out) == "" {
				err = errors.New("empty translation")
			}
			return err
		})
		if err != nil {
			s.setMode(Mode{Reason: fmt.Sprintf("translation failed mid-run: %v", err)})
			s.log.Warn("translation failed; discarding all Chinese output", "error", err)
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		results[text] = out
	}

	unique := len(results)
	// untrimmed sources share the trimmed translation
	for _, text := range b.texts {
		if t := strings.TrimSpace(text); t != text {
			results[text] = results[t]
		}
	}
	for _, set := range b.set {
		set(results)
	}
	s.log.Info("translation complete", "fields", len(b.texts), "unique", unique)
	return nil
}
