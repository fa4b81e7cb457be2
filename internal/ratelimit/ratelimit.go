package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter enforces a minimum interval between requests to the same host.
// Requests to different hosts do not wait on each other.
type HostLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*rate.Limiter
	waits    map[string]int
}

// NewHostLimiter creates a limiter allowing one request per interval per host.
// A zero interval disables waiting.
func NewHostLimiter(interval time.Duration) *HostLimiter {
	return &HostLimiter{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
		waits:    make(map[string]int),
	}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (hl *HostLimiter) Wait(ctx context.Context, host string) error {
	if hl == nil || hl.interval <= 0 {
		return nil
	}
	return hl.limiter(host).Wait(ctx)
}

func (hl *HostLimiter) limiter(host string) *rate.Limiter {
	host = strings.ToLower(host)

	hl.mu.Lock()
	defer hl.mu.Unlock()

	hl.waits[host]++
	l, ok := hl.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(hl.interval), 1)
		hl.limiters[host] = l
	}
	return l
}

// GetStats returns the number of requests admitted per host.
func (hl *HostLimiter) GetStats() map[string]int {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	stats := make(map[string]int, len(hl.waits))
	for host, n := range hl.waits {
		stats[host] = n
	}
	return stats
}
