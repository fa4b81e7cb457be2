package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrBlockedByRobots is returned for URLs disallowed by the host's robots.txt.
	ErrBlockedByRobots = errors.New("blocked by robots.txt")
	// ErrLoginRequired marks pages behind authentication. It matches ErrBlockedByRobots.
	ErrLoginRequired = fmt.Errorf("login required: %w", ErrBlockedByRobots)
	// ErrTimeout is returned when a fetch exceeds its timeout.
	ErrTimeout = errors.New("fetch timed out")
)

// HTTPError is a completed request with a non-2xx status.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error: %d for %s", e.Status, e.URL)
}

// NetworkError wraps transport failures other than timeouts.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error for %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Reason maps a fetch error to its skipped_by_reason key.
func Reason(err error) string {
	var httpErr *HTTPError
	var netErr *NetworkError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLoginRequired):
		return "login_required"
	case errors.Is(err, ErrBlockedByRobots):
		return "robots"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.As(err, &httpErr):
		return fmt.Sprintf("http_%d", httpErr.Status)
	case errors.As(err, &netErr):
		return "network"
	}
	return "fetch_error"
}

func classify(rawURL string, err error) error {
	if errors.Is(err, ErrBlockedByRobots) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", rawURL, ErrTimeout)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%s: %w", rawURL, ErrTimeout)
	}
	return &NetworkError{URL: rawURL, Err: err}
}

func retryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status >= 500 || httpErr.Status == 429
	}
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
