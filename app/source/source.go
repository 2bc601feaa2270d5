// Package source turns upstream responses into normalized feed items.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/lysyi3m/stream-comb/app/feed"
)

var ErrUpstreamStatus = errors.New("upstream returned non-success status")

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d from %s", e.StatusCode, e.URL)
}

func (e *StatusError) Unwrap() error {
	return ErrUpstreamStatus
}

// IsRateLimited reports whether err carries a 429 upstream status.
func IsRateLimited(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == 429
}

// Result is what one adapter call produced for one endpoint.
type Result struct {
	Items       []feed.Item
	Format      string
	IsMock      bool
	RateLimited bool
	Skipped     int
}

// Adapter fetches and normalizes one endpoint. The returned Result is always
// usable; a non-nil error only explains why it is empty or degraded.
type Adapter interface {
	Fetch(ctx context.Context, endpoint feed.Endpoint) (Result, error)
}
