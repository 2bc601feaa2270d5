package fetcher

import (
	"time"

	"github.com/lysyi3m/stream-comb/app/feed"
)

const (
	StatusOK          = "ok"
	StatusCached      = "cached"
	StatusError       = "error"
	StatusMock        = "mock"
	StatusRateLimited = "rate_limited"
)

// Outcome is the fail-soft result of one endpoint fetch. Items is never nil.
// Err is informational only.
type Outcome struct {
	Endpoint    feed.Endpoint
	Items       []feed.Item
	Format      string
	IsMock      bool
	RateLimited bool
	FromCache   bool
	Skipped     int
	FetchedAt   time.Time
	Err         error
}

func (o Outcome) Status() string {
	switch {
	case o.FromCache:
		return StatusCached
	case o.RateLimited:
		return StatusRateLimited
	case o.IsMock:
		return StatusMock
	case o.Err != nil:
		return StatusError
	default:
		return StatusOK
	}
}

// Succeeded reports whether the items came from a live, complete upstream response.
func (o Outcome) Succeeded() bool {
	return !o.FetchedAt.IsZero()
}
