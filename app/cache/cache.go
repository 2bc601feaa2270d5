// Package cache stores fetched item sequences per endpoint with a TTL.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/lysyi3m/stream-comb/app/feed"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Entry is written once and replaced wholesale. Callers must not modify an
// Entry or its Items after Set.
type Entry struct {
	Key       string        `json:"key"`
	Items     []feed.Item   `json:"items"`
	Format    string        `json:"format,omitempty"`
	FetchedAt time.Time     `json:"fetchedAt"`
	TTL       time.Duration `json:"ttl"`
}

func NewEntry(key string, items []feed.Item, format string, fetchedAt time.Time, ttl time.Duration) *Entry {
	if items == nil {
		items = []feed.Item{}
	}
	return &Entry{Key: key, Items: items, Format: format, FetchedAt: fetchedAt, TTL: ttl}
}

func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.FetchedAt) >= e.TTL
}

type Cache interface {
	// Get returns a live entry. Expired entries are reported as misses.
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, entry *Entry) error
	Health(ctx context.Context) map[string]interface{}
	Close() error
}

// Open builds the configured backend. maxTTL bounds how long any entry is
// retained.
func Open(backend string, size int, maxTTL time.Duration, redisAddr string) (Cache, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemory(size, maxTTL), nil
	case BackendRedis:
		return NewRedis(redisAddr)
	default:
		return nil, fmt.Errorf("unknown cache backend: %q", backend)
	}
}
