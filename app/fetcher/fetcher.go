// Package fetcher runs cache-first, failure-isolated fetches of many endpoints
// in parallel.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/lysyi3m/stream-comb/app/cache"
	"github.com/lysyi3m/stream-comb/app/database"
	"github.com/lysyi3m/stream-comb/app/feed"
	"github.com/lysyi3m/stream-comb/app/metrics"
	"github.com/lysyi3m/stream-comb/app/source"
)

type Options struct {
	RSSTTL       time.Duration
	SocialTTL    time.Duration
	Concurrency  int
	HostInterval time.Duration

	// Record selects the endpoints whose fetch status is persisted. nil
	// records every endpoint.
	Record func(feed.Endpoint) bool
}

type Fetcher struct {
	cache       cache.Cache
	adapters    map[feed.SourceKind]source.Adapter
	store       database.SourceRepository
	limiter     *HostRateLimiter
	ttls        map[feed.SourceKind]time.Duration
	record      func(feed.Endpoint) bool
	concurrency int
	group       singleflight.Group
	clock       func() time.Time
}

// New builds a Fetcher. store may be nil.
func New(c cache.Cache, adapters map[feed.SourceKind]source.Adapter, store database.SourceRepository, opts Options) *Fetcher {
	return &Fetcher{
		cache:    c,
		adapters: adapters,
		store:    store,
		limiter:  NewHostRateLimiter(opts.HostInterval),
		ttls: map[feed.SourceKind]time.Duration{
			feed.SourceRSS:    opts.RSSTTL,
			feed.SourceSocial: opts.SocialTTL,
		},
		record:      opts.Record,
		concurrency: opts.Concurrency,
		clock:       time.Now,
	}
}

// FetchAll fetches every endpoint concurrently and waits for all of them.
// Outcomes are returned in endpoint order. observe, when set, is called from
// the fetching goroutine as soon as each endpoint completes.
func (f *Fetcher) FetchAll(ctx context.Context, endpoints []feed.Endpoint, observe func(Outcome)) []Outcome {
	outcomes := make([]Outcome, len(endpoints))

	var g errgroup.Group
	if f.concurrency > 0 {
		g.SetLimit(f.concurrency)
	}

	for i, endpoint := range endpoints {
		g.Go(func() error {
			outcomes[i] = f.safeFetch(ctx, endpoint)
			if observe != nil {
				observe(outcomes[i])
			}
			return nil
		})
	}

	_ = g.Wait()

	return outcomes
}

// Fetch serves endpoint from the cache when a live entry exists and fetches
// it otherwise. Concurrent misses for the same key share one upstream call.
func (f *Fetcher) Fetch(ctx context.Context, endpoint feed.Endpoint) Outcome {
	key := endpoint.CacheKey()

	entry, ok, err := f.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("Cache read failed", "key", key, "error", err)
	}
	metrics.RecordCacheLookup(ok)

	if ok {
		return Outcome{
			Endpoint:  endpoint,
			Items:     entry.Items,
			Format:    entry.Format,
			FromCache: true,
			FetchedAt: entry.FetchedAt,
		}
	}

	v, _, shared := f.group.Do(key, func() (interface{}, error) {
		return f.load(ctx, endpoint), nil
	})
	outcome := v.(Outcome)

	// The leader's request was abandoned but ours was not.
	if shared && errors.Is(outcome.Err, context.Canceled) && ctx.Err() == nil {
		outcome = f.load(ctx, endpoint)
	}

	outcome.Endpoint = endpoint
	return outcome
}

// Refresh fetches endpoint from upstream regardless of the cache and
// replaces the cache entry on success.
func (f *Fetcher) Refresh(ctx context.Context, endpoint feed.Endpoint) Outcome {
	v, _, _ := f.group.Do(endpoint.CacheKey(), func() (interface{}, error) {
		return f.load(ctx, endpoint), nil
	})
	outcome := v.(Outcome)
	outcome.Endpoint = endpoint
	return outcome
}

func (f *Fetcher) safeFetch(ctx context.Context, endpoint feed.Endpoint) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Endpoint fetch panicked", "endpoint", endpoint.Name, "kind", endpoint.Kind, "panic", r)
			outcome = Outcome{Endpoint: endpoint, Items: []feed.Item{}, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	return f.Fetch(ctx, endpoint)
}

func (f *Fetcher) load(ctx context.Context, endpoint feed.Endpoint) Outcome {
	start := f.clock()
	outcome := Outcome{Endpoint: endpoint, Items: []feed.Item{}}

	adapter, ok := f.adapters[endpoint.Kind]
	if !ok {
		outcome.Err = fmt.Errorf("no adapter for source kind %q", endpoint.Kind)
		f.finish(ctx, outcome, start)
		return outcome
	}

	if err := f.limiter.WaitForHost(ctx, endpoint.URL); err != nil {
		outcome.Err = fmt.Errorf("rate limiter: %w", err)
		f.finish(ctx, outcome, start)
		return outcome
	}

	result, err := adapter.Fetch(ctx, endpoint)

	outcome.Format = result.Format
	outcome.IsMock = result.IsMock
	outcome.RateLimited = result.RateLimited
	outcome.Skipped = result.Skipped
	outcome.Err = err
	if result.Items != nil {
		outcome.Items = result.Items
	}

	if err == nil {
		outcome.FetchedAt = f.clock()
		entry := cache.NewEntry(endpoint.CacheKey(), outcome.Items, outcome.Format, outcome.FetchedAt, f.ttls[endpoint.Kind])
		if err := f.cache.Set(ctx, entry); err != nil {
			slog.Warn("Cache write failed", "key", entry.Key, "error", err)
		}
	}

	f.finish(ctx, outcome, start)
	return outcome
}

func (f *Fetcher) finish(ctx context.Context, outcome Outcome, start time.Time) {
	endpoint := outcome.Endpoint
	duration := f.clock().Sub(start)

	metrics.RecordFetch(string(endpoint.Kind), outcome.Status(), outcome.Format, len(outcome.Items), duration.Seconds())
	metrics.RecordSkipped(string(endpoint.Kind), outcome.Skipped)

	if outcome.Err != nil {
		slog.Warn("Endpoint fetch failed",
			"endpoint", endpoint.Name,
			"kind", endpoint.Kind,
			"url", endpoint.URL,
			"status", outcome.Status(),
			"items", len(outcome.Items),
			"error", outcome.Err)
	} else {
		slog.Debug("Endpoint fetched",
			"endpoint", endpoint.Name,
			"kind", endpoint.Kind,
			"format", outcome.Format,
			"items", len(outcome.Items),
			"skipped", outcome.Skipped,
			"duration", duration)
	}

	if f.store == nil || (f.record != nil && !f.record(endpoint)) {
		return
	}

	record := database.FetchRecord{
		Key:       endpoint.CacheKey(),
		Name:      endpoint.Name,
		Kind:      string(endpoint.Kind),
		URL:       endpoint.URL,
		Status:    outcome.Status(),
		Format:    outcome.Format,
		ItemCount: len(outcome.Items),
		Skipped:   outcome.Skipped,
		FetchedAt: f.clock(),
		Success:   outcome.Succeeded(),
	}
	if outcome.Err != nil {
		record.Error = outcome.Err.Error()
	}

	if err := f.store.RecordFetch(context.WithoutCancel(ctx), record); err != nil {
		slog.Warn("Failed to record fetch status", "endpoint", endpoint.Name, "error", err)
	}
}
