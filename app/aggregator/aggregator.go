// Package aggregator merges the items of every enabled source into one
// recency-ordered stream.
package aggregator

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/lysyi3m/stream-comb/app/feed"
	"github.com/lysyi3m/stream-comb/app/fetcher"
)

// EndpointSource lists the configured endpoints of one kind.
type EndpointSource interface {
	Endpoints(kind feed.SourceKind) []feed.Endpoint
}

type Fetcher interface {
	FetchAll(ctx context.Context, endpoints []feed.Endpoint, observe func(fetcher.Outcome)) []fetcher.Outcome
	Fetch(ctx context.Context, endpoint feed.Endpoint) fetcher.Outcome
}

var _ Fetcher = (*fetcher.Fetcher)(nil)

type SourceStatus struct {
	Kind        feed.SourceKind `json:"kind"`
	Name        string          `json:"name"`
	URL         string          `json:"url"`
	Status      string          `json:"status"`
	ItemCount   int             `json:"itemCount"`
	IsMock      bool            `json:"isMock"`
	RateLimited bool            `json:"rateLimited"`
	LastUpdated string          `json:"lastUpdated,omitempty"`
}

type Result struct {
	Items       []feed.Item
	Endpoints   []feed.Endpoint
	Sources     []SourceStatus
	LastUpdated time.Time
	IsLoading   bool
	IsMock      bool
	RateLimited bool
}

type Aggregator struct {
	endpoints EndpointSource
	fetcher   Fetcher
	filterer  *feed.Filterer
	tracker   *Tracker
}

func New(endpoints EndpointSource, f Fetcher, filterer *feed.Filterer) *Aggregator {
	return &Aggregator{
		endpoints: endpoints,
		fetcher:   f,
		filterer:  filterer,
		tracker:   NewTracker(),
	}
}

// Resolve expands a query into the endpoints it fetches, social first.
func (a *Aggregator) Resolve(q Query) []feed.Endpoint {
	var endpoints []feed.Endpoint

	for _, kind := range kindOrder {
		if !q.Enabled(kind) {
			continue
		}

		switch kind {
		case feed.SourceRSS:
			endpoints = append(endpoints, a.rssEndpoints(q.Feeds)...)
		case feed.SourceSocial:
			for _, e := range a.endpoints.Endpoints(feed.SourceSocial) {
				e.Query = cmp.Or(strings.TrimSpace(q.SocialQuery), e.Query)
				if q.SocialLimit > 0 {
					e.Limit = q.SocialLimit
				}
				endpoints = append(endpoints, e)
			}
		}
	}

	return endpoints
}

func (a *Aggregator) rssEndpoints(feeds []string) []feed.Endpoint {
	var endpoints []feed.Endpoint
	for _, u := range feeds {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		endpoints = append(endpoints, feed.Endpoint{Name: feed.HostName(u), URL: u, Kind: feed.SourceRSS})
	}

	if len(endpoints) == 0 {
		return a.endpoints.Endpoints(feed.SourceRSS)
	}
	return endpoints
}

// Run fetches every endpoint of q, waits for all of them and merges the
// results. Per-endpoint failures only ever shrink the result; an error means
// the aggregation itself could not complete.
func (a *Aggregator) Run(ctx context.Context, q Query) (*Result, error) {
	endpoints := a.Resolve(q)
	key := TrackingKey(endpoints)

	a.tracker.Begin(key, endpoints)
	outcomes := a.fetcher.FetchAll(ctx, endpoints, func(o fetcher.Outcome) {
		a.tracker.Done(key, o)
	})

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("aggregation aborted: %w", err)
	}

	result := &Result{Endpoints: endpoints, Sources: make([]SourceStatus, 0, len(outcomes))}

	total := 0
	for _, o := range outcomes {
		total += len(o.Items)
	}

	merged := make([]feed.Item, 0, total)
	for _, o := range outcomes {
		merged = append(merged, o.Items...)
		result.Sources = append(result.Sources, sourceStatus(o))
		result.IsMock = result.IsMock || o.IsMock
		result.RateLimited = result.RateLimited || o.RateLimited
	}

	if q.Dedupe {
		merged = a.filterer.Dedupe(merged)
	}

	items := a.filterer.Run(merged, q.Keywords)

	// Timestamps share one fixed-width UTC layout, so string order is time order.
	slices.SortStableFunc(items, func(x, y feed.Item) int {
		return strings.Compare(y.Timestamp, x.Timestamp)
	})

	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}

	result.Items = items
	result.IsLoading, result.LastUpdated = a.tracker.Status(key)

	slog.Debug("Aggregation completed",
		"endpoints", len(endpoints),
		"merged", total,
		"returned", len(items),
		"keywords", len(q.Keywords),
		"dedupe", q.Dedupe)

	return result, nil
}

// Status reports loading state and freshness for q without fetching.
func (a *Aggregator) Status(q Query) (bool, time.Time) {
	return a.tracker.Status(TrackingKey(a.Resolve(q)))
}

// Search runs a single social search against the first configured social
// endpoint, preserving upstream order.
func (a *Aggregator) Search(ctx context.Context, query string, limit int) fetcher.Outcome {
	endpoints := a.Resolve(Query{Sources: []feed.SourceKind{feed.SourceSocial}, SocialQuery: query, SocialLimit: limit})
	if len(endpoints) == 0 {
		return fetcher.Outcome{Items: []feed.Item{}, Err: fmt.Errorf("no social endpoint configured")}
	}

	endpoint := endpoints[0]
	key := TrackingKey(endpoints[:1])

	a.tracker.Begin(key, endpoints[:1])
	outcome := a.fetcher.Fetch(ctx, endpoint)
	a.tracker.Done(key, outcome)

	return outcome
}

func sourceStatus(o fetcher.Outcome) SourceStatus {
	status := SourceStatus{
		Kind:        o.Endpoint.Kind,
		Name:        o.Endpoint.Name,
		URL:         o.Endpoint.URL,
		Status:      o.Status(),
		ItemCount:   len(o.Items),
		IsMock:      o.IsMock,
		RateLimited: o.RateLimited,
	}
	if o.Succeeded() {
		status.LastUpdated = feed.FormatTimestamp(o.FetchedAt)
	}
	return status
}
