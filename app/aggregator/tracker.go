package aggregator

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lysyi3m/stream-comb/app/feed"
	"github.com/lysyi3m/stream-comb/app/fetcher"
)

const (
	trackerSize = 1024
	trackerTTL  = 30 * time.Minute
)

type queryState struct {
	inflight    map[string]int
	completed   map[string]struct{}
	lastSuccess map[string]time.Time
}

// Tracker remembers, per endpoint set, which endpoints finished their first
// fetch and when each last succeeded.
type Tracker struct {
	mu      sync.Mutex
	queries *expirable.LRU[string, *queryState]
}

func NewTracker() *Tracker {
	return &Tracker{queries: expirable.NewLRU[string, *queryState](trackerSize, nil, trackerTTL)}
}

// TrackingKey identifies an endpoint set independently of its order.
func TrackingKey(endpoints []feed.Endpoint) string {
	keys := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		keys = append(keys, e.CacheKey())
	}
	slices.Sort(keys)
	return strings.Join(keys, "\n")
}

func (t *Tracker) state(key string) *queryState {
	state, ok := t.queries.Get(key)
	if !ok {
		state = &queryState{
			inflight:    make(map[string]int),
			completed:   make(map[string]struct{}),
			lastSuccess: make(map[string]time.Time),
		}
		t.queries.Add(key, state)
	}
	return state
}

func (t *Tracker) Begin(key string, endpoints []feed.Endpoint) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.state(key)
	for _, e := range endpoints {
		ek := e.CacheKey()
		if _, done := state.completed[ek]; !done {
			state.inflight[ek]++
		}
	}
}

func (t *Tracker) Done(key string, outcome fetcher.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.state(key)
	ek := outcome.Endpoint.CacheKey()

	if n := state.inflight[ek]; n > 1 {
		state.inflight[ek] = n - 1
	} else {
		delete(state.inflight, ek)
	}
	state.completed[ek] = struct{}{}

	if outcome.Succeeded() && outcome.FetchedAt.After(state.lastSuccess[ek]) {
		state.lastSuccess[ek] = outcome.FetchedAt
	}
}

// Status returns whether any endpoint's first fetch is still outstanding and
// the most recent successful fetch across the set.
func (t *Tracker) Status(key string) (bool, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.queries.Peek(key)
	if !ok {
		return false, time.Time{}
	}

	loading := false
	for ek := range state.inflight {
		if _, done := state.completed[ek]; !done {
			loading = true
			break
		}
	}

	var last time.Time
	for _, ts := range state.lastSuccess {
		if ts.After(last) {
			last = ts
		}
	}

	return loading, last
}
