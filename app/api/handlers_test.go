package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/stream-comb/app/aggregator"
	"github.com/lysyi3m/stream-comb/app/cache"
	"github.com/lysyi3m/stream-comb/app/database"
	"github.com/lysyi3m/stream-comb/app/feed"
	"github.com/lysyi3m/stream-comb/app/fetcher"
	"github.com/lysyi3m/stream-comb/app/source"
	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeAggregator struct {
	result  *aggregator.Result
	err     error
	outcome fetcher.Outcome
	loading bool
	panics  bool

	lastQuery  aggregator.Query
	lastSearch string
	lastLimit  int
}

func (f *fakeAggregator) Run(ctx context.Context, q aggregator.Query) (*aggregator.Result, error) {
	if f.panics {
		panic("boom")
	}
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeAggregator) Status(q aggregator.Query) (bool, time.Time) {
	f.lastQuery = q
	if f.result == nil {
		return f.loading, time.Time{}
	}
	return f.loading, f.result.LastUpdated
}

func (f *fakeAggregator) Search(ctx context.Context, query string, limit int) fetcher.Outcome {
	f.lastSearch = query
	f.lastLimit = limit
	return f.outcome
}

type fakeConfig struct {
	endpoints []feed.Endpoint
}

func (f *fakeConfig) AllEndpoints() []feed.Endpoint { return f.endpoints }
func (f *fakeConfig) GetConfigCount() int           { return len(f.endpoints) }

func (f *fakeConfig) GetEndpoint(name string) (feed.Endpoint, bool) {
	for _, e := range f.endpoints {
		if e.Name == name {
			return e, true
		}
	}
	return feed.Endpoint{}, false
}

type fakeSourceRepo struct {
	sources map[string]*database.Source
}

func (f *fakeSourceRepo) RecordFetch(ctx context.Context, record database.FetchRecord) error {
	return nil
}

func (f *fakeSourceRepo) GetSource(ctx context.Context, key string) (*database.Source, error) {
	return f.sources[key], nil
}

func (f *fakeSourceRepo) ListSources(ctx context.Context) ([]database.Source, error) {
	var sources []database.Source
	for _, s := range f.sources {
		sources = append(sources, *s)
	}
	return sources, nil
}

func (f *fakeSourceRepo) GetSourceCount(ctx context.Context) (int, error) {
	return len(f.sources), nil
}

var rssEndpoint = feed.Endpoint{Name: "example.com", URL: "https://example.com/feed", Kind: feed.SourceRSS}

func sampleItems() []feed.Item {
	return []feed.Item{
		{ID: "b", Source: feed.SourceSocial, Author: "Bob", Content: "second", Timestamp: "2024-05-01T11:00:00.000Z", URL: "https://bsky.app/b"},
		{ID: "a", Source: feed.SourceRSS, Author: "Alice", Title: "First", Content: "first", Timestamp: "2024-05-01T10:00:00.000Z", URL: "https://example.com/a"},
	}
}

func newTestServer(t *testing.T, agg *fakeAggregator) (*gin.Engine, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := &fakeSourceRepo{sources: map[string]*database.Source{
		rssEndpoint.CacheKey(): {Key: rssEndpoint.CacheKey(), Name: "example.com", Kind: "rss", Status: "ok", ItemCount: 2},
	}}

	memory := cache.NewMemory(16, time.Minute)
	t.Cleanup(func() { _ = memory.Close() })

	handler := NewHandler(agg, &fakeConfig{endpoints: []feed.Endpoint{rssEndpoint}}, repo, memory, "https://stream.example.com/")
	handler.clock = func() time.Time { return testNow }

	return NewServer(handler), handler
}

func get(t *testing.T, r http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))

	var body map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestGetRSS(t *testing.T) {
	agg := &fakeAggregator{result: &aggregator.Result{
		Items:     sampleItems()[1:],
		Endpoints: []feed.Endpoint{rssEndpoint},
	}}
	r, _ := newTestServer(t, agg)

	w, body := get(t, r, "/api/social/rss?feeds=https://example.com/feed,%20,https://other.example.com/rss")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []feed.SourceKind{feed.SourceRSS}, agg.lastQuery.Sources)
	assert.Equal(t, []string{"https://example.com/feed", "https://other.example.com/rss"}, agg.lastQuery.Feeds)
	assert.Equal(t, 20, agg.lastQuery.Limit)

	assert.EqualValues(t, 1, body["count"])
	assert.Equal(t, []any{"https://example.com/feed"}, body["feeds"])
	assert.Equal(t, "2024-05-01T12:00:00.000Z", body["timestamp"])

	items := body["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "rss", item["source"])
	assert.NotContains(t, item, "engagement")
}

func TestGetRSSFailure(t *testing.T) {
	r, _ := newTestServer(t, &fakeAggregator{err: errors.New("exploded")})

	w, body := get(t, r, "/api/social/rss?limit=5")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to fetch RSS feeds", body["error"])
	assert.Equal(t, []any{}, body["items"])
}

func TestGetRSSLimitFallsBackAndClamps(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"limit=abc", feed.DefaultRSSLimit},
		{"limit=0", feed.DefaultRSSLimit},
		{"limit=-3", feed.DefaultRSSLimit},
		{"limit=7", 7},
		{"limit=1000", maxLimit},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			agg := &fakeAggregator{result: &aggregator.Result{Items: []feed.Item{}}}
			r, _ := newTestServer(t, agg)

			w, _ := get(t, r, "/api/social/rss?"+tt.query)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, agg.lastQuery.Limit)
		})
	}
}

func TestSearchSocialMockFallback(t *testing.T) {
	agg := &fakeAggregator{outcome: fetcher.Outcome{
		Items:  source.MockItems(testNow),
		IsMock: true,
		Err:    errors.New("upstream returned 503"),
	}}
	r, _ := newTestServer(t, agg)

	w, body := get(t, r, "/api/social/bluesky")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, feed.DefaultSocialQuery, agg.lastSearch)
	assert.Equal(t, 25, agg.lastLimit)
	assert.Equal(t, true, body["isMock"])
	assert.Equal(t, false, body["rateLimited"])
	assert.EqualValues(t, 3, body["count"])
	assert.Equal(t, feed.DefaultSocialQuery, body["query"])

	first := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "mock-1", first["id"])
	assert.Contains(t, first, "engagement")
}

func TestSearchSocialRateLimited(t *testing.T) {
	agg := &fakeAggregator{outcome: fetcher.Outcome{
		Items:       []feed.Item{},
		RateLimited: true,
		Err:         errors.New("rate limited"),
	}}
	r, _ := newTestServer(t, agg)

	w, body := get(t, r, "/api/social/bluesky?q=golang&limit=250")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "golang", agg.lastSearch)
	assert.Equal(t, source.MaxSocialLimit, agg.lastLimit)
	assert.Equal(t, false, body["isMock"])
	assert.Equal(t, true, body["rateLimited"])
	assert.Equal(t, []any{}, body["items"])
	assert.EqualValues(t, 0, body["count"])
}

func TestGetFeed(t *testing.T) {
	agg := &fakeAggregator{result: &aggregator.Result{
		Items: sampleItems(),
		Sources: []aggregator.SourceStatus{
			{Kind: feed.SourceSocial, Name: "bluesky", Status: fetcher.StatusOK, ItemCount: 1},
			{Kind: feed.SourceRSS, Name: "example.com", Status: fetcher.StatusCached, ItemCount: 1},
		},
		LastUpdated: testNow.Add(-time.Minute),
	}}
	r, _ := newTestServer(t, agg)

	w, body := get(t, r, "/api/social/feed?sources=SOCIAL,rss&keywords=ai,,go&q=golang&dedupe=true&limit=5")
	require.Equal(t, http.StatusOK, w.Code)

	q := agg.lastQuery
	assert.Equal(t, []feed.SourceKind{feed.SourceSocial, feed.SourceRSS}, q.Sources)
	assert.Equal(t, []string{"ai", "go"}, q.Keywords)
	assert.Equal(t, "golang", q.SocialQuery)
	assert.Equal(t, 5, q.Limit)
	assert.True(t, q.Dedupe)

	assert.EqualValues(t, 2, body["count"])
	assert.Equal(t, "2024-05-01T11:59:00.000Z", body["lastUpdated"])
	assert.Equal(t, false, body["isLoading"])
	require.Len(t, body["sources"], 2)
	assert.Equal(t, "cached", body["sources"].([]any)[1].(map[string]any)["status"])
}

func TestGetFeedDefaults(t *testing.T) {
	agg := &fakeAggregator{result: &aggregator.Result{Items: []feed.Item{}, Sources: []aggregator.SourceStatus{}}}
	r, _ := newTestServer(t, agg)

	w, body := get(t, r, "/api/social/feed")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Empty(t, agg.lastQuery.Sources)
	assert.Equal(t, 25, agg.lastQuery.Limit)
	assert.False(t, agg.lastQuery.Dedupe)
	assert.Contains(t, body, "lastUpdated")
	assert.Nil(t, body["lastUpdated"])
}

func TestGetFeedUnknownSource(t *testing.T) {
	r, _ := newTestServer(t, &fakeAggregator{})

	w, body := get(t, r, "/api/social/feed?sources=mastodon")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "mastodon")
}

func TestGetFeedStatus(t *testing.T) {
	agg := &fakeAggregator{loading: true, result: &aggregator.Result{LastUpdated: testNow}}
	r, _ := newTestServer(t, agg)

	w, body := get(t, r, "/api/social/feed/status?sources=rss")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["isLoading"])
	assert.Equal(t, "2024-05-01T12:00:00.000Z", body["lastUpdated"])
	assert.Equal(t, []feed.SourceKind{feed.SourceRSS}, agg.lastQuery.Sources)
}

func TestGetFeedXML(t *testing.T) {
	agg := &fakeAggregator{result: &aggregator.Result{Items: sampleItems(), LastUpdated: testNow}}
	r, _ := newTestServer(t, agg)

	w, _ := get(t, r, "/api/social/feed.xml?keywords=first")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/xml; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "2", w.Header().Get("X-Feed-Items"))

	parsed, err := gofeed.NewParser().ParseString(w.Body.String())
	require.NoError(t, err)
	assert.Equal(t, "Stream Comb", parsed.Title)
	require.Len(t, parsed.Items, 2)
	assert.Equal(t, "second", parsed.Items[0].Title)
	assert.Equal(t, "First", parsed.Items[1].Title)
	assert.Contains(t, w.Body.String(), "https://stream.example.com/api/social/feed.xml?keywords=first")
}

func TestListSources(t *testing.T) {
	r, _ := newTestServer(t, &fakeAggregator{})

	w, body := get(t, r, "/api/sources")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["total"])

	src := body["sources"].([]any)[0].(map[string]any)
	assert.Equal(t, "example.com", src["name"])
	assert.Equal(t, "rss", src["kind"])
	assert.Equal(t, "ok", src["status"].(map[string]any)["status"])
}

func TestGetSource(t *testing.T) {
	r, _ := newTestServer(t, &fakeAggregator{})

	w, body := get(t, r, "/api/sources/example.com")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://example.com/feed", body["url"])
	assert.EqualValues(t, 2, body["status"].(map[string]any)["itemCount"])

	w, _ = get(t, r, "/api/sources/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetHealth(t *testing.T) {
	r, _ := newTestServer(t, &fakeAggregator{})

	w, body := get(t, r, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["loaded_configurations"])
	assert.EqualValues(t, 1, body["sources"])
	assert.Contains(t, body, "cache")
	assert.NotEmpty(t, body["version"])
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestServer(t, &fakeAggregator{result: &aggregator.Result{Items: []feed.Item{}}})

	get(t, r, "/api/social/feed")
	w, _ := get(t, r, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "streamcomb_aggregations_total")
}

func TestPanicRecoveryKeepsBodyShape(t *testing.T) {
	r, _ := newTestServer(t, &fakeAggregator{panics: true})

	w, body := get(t, r, "/api/social/feed")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, []any{}, body["items"])
	assert.NotEmpty(t, body["error"])
}

func TestRequestIDAndCORS(t *testing.T) {
	r, _ := newTestServer(t, &fakeAggregator{})

	w, _ := get(t, r, "/health")
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/social/feed", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, splitCSV(""))
	assert.Nil(t, splitCSV(" , ,"))
	assert.Equal(t, []string{"a", "b c"}, splitCSV(" a ,b c,"))
}
