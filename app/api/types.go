package api

import (
	"context"
	"time"

	"github.com/lysyi3m/stream-comb/app/aggregator"
	"github.com/lysyi3m/stream-comb/app/cache"
	"github.com/lysyi3m/stream-comb/app/database"
	"github.com/lysyi3m/stream-comb/app/feed"
	"github.com/lysyi3m/stream-comb/app/fetcher"
)

type AggregatorInterface interface {
	Run(ctx context.Context, q aggregator.Query) (*aggregator.Result, error)
	Status(q aggregator.Query) (bool, time.Time)
	Search(ctx context.Context, query string, limit int) fetcher.Outcome
}

type GeneratorInterface interface {
	Run(channel feed.Channel, items []feed.Item) (string, error)
}

type ConfigInterface interface {
	AllEndpoints() []feed.Endpoint
	GetEndpoint(name string) (feed.Endpoint, bool)
	GetConfigCount() int
}

var (
	_ AggregatorInterface = (*aggregator.Aggregator)(nil)
	_ GeneratorInterface  = (*feed.Generator)(nil)
	_ ConfigInterface     = (*feed.ConfigCache)(nil)
)

type Handler struct {
	aggregator  AggregatorInterface
	generator   GeneratorInterface
	configCache ConfigInterface
	sourceRepo  database.SourceRepository
	cache       cache.Cache
	baseURL     string
	clock       func() time.Time
}

type errorResponse struct {
	Error string      `json:"error"`
	Items []feed.Item `json:"items"`
}

type rssRequest struct {
	Feeds string `form:"feeds"`
	Limit string `form:"limit"`
}

type rssResponse struct {
	Items     []feed.Item `json:"items"`
	Count     int         `json:"count"`
	Feeds     []string    `json:"feeds"`
	Timestamp string      `json:"timestamp"`
}

type searchRequest struct {
	Query string `form:"q"`
	Limit string `form:"limit"`
}

type searchResponse struct {
	Items       []feed.Item `json:"items"`
	Count       int         `json:"count"`
	Query       string      `json:"query"`
	Timestamp   string      `json:"timestamp"`
	IsMock      bool        `json:"isMock"`
	RateLimited bool        `json:"rateLimited"`
}

type feedRequest struct {
	Sources  string `form:"sources"`
	Keywords string `form:"keywords"`
	Limit    string `form:"limit"`
	Query    string `form:"q"`
	Feeds    string `form:"feeds"`
	Dedupe   bool   `form:"dedupe"`
}

type feedResponse struct {
	Items       []feed.Item               `json:"items"`
	Count       int                       `json:"count"`
	LastUpdated *string                   `json:"lastUpdated"`
	IsLoading   bool                      `json:"isLoading"`
	Sources     []aggregator.SourceStatus `json:"sources"`
	Timestamp   string                    `json:"timestamp"`
}

type statusResponse struct {
	LastUpdated *string `json:"lastUpdated"`
	IsLoading   bool    `json:"isLoading"`
	Timestamp   string  `json:"timestamp"`
}

type sourceInfo struct {
	feed.Endpoint
	Status *database.Source `json:"status,omitempty"`
}
