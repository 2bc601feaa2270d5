package tasks

import (
	"context"

	"github.com/lysyi3m/stream-comb/app/feed"
	"github.com/lysyi3m/stream-comb/app/fetcher"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to keep configured endpoints warm in the cache.
//
//	scheduler := NewScheduler(configCache, fetcher, interval, workerCount)
//	scheduler.Start()
//	defer scheduler.Stop()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// EndpointConfig is the endpoint registry the scheduler refreshes from.
type EndpointConfig interface {
	Run() error
	AllEndpoints() []feed.Endpoint
}

// Refresher re-fetches one endpoint bypassing the cache.
type Refresher interface {
	Refresh(ctx context.Context, endpoint feed.Endpoint) fetcher.Outcome
}

var (
	_ EndpointConfig = (*feed.ConfigCache)(nil)
	_ Refresher      = (*fetcher.Fetcher)(nil)
)
