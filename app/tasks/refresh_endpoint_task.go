package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/stream-comb/app/feed"
)

type RefreshEndpointTask struct {
	Task
	Endpoint  feed.Endpoint
	refresher Refresher
}

func NewRefreshEndpointTask(endpoint feed.Endpoint, refresher Refresher) *RefreshEndpointTask {
	return &RefreshEndpointTask{
		Task:      NewTask(TaskTypeRefreshEndpoint, endpoint.Name),
		Endpoint:  endpoint,
		refresher: refresher,
	}
}

func (t *RefreshEndpointTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	outcome := t.refresher.Refresh(ctx, t.Endpoint)

	// Retrying into a rate limit only extends it.
	if outcome.RateLimited {
		slog.Warn("Endpoint rate limited, skipping retry", "endpoint", t.EndpointName)
		return nil
	}

	if outcome.Err != nil {
		return fmt.Errorf("failed to refresh endpoint %s: %w", t.EndpointName, outcome.Err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"endpoint", t.EndpointName,
		"kind", t.Endpoint.Kind,
		"duration", t.GetDuration(),
		"items", len(outcome.Items),
		"skipped", outcome.Skipped)

	return nil
}
