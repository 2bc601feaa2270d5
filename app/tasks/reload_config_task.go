package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// ReloadConfigTask re-reads the endpoint configuration files.
type ReloadConfigTask struct {
	Task
	config EndpointConfig
}

func NewReloadConfigTask(config EndpointConfig) *ReloadConfigTask {
	task := &ReloadConfigTask{
		Task:   NewTask(TaskTypeReloadConfig, ""),
		config: config,
	}
	task.MaxRetries = 0
	return task
}

func (t *ReloadConfigTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.config.Run(); err != nil {
		return fmt.Errorf("failed to reload endpoint configuration: %w", err)
	}

	slog.Debug("Task completed",
		"type", string(t.Type),
		"endpoints", len(t.config.AllEndpoints()),
		"duration", t.GetDuration())

	return nil
}
