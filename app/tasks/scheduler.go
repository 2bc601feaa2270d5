package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	config      EndpointConfig
	refresher   Refresher
	interval    time.Duration
	workerCount int
	taskTimeout time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(config EndpointConfig, refresher Refresher, interval time.Duration, workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		config:      config,
		refresher:   refresher,
		interval:    interval,
		workerCount: max(workerCount, 1),
		taskTimeout: 5 * time.Minute,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueRefreshTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if err := s.EnqueueTask(NewReloadConfigTask(s.config)); err != nil {
					slog.Warn("Failed to enqueue ReloadConfigTask", "error", err)
				}
				s.enqueueRefreshTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueRefreshTasks() {
	endpoints := s.config.AllEndpoints()
	if len(endpoints) == 0 {
		slog.Debug("No endpoints configured")
		return
	}

	slog.Debug("Scheduling endpoint refresh", "count", len(endpoints))

	for _, endpoint := range endpoints {
		if err := s.EnqueueTask(NewRefreshEndpointTask(endpoint, s.refresher)); err != nil {
			slog.Warn("Failed to enqueue RefreshEndpointTask", "endpoint", endpoint.Name, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "endpoint", task.GetEndpointName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}

// retryDelay doubles from one second per attempt, capped at 30 seconds.
func retryDelay(attempt int) time.Duration {
	delay := time.Duration(1<<uint(attempt-1)) * time.Second
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}
