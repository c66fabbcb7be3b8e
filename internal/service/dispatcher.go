package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/timmy/adnreport/internal/domain"
	"github.com/timmy/adnreport/internal/logger"
	"github.com/timmy/adnreport/internal/metrics"
)

// TaskRunner executes a single report task.
type TaskRunner interface {
	ExecuteTask(ctx context.Context, task *domain.ReportTask) *TaskOutcome
}

// Dispatcher polls runnable tasks and runs them on a bounded worker pool.
// Each task is claimed by the runner before it runs, so a task already held
// by a manual run is skipped rather than run twice.
type Dispatcher struct {
	tasks   TaskStore
	runner  TaskRunner
	metrics *metrics.Metrics
	logger  *logger.Logger

	workers     int
	pollLimit   int
	maxRunCount int
	lease       time.Duration
	schedule    string

	mu   sync.Mutex
	cron *cron.Cron
}

// DispatcherConfig holds configuration for the dispatcher
type DispatcherConfig struct {
	Workers        int
	PollLimit      int
	MaxRunCount    int           // tasks at or above this run count are left alone; 0 disables the cap
	RunningTimeout time.Duration // RUNNING tasks older than this are polled again; 0 never
	Schedule       string        // cron expression, e.g. "@every 10m"
}

// DispatchStats holds statistics for one dispatch pass
type DispatchStats struct {
	Polled    int64
	Succeeded int64
	Failed    int64
	Skipped   int64
	StartTime time.Time
	EndTime   time.Time
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(tasks TaskStore, runner TaskRunner, m *metrics.Metrics, log *logger.Logger, cfg *DispatcherConfig) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	pollLimit := cfg.PollLimit
	if pollLimit <= 0 {
		pollLimit = 100
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Dispatcher{
		tasks:       tasks,
		runner:      runner,
		metrics:     m,
		logger:      log,
		workers:     workers,
		pollLimit:   pollLimit,
		maxRunCount: cfg.MaxRunCount,
		lease:       cfg.RunningTimeout,
		schedule:    cfg.Schedule,
	}
}

// DispatchOnce runs every currently runnable task and waits for them to finish.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (*DispatchStats, error) {
	stats := &DispatchStats{StartTime: time.Now()}
	ctx = logger.SetComponent(ctx, "dispatcher")

	var staleBefore time.Time
	if d.lease > 0 {
		staleBefore = stats.StartTime.Add(-d.lease)
	}
	tasks, err := d.tasks.ListRunnable(ctx, d.pollLimit, d.maxRunCount, staleBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to list runnable tasks: %w", err)
	}
	stats.Polled = int64(len(tasks))
	d.metrics.DispatchedTasksTotal.Add(float64(len(tasks)))

	if len(tasks) == 0 {
		stats.EndTime = time.Now()
		logger.CtxDebug(ctx, "no runnable tasks")
		return stats, nil
	}

	taskChan := make(chan *domain.ReportTask, d.workers*2)
	resultsChan := make(chan *TaskOutcome, d.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskChan {
				resultsChan <- d.runner.ExecuteTask(ctx, task)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		for outcome := range resultsChan {
			switch {
			case outcome.Skipped:
				atomic.AddInt64(&stats.Skipped, 1)
			case outcome.Status == domain.TaskStatusSuccess:
				atomic.AddInt64(&stats.Succeeded, 1)
			default:
				atomic.AddInt64(&stats.Failed, 1)
			}
		}
		close(done)
	}()

feed:
	for i := range tasks {
		select {
		case taskChan <- &tasks[i]:
		case <-ctx.Done():
			break feed
		}
	}

	close(taskChan)
	wg.Wait()
	close(resultsChan)
	<-done

	stats.EndTime = time.Now()

	d.logger.WithFields(logger.Fields{
		"polled":    stats.Polled,
		"succeeded": stats.Succeeded,
		"failed":    stats.Failed,
		"skipped":   stats.Skipped,
		"duration":  stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Dispatch completed")

	return stats, ctx.Err()
}

// Start schedules DispatchOnce on the configured schedule. A tick that fires
// while the previous pass is still running is skipped.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cron != nil {
		return fmt.Errorf("dispatcher already started")
	}
	if d.schedule == "" {
		return fmt.Errorf("dispatcher schedule is empty")
	}

	cronLog := cron.PrintfLogger(d.logger)
	c := cron.New(cron.WithChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	))
	if _, err := c.AddFunc(d.schedule, func() {
		if _, err := d.DispatchOnce(ctx); err != nil {
			d.logger.WithError(err).Error("Dispatch failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", d.schedule, err)
	}

	c.Start()
	d.cron = c
	d.logger.WithField("schedule", d.schedule).Info("Dispatcher started")
	return nil
}

// Stop stops the scheduler and waits for a running pass to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	c := d.cron
	d.cron = nil
	d.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	d.logger.Info("Dispatcher stopped")
}
