package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/adnreport/internal/domain"
	"github.com/timmy/adnreport/internal/logger"
	"github.com/timmy/adnreport/internal/metrics"
	"github.com/timmy/adnreport/internal/source"
	"github.com/timmy/adnreport/internal/storage"
)

// DefaultEscalateAfterRuns is the run count past which a failing task is
// logged at error level.
const DefaultEscalateAfterRuns = 5

// ReportService runs report tasks through fetch, load, resolve and link.
type ReportService struct {
	tasks    TaskStore
	source   source.ReportSource
	loader   *ReportLoader
	resolver *PlacementResolver
	linker   *ReportLinker
	archive  storage.ObjectStorage
	metrics  *metrics.Metrics

	archivePrefix     string
	escalateAfterRuns int
	runningTimeout    time.Duration
}

// ReportConfig holds configuration for the report service
type ReportConfig struct {
	EscalateAfterRuns int
	ArchivePrefix     string
	RunningTimeout    time.Duration // lease on RUNNING tasks; 0 never reclaims
}

// NewReportService creates a new report service.
// archive may be nil to disable payload archiving.
func NewReportService(
	tasks TaskStore,
	src source.ReportSource,
	loader *ReportLoader,
	resolver *PlacementResolver,
	linker *ReportLinker,
	archive storage.ObjectStorage,
	m *metrics.Metrics,
	cfg *ReportConfig,
) *ReportService {
	if cfg == nil {
		cfg = &ReportConfig{}
	}
	if cfg.EscalateAfterRuns <= 0 {
		cfg.EscalateAfterRuns = DefaultEscalateAfterRuns
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &ReportService{
		tasks:             tasks,
		source:            src,
		loader:            loader,
		resolver:          resolver,
		linker:            linker,
		archive:           archive,
		metrics:           m,
		archivePrefix:     cfg.ArchivePrefix,
		escalateAfterRuns: cfg.EscalateAfterRuns,
		runningTimeout:    cfg.RunningTimeout,
	}
}

// TaskOutcome describes how one execution of a task ended.
type TaskOutcome struct {
	TaskID     int64
	RunID      string
	Status     domain.TaskStatus
	Err        error // nil on a clean success; KindNoData errors come with Status success
	Skipped    bool  // the task was rejected or held by another run; no status change
	RowsLoaded int
	Link       *LinkResult
	Duration   time.Duration
}

// Message returns the text stored with the task status.
func (o *TaskOutcome) Message() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// ErrTaskRunning is returned when another run holds the task.
var ErrTaskRunning = errors.New("task is already running")

// ClaimTask validates task and moves it to RUNNING. It returns a
// KindInputInvalid error for a blank app id without touching the status,
// ErrTaskRunning when a live run holds the task, and a KindStoreFailed
// error when the status write fails.
func (s *ReportService) ClaimTask(ctx context.Context, task *domain.ReportTask) error {
	if strings.TrimSpace(task.AdnAppID) == "" {
		return domain.NewTaskError(domain.KindInputInvalid, "app id is blank")
	}
	claimed, err := s.tasks.Claim(ctx, task.ID, s.staleBefore())
	if err != nil {
		return domain.WrapTaskError(domain.KindStoreFailed, err, "update task status error")
	}
	if !claimed {
		return ErrTaskRunning
	}
	return nil
}

// ExecuteTask claims one task, runs it to completion and records its final
// status. A task without an app id is rejected: it is logged and left in its
// current status for the scheduler to fix. A task held by another run is
// skipped.
func (s *ReportService) ExecuteTask(ctx context.Context, task *domain.ReportTask) *TaskOutcome {
	outcome, ctx := s.newOutcome(ctx, task)

	err := s.ClaimTask(ctx, task)
	switch {
	case errors.Is(err, ErrTaskRunning):
		outcome.Skipped = true
		outcome.Err = err
		logger.CtxWarn(ctx, "[AppLovin] task skipped, another run holds it")
		return outcome
	case err != nil && domain.KindOf(err) == domain.KindInputInvalid:
		outcome.Skipped = true
		outcome.Err = err
		logger.CtxError(ctx, "[AppLovin] task rejected, app id is blank")
		s.metrics.StepErrors.WithLabelValues(domain.KindInputInvalid.String()).Inc()
		return outcome
	}
	return s.execute(ctx, task, outcome, err)
}

// RunClaimed runs a task already moved to RUNNING by ClaimTask.
func (s *ReportService) RunClaimed(ctx context.Context, task *domain.ReportTask) *TaskOutcome {
	outcome, ctx := s.newOutcome(ctx, task)
	return s.execute(ctx, task, outcome, nil)
}

func (s *ReportService) newOutcome(ctx context.Context, task *domain.ReportTask) (*TaskOutcome, context.Context) {
	outcome := &TaskOutcome{
		TaskID: task.ID,
		RunID:  uuid.NewString(),
		Status: task.Status,
	}
	ctx = logger.SetTask(ctx, task.ID, task.AdnAppID, task.Day)
	ctx = logger.SetRunID(ctx, outcome.RunID)
	ctx = logger.SetComponent(ctx, "report")
	return outcome, ctx
}

// staleBefore is the lease cutoff for RUNNING tasks; zero when leases are off.
func (s *ReportService) staleBefore() time.Time {
	if s.runningTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-s.runningTimeout)
}

// execute runs the steps unless claimErr is set, then records the status.
func (s *ReportService) execute(ctx context.Context, task *domain.ReportTask, outcome *TaskOutcome, claimErr error) *TaskOutcome {
	logger.CtxInfo(ctx, "[AppLovin] executeTask start, run_count=%d", task.RunCount)
	start := time.Now()

	err := claimErr
	if err == nil {
		err = s.runSteps(ctx, task, outcome)
	}

	outcome.Err = err
	outcome.Status = classify(err)
	outcome.Duration = time.Since(start)

	if err != nil {
		s.metrics.StepErrors.WithLabelValues(domain.KindOf(err).String()).Inc()
	}
	if outcome.Status == domain.TaskStatusFailed {
		failed := logger.With(logger.Fields{logger.FieldStatus: outcome.Status.String()})
		if task.RunCount > s.escalateAfterRuns {
			failed.Error(ctx, "[AppLovin] executeTask error, run_count=%d, msg=%s", task.RunCount+1, outcome.Message())
		} else {
			failed.Warn(ctx, "[AppLovin] executeTask failed, run_count=%d, msg=%s", task.RunCount+1, outcome.Message())
		}
	}

	durationMs := outcome.Duration.Milliseconds()
	if finishErr := s.tasks.Finish(ctx, task.ID, outcome.Status, outcome.Message(), durationMs); finishErr != nil {
		logger.FromContext(ctx).WithError(finishErr).Error("Failed to record task status")
	}

	s.metrics.TasksTotal.WithLabelValues(outcome.Status.String()).Inc()
	s.metrics.TaskDuration.Observe(outcome.Duration.Seconds())

	logger.With(logger.Fields{
		logger.FieldStatus:     outcome.Status.String(),
		logger.FieldDurationMs: durationMs,
	}).Info(ctx, "[AppLovin] executeTask end, rows=%d", outcome.RowsLoaded)

	return outcome
}

// ExecuteByID loads a task and executes it.
func (s *ReportService) ExecuteByID(ctx context.Context, taskID int64) (*TaskOutcome, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s.ExecuteTask(ctx, task), nil
}

// runSteps executes fetch, load, resolve and link, stopping at the first error.
func (s *ReportService) runSteps(ctx context.Context, task *domain.ReportTask, outcome *TaskOutcome) error {
	payload, err := s.source.FetchReport(ctx, source.ReportRequest{
		TaskID: task.ID,
		AppID:  task.AdnAppID,
		APIKey: task.AdnAPIKey,
		Day:    task.Day,
	})
	if err != nil {
		return err
	}

	s.archivePayload(ctx, task, payload)

	loaded, err := s.loader.Load(ctx, payload, task.Day, task.AdnAppID)
	outcome.RowsLoaded = loaded
	s.metrics.RawRowsLoaded.Add(float64(loaded))
	if err != nil {
		return err
	}

	mapping, err := s.resolver.Resolve(ctx, task.AdnAppID)
	if err != nil {
		return err
	}

	result, err := s.linker.Link(ctx, task, task.AdnAppID, mapping)
	outcome.Link = result
	if result != nil {
		s.metrics.LinkedRows.Add(float64(result.Linked))
		s.metrics.LinkedGroupsDropped.Add(float64(result.Dropped))
	}
	return err
}

// archivePayload uploads the raw payload when an archive is configured.
// Failures are logged and never affect the task outcome.
func (s *ReportService) archivePayload(ctx context.Context, task *domain.ReportTask, payload []byte) {
	if s.archive == nil {
		return
	}
	key := path.Join(s.archivePrefix, task.Day, task.AdnAppID, fmt.Sprintf("%d.json", task.ID))
	if err := s.archive.Upload(ctx, key, bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
		s.metrics.ArchiveFailures.Inc()
		logger.FromContext(ctx).WithError(err).WithField("key", key).Warn("Failed to archive report payload")
	}
}

// classify maps a step error to the task's final status. No-data results
// are a clean success so that days with no traffic are not retried.
func classify(err error) domain.TaskStatus {
	if err == nil {
		return domain.TaskStatusSuccess
	}
	if domain.KindOf(err) == domain.KindNoData {
		return domain.TaskStatusSuccess
	}
	return domain.TaskStatusFailed
}
