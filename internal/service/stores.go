package service

import (
	"context"
	"time"

	"github.com/timmy/adnreport/internal/domain"
)

// TaskStore is the task persistence used by the orchestrator and dispatcher.
// Implemented by repository.TaskRepository.
type TaskStore interface {
	GetByID(ctx context.Context, id int64) (*domain.ReportTask, error)
	Claim(ctx context.Context, id int64, staleBefore time.Time) (bool, error)
	Finish(ctx context.Context, id int64, status domain.TaskStatus, msg string, durationMs int64) error
	ListRunnable(ctx context.Context, limit, maxRunCount int, staleBefore time.Time) ([]domain.ReportTask, error)
}

// RawReportStore is the raw report persistence used by the loader and linker.
// Implemented by repository.RawReportRepository.
type RawReportStore interface {
	DeletePartition(ctx context.Context, day, sdkKey string) (int64, error)
	InsertBatch(ctx context.Context, rows []domain.RawReportRow) error
	Aggregate(ctx context.Context, day, sdkKey string) ([]domain.ReportAggregate, error)
}

// InstanceStore reads current and historical instance bindings.
// Implemented by repository.InstanceRepository.
type InstanceStore interface {
	ListByAdnAppKey(ctx context.Context, adnAppKey string) ([]domain.InstanceBinding, error)
	ListHistoryByInstanceIDs(ctx context.Context, ids []int64) ([]domain.InstanceBinding, error)
}

// LinkedReportStore persists linked rows.
// Implemented by repository.LinkedReportRepository.
type LinkedReportStore interface {
	ReplacePartition(ctx context.Context, day string, adnID int, adnAppKey string, rows []domain.LinkedReportRow) error
}
