package service

import (
	"context"
	"time"

	"github.com/timmy/adnreport/internal/domain"
	"github.com/timmy/adnreport/internal/logger"
)

// DefaultBatchSize bounds the rows written per insert statement.
const DefaultBatchSize = 1000

// ReportLoader replaces a raw report partition with a freshly downloaded payload.
type ReportLoader struct {
	store     RawReportStore
	batchSize int
}

// NewReportLoader creates a loader writing batches of at most batchSize rows.
// A non-positive batchSize uses DefaultBatchSize.
func NewReportLoader(store RawReportStore, batchSize int) *ReportLoader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ReportLoader{store: store, batchSize: batchSize}
}

// Load deletes the (day, appID) partition, then normalizes payload and
// inserts its rows in batches.
// Batches written before a failure are not rolled back; the next successful
// run replaces the whole partition again.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - payload: raw report response body.
//   - day: report day.
//   - appID: network key scoping the partition.
// Returns:
//   - int: rows inserted.
//   - error: a *domain.TaskError; KindNoData when results is blank.
func (l *ReportLoader) Load(ctx context.Context, payload []byte, day, appID string) (int, error) {
	start := time.Now()

	deleted, err := l.store.DeletePartition(ctx, day, appID)
	if err != nil {
		return 0, domain.WrapTaskError(domain.KindStoreFailed, err, "delete report_applovin error")
	}

	rows, err := Normalize(payload, appID)
	if err != nil {
		return 0, err
	}

	inserted := 0
	batches := 0
	for lo := 0; lo < len(rows); lo += l.batchSize {
		hi := min(lo+l.batchSize, len(rows))
		if err := l.store.InsertBatch(ctx, rows[lo:hi]); err != nil {
			return inserted, domain.WrapTaskError(domain.KindStoreFailed, err, "insert report_applovin error")
		}
		inserted += hi - lo
		batches++
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldCount:      inserted,
	}).Info(ctx, "[AppLovin] jsonDataImportDatabase end, replaced=%d, batches=%d", deleted, batches)

	return inserted, nil
}
