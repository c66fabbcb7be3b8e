package repository

import (
	"context"
	"fmt"

	"github.com/timmy/adnreport/internal/domain"
	"gorm.io/gorm"
)

// aggregateSQL groups a raw partition by hour prefix and data key. The data
// key is the zone id, or the package name for rows without a zone.
const aggregateSQL = `
SELECT day,
       SUBSTR(hour, 1, 2) AS hour,
       country,
       platform,
       CASE WHEN zone_id IS NULL OR zone_id = '' THEN package_name ELSE zone_id END AS data_key,
       COALESCE(SUM(impressions), 0) AS impressions,
       COALESCE(SUM(clicks), 0) AS clicks,
       COALESCE(SUM(revenue), 0) AS revenue
FROM report_applovin
WHERE day = ? AND sdk_key = ?
GROUP BY day,
         SUBSTR(hour, 1, 2),
         country,
         platform,
         CASE WHEN zone_id IS NULL OR zone_id = '' THEN package_name ELSE zone_id END
ORDER BY 2, 3, 4, 5`

// RawReportRepository handles raw network report rows.
type RawReportRepository struct {
	db *gorm.DB
}

// NewRawReportRepository creates a new RawReportRepository.
func NewRawReportRepository(db *gorm.DB) *RawReportRepository {
	return &RawReportRepository{db: db}
}

// DeletePartition removes every row of the (day, sdkKey) partition.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - day: report day.
//   - sdkKey: network key the rows were loaded for.
// Returns:
//   - int64: number of rows removed.
//   - error: non-nil if the delete fails.
func (r *RawReportRepository) DeletePartition(ctx context.Context, day, sdkKey string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("day = ? AND sdk_key = ?", day, sdkKey).
		Delete(&domain.RawReportRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete report_applovin partition: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// InsertBatch inserts rows as a single multi-row statement.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - rows: rows to insert; an empty slice is a no-op.
// Returns:
//   - error: non-nil if the insert fails.
func (r *RawReportRepository) InsertBatch(ctx context.Context, rows []domain.RawReportRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert report_applovin batch: %w", err)
	}
	return nil
}

// CountPartition counts the rows of the (day, sdkKey) partition.
// Used by tooling and tests to inspect a partition.
func (r *RawReportRepository) CountPartition(ctx context.Context, day, sdkKey string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.RawReportRow{}).
		Where("day = ? AND sdk_key = ?", day, sdkKey).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListPartition returns the rows of the (day, sdkKey) partition in insertion order.
// Used by tooling and tests to inspect a partition.
func (r *RawReportRepository) ListPartition(ctx context.Context, day, sdkKey string) ([]domain.RawReportRow, error) {
	var rows []domain.RawReportRow
	if err := r.db.WithContext(ctx).
		Where("day = ? AND sdk_key = ?", day, sdkKey).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Aggregate sums impressions, clicks and revenue of the (day, sdkKey)
// partition per (day, hour, country, platform, data key).
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - day: report day.
//   - sdkKey: network key the rows were loaded for.
// Returns:
//   - []domain.ReportAggregate: one entry per group; empty when the partition is empty.
//   - error: non-nil if the query fails.
func (r *RawReportRepository) Aggregate(ctx context.Context, day, sdkKey string) ([]domain.ReportAggregate, error) {
	var groups []domain.ReportAggregate
	if err := r.db.WithContext(ctx).Raw(aggregateSQL, day, sdkKey).Scan(&groups).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate report_applovin: %w", err)
	}
	return groups, nil
}
