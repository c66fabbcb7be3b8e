package repository

import (
	"context"
	"fmt"

	"github.com/timmy/adnreport/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LinkedReportRepository handles instance-resolved report rows.
type LinkedReportRepository struct {
	db *gorm.DB
}

// NewLinkedReportRepository creates a new LinkedReportRepository.
func NewLinkedReportRepository(db *gorm.DB) *LinkedReportRepository {
	return &LinkedReportRepository{db: db}
}

// ReplacePartition swaps the linked rows of (day, adnID, adnAppKey) for rows
// in one transaction. Rows are upserted on their group key, so a group that
// moved from another partition is taken over rather than duplicated.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - day: report day.
//   - adnID: network ID.
//   - adnAppKey: network app key.
//   - rows: resolved rows; may be empty, which just clears the partition.
// Returns:
//   - error: non-nil if the delete or upsert fails.
func (r *LinkedReportRepository) ReplacePartition(ctx context.Context, day string, adnID int, adnAppKey string, rows []domain.LinkedReportRow) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("day = ? AND adn_id = ? AND adn_app_key = ?", day, adnID, adnAppKey).
			Delete(&domain.LinkedReportRow{}).Error; err != nil {
			return fmt.Errorf("failed to delete linked partition: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "day"}, {Name: "hour"}, {Name: "country"}, {Name: "platform"}, {Name: "instance_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"adn_id", "adn_app_key", "pub_app_id", "placement_id",
				"impressions", "clicks", "revenue", "task_id", "updated_at",
			}),
		}).Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to upsert linked rows: %w", err)
		}
		return nil
	})
}

// ListPartition returns the linked rows of (day, adnAppKey) ordered by group key.
// Used by tooling and tests to inspect a partition.
func (r *LinkedReportRepository) ListPartition(ctx context.Context, day, adnAppKey string) ([]domain.LinkedReportRow, error) {
	var rows []domain.LinkedReportRow
	if err := r.db.WithContext(ctx).
		Where("day = ? AND adn_app_key = ?", day, adnAppKey).
		Order("hour ASC").
		Order("country ASC").
		Order("platform ASC").
		Order("instance_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
