package repository

import (
	"context"
	"fmt"

	"github.com/timmy/adnreport/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InstanceRepository reads instance-to-placement bindings.
type InstanceRepository struct {
	db *gorm.DB
}

// NewInstanceRepository creates a new InstanceRepository.
func NewInstanceRepository(db *gorm.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

// ListByAdnAppKey returns the current bindings of every instance under the
// given network app key, ordered by instance ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - adnAppKey: network app key.
// Returns:
//   - []domain.InstanceBinding: current bindings.
//   - error: non-nil if the query fails.
func (r *InstanceRepository) ListByAdnAppKey(ctx context.Context, adnAppKey string) ([]domain.InstanceBinding, error) {
	var instances []domain.Instance
	if err := r.db.WithContext(ctx).
		Where("adn_app_key = ?", adnAppKey).
		Order("id ASC").
		Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	bindings := make([]domain.InstanceBinding, 0, len(instances))
	for i := range instances {
		bindings = append(bindings, instances[i].Binding())
	}
	return bindings, nil
}

// ListHistoryByInstanceIDs returns the recorded previous bindings of the
// given instances, most recent change first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ids: instance IDs; an empty slice returns no rows.
// Returns:
//   - []domain.InstanceBinding: historical bindings.
//   - error: non-nil if the query fails.
func (r *InstanceRepository) ListHistoryByInstanceIDs(ctx context.Context, ids []int64) ([]domain.InstanceBinding, error) {
	if len(ids) == 0 {
		return []domain.InstanceBinding{}, nil
	}

	var history []domain.InstanceHistory
	if err := r.db.WithContext(ctx).
		Where("instance_id IN ?", ids).
		Order("changed_at DESC").
		Order("id DESC").
		Find(&history).Error; err != nil {
		return nil, fmt.Errorf("failed to list instance history: %w", err)
	}

	bindings := make([]domain.InstanceBinding, 0, len(history))
	for i := range history {
		bindings = append(bindings, history[i].Binding())
	}
	return bindings, nil
}

// Save creates or replaces an instance row. Instances are owned by the
// publisher platform; this exists for tooling and tests.
func (r *InstanceRepository) Save(ctx context.Context, instance *domain.Instance) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(instance).Error
}

// Rebind changes an instance's network keys and records the previous
// binding in instance_histories, in one transaction.
// The publisher platform performs rebinds in production; this mirrors its
// write for tooling and tests.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - instanceID: instance to change.
//   - appID: new network app id.
//   - placementKey: new network placement key.
// Returns:
//   - error: non-nil if the instance is missing or a write fails.
func (r *InstanceRepository) Rebind(ctx context.Context, instanceID int64, appID, placementKey string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current domain.Instance
		if err := tx.First(&current, "id = ?", instanceID).Error; err != nil {
			return fmt.Errorf("failed to load instance %d: %w", instanceID, err)
		}

		history := domain.InstanceHistory{
			InstanceID:   current.ID,
			PubAppID:     current.PubAppID,
			PlacementID:  current.PlacementID,
			AdnID:        current.AdnID,
			AdnAppKey:    current.AdnAppKey,
			AppID:        current.AppID,
			PlacementKey: current.PlacementKey,
			ChangedAt:    tx.NowFunc(),
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to record instance history: %w", err)
		}

		return tx.Model(&current).Updates(map[string]interface{}{
			"app_id":        appID,
			"placement_key": placementKey,
		}).Error
	})
}
