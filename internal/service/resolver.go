package service

import (
	"context"

	"github.com/timmy/adnreport/internal/domain"
	"github.com/timmy/adnreport/internal/logger"
)

// PlacementResolver builds the report-key to instance mapping for one run.
// Mappings are never cached: bindings may change between runs.
type PlacementResolver struct {
	instances InstanceStore
}

// NewPlacementResolver creates a new PlacementResolver.
func NewPlacementResolver(instances InstanceStore) *PlacementResolver {
	return &PlacementResolver{instances: instances}
}

// Resolve maps placement keys and app ids of appKey's instances to their
// bindings. Current bindings are inserted first; the previous bindings of
// the same instances then fill only keys that are still unmapped, so a report
// for a day before an instance was repointed still resolves.
func (r *PlacementResolver) Resolve(ctx context.Context, appKey string) (*domain.PlacementMapping, error) {
	current, err := r.instances.ListByAdnAppKey(ctx, appKey)
	if err != nil {
		return nil, domain.WrapTaskError(domain.KindStoreFailed, err, "load instances error")
	}

	mapping := domain.NewPlacementMapping()
	addBindings(mapping, current)

	ids := instanceIDs(current)
	history, err := r.instances.ListHistoryByInstanceIDs(ctx, ids)
	if err != nil {
		return nil, domain.WrapTaskError(domain.KindStoreFailed, err, "load instance history error")
	}
	before := mapping.Len()
	addBindings(mapping, history)

	logger.CtxDebug(ctx, "placement mapping built: instances=%d, keys=%d, historical_keys=%d",
		len(ids), mapping.Len(), mapping.Len()-before)

	return mapping, nil
}

// addBindings inserts placement keys first, then app ids, keeping any key
// that is already mapped.
func addBindings(mapping *domain.PlacementMapping, bindings []domain.InstanceBinding) {
	for _, b := range bindings {
		mapping.PutIfAbsent(b.PlacementKey, b)
	}
	for _, b := range bindings {
		mapping.PutIfAbsent(b.AppID, b)
	}
}

func instanceIDs(bindings []domain.InstanceBinding) []int64 {
	seen := make(map[int64]struct{}, len(bindings))
	ids := make([]int64, 0, len(bindings))
	for _, b := range bindings {
		if _, ok := seen[b.InstanceID]; ok {
			continue
		}
		seen[b.InstanceID] = struct{}{}
		ids = append(ids, b.InstanceID)
	}
	return ids
}
