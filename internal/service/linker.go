package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/timmy/adnreport/internal/domain"
	"github.com/timmy/adnreport/internal/logger"
)

// revenuePlaces is the precision linked revenue is stored with.
const revenuePlaces = 6

// LinkResult summarizes one linking pass.
type LinkResult struct {
	Groups      int      // aggregated raw groups
	Linked      int      // linked rows written
	Dropped     int      // groups whose data key matched no instance
	DroppedKeys []string // distinct unmatched data keys, in first-seen order
}

// ReportLinker turns a raw partition into instance-resolved linked rows.
type ReportLinker struct {
	raw    RawReportStore
	linked LinkedReportStore
	adnID  int
}

// NewReportLinker creates a new ReportLinker. adnID is used for tasks that
// carry no network ID of their own.
func NewReportLinker(raw RawReportStore, linked LinkedReportStore, adnID int) *ReportLinker {
	return &ReportLinker{raw: raw, linked: linked, adnID: adnID}
}

// Link aggregates the raw partition of (task.Day, appKey), resolves each
// group through mapping and replaces the linked partition with the result.
// Groups without an instance are dropped and counted. Groups that resolve to
// the same instance within an hour/country/platform are summed.
// Returns a KindNoData error when the raw partition has no groups.
func (l *ReportLinker) Link(ctx context.Context, task *domain.ReportTask, appKey string, mapping *domain.PlacementMapping) (*LinkResult, error) {
	start := time.Now()

	groups, err := l.raw.Aggregate(ctx, task.Day, appKey)
	if err != nil {
		return nil, domain.WrapTaskError(domain.KindStoreFailed, err, "savePrepareReportData error")
	}
	if len(groups) == 0 {
		return &LinkResult{}, domain.NewTaskError(domain.KindNoData, "data is empty")
	}

	adnID := task.AdnID
	if adnID == 0 {
		adnID = l.adnID
	}

	result := &LinkResult{Groups: len(groups)}
	dropped := make(map[string]struct{})
	byKey := make(map[domain.GroupKey]int)
	rows := make([]domain.LinkedReportRow, 0, len(groups))

	for _, g := range groups {
		b, ok := mapping.Lookup(g.DataKey)
		if !ok {
			result.Dropped++
			if _, seen := dropped[g.DataKey]; !seen {
				dropped[g.DataKey] = struct{}{}
				result.DroppedKeys = append(result.DroppedKeys, g.DataKey)
			}
			continue
		}

		revenue := decimal.NewFromFloat(g.Revenue).Round(revenuePlaces)
		key := domain.GroupKey{
			Day:        g.Day,
			Hour:       g.Hour,
			Country:    g.Country,
			Platform:   g.Platform,
			InstanceID: b.InstanceID,
		}
		if i, ok := byKey[key]; ok {
			rows[i].Impressions += g.Impressions
			rows[i].Clicks += g.Clicks
			rows[i].Revenue = rows[i].Revenue.Add(revenue)
			continue
		}

		byKey[key] = len(rows)
		rows = append(rows, domain.LinkedReportRow{
			Day:         g.Day,
			Hour:        g.Hour,
			Country:     g.Country,
			Platform:    g.Platform,
			InstanceID:  b.InstanceID,
			AdnID:       adnID,
			AdnAppKey:   appKey,
			PubAppID:    b.PubAppID,
			PlacementID: b.PlacementID,
			Impressions: g.Impressions,
			Clicks:      g.Clicks,
			Revenue:     revenue,
			TaskID:      task.ID,
		})
	}

	if err := l.linked.ReplacePartition(ctx, task.Day, adnID, appKey, rows); err != nil {
		return result, domain.WrapTaskError(domain.KindStoreFailed, err, "save linked report error")
	}
	result.Linked = len(rows)

	entry := logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldCount:      result.Linked,
		logger.FieldDropped:    result.Dropped,
	})
	if result.Dropped > 0 {
		entry.Warn(ctx, "[AppLovin] report groups without instance dropped: groups=%d, keys=%v", result.Groups, result.DroppedKeys)
	} else {
		entry.Info(ctx, "[AppLovin] report linked: groups=%d", result.Groups)
	}

	return result, nil
}
