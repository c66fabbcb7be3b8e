package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/adnreport/internal/config"
	"github.com/timmy/adnreport/internal/domain"
	"github.com/timmy/adnreport/internal/repository"
	"github.com/timmy/adnreport/internal/source/applovin"
	"gorm.io/gorm"
)

const scenarioPayload = `{"results":"[{\"day\":\"2024-01-01\",\"hour\":\"05\",\"country\":\"US\",\"platform\":\"android\",\"application\":\"App\",\"package_name\":\"com.app\",\"zone_id\":\"z1\",\"impressions\":100,\"clicks\":5,\"revenue\":2.5}]"}`

type pipeline struct {
	db        *gorm.DB
	tasks     *repository.TaskRepository
	raw       *repository.RawReportRepository
	linked    *repository.LinkedReportRepository
	instances *repository.InstanceRepository
	svc       *ReportService
}

func newPipeline(t *testing.T, endpoint string) *pipeline {
	t.Helper()
	return newPipelineWithConfig(t, endpoint, nil)
}

func newPipelineWithConfig(t *testing.T, endpoint string, cfg *ReportConfig) *pipeline {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         ":memory:",
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	p := &pipeline{
		db:        db,
		tasks:     repository.NewTaskRepository(db),
		raw:       repository.NewRawReportRepository(db),
		linked:    repository.NewLinkedReportRepository(db),
		instances: repository.NewInstanceRepository(db),
	}
	src := applovin.NewAdapter(applovin.Config{Endpoint: endpoint, Timeout: 5 * time.Second}, p.tasks)
	p.svc = NewReportService(p.tasks, src,
		NewReportLoader(p.raw, DefaultBatchSize),
		NewPlacementResolver(p.instances),
		NewReportLinker(p.raw, p.linked, 8),
		nil, nil, cfg)
	return p
}

func newReportServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPipeline_EndToEnd(t *testing.T) {
	ctx := context.Background()
	srv := newReportServer(t, scenarioPayload)
	p := newPipeline(t, srv.URL)

	require.NoError(t, p.instances.Save(ctx, &domain.Instance{ID: 42, PubAppID: 1, PlacementID: 2, AdnID: 8, AdnAppKey: "sdk", PlacementKey: "z1"}))
	task := &domain.ReportTask{AdnID: 8, AdnAppID: "sdk", AdnAPIKey: "key", Day: "2024-01-01"}
	require.NoError(t, p.tasks.Create(ctx, task))

	outcome, err := p.svc.ExecuteByID(ctx, task.ID)
	require.NoError(t, err)
	require.NoError(t, outcome.Err)
	assert.Equal(t, domain.TaskStatusSuccess, outcome.Status)

	rows, err := p.linked.ListPartition(ctx, "2024-01-01", "sdk")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "2024-01-01", row.Day)
	assert.Equal(t, "05", row.Hour)
	assert.Equal(t, "US", row.Country)
	assert.Equal(t, "android", row.Platform)
	assert.Equal(t, int64(42), row.InstanceID)
	assert.Equal(t, int64(100), row.Impressions)
	assert.Equal(t, int64(5), row.Clicks)
	assert.True(t, row.Revenue.Equal(decimal.RequireFromString("2.5")), "revenue %s", row.Revenue)
	assert.Equal(t, task.ID, row.TaskID)

	stored, err := p.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusSuccess, stored.Status)
	assert.Equal(t, 1, stored.RunCount)
	assert.Contains(t, stored.ReqURL, "start=2024-01-01")
}

func TestPipeline_Idempotent(t *testing.T) {
	ctx := context.Background()
	srv := newReportServer(t, scenarioPayload)
	p := newPipeline(t, srv.URL)

	require.NoError(t, p.instances.Save(ctx, &domain.Instance{ID: 42, AdnAppKey: "sdk", PlacementKey: "z1"}))
	task := &domain.ReportTask{AdnAppID: "sdk", Day: "2024-01-01"}
	require.NoError(t, p.tasks.Create(ctx, task))

	first := p.svc.ExecuteTask(ctx, task)
	require.Equal(t, domain.TaskStatusSuccess, first.Status)
	rawFirst, err := p.raw.ListPartition(ctx, "2024-01-01", "sdk")
	require.NoError(t, err)

	second := p.svc.ExecuteTask(ctx, task)
	require.Equal(t, domain.TaskStatusSuccess, second.Status)
	rawSecond, err := p.raw.ListPartition(ctx, "2024-01-01", "sdk")
	require.NoError(t, err)

	require.Len(t, rawSecond, len(rawFirst))
	for i := range rawFirst {
		a, b := rawFirst[i], rawSecond[i]
		a.ID, b.ID = 0, 0
		assert.Equal(t, a, b)
	}

	linked, err := p.linked.ListPartition(ctx, "2024-01-01", "sdk")
	require.NoError(t, err)
	assert.Len(t, linked, 1)
}

func TestPipeline_HistoricalBinding(t *testing.T) {
	ctx := context.Background()
	srv := newReportServer(t, scenarioPayload)
	p := newPipeline(t, srv.URL)

	require.NoError(t, p.instances.Save(ctx, &domain.Instance{ID: 42, AdnAppKey: "sdk", PlacementKey: "z1"}))
	require.NoError(t, p.instances.Rebind(ctx, 42, "", "z2"))

	task := &domain.ReportTask{AdnAppID: "sdk", Day: "2024-01-01"}
	require.NoError(t, p.tasks.Create(ctx, task))

	outcome := p.svc.ExecuteTask(ctx, task)
	require.Equal(t, domain.TaskStatusSuccess, outcome.Status)
	require.NotNil(t, outcome.Link)
	assert.Zero(t, outcome.Link.Dropped)

	rows, err := p.linked.ListPartition(ctx, "2024-01-01", "sdk")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(42), rows[0].InstanceID)
}

func TestPipeline_BlankAppIDsDoNotStarveDispatch(t *testing.T) {
	ctx := context.Background()
	srv := newReportServer(t, scenarioPayload)
	p := newPipeline(t, srv.URL)

	require.NoError(t, p.instances.Save(ctx, &domain.Instance{ID: 42, AdnAppKey: "sdk", PlacementKey: "z1"}))
	for i := 0; i < 3; i++ {
		require.NoError(t, p.tasks.Create(ctx, &domain.ReportTask{AdnAppID: "", Day: "2023-12-01"}))
	}
	valid := &domain.ReportTask{AdnAppID: "sdk", Day: "2024-01-01"}
	require.NoError(t, p.tasks.Create(ctx, valid))

	d := NewDispatcher(p.tasks, p.svc, nil, nil, &DispatcherConfig{Workers: 1, PollLimit: 3})
	stats, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Polled)
	assert.Equal(t, int64(1), stats.Succeeded)

	stored, err := p.tasks.GetByID(ctx, valid.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusSuccess, stored.Status)
	assert.Equal(t, 1, stored.RunCount)
}

func TestPipeline_HeldTaskIsNotRunTwice(t *testing.T) {
	ctx := context.Background()
	srv := newReportServer(t, scenarioPayload)
	p := newPipelineWithConfig(t, srv.URL, &ReportConfig{RunningTimeout: time.Hour})

	task := &domain.ReportTask{AdnAppID: "sdk", Day: "2024-01-01"}
	require.NoError(t, p.tasks.Create(ctx, task))
	require.NoError(t, p.svc.ClaimTask(ctx, task))

	outcome := p.svc.ExecuteTask(ctx, task)
	assert.True(t, outcome.Skipped)
	assert.ErrorIs(t, outcome.Err, ErrTaskRunning)

	d := NewDispatcher(p.tasks, p.svc, nil, nil, &DispatcherConfig{RunningTimeout: time.Hour})
	stats, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Polled)

	// Simulate a crashed run: the lease has expired.
	require.NoError(t, p.db.Model(&domain.ReportTask{}).
		Where("id = ?", task.ID).
		UpdateColumn("updated_at", time.Now().Add(-2*time.Hour)).Error)

	stats, err = d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Succeeded)

	stored, err := p.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusSuccess, stored.Status)
}
