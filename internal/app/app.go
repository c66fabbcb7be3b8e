// Package app wires configuration into the report connector's components.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/timmy/adnreport/internal/config"
	"github.com/timmy/adnreport/internal/logger"
	"github.com/timmy/adnreport/internal/metrics"
	"github.com/timmy/adnreport/internal/repository"
	"github.com/timmy/adnreport/internal/service"
	"github.com/timmy/adnreport/internal/source/applovin"
	"github.com/timmy/adnreport/internal/storage"
	"gorm.io/gorm"
)

// App holds the wired components shared by the binaries.
type App struct {
	Config     *config.Config
	DB         *gorm.DB
	Tasks      *repository.TaskRepository
	Report     *service.ReportService
	Dispatcher *service.Dispatcher
	Metrics    *metrics.Metrics
	Logger     *logger.Logger
}

// New opens the database and builds the pipeline. reg receives the
// connector's metrics.
func New(cfg *config.Config, log *logger.Logger, reg prometheus.Registerer) (*App, error) {
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	archive, err := storage.NewArchive(cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize archive: %w", err)
	}
	if archive != nil {
		log.WithFields(logger.Fields{
			"bucket": cfg.Archive.Bucket,
			"prefix": cfg.Archive.Prefix,
		}).Info("Payload archive enabled")
	}

	m := metrics.New(reg)
	tasks := repository.NewTaskRepository(db)
	raw := repository.NewRawReportRepository(db)

	src := applovin.NewAdapter(applovin.Config{
		Endpoint:  cfg.Report.Endpoint,
		Timeout:   cfg.Report.Timeout,
		HTTPProxy: cfg.Report.HTTPProxy,
	}, tasks)

	report := service.NewReportService(
		tasks,
		src,
		service.NewReportLoader(raw, cfg.Report.BatchSize),
		service.NewPlacementResolver(repository.NewInstanceRepository(db)),
		service.NewReportLinker(raw, repository.NewLinkedReportRepository(db), cfg.Report.AdnID),
		archive,
		m,
		&service.ReportConfig{
			EscalateAfterRuns: cfg.Report.EscalateAfterRuns,
			ArchivePrefix:     cfg.Archive.Prefix,
			RunningTimeout:    cfg.Worker.RunningTimeout,
		},
	)

	dispatcher := service.NewDispatcher(tasks, report, m, log, &service.DispatcherConfig{
		Workers:        cfg.Worker.Concurrency,
		PollLimit:      cfg.Worker.PollLimit,
		MaxRunCount:    cfg.Worker.MaxRunCount,
		RunningTimeout: cfg.Worker.RunningTimeout,
		Schedule:       cfg.Worker.Schedule,
	})

	return &App{
		Config:     cfg,
		DB:         db,
		Tasks:      tasks,
		Report:     report,
		Dispatcher: dispatcher,
		Metrics:    m,
		Logger:     log,
	}, nil
}

// RunTask executes a single task by ID.
func (a *App) RunTask(ctx context.Context, taskID int64) (*service.TaskOutcome, error) {
	return a.Report.ExecuteByID(logger.SetComponent(a.Logger.WithContext(ctx), "cli"), taskID)
}

// Close releases the database connection pool.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
