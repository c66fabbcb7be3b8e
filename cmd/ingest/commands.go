package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/timmy/adnreport/internal/app"
	"github.com/timmy/adnreport/internal/config"
	"github.com/timmy/adnreport/internal/domain"
	"github.com/timmy/adnreport/internal/logger"
)

// newRootCmd returns the ingest command tree.
func newRootCmd(log *logger.Logger) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "ingest",
		Short:         "Download and link AppLovin revenue reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	build := func() (*app.App, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return app.New(cfg, log, prometheus.DefaultRegisterer)
	}

	root.AddCommand(
		newRunCmd(log, build),
		newDispatchCmd(log, build),
		newScheduleCmd(log, build),
	)
	return root
}

// newRunCmd creates the run command.
func newRunCmd(log *logger.Logger, build func() (*app.App, error)) *cobra.Command {
	var taskID int64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one report task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskID <= 0 {
				return fmt.Errorf("--task-id is required")
			}
			a, err := build()
			if err != nil {
				log.WithError(err).Error("Failed to initialize")
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			outcome, err := a.RunTask(ctx, taskID)
			if err != nil {
				log.WithError(err).WithField("task_id", taskID).Error("Failed to load task")
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "task=%d run=%s status=%s rows=%d duration=%s msg=%q\n",
				outcome.TaskID, outcome.RunID, outcome.Status, outcome.RowsLoaded, outcome.Duration, outcome.Message())
			if outcome.Skipped || outcome.Status == domain.TaskStatusFailed {
				return fmt.Errorf("task %d did not succeed", taskID)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&taskID, "task-id", 0, "ID of the report task to execute")
	return cmd
}

// newDispatchCmd creates the dispatch command.
func newDispatchCmd(log *logger.Logger, build func() (*app.App, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Execute every runnable task once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build()
			if err != nil {
				log.WithError(err).Error("Failed to initialize")
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stats, err := a.Dispatcher.DispatchOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "polled=%d succeeded=%d failed=%d skipped=%d\n",
				stats.Polled, stats.Succeeded, stats.Failed, stats.Skipped)
			return nil
		},
	}
}

// newScheduleCmd creates the schedule command.
func newScheduleCmd(log *logger.Logger, build func() (*app.App, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Dispatch runnable tasks on the configured schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build()
			if err != nil {
				log.WithError(err).Error("Failed to initialize")
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.Dispatcher.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()

			log.Info("Shutting down scheduler...")
			a.Dispatcher.Stop()
			return nil
		},
	}
}
