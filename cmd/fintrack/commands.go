package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Materialize automations periodically without serving HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.NewApp()
			if err != nil {
				return err
			}
			defer app.Close()

			scheduler := services.NewAutomationScheduler(app.Materializer, services.AutomationSchedulerConfig{
				Interval:   app.Config.AutomationInterval,
				RunOnStart: true,
			})

			ctx, done := cli.GracefulShutdown(app.Logger, shutdownTimeout, func(ctx context.Context) {
				if err := scheduler.Stop(ctx); err != nil {
					app.Logger.Warn("Error stopping automation scheduler", "error", err)
				}
			})

			if err := scheduler.Start(ctx); err != nil {
				return err
			}
			app.Logger.WithComponent(applog.ComponentScheduler).Info("Automation worker started",
				"interval", app.Config.AutomationInterval.String())

			<-done
			return nil
		},
	}
}

func newAutomationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "automations",
		Short: "Manage recurring automations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Materialize every automation up to today and print the counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.NewApp()
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Materializer.Run(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created=%d existing=%d skipped=%d\n", res.Created, res.Existing, res.Skipped)
			return nil
		},
	})
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.LoadEnvFile()
			cfg, err := cli.LoadAndValidateConfig()
			if err != nil {
				return err
			}
			logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat).WithComponent(applog.ComponentStorage)

			version, err := storage.RunMigrations(cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			logger.Info("Migrations applied", "db_path", cfg.SQLiteDBPath, "version", version)
			return nil
		},
	}
}

// newEventsCmd tails the ledger event queue and logs every message.
func newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Log ledger events published to the message broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.NewApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if app.Publisher == nil {
				return errors.New("AMQP_URL is not configured or the broker is unreachable")
			}

			logger := app.Logger.WithComponent(applog.ComponentAMQP)
			ctx, done := cli.GracefulShutdown(app.Logger, shutdownTimeout, nil)

			err = app.Publisher.Consume(ctx, func(ev *amqp.LedgerEvent) error {
				fields := applog.NewFields().
					WithOperation(string(ev.Type)).
					WithTransaction(ev.TransactionID, ev.Amount)
				if ev.TransactionID == 0 {
					fields["created"] = ev.Created
					fields["skipped"] = ev.Skipped
				} else {
					fields["date"] = ev.Date
					fields["category"] = ev.Category
				}
				logger.Info("Ledger event", fields.ToSlice()...)
				return nil
			})
			if ctx.Err() != nil {
				<-done
				return nil
			}
			return err
		},
	}
}
