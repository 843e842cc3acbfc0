package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/cache"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/syncjobs"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic automation run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	app, err := cli.NewApp()
	if err != nil {
		return err
	}
	defer app.Close()

	logger := app.Logger
	cfg := app.Config

	jobs, err := syncjobs.NewRegistry(syncjobs.Config{
		ScriptsDir: cfg.SyncScriptsDir,
		JobsDir:    cfg.SyncJobsDir,
	}, syncjobs.NewMemoryStore())
	if err != nil {
		return err
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)

	// Pull fresh data before automations run against it.
	if cfg.SyncStartupScript != "" {
		syncLog := logger.WithComponent(applog.ComponentSyncJobs)
		job, err := jobs.Run(ctx, cfg.SyncStartupScript, nil)
		switch {
		case err != nil:
			syncLog.Warn("Startup sync skipped, using local database", "script", cfg.SyncStartupScript, applog.FieldError, err)
		case job.Error != "" || job.ReturnCode == nil || *job.ReturnCode != 0:
			syncLog.Warn("Startup sync failed, using local database", applog.FieldJobID, job.ID, applog.FieldError, job.Error)
		default:
			syncLog.Info("Startup sync finished", applog.FieldJobID, job.ID)
		}
	}

	autoLog := logger.WithComponent(applog.ComponentAutomations).With(applog.FieldOperation, applog.OpStartup)
	if res, err := app.Materializer.Run(ctx, time.Now()); err != nil {
		autoLog.Error("Automations update failed", applog.FieldError, err)
	} else {
		autoLog.Info("Automations materialized", "created", res.Created, "existing", res.Existing, "skipped", res.Skipped)
	}

	caches := cache.NewManager()
	caches.Register(app.Rates)
	caches.StartCleanup(10 * time.Minute)
	defer caches.Stop()

	scheduler := services.NewAutomationScheduler(app.Materializer, services.AutomationSchedulerConfig{
		Interval:   cfg.AutomationInterval,
		RunOnStart: false,
	})

	srv := apphttp.NewServer(net.JoinHostPort("", cfg.Port), apphttp.Services{
		Reports:      app.Reports,
		Transactions: app.Transactions,
		Automations:  app.Automations,
		Materializer: app.Materializer,
		Categories:   app.Categories,
		Jobs:         jobs,
		Health:       app.Repo,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := scheduler.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return scheduler.Stop(stopCtx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", applog.FieldOperation, applog.OpShutdown, applog.FieldError, err)
		}
		jobs.Wait()
		return nil
	})

	err = g.Wait()
	if ctx.Err() != nil {
		<-done
	}
	return err
}
