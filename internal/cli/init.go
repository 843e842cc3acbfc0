// Package cli provides the process bootstrap shared by the fintrack
// subcommands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/rates"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(level, format string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(level),
		Format:    format,
		Component: applog.ComponentApp,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitSQLite opens the ledger database and applies pending migrations.
func InitSQLite(logger *applog.Logger, dbPath string) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		return nil, err
	}
	return repo, nil
}

// InitPublisher returns the AMQP event publisher, or nil when AMQP is not
// configured or unreachable. Events are optional, so a broker outage only
// logs a warning.
func InitPublisher(logger *applog.Logger, cfg *config.Config) *amqp.Client {
	if !cfg.AMQPEnabled() {
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.WithComponent(applog.ComponentAMQP).Warn("AMQP unavailable, ledger events disabled", "error", err)
		return nil
	}
	return client
}

// App bundles the services every command builds on top of the repository.
type App struct {
	Config       *config.Config
	Logger       *applog.Logger
	Repo         *storage.SQLiteRepository
	Publisher    *amqp.Client
	Rates        *rates.Service
	Categorizer  *services.Categorizer
	Categories   *services.CategoryService
	Automations  *services.AutomationService
	Materializer *services.Materializer
	Transactions *services.TransactionService
	Reports      *services.ReportService
}

// NewApp loads configuration, opens storage and wires the services.
func NewApp() (*App, error) {
	LoadEnvFile()
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}
	logger := SetupLogger(cfg.LogLevel, cfg.LogFormat)

	repo, err := InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		Logger: logger,
		Repo:   repo,
		Rates: rates.New(rates.Config{
			CacheFile: cfg.RatesCacheFile,
			TTL:       cfg.RatesTTL,
			Timeout:   cfg.RatesTimeout,
		}),
	}

	var publisher services.EventPublisher
	if client := InitPublisher(logger, cfg); client != nil {
		app.Publisher = client
		publisher = client
	}

	app.Categorizer = services.NewCategorizer(repo)
	app.Categories = services.NewCategoryService(repo)
	app.Automations = services.NewAutomationService(repo, app.Categorizer)
	app.Materializer = services.NewMaterializer(repo, app.Categorizer, publisher)
	app.Transactions = services.NewTransactionService(repo, app.Categorizer, app.Rates, publisher, cfg.MainCurrency)
	app.Reports = services.NewReportService(repo)
	return app, nil
}

// Close releases the broker connection and the database.
func (a *App) Close() error {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Warn("Error closing AMQP client", "error", err)
		}
	}
	if err := a.Repo.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs once the signal arrives, bounded by timeout.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}
