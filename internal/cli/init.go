// Package cli holds the fintrack command tree and the start-up helpers shared
// by cmd/fintrack, cmd/fintrack-calc and cmd/fintrack-worker.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, out io.Writer) *applog.Logger {
	level := applog.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = applog.ParseLevel("debug")
	}
	logger := applog.New(applog.Config{
		Level:  level,
		Format: cfg.LogFormat,
		Output: out,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig reads the user config file (if any) and the environment.
func LoadConfig() (*config.Config, error) {
	return config.LoadWithFile(config.Path())
}

// LoadAndValidateConfig loads configuration and validates it.
// Exits the process on failure; meant for the long-running binaries.
func LoadAndValidateConfig() *config.Config {
	cfg, err := LoadConfig()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Configuration validation failed", applog.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg
}

// InitLedgerStore opens the ledger store selected by LEDGER_BACKEND.
// Exits the process on failure.
func InitLedgerStore(ctx context.Context, logger *applog.Logger, cfg *config.Config) *backend.Result {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid ledger backend configuration", applog.FieldError, err.Error())
		os.Exit(1)
	}
	res, err := backend.OpenLedgerStore(ctx, bcfg, logger)
	if err != nil {
		logger.Error("Failed to open ledger store", applog.FieldError, err.Error(), applog.FieldBackend, cfg.LedgerBackend)
		os.Exit(1)
	}
	return res
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// GracefulShutdown runs cleanup once ctx is done, bounded by timeout.
// The returned channel closes when cleanup has finished or timed out.
func GracefulShutdown(ctx context.Context, logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
	}()
	return done
}
