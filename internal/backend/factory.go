package backend

import (
	"context"
	"fmt"

	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

// DefaultFactory implements Factory.
type DefaultFactory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentStorage)}
}

func (f *DefaultFactory) OpenLedgerStore(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case JSONBackend:
		f.logger.DebugContext(ctx, "Using JSON ledger", "path", config.LedgerPath)
		return &Result{Store: ledger.NewJSONStore(config.LedgerPath, ledger.WithLogger(f.logger))}, nil

	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.DebugContext(ctx, "Using SQLite ledger", "db_path", config.SQLiteDBPath)
		return &Result{Store: repo, Cleanup: repo.Close}, nil

	case MemoryBackend:
		f.logger.DebugContext(ctx, "Using in-memory ledger")
		return &Result{Store: ledger.NewMemoryStore(nil)}, nil
	}
	return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
}

// OpenLedgerStore opens the store selected by cfg with the default factory.
func OpenLedgerStore(ctx context.Context, cfg Config, logger *applog.Logger) (*Result, error) {
	return NewFactory(logger).OpenLedgerStore(ctx, cfg)
}
