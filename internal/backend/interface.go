package backend

import (
	"context"

	"fintrack/internal/ledger"
)

// CleanupFunc releases resources held by a store.
type CleanupFunc func() error

// Result carries the opened store and its cleanup, which may be nil.
type Result struct {
	Store   ledger.Store
	Cleanup CleanupFunc
}

// Close runs the cleanup if there is one.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory opens ledger stores based on configuration.
type Factory interface {
	OpenLedgerStore(ctx context.Context, config Config) (*Result, error)
}

// Config selects and locates the ledger store.
type Config struct {
	Type BackendType

	// JSON
	LedgerPath string

	// SQLite
	SQLiteDBPath string
}

// BackendType names a ledger store implementation.
type BackendType string

const (
	JSONBackend   BackendType = "json"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case JSONBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
