package ledger

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// Session loads the ledger once and writes it back after every mutation.
// A mutation whose save fails is rolled back so memory matches disk.
type Session struct {
	mu     sync.Mutex
	store  Store
	ledger *Ledger
	logger *applog.Logger
}

func Open(ctx context.Context, store Store, logger *applog.Logger) (*Session, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	s := &Session{store: store, logger: logger.WithComponent(applog.ComponentLedger)}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the in-memory ledger with the store's current contents.
func (s *Session) Reload(ctx context.Context) error {
	l, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	s.mu.Lock()
	s.ledger = l
	s.mu.Unlock()
	s.logger.DebugContext(ctx, "Ledger loaded",
		applog.FieldOperation, applog.OpLoad,
		"accounts", len(l.Accounts),
		"expenses", len(l.Expenses))
	return nil
}

// Snapshot returns a copy of the current ledger.
func (s *Session) Snapshot() *Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Clone()
}

func (s *Session) AddAccount(ctx context.Context, a core.Account) error {
	return s.mutate(ctx, func(l *Ledger) error { return l.AddAccount(a) })
}

// DeleteAccount removes the account at the zero-based index.
func (s *Session) DeleteAccount(ctx context.Context, index int) (core.Account, error) {
	var removed core.Account
	err := s.mutate(ctx, func(l *Ledger) error {
		var err error
		removed, err = l.DeleteAccount(index)
		return err
	})
	return removed, err
}

func (s *Session) RecordExpense(ctx context.Context, e core.Expense) error {
	return s.mutate(ctx, func(l *Ledger) error { return l.RecordExpense(e) })
}

func (s *Session) mutate(ctx context.Context, fn func(*Ledger) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.ledger.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := s.store.Save(ctx, next); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save ledger",
			applog.FieldOperation, applog.OpSave,
			applog.FieldError, err)
		return fmt.Errorf("save ledger: %w", err)
	}
	s.ledger = next
	return nil
}
