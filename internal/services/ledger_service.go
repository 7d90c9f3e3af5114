package services

import (
	"context"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
)

// Publisher announces recorded expenses. *amqp.Client implements it.
type Publisher interface {
	PublishExpenseRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error
}

// LedgerService applies CLI mutations to the ledger session and announces
// new expenses. The ledger write is authoritative: a failed publish is
// logged and never undoes it.
type LedgerService struct {
	session   *ledger.Session
	publisher Publisher
	logger    *applog.Logger
}

// NewLedgerService accepts a nil publisher when no broker is configured.
func NewLedgerService(session *ledger.Session, publisher Publisher, logger *applog.Logger) *LedgerService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &LedgerService{
		session:   session,
		publisher: publisher,
		logger:    logger.WithComponent(applog.ComponentLedger),
	}
}

// Ledger returns a snapshot of the current ledger.
func (s *LedgerService) Ledger() *ledger.Ledger {
	return s.session.Snapshot()
}

func (s *LedgerService) AddAccount(ctx context.Context, a core.Account) error {
	if err := s.session.AddAccount(ctx, a); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Account added",
		applog.FieldOperation, applog.OpCreate,
		applog.FieldAccount, a.Name,
		applog.FieldAmount, a.Balance.String())
	return nil
}

// DeleteAccount removes the account at the one-based position shown to users.
func (s *LedgerService) DeleteAccount(ctx context.Context, position int) (core.Account, error) {
	removed, err := s.session.DeleteAccount(ctx, position-1)
	if err != nil {
		return core.Account{}, err
	}
	s.logger.InfoContext(ctx, "Account removed",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldAccount, removed.Name)
	return removed, nil
}

func (s *LedgerService) RecordExpense(ctx context.Context, e core.Expense) error {
	if err := s.session.RecordExpense(ctx, e); err != nil {
		return fmt.Errorf("record expense: %w", err)
	}

	fields := applog.NewFields().
		WithOperation(applog.OpAppend).
		WithExpense(e.Date.String(), e.Category, e.Amount)
	s.logger.InfoContext(ctx, "Expense recorded", fields.ToSlice()...)

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, skipping expense event")
		return nil
	}
	msg := amqp.NewExpenseRecordedMessage(e)
	if err := s.publisher.PublishExpenseRecorded(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			applog.FieldMessageID, msg.ID,
			applog.FieldError, err)
	}
	return nil
}
