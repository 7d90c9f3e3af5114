// Package ledger owns the accounts and expenses the CLI maintains and the
// stores that persist them between runs.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

var (
	ErrAccountIndex = errors.New("account index out of range")
	ErrCorrupt      = errors.New("ledger data is corrupt")
	// ErrStale is returned by stores that detect a save based on an outdated load.
	ErrStale        = errors.New("ledger changed on disk since it was loaded; run the command again")
)

// Ledger is the in-memory view of all persisted records. Accounts keep their
// insertion order; expenses are append-only.
type Ledger struct {
	Accounts []core.Account
	Expenses []core.Expense
}

func New() *Ledger {
	return &Ledger{Accounts: []core.Account{}, Expenses: []core.Expense{}}
}

// Store persists a whole ledger.
type Store interface {
	Load(ctx context.Context) (*Ledger, error)
	Save(ctx context.Context, l *Ledger) error
}

func (l *Ledger) AddAccount(a core.Account) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("add account: %w", err)
	}
	l.Accounts = append(l.Accounts, a)
	return nil
}

// DeleteAccount removes the account at the zero-based index and returns it.
func (l *Ledger) DeleteAccount(index int) (core.Account, error) {
	if index < 0 || index >= len(l.Accounts) {
		return core.Account{}, fmt.Errorf("%w: %d", ErrAccountIndex, index)
	}
	removed := l.Accounts[index]
	l.Accounts = append(l.Accounts[:index:index], l.Accounts[index+1:]...)
	return removed, nil
}

func (l *Ledger) RecordExpense(e core.Expense) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("record expense: %w", err)
	}
	l.Expenses = append(l.Expenses, e)
	return nil
}

// TotalBalance is the derived totalBudget sent to the calculators.
func (l *Ledger) TotalBalance() decimal.Decimal {
	return core.TotalBalance(l.Accounts)
}

// RecentExpenses returns up to n of the most recently recorded expenses,
// oldest first.
func (l *Ledger) RecentExpenses(n int) []core.Expense {
	if n <= 0 {
		return []core.Expense{}
	}
	start := len(l.Expenses) - n
	if start < 0 {
		start = 0
	}
	return append([]core.Expense(nil), l.Expenses[start:]...)
}

// ExpenseAmounts lists the amounts of every expense in recorded order.
func (l *Ledger) ExpenseAmounts() []decimal.Decimal {
	out := make([]decimal.Decimal, len(l.Expenses))
	for i, e := range l.Expenses {
		out[i] = e.Amount
	}
	return out
}

// Clone returns a deep copy safe to hand to callers.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{
		Accounts: append([]core.Account{}, l.Accounts...),
		Expenses: append([]core.Expense{}, l.Expenses...),
	}
}
