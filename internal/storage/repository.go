package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores the ledger in two tables. Balances and amounts are
// kept as decimal strings so nothing is lost to float conversion.
type SQLiteRepository struct {
	db     *sql.DB
	logger *applog.Logger
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *applog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(applog.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load implements ledger.Store.
func (r *SQLiteRepository) Load(ctx context.Context) (*ledger.Ledger, error) {
	l := ledger.New()

	rows, err := r.db.QueryContext(ctx, `SELECT name, type, balance FROM accounts ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	for rows.Next() {
		var a core.Account
		var balance string
		if err := rows.Scan(&a.Name, &a.Type, &balance); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan account: %w", err)
		}
		if a.Balance, err = decimal.NewFromString(balance); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: account %q balance %q", ledger.ErrCorrupt, a.Name, balance)
		}
		l.Accounts = append(l.Accounts, a)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close account rows: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `SELECT date, amount, category FROM expenses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var date, amount string
		var e core.Expense
		if err := rows.Scan(&date, &amount, &e.Category); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("%w: expense date %q", ledger.ErrCorrupt, date)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("%w: expense amount %q", ledger.ErrCorrupt, amount)
		}
		l.Expenses = append(l.Expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}

	return l, nil
}

// Save implements ledger.Store. Accounts are rewritten; expenses beyond the
// stored count are appended. All in one transaction. A ledger whose expenses
// do not extend the stored ones was loaded before another writer saved and is
// rejected with ledger.ErrStale.
func (r *SQLiteRepository) Save(ctx context.Context, l *ledger.Ledger) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var stored int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses`).Scan(&stored); err != nil {
		return fmt.Errorf("count expenses: %w", err)
	}
	if stored > len(l.Expenses) {
		return fmt.Errorf("%w: %d expenses stored, %d in ledger", ledger.ErrStale, stored, len(l.Expenses))
	}
	if stored > 0 {
		var same bool
		if same, err = lastExpenseMatches(ctx, tx, l.Expenses[stored-1]); err != nil {
			return err
		}
		if !same {
			return fmt.Errorf("%w: expense %d differs", ledger.ErrStale, stored)
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}
	for i, a := range l.Accounts {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO accounts (position, name, type, balance) VALUES (?, ?, ?, ?)`,
			i, a.Name, a.Type, a.Balance.String()); err != nil {
			return fmt.Errorf("insert account %q: %w", a.Name, err)
		}
	}

	for _, e := range l.Expenses[stored:] {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO expenses (date, amount, category) VALUES (?, ?, ?)`,
			e.Date.String(), e.Amount.String(), e.Category); err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.DebugContext(ctx, "Ledger saved to SQLite",
		applog.FieldOperation, applog.OpSave,
		"accounts", len(l.Accounts),
		"new_expenses", len(l.Expenses)-stored)
	return nil
}

func lastExpenseMatches(ctx context.Context, tx *sql.Tx, want core.Expense) (bool, error) {
	var date, amount, category string
	err := tx.QueryRowContext(ctx,
		`SELECT date, amount, category FROM expenses ORDER BY id DESC LIMIT 1`).Scan(&date, &amount, &category)
	if err != nil {
		return false, fmt.Errorf("read last expense: %w", err)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return false, fmt.Errorf("%w: expense amount %q", ledger.ErrCorrupt, amount)
	}
	return date == want.Date.String() && category == want.Category && d.Equal(want.Amount), nil
}
