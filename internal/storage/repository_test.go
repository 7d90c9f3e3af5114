package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "fintrack.db")
	repo, err := NewSQLiteRepository(path, nil)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func TestMigrationsApplied(t *testing.T) {
	_, path := newTestRepo(t)

	version, dirty, err := SchemaVersion(path)
	if err != nil {
		t.Fatal(err)
	}
	if version != 1 || dirty {
		t.Errorf("version = %d dirty = %v", version, dirty)
	}

	// running again is a no-op
	if err := RunMigrations(path); err != nil {
		t.Errorf("second RunMigrations: %v", err)
	}
}

func TestEmptyLoad(t *testing.T) {
	repo, _ := newTestRepo(t)
	l, err := repo.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Accounts) != 0 || len(l.Expenses) != 0 {
		t.Errorf("expected empty ledger, got %+v", l)
	}
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	l := ledger.New()
	_ = l.AddAccount(core.Account{Name: "Checking", Type: "bank", Balance: decimal.RequireFromString("1000.01")})
	_ = l.AddAccount(core.Account{Name: "Cash", Type: "wallet", Balance: decimal.RequireFromString("20")})
	_ = l.RecordExpense(core.Expense{Date: core.NewDate(2024, 1, 2), Amount: decimal.RequireFromString("0.1"), Category: "coffee"})
	if err := repo.Save(ctx, l); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// a later save with one more expense and one account fewer
	_ = l.RecordExpense(core.Expense{Date: core.NewDate(2024, 1, 3), Amount: decimal.RequireFromString("0.2"), Category: "coffee"})
	if _, err := l.DeleteAccount(0); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(ctx, l); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Accounts) != 1 || got.Accounts[0].Name != "Cash" {
		t.Errorf("accounts = %+v", got.Accounts)
	}
	if len(got.Expenses) != 2 {
		t.Fatalf("expenses = %+v", got.Expenses)
	}
	sum := got.Expenses[0].Amount.Add(got.Expenses[1].Amount)
	if !sum.Equal(decimal.RequireFromString("0.3")) {
		t.Errorf("amount sum = %s, want exact 0.3", sum)
	}
	if got.Expenses[1].Date.String() != "2024-01-03" {
		t.Errorf("date = %s", got.Expenses[1].Date)
	}
}

func TestSaveRejectsStaleLedger(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	long := ledger.New()
	for i := 1; i <= 3; i++ {
		_ = long.RecordExpense(core.Expense{Date: core.NewDate(2024, 1, i), Amount: decimal.NewFromInt(int64(i)), Category: "x"})
	}
	if err := repo.Save(ctx, long); err != nil {
		t.Fatal(err)
	}

	short := ledger.New()
	_ = short.RecordExpense(core.Expense{Date: core.NewDate(2024, 2, 1), Amount: decimal.NewFromInt(9), Category: "y"})
	if err := repo.Save(ctx, short); !errors.Is(err, ledger.ErrStale) {
		t.Fatalf("shorter ledger: err = %v, want ErrStale", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Expenses) != 3 {
		t.Errorf("expenses = %+v", got.Expenses)
	}
}

func TestStaleSessionDoesNotLoseExpense(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	a, err := ledger.Open(ctx, repo, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ledger.Open(ctx, repo, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := b.RecordExpense(ctx, core.Expense{Date: core.NewDate(2024, 1, 2), Amount: decimal.NewFromInt(5), Category: "b"}); err != nil {
		t.Fatal(err)
	}
	err = a.RecordExpense(ctx, core.Expense{Date: core.NewDate(2024, 1, 3), Amount: decimal.NewFromInt(7), Category: "a"})
	if !errors.Is(err, ledger.ErrStale) {
		t.Fatalf("stale session: err = %v, want ErrStale", err)
	}

	if err := a.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if err := a.RecordExpense(ctx, core.Expense{Date: core.NewDate(2024, 1, 3), Amount: decimal.NewFromInt(7), Category: "a"}); err != nil {
		t.Fatalf("after reload: %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Expenses) != 2 || got.Expenses[0].Category != "b" || got.Expenses[1].Category != "a" {
		t.Errorf("expenses = %+v", got.Expenses)
	}
}

func TestSessionOverSQLite(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	s, err := ledger.Open(ctx, repo, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddAccount(ctx, core.Account{Name: "Checking", Type: "bank", Balance: decimal.NewFromInt(50)}); err != nil {
		t.Fatal(err)
	}

	reopened, err := ledger.Open(ctx, repo, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reopened.Snapshot().TotalBalance().Equal(decimal.NewFromInt(50)) {
		t.Errorf("total = %s", reopened.Snapshot().TotalBalance())
	}
}
