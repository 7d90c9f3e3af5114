package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/config"
	"fintrack/internal/core"
	calchttp "fintrack/internal/http"
)

var testNow = time.Date(2024, 1, 30, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	cfg       *config.Config
	prompter  Prompter
	publisher *fakePublisher
	dir       string
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	srv := calchttp.NewServer(":0", calchttp.AllServices, calchttp.Options{
		Clock:    func() time.Time { return testNow },
		Location: time.UTC,
	})
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Timezone = "UTC"
	cfg.LedgerBackend = "json"
	cfg.LedgerPath = filepath.Join(dir, "data.json")
	cfg.DailyLimitURL = ts.URL + "/daily-limit"
	cfg.AggregateURL = ts.URL + "/aggregate-expenses"
	cfg.ProjectionURL = ts.URL + "/project-balance"
	cfg.AlertsURL = ts.URL + "/alerts"
	return &testEnv{cfg: cfg, publisher: &fakePublisher{}, dir: dir}
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd(Options{
		Out:            &out,
		Err:            &errOut,
		Config:         e.cfg,
		Prompter:       e.prompter,
		NonInteractive: e.prompter == nil,
		Clock:          func() time.Time { return testNow },
		Publisher:      e.publisher,
	})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("fintrack %s: %v", strings.Join(args, " "), err)
	}
	return out
}

type fakePublisher struct {
	msgs []*amqp.ExpenseRecordedMessage
}

func (f *fakePublisher) PublishExpenseRecorded(_ context.Context, msg *amqp.ExpenseRecordedMessage) error {
	f.msgs = append(f.msgs, msg)
	return nil
}

type fakePrompter struct {
	account AccountInput
	expense ExpenseInput
	pick    int
	err     error
}

func (f *fakePrompter) Account(in *AccountInput) error {
	if f.err != nil {
		return f.err
	}
	*in = f.account
	return nil
}

func (f *fakePrompter) Expense(in *ExpenseInput) error {
	if f.err != nil {
		return f.err
	}
	if f.expense.Date != "" {
		in.Date = f.expense.Date
	}
	in.Amount, in.Category = f.expense.Amount, f.expense.Category
	return nil
}

func (f *fakePrompter) SelectAccount([]core.Account) (int, error) {
	return f.pick, f.err
}

func assertContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

func TestDashboardShowsAccountsAndRecentExpenses(t *testing.T) {
	env := newEnv(t)
	env.mustRun(t, "account", "add", "--name", "Checking", "--type", "bank", "--balance", "1000")
	env.mustRun(t, "account", "add", "--name", "Savings", "--type", "bank", "--balance", "500.5")
	for i, cat := range []string{"a", "b", "c", "d", "e", "f"} {
		env.mustRun(t, "expense", "add", "--date", "2024-01-0"+string(rune('1'+i)), "--amount", "1", "--category", cat)
	}

	out := env.mustRun(t)
	assertContains(t, out, "Dashboard", "Checking", "$1000.00", "Savings", "$500.50", "Total: $1500.50", "Recent Expenses")
	if strings.Contains(out, "2024-01-01") {
		t.Error("dashboard should only show the 5 most recent expenses")
	}
	assertContains(t, out, "2024-01-02", "2024-01-06")

	if _, err := os.Stat(env.cfg.LedgerPath); err != nil {
		t.Errorf("ledger not persisted: %v", err)
	}
}

func TestDashboardEmptyLedger(t *testing.T) {
	env := newEnv(t)
	out := env.mustRun(t, "dashboard")
	assertContains(t, out, "No accounts yet", "No expenses recorded.")
}

func TestAccountAddRejectsBadBalance(t *testing.T) {
	env := newEnv(t)
	_, err := env.run(t, "account", "add", "--name", "X", "--type", "bank", "--balance", "abc")
	if err == nil || !strings.Contains(err.Error(), "invalid balance") {
		t.Fatalf("err = %v", err)
	}
}

func TestAccountAddPrompts(t *testing.T) {
	env := newEnv(t)
	env.prompter = &fakePrompter{account: AccountInput{Name: "Wallet", Type: "cash", Balance: "42,50"}}
	out := env.mustRun(t, "account", "add")
	assertContains(t, out, "Account added!")

	env.prompter = nil
	assertContains(t, env.mustRun(t, "account", "list"), "Wallet", "cash", "$42.50")
}

func TestAccountAddPromptCancelled(t *testing.T) {
	env := newEnv(t)
	env.prompter = &fakePrompter{err: errCancelled}
	if _, err := env.run(t, "account", "add"); !errors.Is(err, errCancelled) {
		t.Fatalf("err = %v", err)
	}
}

func TestAccountDelete(t *testing.T) {
	env := newEnv(t)
	assertContains(t, env.mustRun(t, "account", "delete", "1"), "No accounts to delete.")

	env.mustRun(t, "account", "add", "--name", "Checking", "--type", "bank", "--balance", "10")
	env.mustRun(t, "account", "add", "--name", "Savings", "--type", "bank", "--balance", "20")

	if _, err := env.run(t, "account", "delete", "3"); err == nil || !strings.Contains(err.Error(), "invalid selection") {
		t.Fatalf("out of range: err = %v", err)
	}
	if _, err := env.run(t, "account", "delete", "x"); err == nil || !strings.Contains(err.Error(), "invalid input") {
		t.Fatalf("not a number: err = %v", err)
	}

	assertContains(t, env.mustRun(t, "account", "delete", "1"), "Removed account: Checking")

	env.prompter = &fakePrompter{pick: 1}
	assertContains(t, env.mustRun(t, "account", "delete"), "Removed account: Savings")
}

func TestExpenseAddDefaultsToToday(t *testing.T) {
	env := newEnv(t)
	assertContains(t, env.mustRun(t, "expense", "add", "--amount", "12.30", "--category", "food"), "Expense recorded!")
	assertContains(t, env.mustRun(t, "expense", "list"), "2024-01-30", "food", "$12.30")

	if len(env.publisher.msgs) != 1 || env.publisher.msgs[0].Date != "2024-01-30" {
		t.Errorf("published = %+v", env.publisher.msgs)
	}
}

func TestExpenseAddValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad date", []string{"--date", "2024-13-01", "--amount", "1", "--category", "x"}, "invalid date"},
		{"bad amount", []string{"--amount", "1.2.3", "--category", "x"}, "invalid amount"},
		{"zero amount", []string{"--amount", "0", "--category", "x"}, "invalid amount"},
		{"missing flags", []string{"--date", "2024-01-01"}, "missing required flags: --amount, --category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			_, err := env.run(t, append([]string{"expense", "add"}, tt.args...)...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
			if len(env.publisher.msgs) != 0 {
				t.Error("invalid expense was published")
			}
		})
	}
}

func TestExpenseAddPromptKeepsDefaultDate(t *testing.T) {
	env := newEnv(t)
	env.prompter = &fakePrompter{expense: ExpenseInput{Amount: "-5", Category: "refund"}}
	env.mustRun(t, "expense", "add")

	env.prompter = nil
	assertContains(t, env.mustRun(t, "expense", "list", "-n", "1"), "2024-01-30", "refund", "-$5.00")
}

func TestDailyLimitCommand(t *testing.T) {
	env := newEnv(t)
	env.mustRun(t, "account", "add", "--name", "Checking", "--type", "bank", "--balance", "1000")
	env.mustRun(t, "expense", "add", "--date", "2024-01-01", "--amount", "200", "--category", "rent")

	out := env.mustRun(t, "daily-limit", "--reserve", "100")
	assertContains(t, out,
		"Derived totalBudget from accounts: $1000.00",
		"$350.00", // (1000 - 100 - 200) / 2 days
		"$700.00",
		"Remaining Days",
		"ok",
		"Correlation ID")
}

func TestAggregateCommand(t *testing.T) {
	env := newEnv(t)
	env.mustRun(t, "expense", "add", "--amount", "10", "--category", "food")
	env.mustRun(t, "expense", "add", "--amount", "2.5", "--category", "food")
	env.mustRun(t, "expense", "add", "--amount", "200", "--category", "rent")

	out := env.mustRun(t, "aggregate")
	assertContains(t, out, "Spending by Category", "food", "$12.50", "rent", "$200.00")
	if strings.Index(out, "food") > strings.Index(out, "rent") {
		t.Error("categories should be sorted")
	}
}

func TestAggregateEmptyLedger(t *testing.T) {
	env := newEnv(t)
	assertContains(t, env.mustRun(t, "aggregate"), "No expenses recorded.")
}

func TestProjectCommand(t *testing.T) {
	env := newEnv(t)
	env.mustRun(t, "account", "add", "--name", "Checking", "--type", "bank", "--balance", "1000")

	out := env.mustRun(t, "project", "--end-date", "2024-02-02", "--daily-limit", "100")
	assertContains(t, out, "2024-01-31", "$900.00", "2024-02-02", "$700.00")

	// Derived limit: 1000 over 2 remaining days in January.
	out = env.mustRun(t, "project", "--end-date", "2024-01-31")
	assertContains(t, out, "Projection at $500.00/day", "$500.00")

	if _, err := env.run(t, "project"); err == nil || !strings.Contains(err.Error(), "--end-date") {
		t.Errorf("missing end date: err = %v", err)
	}
}

func TestAlertsCommand(t *testing.T) {
	env := newEnv(t)
	env.mustRun(t, "account", "add", "--name", "Checking", "--type", "bank", "--balance", "1000")
	env.mustRun(t, "expense", "add", "--amount", "900", "--category", "rent")

	out := env.mustRun(t, "alerts")
	assertContains(t, out, "[overspend]")

	out = env.mustRun(t, "alerts", "--remaining", "800", "--reserve", "10", "--reserve-threshold", "50")
	assertContains(t, out, "[low_reserve]")
	if strings.Contains(out, "[overspend]") {
		t.Error("unexpected overspend alert")
	}

	out = env.mustRun(t, "alerts", "--remaining", "800")
	assertContains(t, out, "No alerts.")
}

func TestCalculatorErrorsIncludeCorrelationID(t *testing.T) {
	env := newEnv(t)
	env.cfg.AggregateURL = strings.TrimSuffix(env.cfg.AggregateURL, "/aggregate-expenses") + "/missing"
	_, err := env.run(t, "aggregate")
	if err == nil || !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "correlation id") {
		t.Fatalf("err = %v", err)
	}
}

func TestBackendAndLedgerFlags(t *testing.T) {
	env := newEnv(t)
	other := filepath.Join(env.dir, "other.json")
	env.mustRun(t, "--ledger", other, "account", "add", "--name", "A", "--type", "t", "--balance", "1")
	if _, err := os.Stat(other); err != nil {
		t.Fatalf("--ledger ignored: %v", err)
	}
	if _, err := os.Stat(env.cfg.LedgerPath); !os.IsNotExist(err) {
		t.Error("default ledger should be untouched")
	}

	env.mustRun(t, "--backend", "memory", "account", "add", "--name", "B", "--type", "t", "--balance", "1")
	assertContains(t, env.mustRun(t, "--backend", "memory", "account", "list"), "No accounts yet.")

	db := filepath.Join(env.dir, "ledger.db")
	env.mustRun(t, "--backend", "sqlite", "--ledger", db, "account", "add", "--name", "C", "--type", "t", "--balance", "3")
	assertContains(t, env.mustRun(t, "--backend", "sqlite", "--ledger", db, "account", "list"), "C", "$3.00")

	if _, err := env.run(t, "--backend", "nosql", "dashboard"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(Table{Headers: []string{"Name", "Amount"}, Rows: [][]string{{"coffee", "$3.00"}, {"rent", "$1200.00"}}})
	assertContains(t, out, "Name", "Amount", "coffee", "$1200.00")
	if got := RenderTable(Table{}); got != "" {
		t.Errorf("empty table = %q", got)
	}
}
