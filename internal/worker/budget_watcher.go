// Package worker consumes expense events and re-checks the budget after each
// one.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/amqp"
	"fintrack/internal/client"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets"
)

// Calculator is the subset of the calculator client the watcher needs.
type Calculator interface {
	DailyLimit(ctx context.Context, in client.DailyLimitInput) (*client.DailyLimitResult, error)
	Alerts(ctx context.Context, in client.AlertsInput) (*client.AlertsResult, error)
}

type Config struct {
	Session    *ledger.Session
	Calculator Calculator
	// Sheets is optional; nil skips the spreadsheet export.
	Sheets sheets.ExpenseWriter

	Reserve          decimal.Decimal
	WarningRatio     decimal.Decimal
	ReserveThreshold decimal.Decimal

	Location *time.Location
	Clock    func() time.Time
	Logger   *applog.Logger
}

// Report is the outcome of one budget check.
type Report struct {
	Date       core.Date
	DailyLimit *client.DailyLimitResult
	Alerts     []core.Alert
}

// BudgetWatcher exports recorded expenses and evaluates the budget against
// the current ledger.
type BudgetWatcher struct {
	session    *ledger.Session
	calculator Calculator
	sheets     sheets.ExpenseWriter

	reserve          decimal.Decimal
	warningRatio     decimal.Decimal
	reserveThreshold decimal.Decimal

	location *time.Location
	clock    func() time.Time
	logger   *applog.Logger

	exported *exportLog
}

func NewBudgetWatcher(cfg Config) (*BudgetWatcher, error) {
	if cfg.Session == nil {
		return nil, errors.New("budget watcher requires a ledger session")
	}
	if cfg.Calculator == nil {
		return nil, errors.New("budget watcher requires a calculator client")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = applog.Discard()
	}
	return &BudgetWatcher{
		session:          cfg.Session,
		calculator:       cfg.Calculator,
		sheets:           cfg.Sheets,
		reserve:          cfg.Reserve,
		warningRatio:     cfg.WarningRatio,
		reserveThreshold: cfg.ReserveThreshold,
		location:         cfg.Location,
		clock:            cfg.Clock,
		logger:           cfg.Logger.WithComponent(applog.ComponentWorker),
		exported:         newExportLog(maxExportedIDs),
	}, nil
}

// HandleExpenseRecorded is an amqp.Handler. A returned error requeues the
// message; content that can never succeed is logged and dropped.
func (w *BudgetWatcher) HandleExpenseRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error {
	expense, err := msg.Expense()
	if err != nil {
		w.logger.WarnContext(ctx, "Dropping invalid expense message",
			applog.FieldMessageID, msg.ID,
			applog.FieldError, err.Error())
		return nil
	}

	w.logger.InfoContext(ctx, "Processing expense message",
		append([]any{applog.FieldMessageID, msg.ID},
			applog.NewFields().WithExpense(expense.Date.String(), expense.Category, expense.Amount).ToSlice()...)...)

	// A redelivery after a failed check must not append the row twice.
	switch {
	case w.sheets == nil:
	case w.exported.Has(msg.ID):
		w.logger.DebugContext(ctx, "Expense already exported", applog.FieldMessageID, msg.ID)
	default:
		ref, err := w.sheets.Append(ctx, expense)
		if err != nil {
			return fmt.Errorf("append to sheets: %w", err)
		}
		w.exported.Add(msg.ID)
		w.logger.InfoContext(ctx, "Expense exported",
			applog.FieldMessageID, msg.ID,
			"sheets_ref", ref)
	}

	if _, err := w.Check(ctx); err != nil {
		if client.IsValidation(err) {
			w.logger.ErrorContext(ctx, "Budget check rejected by calculator",
				applog.FieldMessageID, msg.ID,
				applog.FieldError, err.Error())
			return nil
		}
		return err
	}
	return nil
}

// Check reloads the ledger and asks the calculators for today's limit and
// any triggered alerts. Each alert is logged at WARN.
func (w *BudgetWatcher) Check(ctx context.Context) (*Report, error) {
	if err := w.session.Reload(ctx); err != nil {
		return nil, fmt.Errorf("reload ledger: %w", err)
	}
	l := w.session.Snapshot()
	total := l.TotalBalance()
	today := core.DateOf(w.clock().In(w.location))

	dl, err := w.calculator.DailyLimit(ctx, client.DailyLimitInput{
		TotalBudget: total,
		Reserve:     w.reserve,
		Expenses:    l.Expenses,
		EndDate:     today.EndOfMonth(),
		CurrentDate: today,
	})
	if err != nil {
		return nil, fmt.Errorf("daily limit: %w", err)
	}
	w.logger.InfoContext(ctx, "Daily limit computed",
		"daily_limit", dl.DailyLimit.StringFixed(2),
		"remaining_budget", dl.RemainingBudget.StringFixed(2),
		applog.FieldRemainingDays, dl.RemainingDays,
		"status", dl.Status,
		applog.FieldRequestID, dl.CorrelationID)

	al, err := w.calculator.Alerts(ctx, client.AlertsInput{
		RemainingBudget:  dl.RemainingBudget,
		WarningThreshold: total.Mul(w.warningRatio),
		ReserveBalance:   w.reserve,
		ReserveThreshold: w.reserveThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("alerts: %w", err)
	}
	for _, a := range al.Alerts {
		w.logger.WarnContext(ctx, a.Message,
			applog.FieldAlert, string(a.Kind),
			applog.FieldRequestID, al.CorrelationID)
	}

	return &Report{Date: today, DailyLimit: dl, Alerts: al.Alerts}, nil
}

const maxExportedIDs = 4096

// exportLog remembers the ids of exported messages, evicting the oldest once
// full.
type exportLog struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	max   int
}

func newExportLog(max int) *exportLog {
	return &exportLog{ids: make(map[string]struct{}, max), max: max}
}

func (l *exportLog) Has(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.ids[id]
	return ok
}

func (l *exportLog) Add(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.ids[id]; ok {
		return
	}
	if len(l.order) >= l.max {
		delete(l.ids, l.order[0])
		l.order = l.order[1:]
	}
	l.ids[id] = struct{}{}
	l.order = append(l.order, id)
}
