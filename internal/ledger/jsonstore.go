package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// DefaultPath is the ledger file used when none is configured.
const DefaultPath = "data.json"

// JSONStore keeps the ledger in one indented JSON document:
//
//	{"accounts": [{"name", "type", "balance"}], "expenses": [{"date", "amount", "category"}]}
//
// A missing or unreadable document loads as an empty ledger.
type JSONStore struct {
	path   string
	logger *applog.Logger
}

type JSONOption func(*JSONStore)

func WithLogger(logger *applog.Logger) JSONOption {
	return func(s *JSONStore) { s.logger = logger }
}

func NewJSONStore(path string, opts ...JSONOption) *JSONStore {
	if path == "" {
		path = DefaultPath
	}
	s := &JSONStore{path: path, logger: applog.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(applog.ComponentStorage)
	return s
}

var _ Store = (*JSONStore)(nil)

type fileDoc struct {
	Accounts []fileAccount `json:"accounts"`
	Expenses []fileExpense `json:"expenses"`
}

type fileAccount struct {
	Name    string      `json:"name"`
	Type    string      `json:"type"`
	Balance json.Number `json:"balance"`
}

type fileExpense struct {
	Date     string      `json:"date"`
	Amount   json.Number `json:"amount"`
	Category string      `json:"category"`
}

func (s *JSONStore) Path() string { return s.path }

func (s *JSONStore) Load(ctx context.Context) (*Ledger, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	l, err := decodeLedger(b)
	if err != nil {
		s.logger.WarnContext(ctx, "Ledger file unreadable, starting empty",
			applog.FieldOperation, applog.OpLoad,
			"path", s.path,
			applog.FieldError, err)
		return New(), nil
	}
	return l, nil
}

func decodeLedger(b []byte) (*Ledger, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc fileDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	l := New()
	for i, a := range doc.Accounts {
		bal, err := decimal.NewFromString(a.Balance.String())
		if err != nil {
			return nil, fmt.Errorf("%w: account %d balance: %v", ErrCorrupt, i, err)
		}
		l.Accounts = append(l.Accounts, core.Account{Name: a.Name, Type: a.Type, Balance: bal})
	}
	for i, e := range doc.Expenses {
		date, err := core.ParseDate(e.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: expense %d: %v", ErrCorrupt, i, err)
		}
		amount, err := decimal.NewFromString(e.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("%w: expense %d amount: %v", ErrCorrupt, i, err)
		}
		l.Expenses = append(l.Expenses, core.Expense{Date: date, Amount: amount, Category: e.Category})
	}
	return l, nil
}

// Save writes the whole document to a temp file and renames it into place.
func (s *JSONStore) Save(ctx context.Context, l *Ledger) error {
	doc := fileDoc{
		Accounts: make([]fileAccount, 0, len(l.Accounts)),
		Expenses: make([]fileExpense, 0, len(l.Expenses)),
	}
	for _, a := range l.Accounts {
		doc.Accounts = append(doc.Accounts, fileAccount{Name: a.Name, Type: a.Type, Balance: json.Number(a.Balance.String())})
	}
	for _, e := range l.Expenses {
		doc.Expenses = append(doc.Expenses, fileExpense{
			Date:     e.Date.String(),
			Amount:   json.Number(e.Amount.String()),
			Category: e.Category,
		})
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger directory: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}

	s.logger.DebugContext(ctx, "Ledger saved",
		applog.FieldOperation, applog.OpSave,
		"path", s.path)
	return nil
}
