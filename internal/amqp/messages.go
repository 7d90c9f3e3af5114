package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// ExpenseRecordedMessage announces an expense the ledger has persisted. It
// carries the whole record so consumers need no access to the ledger file.
type ExpenseRecordedMessage struct {
	ID        string      `json:"id"`
	Date      string      `json:"date"`
	Amount    json.Number `json:"amount"`
	Category  string      `json:"category"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewExpenseRecordedMessage(e core.Expense) *ExpenseRecordedMessage {
	return &ExpenseRecordedMessage{
		ID:        uuid.NewString(),
		Date:      e.Date.String(),
		Amount:    json.Number(e.Amount.String()),
		Category:  e.Category,
		Timestamp: time.Now(),
	}
}

// Expense decodes the carried record and validates it.
func (m *ExpenseRecordedMessage) Expense() (core.Expense, error) {
	date, err := core.ParseDate(m.Date)
	if err != nil {
		return core.Expense{}, err
	}
	amount, err := decimal.NewFromString(m.Amount.String())
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: %q", core.ErrInvalidAmount, m.Amount)
	}
	e := core.Expense{Date: date, Amount: amount, Category: m.Category}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (m *ExpenseRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseRecordedMessageFromJSON(data []byte) (*ExpenseRecordedMessage, error) {
	var msg ExpenseRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
