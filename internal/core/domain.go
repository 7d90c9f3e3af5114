package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the only accepted wire format for dates.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar day at midnight UTC.
	Date struct {
		time.Time
	}

	// Account is a named balance owned by the ledger.
	Account struct {
		Name    string
		Type    string
		Balance decimal.Decimal
	}

	// Expense is an immutable spending record. Negative amounts are refunds.
	Expense struct {
		Date     Date
		Amount   decimal.Decimal
		Category string
	}

	// Alert is a triggered budget condition.
	Alert struct {
		Kind    AlertKind
		Message string
	}

	// ProjectionEntry is the forecast balance at the end of Date.
	ProjectionEntry struct {
		Date    Date
		Balance decimal.Decimal
	}
)

// AlertKind identifies which budget condition an Alert reports.
type AlertKind string

const (
	AlertOverspend  AlertKind = "overspend"
	AlertLowReserve AlertKind = "low_reserve"
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyName       = errors.New("empty account name")
	ErrEmptyType       = errors.New("empty account type")
	ErrEmptyCategory   = errors.New("empty category")
	ErrNameTooLong     = errors.New("account name too long (max 100 characters)")
	ErrCategoryTooLong = errors.New("category too long (max 100 characters)")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a strict YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// DaysUntil returns the number of calendar days from d to other (negative if other is earlier).
func (d Date) DaysUntil(other Date) int {
	return int(other.Time.Sub(d.Time).Hours() / 24)
}

// EndOfMonth returns the last day of d's month.
func (d Date) EndOfMonth() Date {
	return NewDate(d.Year(), int(d.Month())+1, 1).AddDays(-1)
}

// MarshalText implements encoding.TextMarshaler
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON shadows the embedded time.Time encoding.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("%w: %s", ErrInvalidDate, s)
	}
	return d.UnmarshalText([]byte(s[1 : len(s)-1]))
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (a Account) Validate() error {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 100 {
		return ErrNameTooLong
	}
	if strings.TrimSpace(a.Type) == "" {
		return ErrEmptyType
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if e.Amount.IsZero() {
		return ErrInvalidAmount
	}
	category := strings.TrimSpace(e.Category)
	if category == "" {
		return ErrEmptyCategory
	}
	if len(category) > 100 {
		return ErrCategoryTooLong
	}
	return nil
}

// TotalBalance sums the balances of accounts.
func TotalBalance(accounts []Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}
