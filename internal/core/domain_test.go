package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-01-31", true},
		{"2024-02-29", true},
		{"2023-02-29", false},
		{"2024-1-31", false},
		{"31/01/2024", false},
		{"2024-01-31T00:00:00Z", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := ParseDate(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q expected ok, got %v", tc.in, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
			if !errors.Is(err, ErrInvalidDate) {
				t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
			}
		}
	}
}

func TestDateArithmetic(t *testing.T) {
	start := NewDate(2024, 1, 1)
	if got := start.DaysUntil(NewDate(2024, 1, 31)); got != 30 {
		t.Fatalf("DaysUntil = %d, want 30", got)
	}
	if got := NewDate(2024, 3, 1).DaysUntil(NewDate(2024, 2, 28)); got != -2 {
		t.Fatalf("DaysUntil backwards = %d, want -2", got)
	}
	if got := start.AddDays(31).String(); got != "2024-02-01" {
		t.Fatalf("AddDays = %s", got)
	}
	if got := NewDate(2024, 2, 10).EndOfMonth().String(); got != "2024-02-29" {
		t.Fatalf("EndOfMonth = %s", got)
	}
	if got := NewDate(2024, 12, 5).EndOfMonth().String(); got != "2024-12-31" {
		t.Fatalf("EndOfMonth december = %s", got)
	}
}

func TestDateOfIgnoresClock(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	got := DateOf(time.Date(2024, 6, 30, 23, 59, 0, 0, loc))
	if got.String() != "2024-06-30" {
		t.Fatalf("DateOf = %s", got)
	}
}

func TestDateTextRoundTrip(t *testing.T) {
	var d Date
	if err := d.UnmarshalText([]byte("2024-05-06")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, _ := d.MarshalText()
	if string(b) != "2024-05-06" {
		t.Fatalf("marshal = %s", b)
	}
	if err := d.UnmarshalText([]byte("yesterday")); err == nil {
		t.Fatalf("expected error for bad date")
	}
}

func TestDateJSON(t *testing.T) {
	var v struct {
		When Date `json:"when"`
	}
	if err := json.Unmarshal([]byte(`{"when":"2024-02-29"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"when":"2024-02-29"}` {
		t.Fatalf("marshal = %s", b)
	}
	if err := json.Unmarshal([]byte(`{"when":"2024-02-29T00:00:00Z"}`), &v); err == nil {
		t.Fatal("expected error for timestamp")
	}
}

func TestAccountValidate(t *testing.T) {
	good := Account{Name: "Checking", Type: "bank", Balance: decimal.NewFromInt(10)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Account{Name: " ", Type: "bank"}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if err := (Account{Name: "x", Type: ""}).Validate(); !errors.Is(err, ErrEmptyType) {
		t.Fatalf("expected ErrEmptyType, got %v", err)
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{Date: NewDate(2025, 1, 1), Amount: decimal.NewFromInt(-3), Category: "food"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{Date: Date{}, Amount: decimal.NewFromInt(1), Category: "c"},
		{Date: NewDate(2025, 1, 1), Amount: decimal.Zero, Category: "c"},
		{Date: NewDate(2025, 1, 1), Amount: decimal.NewFromInt(1), Category: ""},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTotalBalance(t *testing.T) {
	got := TotalBalance([]Account{
		{Balance: decimal.RequireFromString("100.10")},
		{Balance: decimal.RequireFromString("-0.10")},
		{Balance: decimal.RequireFromString("900")},
	})
	if !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("TotalBalance = %s", got)
	}
}
