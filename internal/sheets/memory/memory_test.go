package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

func TestStoreAppend(t *testing.T) {
	s := New()
	ref, err := s.Append(context.Background(), core.Expense{
		Date:     core.NewDate(2024, 1, 2),
		Amount:   decimal.RequireFromString("12.30"),
		Category: "food",
	})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	got := s.Expenses()
	if len(got) != 1 || got[0].Category != "food" {
		t.Fatalf("expenses = %+v", got)
	}
}

func TestStoreAppendRejectsInvalid(t *testing.T) {
	s := New()
	if _, err := s.Append(context.Background(), core.Expense{Date: core.NewDate(2024, 1, 2), Category: "food"}); err == nil {
		t.Fatal("expected validation error for zero amount")
	}
	if len(s.Expenses()) != 0 {
		t.Fatal("invalid expense stored")
	}
}
