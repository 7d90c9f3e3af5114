package calc

import (
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/schema"
)

// Status classifies how a budget is tracking.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
)

const (
	msgPeriodEnded = "Budget period has ended."
	msgNearLimit   = "You are within 20% of your monthly budget."
	msgOnTrack     = "You are on track with your budget."
)

// warningRatio is the share of the total budget below which spending is flagged.
var warningRatio = decimal.RequireFromString("0.2")

var dailyLimitSchema = &schema.Schema{
	Fields: []schema.Field{
		{Name: "totalBudget", Type: schema.Number, Required: true},
		{Name: "reserve", Type: schema.Number, Required: true},
		{Name: "expenses", Type: schema.List, Required: true, Items: &schema.Schema{
			Item: "expense",
			Fields: []schema.Field{
				{Name: "date", Type: schema.Date},
				{Name: "amount", Type: schema.Number, Required: true},
			},
		}},
		{Name: "endDate", Type: schema.Date, Required: true},
		{Name: "currentDate", Type: schema.Date, Required: true},
	},
}

type DailyLimitRequest struct {
	TotalBudget decimal.Decimal
	Reserve     decimal.Decimal
	// Expenses only contribute their amounts; dates are informational.
	Expenses    []decimal.Decimal
	EndDate     core.Date
	CurrentDate core.Date
}

type DailyLimitResult struct {
	DailyLimit      decimal.Decimal
	RemainingBudget decimal.Decimal
	RemainingDays   int
	Status          Status
	Message         string
}

// DecodeDailyLimit validates a raw request body.
func DecodeDailyLimit(body map[string]any) (DailyLimitRequest, error) {
	v, err := dailyLimitSchema.Validate(body)
	if err != nil {
		return DailyLimitRequest{}, fromSchema(err)
	}
	req := DailyLimitRequest{
		TotalBudget: v.Decimal("totalBudget"),
		Reserve:     v.Decimal("reserve"),
	}
	req.EndDate, _ = v.Date("endDate")
	req.CurrentDate, _ = v.Date("currentDate")
	for _, e := range v.List("expenses") {
		req.Expenses = append(req.Expenses, e.Decimal("amount"))
	}
	return req, nil
}

// DailyLimit computes how much can be spent per day for the rest of the period.
// The current day counts as a spending day. The limit is floored at the cent
// so it never exceeds remainingBudget / remainingDays.
func DailyLimit(req DailyLimitRequest) (DailyLimitResult, error) {
	return guard("daily-limit", func() (DailyLimitResult, error) {
		remaining := req.TotalBudget.Sub(req.Reserve).Sub(decimal.Sum(decimal.Zero, req.Expenses...))
		days := req.CurrentDate.DaysUntil(req.EndDate) + 1

		if days <= 0 {
			return DailyLimitResult{
				DailyLimit:      decimal.Zero,
				RemainingBudget: remaining,
				RemainingDays:   0,
				Status:          StatusWarning,
				Message:         msgPeriodEnded,
			}, nil
		}

		res := DailyLimitResult{
			DailyLimit:      core.FloorDivCents(remaining, decimal.NewFromInt(int64(days))),
			RemainingBudget: remaining,
			RemainingDays:   days,
			Status:          StatusOK,
			Message:         msgOnTrack,
		}
		if remaining.LessThanOrEqual(req.TotalBudget.Mul(warningRatio)) {
			res.Status = StatusWarning
			res.Message = msgNearLimit
		}
		return res, nil
	})
}
