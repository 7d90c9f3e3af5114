package calc

import (
	"fmt"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/schema"
)

var projectionSchema = &schema.Schema{
	Fields: []schema.Field{
		{Name: "currentBalance", Type: schema.Number, Required: true, Coerce: true,
			Message: "'currentBalance' and 'dailyLimit' must be numbers"},
		{Name: "dailyLimit", Type: schema.Number, Required: true, Coerce: true,
			Message: "'currentBalance' and 'dailyLimit' must be numbers"},
		{Name: "projectionEndDate", Type: schema.Date, Required: true},
	},
}

type ProjectionRequest struct {
	CurrentBalance decimal.Decimal
	DailyLimit     decimal.Decimal
	EndDate        core.Date
}

func DecodeProjection(body map[string]any) (ProjectionRequest, error) {
	v, err := projectionSchema.Validate(body)
	if err != nil {
		return ProjectionRequest{}, fromSchema(err)
	}
	req := ProjectionRequest{
		CurrentBalance: v.Decimal("currentBalance"),
		DailyLimit:     v.Decimal("dailyLimit"),
	}
	req.EndDate, _ = v.Date("projectionEndDate")
	return req, nil
}

// Project forecasts the balance for every day after today through the end
// date inclusive, spending DailyLimit each day. Entry i (1-based) is
// round(CurrentBalance - DailyLimit*i, 2). maxDays bounds the horizon; zero
// disables the bound.
func Project(req ProjectionRequest, today core.Date, maxDays int) ([]core.ProjectionEntry, error) {
	days := today.DaysUntil(req.EndDate)
	if maxDays > 0 && days > maxDays {
		return nil, invalid(fmt.Sprintf("projectionEndDate must be within %d days of today", maxDays))
	}

	return guard("project-balance", func() ([]core.ProjectionEntry, error) {
		if days <= 0 {
			return []core.ProjectionEntry{}, nil
		}
		out := make([]core.ProjectionEntry, 0, days)
		for i := 1; i <= days; i++ {
			spent := req.DailyLimit.Mul(decimal.NewFromInt(int64(i)))
			out = append(out, core.ProjectionEntry{
				Date:    today.AddDays(i),
				Balance: core.RoundCents(req.CurrentBalance.Sub(spent)),
			})
		}
		return out, nil
	})
}
