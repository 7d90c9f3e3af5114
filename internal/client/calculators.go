package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

type DailyLimitInput struct {
	TotalBudget decimal.Decimal
	Reserve     decimal.Decimal
	Expenses    []core.Expense
	EndDate     core.Date
	CurrentDate core.Date
}

type DailyLimitResult struct {
	DailyLimit      decimal.Decimal `json:"dailyLimit"`
	RemainingBudget decimal.Decimal `json:"remainingBudget"`
	RemainingDays   int             `json:"remainingDays"`
	Status          string          `json:"status"`
	Message         string          `json:"message"`
	CorrelationID   string          `json:"correlationId"`
}

type expensePayload struct {
	Date     string      `json:"date,omitempty"`
	Amount   json.Number `json:"amount"`
	Category string      `json:"category,omitempty"`
}

func (c *Client) DailyLimit(ctx context.Context, in DailyLimitInput) (*DailyLimitResult, error) {
	expenses := make([]expensePayload, 0, len(in.Expenses))
	for _, e := range in.Expenses {
		expenses = append(expenses, expensePayload{Date: e.Date.String(), Amount: num(e.Amount)})
	}
	payload := map[string]any{
		"totalBudget": num(in.TotalBudget),
		"reserve":     num(in.Reserve),
		"expenses":    expenses,
		"endDate":     in.EndDate.String(),
		"currentDate": in.CurrentDate.String(),
	}

	var out DailyLimitResult
	id, err := c.post(ctx, c.endpoints.DailyLimit, payload, &out)
	if err != nil {
		return nil, err
	}
	if out.CorrelationID == "" {
		out.CorrelationID = id
	}
	return &out, nil
}

type AggregateResult struct {
	Totals        map[string]decimal.Decimal
	CorrelationID string
}

func (c *Client) Aggregate(ctx context.Context, expenses []core.Expense) (*AggregateResult, error) {
	items := make([]expensePayload, 0, len(expenses))
	for _, e := range expenses {
		items = append(items, expensePayload{Category: e.Category, Amount: num(e.Amount)})
	}

	var raw map[string]any
	id, err := c.post(ctx, c.endpoints.Aggregate, map[string]any{"expenses": items}, &raw)
	if err != nil {
		return nil, err
	}

	out := &AggregateResult{Totals: make(map[string]decimal.Decimal, len(raw)), CorrelationID: id}
	for k, v := range raw {
		if k == "correlationId" {
			if s, ok := v.(string); ok {
				out.CorrelationID = s
			}
			continue
		}
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("decode response: category %q is not a number", k)
		}
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return nil, fmt.Errorf("decode response: category %q: %w", k, err)
		}
		out.Totals[k] = d
	}
	return out, nil
}

type ProjectionInput struct {
	CurrentBalance decimal.Decimal
	DailyLimit     decimal.Decimal
	EndDate        core.Date
}

type ProjectionResult struct {
	Entries       []core.ProjectionEntry
	CorrelationID string
}

func (c *Client) Project(ctx context.Context, in ProjectionInput) (*ProjectionResult, error) {
	payload := map[string]any{
		"currentBalance":    num(in.CurrentBalance),
		"dailyLimit":        num(in.DailyLimit),
		"projectionEndDate": in.EndDate.String(),
	}

	var out struct {
		Projection []struct {
			Date             core.Date       `json:"date"`
			ProjectedBalance decimal.Decimal `json:"projectedBalance"`
		} `json:"projection"`
		CorrelationID string `json:"correlationId"`
	}
	id, err := c.post(ctx, c.endpoints.Projection, payload, &out)
	if err != nil {
		return nil, err
	}

	res := &ProjectionResult{Entries: make([]core.ProjectionEntry, 0, len(out.Projection)), CorrelationID: out.CorrelationID}
	if res.CorrelationID == "" {
		res.CorrelationID = id
	}
	for _, p := range out.Projection {
		res.Entries = append(res.Entries, core.ProjectionEntry{Date: p.Date, Balance: p.ProjectedBalance})
	}
	return res, nil
}

type AlertsInput struct {
	RemainingBudget  decimal.Decimal
	WarningThreshold decimal.Decimal
	ReserveBalance   decimal.Decimal
	ReserveThreshold decimal.Decimal
}

type AlertsResult struct {
	Alerts        []core.Alert
	CorrelationID string
}

func (c *Client) Alerts(ctx context.Context, in AlertsInput) (*AlertsResult, error) {
	payload := map[string]any{
		"remainingBudget":  num(in.RemainingBudget),
		"warningThreshold": num(in.WarningThreshold),
		"reserveBalance":   num(in.ReserveBalance),
		"reserveThreshold": num(in.ReserveThreshold),
	}

	var out struct {
		Alerts []struct {
			Alert   string `json:"alert"`
			Message string `json:"message"`
		} `json:"alerts"`
		CorrelationID string `json:"correlationId"`
	}
	id, err := c.post(ctx, c.endpoints.Alerts, payload, &out)
	if err != nil {
		return nil, err
	}

	res := &AlertsResult{Alerts: make([]core.Alert, 0, len(out.Alerts)), CorrelationID: out.CorrelationID}
	if res.CorrelationID == "" {
		res.CorrelationID = id
	}
	for _, a := range out.Alerts {
		res.Alerts = append(res.Alerts, core.Alert{Kind: core.AlertKind(a.Alert), Message: a.Message})
	}
	return res, nil
}
