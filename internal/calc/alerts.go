package calc

import (
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/schema"
)

const (
	msgOverspend  = "Remaining budget is within the warning threshold."
	msgLowReserve = "Reserve balance is below the safe threshold."
	msgNotNumbers = "All budget and threshold fields must be numbers"
)

var alertsSchema = &schema.Schema{
	Fields: []schema.Field{
		{Name: "remainingBudget", Type: schema.Number, Required: true, Coerce: true, Message: msgNotNumbers},
		{Name: "warningThreshold", Type: schema.Number, Required: true, Coerce: true, Message: msgNotNumbers},
		{Name: "reserveBalance", Type: schema.Number, Required: true, Coerce: true, Message: msgNotNumbers},
		{Name: "reserveThreshold", Type: schema.Number, Required: true, Coerce: true, Message: msgNotNumbers},
	},
}

type AlertsRequest struct {
	RemainingBudget  decimal.Decimal
	WarningThreshold decimal.Decimal
	ReserveBalance   decimal.Decimal
	ReserveThreshold decimal.Decimal
}

func DecodeAlerts(body map[string]any) (AlertsRequest, error) {
	v, err := alertsSchema.Validate(body)
	if err != nil {
		return AlertsRequest{}, fromSchema(err)
	}
	return AlertsRequest{
		RemainingBudget:  v.Decimal("remainingBudget"),
		WarningThreshold: v.Decimal("warningThreshold"),
		ReserveBalance:   v.Decimal("reserveBalance"),
		ReserveThreshold: v.Decimal("reserveThreshold"),
	}, nil
}

// Alerts evaluates both conditions independently. Overspend is always listed
// before low reserve.
func Alerts(req AlertsRequest) ([]core.Alert, error) {
	return guard("alerts", func() ([]core.Alert, error) {
		alerts := []core.Alert{}
		if req.RemainingBudget.LessThanOrEqual(req.WarningThreshold) {
			alerts = append(alerts, core.Alert{Kind: core.AlertOverspend, Message: msgOverspend})
		}
		if req.ReserveBalance.LessThan(req.ReserveThreshold) {
			alerts = append(alerts, core.Alert{Kind: core.AlertLowReserve, Message: msgLowReserve})
		}
		return alerts, nil
	})
}
