package calc

import (
	"sort"

	"github.com/shopspring/decimal"

	"fintrack/internal/schema"
)

var aggregateSchema = &schema.Schema{
	Fields: []schema.Field{
		{Name: "expenses", Type: schema.List, Required: true, Items: &schema.Schema{
			Item: "expense",
			Fields: []schema.Field{
				{Name: "category", Type: schema.String, Required: true},
				{Name: "amount", Type: schema.Number, Required: true},
			},
		}},
	},
}

type CategoryAmount struct {
	Category string
	Amount   decimal.Decimal
}

type AggregateRequest struct {
	Expenses []CategoryAmount
}

// CategoryTotal is the rounded sum of one category.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
}

func DecodeAggregate(body map[string]any) (AggregateRequest, error) {
	v, err := aggregateSchema.Validate(body)
	if err != nil {
		return AggregateRequest{}, fromSchema(err)
	}
	var req AggregateRequest
	for _, e := range v.List("expenses") {
		req.Expenses = append(req.Expenses, CategoryAmount{
			Category: e.String("category"),
			Amount:   e.Decimal("amount"),
		})
	}
	return req, nil
}

// Aggregate sums amounts per category, rounds each total to the cent and drops
// categories whose total is zero or negative. Results are ordered by category.
func Aggregate(req AggregateRequest) ([]CategoryTotal, error) {
	return guard("aggregate", func() ([]CategoryTotal, error) {
		totals := make(map[string]decimal.Decimal)
		for _, e := range req.Expenses {
			totals[e.Category] = totals[e.Category].Add(e.Amount)
		}

		out := make([]CategoryTotal, 0, len(totals))
		for cat, total := range totals {
			if total.Sign() <= 0 {
				continue
			}
			out = append(out, CategoryTotal{Category: cat, Total: total.Round(2)})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
		return out, nil
	})
}
