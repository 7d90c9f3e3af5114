package sheets

import (
	"context"

	"fintrack/internal/core"
)

// ExpenseWriter exports a recorded expense to an external spreadsheet and
// returns a reference to the written row.
type ExpenseWriter interface {
	Append(ctx context.Context, e core.Expense) (rowRef string, err error)
}
