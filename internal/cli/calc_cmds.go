package cli

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fintrack/internal/client"
	"fintrack/internal/core"
)

func (a *app) dailyLimitCmd() *cobra.Command {
	var reserve, endDate string
	cmd := &cobra.Command{
		Use:   "daily-limit",
		Short: "Daily spending limit for the rest of the period",
		Long: "Asks the daily-limit calculator how much can be spent per day. The total\n" +
			"budget is the sum of all account balances.",
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			in, err := a.dailyLimitInput(cmd, reserve, endDate)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out())
			fmt.Fprintln(a.out(), RenderTitle("Daily Spending Limit"))
			fmt.Fprintf(a.out(), "\n  Derived totalBudget from accounts: %s\n\n", formatMoney(in.TotalBudget))

			res, err := a.calc.DailyLimit(cmd.Context(), in)
			if err != nil {
				return calcError(err)
			}
			fmt.Fprint(a.out(), RenderKV([][2]string{
				{"Correlation ID", res.CorrelationID},
				{"Daily Spending Limit", formatMoney(res.DailyLimit)},
				{"Remaining Budget", formatMoney(res.RemainingBudget)},
				{"Remaining Days", strconv.Itoa(res.RemainingDays)},
				{"Status", renderStatus(res.Status)},
				{"Message", res.Message},
			}))
			return nil
		}),
	}
	cmd.Flags().StringVar(&reserve, "reserve", "0", "Amount to keep out of the budget")
	cmd.Flags().StringVar(&endDate, "end-date", "", "Last day of the period, YYYY-MM-DD (default end of this month)")
	return cmd
}

func (a *app) dailyLimitInput(cmd *cobra.Command, reserve, endDate string) (client.DailyLimitInput, error) {
	l := a.service.Ledger()
	today := a.today()

	r := decimal.Zero
	if cmd.Flags().Changed("reserve") {
		d, err := core.ParseAmount(reserve)
		if err != nil {
			return client.DailyLimitInput{}, fmt.Errorf("invalid reserve %q", reserve)
		}
		r = d
	}
	end := today.EndOfMonth()
	if endDate != "" {
		d, err := core.ParseDate(endDate)
		if err != nil {
			return client.DailyLimitInput{}, fmt.Errorf("invalid end date %q: use YYYY-MM-DD", endDate)
		}
		end = d
	}
	return client.DailyLimitInput{
		TotalBudget: l.TotalBalance(),
		Reserve:     r,
		Expenses:    l.Expenses,
		EndDate:     end,
		CurrentDate: today,
	}, nil
}

func (a *app) aggregateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate",
		Short: "Total spending per category",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			res, err := a.calc.Aggregate(cmd.Context(), a.service.Ledger().Expenses)
			if err != nil {
				return calcError(err)
			}
			if len(res.Totals) == 0 {
				fmt.Fprintln(a.out(), "No expenses recorded.")
				return nil
			}

			categories := make([]string, 0, len(res.Totals))
			for c := range res.Totals {
				categories = append(categories, c)
			}
			sort.Strings(categories)
			rows := make([][]string, 0, len(categories))
			for _, c := range categories {
				rows = append(rows, []string{c, formatMoney(res.Totals[c])})
			}
			fmt.Fprint(a.out(), RenderTable(Table{
				Title:   "Spending by Category",
				Headers: []string{"Category", "Total"},
				Rows:    rows,
			}))
			fmt.Fprintf(a.out(), "  Correlation ID: %s\n", res.CorrelationID)
			return nil
		}),
	}
}

func (a *app) projectCmd() *cobra.Command {
	var balance, dailyLimit, endDate, reserve string
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project the balance day by day",
		Long: "Projects the balance from tomorrow through --end-date. Without --daily-limit\n" +
			"the limit is fetched from the daily-limit calculator first.",
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			if endDate == "" {
				return missingFlags(cmd, "end-date")
			}
			end, err := core.ParseDate(endDate)
			if err != nil {
				return fmt.Errorf("invalid end date %q: use YYYY-MM-DD", endDate)
			}

			in := client.ProjectionInput{CurrentBalance: a.service.Ledger().TotalBalance(), EndDate: end}
			if balance != "" {
				if in.CurrentBalance, err = core.ParseAmount(balance); err != nil {
					return fmt.Errorf("invalid balance %q", balance)
				}
			}
			if dailyLimit != "" {
				if in.DailyLimit, err = core.ParseAmount(dailyLimit); err != nil {
					return fmt.Errorf("invalid daily limit %q", dailyLimit)
				}
			} else {
				dlIn, err := a.dailyLimitInput(cmd, reserve, "")
				if err != nil {
					return err
				}
				dl, err := a.calc.DailyLimit(cmd.Context(), dlIn)
				if err != nil {
					return calcError(err)
				}
				in.DailyLimit = dl.DailyLimit
			}

			res, err := a.calc.Project(cmd.Context(), in)
			if err != nil {
				return calcError(err)
			}
			if len(res.Entries) == 0 {
				fmt.Fprintln(a.out(), "Nothing to project: the end date is not after today.")
				return nil
			}
			rows := make([][]string, 0, len(res.Entries))
			for _, e := range res.Entries {
				rows = append(rows, []string{e.Date.String(), formatMoney(e.Balance)})
			}
			fmt.Fprint(a.out(), RenderTable(Table{
				Title:   fmt.Sprintf("Projection at %s/day", formatMoney(in.DailyLimit)),
				Headers: []string{"Date", "Projected Balance"},
				Rows:    rows,
			}))
			fmt.Fprintf(a.out(), "  Correlation ID: %s\n", res.CorrelationID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&endDate, "end-date", "", "Last projected day, YYYY-MM-DD")
	cmd.Flags().StringVar(&balance, "balance", "", "Starting balance (default sum of account balances)")
	cmd.Flags().StringVar(&dailyLimit, "daily-limit", "", "Spending per day (default from the daily-limit calculator)")
	cmd.Flags().StringVar(&reserve, "reserve", "0", "Reserve used when deriving the daily limit")
	return cmd
}

func (a *app) alertsCmd() *cobra.Command {
	var remaining, warning, reserve, reserveThreshold string
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Check budget alerts",
		Long: "Evaluates overspend and low-reserve alerts. Defaults: remaining budget is\n" +
			"balances minus recorded expenses, warning threshold is WATCH_WARNING_RATIO\n" +
			"of the balances, reserve values come from WATCH_RESERVE and\n" +
			"WATCH_RESERVE_THRESHOLD.",
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			l := a.service.Ledger()
			total := l.TotalBalance()
			in := client.AlertsInput{
				RemainingBudget:  total.Sub(decimal.Sum(decimal.Zero, l.ExpenseAmounts()...)),
				WarningThreshold: total.Mul(a.cfg.WatchWarningRatio),
				ReserveBalance:   a.cfg.WatchReserve,
				ReserveThreshold: a.cfg.WatchReserveThreshold,
			}
			for _, f := range []struct {
				name string
				raw  string
				dst  *decimal.Decimal
			}{
				{"remaining", remaining, &in.RemainingBudget},
				{"warning", warning, &in.WarningThreshold},
				{"reserve", reserve, &in.ReserveBalance},
				{"reserve-threshold", reserveThreshold, &in.ReserveThreshold},
			} {
				if f.raw == "" {
					continue
				}
				d, err := core.ParseAmount(f.raw)
				if err != nil {
					return fmt.Errorf("invalid --%s %q", f.name, f.raw)
				}
				*f.dst = d
			}

			res, err := a.calc.Alerts(cmd.Context(), in)
			if err != nil {
				return calcError(err)
			}
			if len(res.Alerts) == 0 {
				fmt.Fprintln(a.out(), success("No alerts."))
			}
			for _, al := range res.Alerts {
				fmt.Fprintf(a.out(), "%s %s\n", warnStyle.Render("["+string(al.Kind)+"]"), al.Message)
			}
			fmt.Fprintf(a.out(), "  Correlation ID: %s\n", res.CorrelationID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&remaining, "remaining", "", "Remaining budget")
	cmd.Flags().StringVar(&warning, "warning", "", "Warning threshold for the remaining budget")
	cmd.Flags().StringVar(&reserve, "reserve", "", "Reserve balance")
	cmd.Flags().StringVar(&reserveThreshold, "reserve-threshold", "", "Minimum safe reserve balance")
	return cmd
}

// calcError keeps the calculator's message and correlation id visible.
func calcError(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.CorrelationID != "" {
		return fmt.Errorf("%w (correlation id %s)", err, apiErr.CorrelationID)
	}
	return fmt.Errorf("error calling calculator: %w", err)
}
