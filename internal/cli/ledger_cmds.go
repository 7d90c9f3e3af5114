package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

const recentExpenses = 5

func (a *app) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Account balances and the most recent expenses",
		Args:  cobra.NoArgs,
		RunE:  a.run(a.runDashboard),
	}
}

func (a *app) runDashboard(_ *cobra.Command, _ []string) error {
	l := a.service.Ledger()
	w := a.out()

	fmt.Fprintln(w)
	fmt.Fprintln(w, RenderTitle("Dashboard"))
	fmt.Fprintln(w)

	if len(l.Accounts) == 0 {
		fmt.Fprintln(w, "  No accounts yet. Add one with: fintrack account add")
	} else {
		fmt.Fprint(w, RenderTable(accountsTable("Account Balances", l.Accounts)))
		fmt.Fprintf(w, "  Total: %s\n", formatMoney(l.TotalBalance()))
	}
	fmt.Fprintln(w)

	recent := l.RecentExpenses(recentExpenses)
	if len(recent) == 0 {
		fmt.Fprintln(w, "  No expenses recorded.")
		return nil
	}
	fmt.Fprint(w, RenderTable(expensesTable("Recent Expenses", recent)))
	return nil
}

func accountsTable(title string, accounts []core.Account) Table {
	rows := make([][]string, 0, len(accounts))
	for i, acc := range accounts {
		rows = append(rows, []string{strconv.Itoa(i + 1), acc.Name, acc.Type, formatMoney(acc.Balance)})
	}
	return Table{Title: title, Headers: []string{"#", "Name", "Type", "Balance"}, Rows: rows}
}

func expensesTable(title string, expenses []core.Expense) Table {
	rows := make([][]string, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, []string{e.Date.String(), e.Category, formatMoney(e.Amount)})
	}
	return Table{Title: title, Headers: []string{"Date", "Category", "Amount"}, Rows: rows}
}

func (a *app) accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}

	var in AccountInput
	add := &cobra.Command{
		Use:   "add",
		Short: "Add an account",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			return a.addAccount(cmd, in)
		}),
	}
	add.Flags().StringVar(&in.Name, "name", "", "Account name")
	add.Flags().StringVar(&in.Type, "type", "", "Account type (e.g. Checking)")
	add.Flags().StringVar(&in.Balance, "balance", "", "Initial balance")

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: a.run(func(*cobra.Command, []string) error {
			l := a.service.Ledger()
			if len(l.Accounts) == 0 {
				fmt.Fprintln(a.out(), "No accounts yet.")
				return nil
			}
			fmt.Fprint(a.out(), RenderTable(accountsTable("", l.Accounts)))
			return nil
		}),
	}

	del := &cobra.Command{
		Use:   "delete [position]",
		Short: "Delete the account at a one-based position",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.run(a.deleteAccount),
	}

	cmd.AddCommand(add, list, del)
	return cmd
}

func (a *app) addAccount(cmd *cobra.Command, in AccountInput) error {
	if in.Name == "" || in.Type == "" || in.Balance == "" {
		p := a.prompter()
		if p == nil {
			return missingFlags(cmd, "name", "type", "balance")
		}
		if err := p.Account(&in); err != nil {
			return err
		}
	}

	balance, err := core.ParseAmount(in.Balance)
	if err != nil {
		return fmt.Errorf("invalid balance %q", in.Balance)
	}
	acc := core.Account{
		Name:    strings.TrimSpace(in.Name),
		Type:    strings.TrimSpace(in.Type),
		Balance: balance,
	}
	if err := a.service.AddAccount(cmd.Context(), acc); err != nil {
		return err
	}
	fmt.Fprintln(a.out(), success("Account added!"))
	return nil
}

func (a *app) deleteAccount(cmd *cobra.Command, args []string) error {
	accounts := a.service.Ledger().Accounts
	if len(accounts) == 0 {
		fmt.Fprintln(a.out(), "No accounts to delete.")
		return nil
	}

	var pos int
	if len(args) == 1 {
		n, err := strconv.Atoi(strings.TrimSpace(args[0]))
		if err != nil {
			return errors.New("invalid input: position must be a number")
		}
		pos = n
	} else {
		p := a.prompter()
		if p == nil {
			return errors.New("missing account position")
		}
		n, err := p.SelectAccount(accounts)
		if err != nil {
			return err
		}
		pos = n
	}

	removed, err := a.service.DeleteAccount(cmd.Context(), pos)
	if errors.Is(err, ledger.ErrAccountIndex) {
		return fmt.Errorf("invalid selection: choose 1-%d", len(accounts))
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out(), success("Removed account: "+removed.Name))
	return nil
}

func (a *app) expenseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "Record and list expenses",
	}

	var in ExpenseInput
	add := &cobra.Command{
		Use:   "add",
		Short: "Record an expense",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			return a.addExpense(cmd, in)
		}),
	}
	add.Flags().StringVar(&in.Date, "date", "", "Expense date YYYY-MM-DD (default today)")
	add.Flags().StringVar(&in.Amount, "amount", "", "Amount; negative for refunds")
	add.Flags().StringVar(&in.Category, "category", "", "Category")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List expenses, oldest first",
		Args:  cobra.NoArgs,
		RunE: a.run(func(*cobra.Command, []string) error {
			l := a.service.Ledger()
			expenses := l.Expenses
			if limit > 0 {
				expenses = l.RecentExpenses(limit)
			}
			if len(expenses) == 0 {
				fmt.Fprintln(a.out(), "No expenses recorded.")
				return nil
			}
			fmt.Fprint(a.out(), RenderTable(expensesTable("", expenses)))
			return nil
		}),
	}
	list.Flags().IntVarP(&limit, "limit", "n", 0, "Only show the n most recent expenses")

	cmd.AddCommand(add, list)
	return cmd
}

func (a *app) addExpense(cmd *cobra.Command, in ExpenseInput) error {
	if in.Amount == "" || in.Category == "" {
		p := a.prompter()
		if p == nil {
			return missingFlags(cmd, "amount", "category")
		}
		if in.Date == "" {
			in.Date = a.today().String()
		}
		if err := p.Expense(&in); err != nil {
			return err
		}
	}

	date := a.today()
	if s := strings.TrimSpace(in.Date); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			return fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
		}
		date = d
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q", in.Amount)
	}

	a.connectPublisher()
	e := core.Expense{Date: date, Amount: amount, Category: strings.TrimSpace(in.Category)}
	if err := a.service.RecordExpense(cmd.Context(), e); err != nil {
		return err
	}
	fmt.Fprintln(a.out(), success("Expense recorded!"))
	return nil
}

// missingFlags names the required flags that were not passed.
func missingFlags(cmd *cobra.Command, names ...string) error {
	var missing []string
	for _, n := range names {
		if f := cmd.Flags().Lookup(n); f != nil && f.Value.String() == "" {
			missing = append(missing, "--"+n)
		}
	}
	return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
}
