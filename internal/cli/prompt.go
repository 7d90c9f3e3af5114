package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"fintrack/internal/core"
)

var errCancelled = errors.New("cancelled")

// AccountInput and ExpenseInput hold raw form values; they are parsed by
// the command after the prompt returns.
type AccountInput struct {
	Name    string
	Type    string
	Balance string
}

type ExpenseInput struct {
	Date     string
	Amount   string
	Category string
}

// Prompter fills in values the user did not pass as flags.
type Prompter interface {
	Account(in *AccountInput) error
	Expense(in *ExpenseInput) error
	// SelectAccount returns the one-based position of the chosen account.
	SelectAccount(accounts []core.Account) (int, error)
}

// defaultPrompter returns a huh-backed prompter when stdin is a terminal
// and nil otherwise, in which case missing flags are errors.
func defaultPrompter() Prompter {
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return huhPrompter{}
	}
	return nil
}

type huhPrompter struct{}

func (huhPrompter) Account(in *AccountInput) error {
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Account name").Value(&in.Name).Validate(required("name")),
		huh.NewInput().Title("Account type").Placeholder("Checking").Value(&in.Type).Validate(required("type")),
		huh.NewInput().Title("Initial balance ($)").Value(&in.Balance).Validate(validAmount),
	))
	return runForm(form)
}

func (huhPrompter) Expense(in *ExpenseInput) error {
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Date (YYYY-MM-DD)").Value(&in.Date).Validate(validDate),
		huh.NewInput().Title("Amount ($)").Value(&in.Amount).Validate(validAmount),
		huh.NewInput().Title("Category").Value(&in.Category).Validate(required("category")),
	))
	return runForm(form)
}

func (huhPrompter) SelectAccount(accounts []core.Account) (int, error) {
	options := make([]huh.Option[int], 0, len(accounts))
	for i, a := range accounts {
		options = append(options, huh.NewOption(fmt.Sprintf("%d) %s (%s)", i+1, a.Name, formatMoney(a.Balance)), i+1))
	}
	var pos int
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[int]().Title("Select account to delete").Options(options...).Value(&pos),
	))
	if err := runForm(form); err != nil {
		return 0, err
	}
	return pos, nil
}

func runForm(form *huh.Form) error {
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errCancelled
		}
		return err
	}
	return nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validAmount(s string) error {
	_, err := core.ParseAmount(s)
	return err
}

func validDate(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	_, err := core.ParseDate(strings.TrimSpace(s))
	return err
}
