// Package google exports expenses to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/config"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	ports "fintrack/internal/sheets"
)

var ErrNotConfigured = errors.New("missing GOOGLE_SPREADSHEET_ID")

type Config struct {
	SpreadsheetID string
	// SheetName is the base tab name; the expense's year is prefixed.
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	Logger          *applog.Logger
}

func FromAppConfig(c *config.Config, logger *applog.Logger) Config {
	return Config{
		SpreadsheetID:   c.GoogleSpreadsheetID,
		SheetName:       c.GoogleSheetName,
		CredentialsJSON: c.GoogleServiceAccountJSON,
		CredentialsFile: c.GoogleServiceAccountFile,
		Logger:          logger,
	}
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	logger        *applog.Logger
}

var _ ports.ExpenseWriter = (*Client)(nil)

// New creates a client authenticated with service account credentials.
// Extra options are appended after the credentials, which lets tests point
// the client at a fake endpoint.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Logger == nil {
		cfg.Logger = applog.Discard()
	}
	sheetBase := strings.TrimSpace(cfg.SheetName)
	if sheetBase == "" {
		sheetBase = "Expenses"
	}

	logger := cfg.Logger.WithComponent(applog.ComponentSheets)
	svc, err := newSheetsService(ctx, cfg, logger, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
		logger:        logger,
	}, nil
}

func newSheetsService(ctx context.Context, cfg Config, logger *applog.Logger, extra []goption.ClientOption) (*gsheet.Service, error) {
	opts := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}

	credentialsJSON := strings.TrimSpace(cfg.CredentialsJSON)
	switch {
	case credentialsJSON != "":
		logger.DebugContext(ctx, "Using inline service account credentials")
		opts = append(opts, goption.WithCredentialsJSON([]byte(credentialsJSON)))
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		logger.DebugContext(ctx, "Read credentials file", "path", cfg.CredentialsFile)
		opts = append(opts, goption.WithCredentialsJSON(b))
	case len(extra) == 0:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Append adds a "date, category, amount" row to the year tab of the
// expense's date.
func (c *Client) Append(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(c.sheetBase, e.Date.Year())
	rng := fmt.Sprintf("'%s'!A:C", sheet)
	vr := &gsheet.ValueRange{Values: [][]any{rowValues(e)}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	ref := sheet
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Expense exported to sheet",
		applog.FieldOperation, applog.OpAppend,
		"range", ref,
		applog.FieldCategory, e.Category)
	return ref, nil
}

func rowValues(e core.Expense) []any {
	return []any{e.Date.String(), e.Category, e.Amount.InexactFloat64()}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
