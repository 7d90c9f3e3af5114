package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// FileConfig mirrors the optional config.toml. Zero values leave the default
// in place.
type FileConfig struct {
	Server      ServerFile     `toml:"server"`
	Log         LogFile        `toml:"log"`
	Ledger      LedgerFile     `toml:"ledger"`
	Calculators CalculatorFile `toml:"calculators"`
	AMQP        AMQPFile       `toml:"amqp"`
	Sheets      SheetsFile     `toml:"sheets"`
	Watch       WatchFile      `toml:"watch"`
	Debug       bool           `toml:"debug"`
}

type ServerFile struct {
	Addr               string   `toml:"addr,omitempty"`
	DailyLimitPort     int      `toml:"daily_limit_port,omitempty"`
	AggregatePort      int      `toml:"aggregate_port,omitempty"`
	ProjectionPort     int      `toml:"projection_port,omitempty"`
	AlertsPort         int      `toml:"alerts_port,omitempty"`
	Services           []string `toml:"services,omitempty"`
	RateLimitPerMinute *int     `toml:"rate_limit_per_minute,omitempty"`
	MaxProjectionDays  *int     `toml:"max_projection_days,omitempty"`
	Timezone           string   `toml:"timezone,omitempty"`
}

type LogFile struct {
	Level  string `toml:"level,omitempty"`
	Format string `toml:"format,omitempty"`
}

type LedgerFile struct {
	Backend    string `toml:"backend,omitempty"`
	Path       string `toml:"path,omitempty"`
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

type CalculatorFile struct {
	DailyLimitURL string `toml:"daily_limit_url,omitempty"`
	AggregateURL  string `toml:"aggregate_url,omitempty"`
	ProjectionURL string `toml:"projection_url,omitempty"`
	AlertsURL     string `toml:"alerts_url,omitempty"`
	Timeout       string `toml:"timeout,omitempty"`
}

type AMQPFile struct {
	URL      string `toml:"url,omitempty"`
	Exchange string `toml:"exchange,omitempty"`
	Queue    string `toml:"queue,omitempty"`
}

type SheetsFile struct {
	SpreadsheetID      string `toml:"spreadsheet_id,omitempty"`
	SheetName          string `toml:"sheet_name,omitempty"`
	ServiceAccountFile string `toml:"service_account_file,omitempty"`
}

// Watch amounts are strings so they stay exact.
type WatchFile struct {
	Reserve          string `toml:"reserve,omitempty"`
	WarningRatio     string `toml:"warning_ratio,omitempty"`
	ReserveThreshold string `toml:"reserve_threshold,omitempty"`
	Interval         string `toml:"interval,omitempty"`
}

// Dir returns the XDG config directory for fintrack.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fintrack")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "fintrack")
}

// Path returns the default config file location.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// ReadFile parses the TOML file at path. A missing file yields an empty FileConfig.
func ReadFile(path string) (FileConfig, error) {
	var fc FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fc, nil
		}
		return fc, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return fc, nil
}

// WriteFile saves fc to path, creating the directory if needed.
func WriteFile(path string, fc FileConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(fc)
}

func (fc FileConfig) apply(c *Config) {
	setString(&c.Addr, fc.Server.Addr)
	setInt(&c.DailyLimitPort, fc.Server.DailyLimitPort)
	setInt(&c.AggregatePort, fc.Server.AggregatePort)
	setInt(&c.ProjectionPort, fc.Server.ProjectionPort)
	setInt(&c.AlertsPort, fc.Server.AlertsPort)
	if len(fc.Server.Services) > 0 {
		c.Services = fc.Server.Services
	}
	if fc.Server.RateLimitPerMinute != nil {
		c.RateLimitPerMinute = *fc.Server.RateLimitPerMinute
	}
	if fc.Server.MaxProjectionDays != nil {
		c.MaxProjectionDays = *fc.Server.MaxProjectionDays
	}
	setString(&c.Timezone, fc.Server.Timezone)

	setString(&c.LogLevel, fc.Log.Level)
	setString(&c.LogFormat, fc.Log.Format)

	setString(&c.LedgerBackend, fc.Ledger.Backend)
	setString(&c.LedgerPath, fc.Ledger.Path)
	setString(&c.SQLiteDBPath, fc.Ledger.SQLitePath)

	setString(&c.DailyLimitURL, fc.Calculators.DailyLimitURL)
	setString(&c.AggregateURL, fc.Calculators.AggregateURL)
	setString(&c.ProjectionURL, fc.Calculators.ProjectionURL)
	setString(&c.AlertsURL, fc.Calculators.AlertsURL)
	if d, err := time.ParseDuration(fc.Calculators.Timeout); err == nil {
		c.ClientTimeout = d
	}

	setString(&c.AMQPURL, fc.AMQP.URL)
	setString(&c.AMQPExchange, fc.AMQP.Exchange)
	setString(&c.AMQPQueue, fc.AMQP.Queue)

	setString(&c.GoogleSpreadsheetID, fc.Sheets.SpreadsheetID)
	setString(&c.GoogleSheetName, fc.Sheets.SheetName)
	setString(&c.GoogleServiceAccountFile, fc.Sheets.ServiceAccountFile)

	setDecimal(&c.WatchReserve, fc.Watch.Reserve)
	setDecimal(&c.WatchWarningRatio, fc.Watch.WarningRatio)
	setDecimal(&c.WatchReserveThreshold, fc.Watch.ReserveThreshold)
	if d, err := time.ParseDuration(fc.Watch.Interval); err == nil {
		c.WatchInterval = d
	}

	if fc.Debug {
		c.Debug = true
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDecimal(dst *decimal.Decimal, v string) {
	if v == "" {
		return
	}
	if d, err := decimal.NewFromString(v); err == nil {
		*dst = d
	}
}
