package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Service names accepted by CALC_SERVICES.
var knownServices = []string{"daily-limit", "aggregate-expenses", "project-balance", "alerts"}

type Config struct {
	// Calculator servers
	Addr               string // when set, every service shares this listener
	DailyLimitPort     int
	AggregatePort      int
	ProjectionPort     int
	AlertsPort         int
	Services           []string
	RateLimitPerMinute int
	MaxProjectionDays  int
	Timezone           string

	// Logging
	LogLevel  string
	LogFormat string

	// Ledger
	LedgerBackend string
	LedgerPath    string
	SQLiteDBPath  string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Calculator client
	DailyLimitURL string
	AggregateURL  string
	ProjectionURL string
	AlertsURL     string
	ClientTimeout time.Duration

	// Budget watcher
	WatchReserve          decimal.Decimal
	WatchWarningRatio     decimal.Decimal
	WatchReserveThreshold decimal.Decimal
	WatchInterval         time.Duration // zero disables periodic checks

	Debug bool
}

// Defaults returns the configuration used when neither a file nor the
// environment sets a value.
func Defaults() *Config {
	return &Config{
		DailyLimitPort:     5000,
		AggregatePort:      5001,
		ProjectionPort:     5002,
		AlertsPort:         5003,
		Services:           []string{"all"},
		RateLimitPerMinute: 120,
		MaxProjectionDays:  3660,

		LogLevel:  "info",
		LogFormat: "text",

		LedgerBackend: "json",
		LedgerPath:    "data.json",
		SQLiteDBPath:  "./data/fintrack.db",

		AMQPExchange: "fintrack",
		AMQPQueue:    "expense_recorded",

		GoogleSheetName: "Expenses",

		DailyLimitURL: "http://localhost:5000/daily-limit",
		AggregateURL:  "http://localhost:5001/aggregate-expenses",
		ProjectionURL: "http://localhost:5002/project-balance",
		AlertsURL:     "http://localhost:5003/alerts",
		ClientTimeout: 5 * time.Second,

		WatchReserve:          decimal.Zero,
		WatchWarningRatio:     decimal.RequireFromString("0.2"),
		WatchReserveThreshold: decimal.Zero,
		WatchInterval:         time.Hour,
	}
}

// Load builds the configuration from defaults and the environment.
func Load() *Config {
	cfg := Defaults()
	cfg.applyEnv()
	return cfg
}

// LoadWithFile layers the TOML file at path between the defaults and the
// environment. A missing file is not an error.
func LoadWithFile(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		fc, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		fc.apply(cfg)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Addr = getEnv("CALC_ADDR", c.Addr)
	c.DailyLimitPort = getEnvInt("DAILY_LIMIT_PORT", c.DailyLimitPort)
	c.AggregatePort = getEnvInt("AGGREGATE_PORT", c.AggregatePort)
	c.ProjectionPort = getEnvInt("PROJECTION_PORT", c.ProjectionPort)
	c.AlertsPort = getEnvInt("ALERTS_PORT", c.AlertsPort)
	c.Services = getEnvList("CALC_SERVICES", c.Services)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	c.MaxProjectionDays = getEnvInt("MAX_PROJECTION_DAYS", c.MaxProjectionDays)
	c.Timezone = getEnv("CALC_TIMEZONE", c.Timezone)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	c.LedgerBackend = getEnv("LEDGER_BACKEND", c.LedgerBackend)
	c.LedgerPath = getEnv("LEDGER_PATH", c.LedgerPath)
	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)

	c.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleSheetName = getEnv("GOOGLE_SHEET_NAME", c.GoogleSheetName)
	c.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", c.GoogleServiceAccountJSON)
	c.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", c.GoogleServiceAccountFile))

	c.DailyLimitURL = getEnv("DAILY_LIMIT_URL", c.DailyLimitURL)
	c.AggregateURL = getEnv("AGGREGATE_URL", c.AggregateURL)
	c.ProjectionURL = getEnv("PROJECTION_URL", c.ProjectionURL)
	c.AlertsURL = getEnv("ALERTS_URL", c.AlertsURL)
	c.ClientTimeout = getEnvDuration("CLIENT_TIMEOUT", c.ClientTimeout)

	c.WatchReserve = getEnvDecimal("WATCH_RESERVE", c.WatchReserve)
	c.WatchWarningRatio = getEnvDecimal("WATCH_WARNING_RATIO", c.WatchWarningRatio)
	c.WatchReserveThreshold = getEnvDecimal("WATCH_RESERVE_THRESHOLD", c.WatchReserveThreshold)
	c.WatchInterval = getEnvDuration("WATCH_INTERVAL", c.WatchInterval)

	c.Debug = getEnvBool("DEBUG", c.Debug)
}

// Location resolves CALC_TIMEZONE, falling back to the local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ServiceEnabled reports whether name is listed in Services (or "all" is).
func (c *Config) ServiceEnabled(name string) bool {
	for _, s := range c.Services {
		if s == "all" || s == name {
			return true
		}
	}
	return false
}

// Validate validates the configuration and returns every problem at once.
func (c *Config) Validate() error {
	var errors []string

	for _, p := range []struct {
		name string
		port int
	}{
		{"DAILY_LIMIT_PORT", c.DailyLimitPort},
		{"AGGREGATE_PORT", c.AggregatePort},
		{"PROJECTION_PORT", c.ProjectionPort},
		{"ALERTS_PORT", c.AlertsPort},
	} {
		if p.port < 1 || p.port > 65535 {
			errors = append(errors, fmt.Sprintf("invalid %s %d: must be between 1 and 65535", p.name, p.port))
		}
	}

	if len(c.Services) == 0 {
		errors = append(errors, "CALC_SERVICES cannot be empty")
	}
	for _, s := range c.Services {
		if s != "all" && !contains(knownServices, s) {
			errors = append(errors, fmt.Sprintf("unknown calculator service '%s': must be 'all' or one of %v", s, knownServices))
		}
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be zero (disabled) or positive", c.RateLimitPerMinute))
	}
	if c.MaxProjectionDays < 0 {
		errors = append(errors, fmt.Sprintf("invalid max projection days %d: must not be negative", c.MaxProjectionDays))
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
		}
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	validBackends := []string{"json", "sqlite", "memory"}
	if !contains(validBackends, c.LedgerBackend) {
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of %v", c.LedgerBackend, validBackends))
	}
	if c.LedgerBackend == "json" && c.LedgerPath == "" {
		errors = append(errors, "ledger path cannot be empty when using json backend")
	}
	if c.LedgerBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	for _, u := range []struct{ name, value string }{
		{"DAILY_LIMIT_URL", c.DailyLimitURL},
		{"AGGREGATE_URL", c.AggregateURL},
		{"PROJECTION_URL", c.ProjectionURL},
		{"ALERTS_URL", c.AlertsURL},
	} {
		parsed, err := url.Parse(u.value)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be an absolute http(s) URL", u.name, u.value))
		}
	}
	if c.ClientTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid client timeout %v: must be positive", c.ClientTimeout))
	}

	if c.GoogleSpreadsheetID != "" && c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided when GOOGLE_SPREADSHEET_ID is set")
	}

	if c.WatchWarningRatio.IsNegative() || c.WatchWarningRatio.GreaterThan(decimal.NewFromInt(1)) {
		errors = append(errors, fmt.Sprintf("invalid watch warning ratio %s: must be between 0 and 1", c.WatchWarningRatio))
	}

	if c.WatchInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid watch interval %v: must be zero (disabled) or positive", c.WatchInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
