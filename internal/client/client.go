// Package client calls the calculator services over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/config"
	applog "fintrack/internal/log"
)

const headerCorrelationID = "X-Correlation-ID"

// Endpoints are the full URLs of the four calculators.
type Endpoints struct {
	DailyLimit string
	Aggregate  string
	Projection string
	Alerts     string
}

type Config struct {
	Endpoints Endpoints
	// Timeout bounds each call. Zero means 5s.
	Timeout time.Duration
	// Debug logs every payload and correlation id at INFO.
	Debug      bool
	Logger     *applog.Logger
	HTTPClient *http.Client
	// NewID overrides correlation id generation.
	NewID func() string
}

// FromAppConfig builds a client config from the application config.
func FromAppConfig(c *config.Config, logger *applog.Logger) Config {
	return Config{
		Endpoints: Endpoints{
			DailyLimit: c.DailyLimitURL,
			Aggregate:  c.AggregateURL,
			Projection: c.ProjectionURL,
			Alerts:     c.AlertsURL,
		},
		Timeout: c.ClientTimeout,
		Debug:   c.Debug,
		Logger:  logger,
	}
}

// Client posts JSON to the calculators. It never retries.
type Client struct {
	endpoints Endpoints
	timeout   time.Duration
	debug     bool
	logger    *applog.Logger
	http      *http.Client
	newID     func() string
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = applog.Discard()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Client{
		endpoints: cfg.Endpoints,
		timeout:   cfg.Timeout,
		debug:     cfg.Debug,
		logger:    cfg.Logger.WithComponent(applog.ComponentClient),
		http:      cfg.HTTPClient,
		newID:     cfg.NewID,
	}
}

// APIError is a non-2xx calculator response.
type APIError struct {
	Status        int
	Message       string
	CorrelationID string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("calculator returned %d", e.Status)
	}
	return fmt.Sprintf("calculator returned %d: %s", e.Status, e.Message)
}

// IsValidation reports whether err is a 400 from a calculator.
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest
}

// num renders d as a bare JSON number; decimal.Decimal marshals as a string.
func num(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// post sends payload to url and decodes a 2xx body into out. It returns the
// correlation id the server echoed.
func (c *Client) post(ctx context.Context, url string, payload, out any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	id := c.newID()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerCorrelationID, id)

	if c.debug {
		c.logger.InfoContext(ctx, "Calculator request",
			"url", url,
			applog.FieldRequestID, id,
			"payload", string(body))
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return id, fmt.Errorf("call %s: %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return id, fmt.Errorf("read response: %w", err)
	}
	if echoed := resp.Header.Get(headerCorrelationID); echoed != "" {
		id = echoed
	}

	c.logger.DebugContext(ctx, "Calculator response",
		"url", url,
		applog.FieldRequestID, id,
		applog.FieldStatusCode, resp.StatusCode,
		applog.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, CorrelationID: id}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil {
			apiErr.Message = e.Error
		}
		return id, apiErr
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return id, fmt.Errorf("decode response: %w", err)
	}
	return id, nil
}
