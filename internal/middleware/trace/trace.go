// Package trace assigns every request a correlation id, echoes it back to the
// caller and records request logs and counters.
package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	applog "fintrack/internal/log"
)

// HeaderCorrelationID carries the caller's trace token in both directions.
const HeaderCorrelationID = "X-Correlation-ID"

type ContextKey string

const CorrelationIDKey ContextKey = "correlation_id"

type Middleware struct {
	extractIP func(*http.Request) string
	logger    *applog.StructuredLogger
	metrics   *counters
}

type counters struct {
	total         atomic.Int64
	clientErrors  atomic.Int64
	serverErrors  atomic.Int64
	inFlight      atomic.Int64
	totalDuration atomic.Int64 // microseconds
}

// Metrics is a point-in-time snapshot of the request counters.
type Metrics struct {
	TotalRequests       int64
	ClientErrors        int64
	ServerErrors        int64
	InFlight            int64
	AverageResponseTime int64 // microseconds
}

func NewMiddleware(logger *applog.Logger, extractIP func(*http.Request) string) *Middleware {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Middleware{
		extractIP: extractIP,
		logger:    applog.NewStructuredLogger(logger.WithComponent(applog.ComponentTrace)),
		metrics:   &counters{},
	}
}

// Middleware reads X-Correlation-ID (generating a UUID when absent), stores it
// in the request context and sets it on the response before the handler runs,
// so every status code carries it.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		// A caller-supplied id is echoed verbatim; only an empty one is replaced.
		id := r.Header.Get(HeaderCorrelationID)
		if id == "" {
			id = NewCorrelationID()
		}
		ctx := WithCorrelationID(r.Context(), id)
		r = r.WithContext(ctx)
		w.Header().Set(HeaderCorrelationID, id)

		m.metrics.total.Add(1)
		m.metrics.inFlight.Add(1)
		defer m.metrics.inFlight.Add(-1)

		m.logger.LogHTTPStart(ctx, r, id, clientIP)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		elapsed := time.Since(start)
		m.metrics.totalDuration.Add(elapsed.Microseconds())
		switch {
		case rw.statusCode >= 500:
			m.metrics.serverErrors.Add(1)
		case rw.statusCode >= 400:
			m.metrics.clientErrors.Add(1)
		}

		m.logger.LogHTTPEnd(ctx, r, id, rw.statusCode, elapsed.Milliseconds(), clientIP)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// NewCorrelationID returns a random UUIDv4 string.
func NewCorrelationID() string {
	return uuid.NewString()
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// GetCorrelationID returns the id stored by the middleware, or "".
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestID adapts GetCorrelationID for log.Middleware.
func RequestID(r *http.Request) string {
	return GetCorrelationID(r.Context())
}

func (m *Middleware) GetMetrics() Metrics {
	total := m.metrics.total.Load()
	var avg int64
	if total > 0 {
		avg = m.metrics.totalDuration.Load() / total
	}
	return Metrics{
		TotalRequests:       total,
		ClientErrors:        m.metrics.clientErrors.Load(),
		ServerErrors:        m.metrics.serverErrors.Load(),
		InFlight:            m.metrics.inFlight.Load(),
		AverageResponseTime: avg,
	}
}
