package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"fintrack/internal/calc"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/trace"
)

type correlationField struct {
	CorrelationID string `json:"correlationId"`
}

func (c *correlationField) SetCorrelationID(id string) { c.CorrelationID = id }

type dailyLimitResponse struct {
	DailyLimit      float64 `json:"dailyLimit"`
	RemainingBudget float64 `json:"remainingBudget"`
	RemainingDays   int     `json:"remainingDays"`
	Status          string  `json:"status"`
	Message         string  `json:"message"`
	correlationField
}

type projectionEntry struct {
	Date             string  `json:"date"`
	ProjectedBalance float64 `json:"projectedBalance"`
}

type projectionResponse struct {
	Projection []projectionEntry `json:"projection"`
	correlationField
}

type alertEntry struct {
	Alert   string `json:"alert"`
	Message string `json:"message"`
}

type alertsResponse struct {
	Alerts []alertEntry `json:"alerts"`
	correlationField
}

// calculatorHandler serves one calculator: POST only, JSON object body,
// 400 for validation failures and 500 for internal ones. The correlation id
// set by the trace middleware is echoed in every body.
func (s *Server) calculatorHandler(svc Service) http.Handler {
	counters := s.counters[svc]
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := trace.GetCorrelationID(ctx)
		logger := applog.FromContext(ctx)

		if resp := RequirePOST(r); resp != nil {
			resp.CorrelationID(id).Write(w)
			return
		}

		body, err := NewRequestBodyParser(r).ParseObject()
		if err != nil {
			counters.validationErrors.Add(1)
			status := http.StatusBadRequest
			if errors.Is(err, ErrBodyTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			logger.WarnContext(ctx, "Rejected request body",
				applog.FieldService, string(svc),
				applog.FieldError, err.Error())
			ErrorResponse(status, err.Error()).CorrelationID(id).Write(w)
			return
		}

		result, err := s.compute(svc, body)
		if err != nil {
			if calc.KindOf(err) == calc.KindValidation {
				counters.validationErrors.Add(1)
				logger.WarnContext(ctx, "Validation failed",
					applog.FieldService, string(svc),
					applog.FieldErrorKind, string(calc.KindValidation),
					applog.FieldError, err.Error())
				BadRequestError(err.Error()).CorrelationID(id).Write(w)
				return
			}
			counters.internalErrors.Add(1)
			logger.ErrorContext(ctx, "Calculation failed",
				applog.FieldService, string(svc),
				applog.FieldErrorKind, string(calc.KindInternal),
				applog.FieldError, err.Error())
			InternalServerError(internalMessage(svc, err)).CorrelationID(id).Write(w)
			return
		}

		if err := NewJSONResponse().Body(result).CorrelationID(id).Write(w); err != nil {
			counters.internalErrors.Add(1)
			logger.ErrorContext(ctx, "Failed to encode result",
				applog.FieldService, string(svc),
				applog.FieldErrorKind, string(calc.KindInternal),
				applog.FieldError, err.Error())
			return
		}
		counters.calculations.Add(1)
		logger.DebugContext(ctx, "Calculation completed", applog.FieldService, string(svc))
	})
}

func internalMessage(svc Service, err error) string {
	if svc == ServiceAggregate {
		return "Failed to aggregate: " + err.Error()
	}
	return err.Error()
}

// today is the server's calendar day in its configured zone.
func (s *Server) today() core.Date {
	return core.DateOf(s.clock().In(s.location))
}

func (s *Server) compute(svc Service, body map[string]any) (any, error) {
	switch svc {
	case ServiceDailyLimit:
		req, err := calc.DecodeDailyLimit(body)
		if err != nil {
			return nil, err
		}
		res, err := calc.DailyLimit(req)
		if err != nil {
			return nil, err
		}
		return &dailyLimitResponse{
			DailyLimit:      res.DailyLimit.InexactFloat64(),
			RemainingBudget: res.RemainingBudget.InexactFloat64(),
			RemainingDays:   res.RemainingDays,
			Status:          string(res.Status),
			Message:         res.Message,
		}, nil

	case ServiceAggregate:
		req, err := calc.DecodeAggregate(body)
		if err != nil {
			return nil, err
		}
		totals, err := calc.Aggregate(req)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(totals)+1)
		for _, t := range totals {
			out[t.Category] = t.Total.InexactFloat64()
		}
		return out, nil

	case ServiceProjection:
		req, err := calc.DecodeProjection(body)
		if err != nil {
			return nil, err
		}
		entries, err := calc.Project(req, s.today(), s.maxProjectionDays)
		if err != nil {
			return nil, err
		}
		resp := &projectionResponse{Projection: make([]projectionEntry, 0, len(entries))}
		for _, e := range entries {
			resp.Projection = append(resp.Projection, projectionEntry{
				Date:             e.Date.String(),
				ProjectedBalance: e.Balance.InexactFloat64(),
			})
		}
		return resp, nil

	case ServiceAlerts:
		req, err := calc.DecodeAlerts(body)
		if err != nil {
			return nil, err
		}
		alerts, err := calc.Alerts(req)
		if err != nil {
			return nil, err
		}
		resp := &alertsResponse{Alerts: make([]alertEntry, 0, len(alerts))}
		for _, a := range alerts {
			resp.Alerts = append(resp.Alerts, alertEntry{Alert: string(a.Kind), Message: a.Message})
		}
		return resp, nil
	}
	return nil, &calc.InternalError{Op: string(svc), Err: fmt.Errorf("unknown service %q", svc)}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	NotFoundError("Not found").
		CorrelationID(trace.GetCorrelationID(r.Context())).
		Write(w)
}

// handleHealth is a liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.services))
	for _, svc := range s.services {
		names = append(names, string(svc))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"services":  names,
	})
}

// handleReady reports not ready when no calculator is mounted.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if len(s.services) == 0 {
		checks["calculators"] = "failed: no services mounted"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["calculators"] = "ok"
	}

	if s.rateLimiter != nil {
		checks["rate_limiter"] = map[string]any{
			"active_clients": s.rateLimiter.ActiveClients(),
			"status":         "ok",
		}
	} else {
		checks["rate_limiter"] = "disabled"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	tm := s.traceMiddleware.GetMetrics()

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", tm.TotalRequests)

	fmt.Fprintf(w, "# HELP http_responses_errors_total Responses with an error status\n")
	fmt.Fprintf(w, "# TYPE http_responses_errors_total counter\n")
	fmt.Fprintf(w, "http_responses_errors_total{class=\"4xx\"} %d\n", tm.ClientErrors)
	fmt.Fprintf(w, "http_responses_errors_total{class=\"5xx\"} %d\n\n", tm.ServerErrors)

	fmt.Fprintf(w, "# HELP http_requests_in_flight Requests currently being served\n")
	fmt.Fprintf(w, "# TYPE http_requests_in_flight gauge\n")
	fmt.Fprintf(w, "http_requests_in_flight %d\n\n", tm.InFlight)

	fmt.Fprintf(w, "# HELP http_request_duration_avg_microseconds Mean request duration\n")
	fmt.Fprintf(w, "# TYPE http_request_duration_avg_microseconds gauge\n")
	fmt.Fprintf(w, "http_request_duration_avg_microseconds %d\n\n", tm.AverageResponseTime)

	names := make([]string, 0, len(s.counters))
	for svc := range s.counters {
		names = append(names, string(svc))
	}
	sort.Strings(names)

	fmt.Fprintf(w, "# HELP calculations_total Successful calculations per service\n")
	fmt.Fprintf(w, "# TYPE calculations_total counter\n")
	for _, n := range names {
		fmt.Fprintf(w, "calculations_total{service=%q} %d\n", n, s.counters[Service(n)].calculations.Load())
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP calculation_errors_total Failed calculations per service and kind\n")
	fmt.Fprintf(w, "# TYPE calculation_errors_total counter\n")
	for _, n := range names {
		c := s.counters[Service(n)]
		fmt.Fprintf(w, "calculation_errors_total{service=%q,kind=\"validation\"} %d\n", n, c.validationErrors.Load())
		fmt.Fprintf(w, "calculation_errors_total{service=%q,kind=\"internal\"} %d\n", n, c.internalErrors.Load())
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Requests matching known probe patterns\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", s.detector.Count())

	if s.rateLimiter != nil {
		rm := s.rateLimiter.GetMetrics()
		fmt.Fprintf(w, "# HELP rate_limit_rejected_total Requests rejected by the rate limiter\n")
		fmt.Fprintf(w, "# TYPE rate_limit_rejected_total counter\n")
		fmt.Fprintf(w, "rate_limit_rejected_total %d\n\n", rm.Rejected)

		fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
		fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
		fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rm.ClientCount)
	}

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.startedAt).Seconds())
}
