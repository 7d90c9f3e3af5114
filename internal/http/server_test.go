package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	srv := NewServer(":0", AllServices, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestDailyLimitEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodPost, "/daily-limit",
		`{"totalBudget":1000,"reserve":100,"expenses":[{"date":"2024-01-01","amount":200}],"endDate":"2024-01-31","currentDate":"2024-01-01"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode(t, rr)
	if got["dailyLimit"] != 22.58 {
		t.Errorf("dailyLimit=%v", got["dailyLimit"])
	}
	if got["remainingBudget"] != 700.0 {
		t.Errorf("remainingBudget=%v", got["remainingBudget"])
	}
	if got["remainingDays"] != 31.0 {
		t.Errorf("remainingDays=%v", got["remainingDays"])
	}
	if got["status"] != "ok" {
		t.Errorf("status=%v", got["status"])
	}
	if got["correlationId"] == "" || got["correlationId"] != rr.Header().Get("X-Correlation-ID") {
		t.Errorf("correlationId=%v header=%q", got["correlationId"], rr.Header().Get("X-Correlation-ID"))
	}
}

func TestAggregateEndpointDropsNonPositive(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodPost, "/aggregate-expenses",
		`{"expenses":[{"category":"food","amount":30},{"category":"food","amount":-40}]}`,
		"X-Correlation-ID", "abc-123")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode(t, rr)
	if len(got) != 1 || got["correlationId"] != "abc-123" {
		t.Fatalf("body=%v", got)
	}
}

func TestAggregateEndpointTotals(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodPost, "/aggregate-expenses",
		`{"expenses":[{"category":"food","amount":10.005},{"category":"rent","amount":500},{"category":"food","amount":2}]}`)
	got := decode(t, rr)
	if got["food"] != 12.01 || got["rent"] != 500.0 {
		t.Fatalf("body=%v", got)
	}
}

func TestAlertsEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/alerts", `{"remainingBudget":50}`, "X-Correlation-ID", "cid-1")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
	got := decode(t, rr)
	if got["error"] != "Missing required field: warningThreshold" {
		t.Errorf("error=%v", got["error"])
	}
	if got["correlationId"] != "cid-1" {
		t.Errorf("correlationId=%v", got["correlationId"])
	}

	rr = do(t, srv, http.MethodPost, "/alerts",
		`{"remainingBudget":50,"warningThreshold":100,"reserveBalance":10,"reserveThreshold":20}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var body struct {
		Alerts []struct {
			Alert   string `json:"alert"`
			Message string `json:"message"`
		} `json:"alerts"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Alerts) != 2 || body.Alerts[0].Alert != "overspend" || body.Alerts[1].Alert != "low_reserve" {
		t.Fatalf("alerts=%+v", body.Alerts)
	}

	rr = do(t, srv, http.MethodPost, "/alerts",
		`{"remainingBudget":500,"warningThreshold":100,"reserveBalance":30,"reserveThreshold":20}`)
	if !strings.Contains(rr.Body.String(), `"alerts":[]`) {
		t.Fatalf("expected empty alerts list, got %s", rr.Body.String())
	}
}

func TestProjectionEndpointUsesClock(t *testing.T) {
	clock := func() time.Time { return time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC) }
	srv := newTestServer(t, Options{Clock: clock, Location: time.UTC, MaxProjectionDays: 30})

	rr := do(t, srv, http.MethodPost, "/project-balance",
		`{"currentBalance":100,"dailyLimit":10,"projectionEndDate":"2024-03-13"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var body struct {
		Projection []struct {
			Date             string  `json:"date"`
			ProjectedBalance float64 `json:"projectedBalance"`
		} `json:"projection"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	want := []struct {
		date string
		bal  float64
	}{{"2024-03-11", 90}, {"2024-03-12", 80}, {"2024-03-13", 70}}
	if len(body.Projection) != len(want) {
		t.Fatalf("projection=%+v", body.Projection)
	}
	for i, w := range want {
		if body.Projection[i].Date != w.date || body.Projection[i].ProjectedBalance != w.bal {
			t.Errorf("entry %d = %+v, want %+v", i, body.Projection[i], w)
		}
	}

	rr = do(t, srv, http.MethodPost, "/project-balance",
		`{"currentBalance":100,"dailyLimit":10,"projectionEndDate":"2024-03-01"}`)
	if !strings.Contains(rr.Body.String(), `"projection":[]`) {
		t.Errorf("past end date: %s", rr.Body.String())
	}

	rr = do(t, srv, http.MethodPost, "/project-balance",
		`{"currentBalance":100,"dailyLimit":10,"projectionEndDate":"2025-03-01"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("horizon beyond max: status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodPost, "/project-balance",
		`{"currentBalance":100,"dailyLimit":10,"projectionEndDate":"13/03/2024"}`)
	if got := decode(t, rr); got["error"] != "projectionEndDate must be 'YYYY-MM-DD'" {
		t.Errorf("bad date error=%v", got["error"])
	}
}

func TestRequestRejections(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"wrong method", http.MethodGet, "/alerts", "", http.StatusMethodNotAllowed, "Method not allowed"},
		{"malformed json", http.MethodPost, "/alerts", `{"remainingBudget":`, http.StatusBadRequest, "Request body must be valid JSON"},
		{"empty body", http.MethodPost, "/daily-limit", ``, http.StatusBadRequest, "Request body must be valid JSON"},
		{"array body", http.MethodPost, "/aggregate-expenses", `[1,2]`, http.StatusBadRequest, "Request body must be valid JSON"},
		{"string amount", http.MethodPost, "/aggregate-expenses",
			`{"expenses":[{"category":"food","amount":"30"}]}`, http.StatusBadRequest, "'amount' must be a number"},
		{"unknown path", http.MethodPost, "/nope", `{}`, http.StatusNotFound, "Not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			got := decode(t, rr)
			if got["error"] != tt.wantError {
				t.Errorf("error=%v, want %q", got["error"], tt.wantError)
			}
			if got["correlationId"] == nil {
				t.Errorf("missing correlationId in %v", got)
			}
		})
	}

	rr := do(t, srv, http.MethodGet, "/alerts", "")
	if rr.Header().Get("Allow") != http.MethodPost {
		t.Errorf("Allow=%q", rr.Header().Get("Allow"))
	}
}

func TestOnlySelectedServicesMounted(t *testing.T) {
	srv := NewServer(":0", []Service{ServiceAlerts}, Options{})
	defer srv.Shutdown(context.Background())

	rr := do(t, srv, http.MethodPost, "/daily-limit", `{"totalBudget":1}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestRateLimitReturns429(t *testing.T) {
	srv := newTestServer(t, Options{RateLimitPerMinute: 2})
	body := `{"remainingBudget":500,"warningThreshold":100,"reserveBalance":30,"reserveThreshold":20}`

	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPost, "/alerts", body); rr.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodPost, "/alerts", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if got := decode(t, rr); got["correlationId"] == nil {
		t.Errorf("missing correlationId: %v", got)
	}
}

func TestHealthReadyAndMetrics(t *testing.T) {
	srv := newTestServer(t, Options{RateLimitPerMinute: 100})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	do(t, srv, http.MethodPost, "/alerts", `{"remainingBudget":50}`)
	do(t, srv, http.MethodPost, "/alerts",
		`{"remainingBudget":500,"warningThreshold":100,"reserveBalance":30,"reserveThreshold":20}`)

	do(t, srv, http.MethodGet, "/.env", "")

	rr := do(t, srv, http.MethodGet, "/metrics", "")
	out := rr.Body.String()
	for _, want := range []string{
		`calculations_total{service="alerts"} 1`,
		"suspicious_requests_total 1",
		`calculation_errors_total{service="alerts",kind="validation"} 1`,
		"rate_limit_rejected_total 0",
		"http_requests_total",
		"uptime_seconds",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %q:\n%s", want, out)
		}
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodPost, "/alerts", `{"remainingBudget":50}`)
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type=%q", rr.Header().Get("Content-Type"))
	}
}

func TestBuildServers(t *testing.T) {
	single, err := BuildServers(Layout{Addr: ":0"}, AllServices, Options{})
	if err != nil || len(single) != 1 {
		t.Fatalf("single: %v, %d servers", err, len(single))
	}

	ports := map[Service]int{ServiceDailyLimit: 5000, ServiceAggregate: 5001}
	multi, err := BuildServers(Layout{Ports: ports}, []Service{ServiceDailyLimit, ServiceAggregate}, Options{})
	if err != nil || len(multi) != 2 {
		t.Fatalf("multi: %v, %d servers", err, len(multi))
	}
	if multi[0].Addr != ":5000" || multi[1].Addr != ":5001" {
		t.Errorf("addrs = %s, %s", multi[0].Addr, multi[1].Addr)
	}

	if _, err := BuildServers(Layout{Ports: ports}, []Service{ServiceAlerts}, Options{}); err == nil {
		t.Error("expected error for missing port")
	}
	if _, err := BuildServers(Layout{Addr: ":0"}, nil, Options{}); err == nil {
		t.Error("expected error for no services")
	}
}

func TestNumericStringsAcceptedWhereCoerced(t *testing.T) {
	clock := func() time.Time { return time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC) }
	srv := newTestServer(t, Options{Clock: clock, Location: time.UTC})

	rr := do(t, srv, http.MethodPost, "/alerts",
		`{"remainingBudget":"50","warningThreshold":"100","reserveBalance":"10","reserveThreshold":20}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("alerts status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"low_reserve"`) {
		t.Errorf("alerts body=%s", rr.Body.String())
	}

	rr = do(t, srv, http.MethodPost, "/project-balance",
		`{"currentBalance":"100","dailyLimit":"10","projectionEndDate":"2024-03-11"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("projection status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"projectedBalance":90`) {
		t.Errorf("projection body=%s", rr.Body.String())
	}

	rr = do(t, srv, http.MethodPost, "/aggregate-expenses", `{"expenses":[{"category":"x","amount":"5"}]}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("aggregate status=%d", rr.Code)
	}
}

func TestHugeNumbersRejectedWithCorrelationID(t *testing.T) {
	srv := newTestServer(t, Options{})
	tests := []struct {
		path, body string
	}{
		{"/aggregate-expenses", `{"expenses":[{"category":"x","amount":1e400}]}`},
		{"/project-balance", `{"currentBalance":1e400,"dailyLimit":1,"projectionEndDate":"2024-01-01"}`},
		{"/daily-limit", `{"totalBudget":1e10000000,"reserve":0,"expenses":[],"endDate":"2024-01-31","currentDate":"2024-01-01"}`},
	}
	for _, tt := range tests {
		start := time.Now()
		rr := do(t, srv, http.MethodPost, tt.path, tt.body, "X-Correlation-ID", "cid-1")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s status=%d body=%s", tt.path, rr.Code, rr.Body.String())
		}
		if got := decode(t, rr); got["correlationId"] != "cid-1" {
			t.Errorf("%s body=%v", tt.path, got)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("%s took %v", tt.path, elapsed)
		}
	}
}

func TestUnencodableResultKeepsCorrelationID(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodPost, "/aggregate-expenses",
		`{"expenses":[{"category":"x","amount":1.7e308},{"category":"x","amount":1.7e308}]}`,
		"X-Correlation-ID", "cid-2")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode(t, rr)
	if got["correlationId"] != "cid-2" || got["error"] != "failed to encode response" {
		t.Fatalf("body=%v", got)
	}

	out := do(t, srv, http.MethodGet, "/metrics", "").Body.String()
	for _, want := range []string{
		`calculation_errors_total{service="aggregate-expenses",kind="internal"} 1`,
		`calculations_total{service="aggregate-expenses"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %q:\n%s", want, out)
		}
	}
}
