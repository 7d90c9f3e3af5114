package http

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Test", "1").
		Body(map[string]any{"ok": true}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if w.Header().Get("X-Test") != "1" {
		t.Errorf("X-Test header = %q", w.Header().Get("X-Test"))
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
	if w.Body.String() != "{\"ok\":true}\n" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_CorrelationOverridesMapKey(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Body(map[string]any{"correlationId": 5.0, "food": 1.5}).
		CorrelationID("cid").
		Write(w)

	var got map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["correlationId"] != "cid" || got["food"] != 1.5 {
		t.Errorf("body = %v", got)
	}
}

func TestJSONResponseBuilder_StructBody(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Body(&alertsResponse{Alerts: []alertEntry{}}).
		CorrelationID("cid").
		Write(w)

	if w.Body.String() != "{\"alerts\":[],\"correlationId\":\"cid\"}\n" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		builder    *JSONResponseBuilder
		wantStatus int
		wantError  string
	}{
		{"bad request", BadRequestError("nope"), http.StatusBadRequest, "nope"},
		{"internal", InternalServerError("boom"), http.StatusInternalServerError, "boom"},
		{"not found", NotFoundError("missing"), http.StatusNotFound, "missing"},
		{"rate limited", TooManyRequestsError(), http.StatusTooManyRequests, "Rate limit exceeded. Please try again later."},
		{"method", MethodNotAllowedError("POST"), http.StatusMethodNotAllowed, "Method not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			var got map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", got["error"], tt.wantError)
			}
			if _, ok := got["correlationId"]; ok {
				t.Error("correlationId should be omitted when unset")
			}
		})
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()

	err := NewJSONResponse().
		Body(map[string]any{"total": math.Inf(1)}).
		CorrelationID("req-9").
		Write(w)

	if err == nil {
		t.Fatal("expected an encoding error")
	}
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("fallback body %q: %v", w.Body.String(), err)
	}
	if body["error"] != "failed to encode response" || body["correlationId"] != "req-9" {
		t.Errorf("Body = %v", body)
	}
}
