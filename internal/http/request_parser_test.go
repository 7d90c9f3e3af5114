package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseObject(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"object", `{"a":1}`, nil},
		{"surrounding whitespace", "  {\"a\":1}\n", nil},
		{"empty", ``, ErrInvalidJSON},
		{"empty object", `{}`, ErrInvalidJSON},
		{"array", `[{"a":1}]`, ErrInvalidJSON},
		{"scalar", `42`, ErrInvalidJSON},
		{"truncated", `{"a":`, ErrInvalidJSON},
		{"trailing data", `{"a":1} {"b":2}`, ErrInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			_, err := NewRequestBodyParser(req).ParseObject()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseObjectPreservesNumbers(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":0.1,"big":12345678901234567890}`))
	p := NewRequestBodyParser(req)
	obj, err := p.ParseObject()
	if err != nil {
		t.Fatal(err)
	}
	if n, ok := obj["amount"].(json.Number); !ok || n.String() != "0.1" {
		t.Errorf("amount = %#v", obj["amount"])
	}
	if n, ok := obj["big"].(json.Number); !ok || n.String() != "12345678901234567890" {
		t.Errorf("big = %#v", obj["big"])
	}

	// second call returns the cached result
	again, err := p.ParseObject()
	if err != nil || len(again) != 2 {
		t.Errorf("cached parse = %v, %v", again, err)
	}
}

func TestParseObjectBodyTooLarge(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"`+strings.Repeat("x", 64)+`"}`))
	req.Body = http.MaxBytesReader(rr, req.Body, 16)

	_, err := NewRequestBodyParser(req).ParseObject()
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Errorf("err = %v, want ErrBodyTooLarge", err)
	}
}

func TestIsJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "Application/JSON; charset=utf-8")
	if !NewRequestBodyParser(req).IsJSON() {
		t.Error("expected IsJSON for application/json with charset")
	}
}

func TestRequireMethod(t *testing.T) {
	post := httptest.NewRequest(http.MethodPost, "/", nil)
	if RequirePOST(post) != nil {
		t.Error("POST should be allowed")
	}

	get := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := RequireMethod(get, http.MethodPost, http.MethodPut)
	if resp == nil {
		t.Fatal("GET should be rejected")
	}
	w := httptest.NewRecorder()
	resp.Write(w)
	if w.Header().Get("Allow") != "POST, PUT" {
		t.Errorf("Allow = %q", w.Header().Get("Allow"))
	}
}
