// Package http serves the budgeting calculators over HTTP.
//
// This file implements a small builder for JSON responses so every handler
// shares the same headers, correlation id placement and error shape.
package http

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// JSONResponseBuilder accumulates a status, headers and a JSON body.
type JSONResponseBuilder struct {
	statusCode    int
	headers       map[string]string
	body          any
	correlationID string
}

// NewJSONResponse creates a builder with a 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value to encode. Maps and structs embedding a correlationId
// field receive the id set with CorrelationID.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// CorrelationID stamps id into the body. Struct bodies implementing
// correlated get it through SetCorrelationID; map bodies get a
// "correlationId" key written last so it wins over any colliding key.
func (b *JSONResponseBuilder) CorrelationID(id string) *JSONResponseBuilder {
	b.correlationID = id
	return b
}

type correlated interface {
	SetCorrelationID(string)
}

// Write sends the response. When the body cannot be encoded it sends a 500
// error body instead, still carrying the correlation id, and returns the
// encoding error.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) error {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json")

	body := b.body
	if b.correlationID != "" {
		switch v := body.(type) {
		case map[string]any:
			v["correlationId"] = b.correlationID
		case correlated:
			v.SetCorrelationID(b.correlationID)
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		fallback, _ := json.Marshal(&errorBody{Error: "failed to encode response", CorrelationID: b.correlationID})
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(append(fallback, '\n'))
		return fmt.Errorf("encode response: %w", err)
	}
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(payload, '\n'))
	return nil
}

// errorBody is the shape of every error response.
type errorBody struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (e *errorBody) SetCorrelationID(id string) { e.CorrelationID = id }

// ErrorResponse builds {"error": message} with the given status.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(&errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
}

// MethodNotAllowedError lists allowedMethods in the Allow header.
func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed").
		Header("Allow", allowedMethods)
}
