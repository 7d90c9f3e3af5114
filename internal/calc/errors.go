// Package calc implements the four budgeting calculators. Every calculator is a
// pure function of its decoded request; the HTTP layer owns transport concerns.
package calc

import (
	"errors"
	"fmt"

	"fintrack/internal/schema"
)

// Kind classifies calculator failures for the transport boundary.
type Kind string

const (
	KindValidation Kind = "validation"
	KindInternal   Kind = "internal"
)

// ValidationError reports a request that can never succeed as sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// InternalError wraps a failure raised while computing a valid request.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.Op + ": internal error"
	}
	return e.Err.Error()
}

func (e *InternalError) Unwrap() error { return e.Err }

// KindOf returns the kind of err. Errors not produced by this package are internal.
func KindOf(err error) Kind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	return KindInternal
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// fromSchema converts a schema failure into a ValidationError.
func fromSchema(err error) error {
	var se *schema.Error
	if errors.As(err, &se) {
		return &ValidationError{Field: se.Field, Message: se.Message}
	}
	return &InternalError{Op: "validate", Err: err}
}

// guard runs fn and turns a panic into an InternalError so a bug in one
// calculator surfaces as a 500 instead of tearing down the connection.
func guard[T any](op string, fn func() (T, error)) (res T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			res = zero
			err = &InternalError{Op: op, Err: fmt.Errorf("%v", r)}
		}
	}()
	return fn()
}
