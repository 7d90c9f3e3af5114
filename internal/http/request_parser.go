package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrInvalidJSON covers empty bodies, malformed JSON, non-object
	// documents and empty objects.
	ErrInvalidJSON  = errors.New("Request body must be valid JSON")
	ErrBodyTooLarge = errors.New("Request body too large")
)

// RequestBodyParser reads the request body once and decodes it as a JSON
// object with numbers preserved as json.Number.
type RequestBodyParser struct {
	body        []byte
	contentType string
	object      map[string]any
	parsed      bool
	err         error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(r.Body)
	var tooLarge *http.MaxBytesError
	if errors.As(p.err, &tooLarge) {
		p.err = ErrBodyTooLarge
	}
	return p
}

// ParseObject decodes the body. The Content-Type header is not required to
// be application/json.
func (p *RequestBodyParser) ParseObject() (map[string]any, error) {
	if p.parsed {
		return p.object, p.err
	}
	p.parsed = true
	if p.err != nil {
		return nil, p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		p.err = ErrInvalidJSON
		return nil, p.err
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		p.err = ErrInvalidJSON
		return nil, p.err
	}
	// Trailing data after the object is malformed input.
	if _, err := dec.Token(); err != io.EOF {
		p.err = ErrInvalidJSON
		return nil, p.err
	}
	if len(obj) == 0 {
		p.err = ErrInvalidJSON
		return nil, p.err
	}
	p.object = obj
	return obj, nil
}

func (p *RequestBodyParser) GetRaw() []byte {
	return p.body
}

func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON reports whether the caller declared a JSON body.
func (p *RequestBodyParser) IsJSON() bool {
	return strings.HasPrefix(strings.ToLower(p.contentType), "application/json")
}

// RequireMethod returns a 405 builder when r.Method is not one of methods.
func RequireMethod(r *http.Request, methods ...string) *JSONResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

func RequirePOST(r *http.Request) *JSONResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}
