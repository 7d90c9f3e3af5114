// Package schema validates decoded JSON request bodies against a declarative
// list of fields.
//
// Bodies are expected to be decoded with json.Decoder.UseNumber so numbers
// reach the validator as json.Number and can be converted to exact decimals.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Type is the expected JSON shape of a field.
type Type int

const (
	Number Type = iota
	String
	Date
	List
)

func (t Type) String() string {
	switch t {
	case Number:
		return "number"
	case String:
		return "string"
	case Date:
		return "date"
	case List:
		return "list"
	default:
		return "unknown"
	}
}

// Field describes one member of a JSON object.
type Field struct {
	Name     string
	Type     Type
	Required bool
	// Items is the schema every element of a List field must satisfy.
	Items *Schema
	// Message replaces the default type error message for this field.
	Message string
	// Coerce lets a Number field also accept a numeric string such as "50".
	Coerce bool
}

// Schema is an ordered set of fields. Item is the noun used when an element of
// a list does not carry its required fields ("expense").
type Schema struct {
	Item   string
	Fields []Field
}

// Error is a validation failure. Message is safe to return to callers.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Values holds the converted values of a validated object.
type Values struct {
	numbers map[string]decimal.Decimal
	strings map[string]string
	dates   map[string]core.Date
	lists   map[string][]Values
}

func newValues() Values {
	return Values{
		numbers: make(map[string]decimal.Decimal),
		strings: make(map[string]string),
		dates:   make(map[string]core.Date),
		lists:   make(map[string][]Values),
	}
}

// Has reports whether name was present and converted.
func (v Values) Has(name string) bool {
	if _, ok := v.numbers[name]; ok {
		return true
	}
	if _, ok := v.strings[name]; ok {
		return true
	}
	if _, ok := v.dates[name]; ok {
		return true
	}
	_, ok := v.lists[name]
	return ok
}

// Decimal returns the number stored under name, or zero.
func (v Values) Decimal(name string) decimal.Decimal {
	return v.numbers[name]
}

func (v Values) String(name string) string {
	return v.strings[name]
}

// Date returns the date stored under name and whether it was present.
func (v Values) Date(name string) (core.Date, bool) {
	d, ok := v.dates[name]
	return d, ok
}

func (v Values) List(name string) []Values {
	return v.lists[name]
}

// Validate checks body in two passes: every required field must be present
// before any type is checked, so a request missing a field always reports the
// missing field first. A JSON null counts as absent.
func (s *Schema) Validate(body map[string]any) (Values, error) {
	for _, f := range s.Fields {
		if f.Required && !present(body, f.Name) {
			return Values{}, &Error{Field: f.Name, Message: "Missing required field: " + f.Name}
		}
	}

	out := newValues()
	for _, f := range s.Fields {
		if !present(body, f.Name) {
			continue
		}
		if err := s.convert(f, body[f.Name], &out); err != nil {
			return Values{}, err
		}
	}
	return out, nil
}

func (s *Schema) convert(f Field, raw any, out *Values) error {
	switch f.Type {
	case Number:
		d, ok := toDecimal(raw, f.Coerce)
		if !ok {
			return typeError(f, fmt.Sprintf("'%s' must be a number", f.Name))
		}
		if !inRange(d) {
			return &Error{Field: f.Name, Message: fmt.Sprintf("'%s' is out of range", f.Name)}
		}
		out.numbers[f.Name] = d
	case String:
		str, ok := raw.(string)
		if !ok {
			return typeError(f, fmt.Sprintf("'%s' must be a string", f.Name))
		}
		out.strings[f.Name] = str
	case Date:
		str, ok := raw.(string)
		if !ok {
			return typeError(f, fmt.Sprintf("%s must be 'YYYY-MM-DD'", f.Name))
		}
		d, err := core.ParseDate(str)
		if err != nil {
			return typeError(f, fmt.Sprintf("%s must be 'YYYY-MM-DD'", f.Name))
		}
		out.dates[f.Name] = d
	case List:
		items, ok := raw.([]any)
		if !ok {
			return typeError(f, fmt.Sprintf("'%s' must be a list", f.Name))
		}
		list := make([]Values, 0, len(items))
		for _, item := range items {
			v, err := f.Items.validateItem(item)
			if err != nil {
				return err
			}
			list = append(list, v)
		}
		out.lists[f.Name] = list
	default:
		return fmt.Errorf("schema: unsupported field type %v", f.Type)
	}
	return nil
}

// validateItem checks one list element. Unlike top-level objects, an element
// missing any required field reports a single message naming all of them.
func (s *Schema) validateItem(raw any) (Values, error) {
	if s == nil {
		return newValues(), nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return Values{}, s.itemError()
	}
	for _, f := range s.Fields {
		if f.Required && !present(obj, f.Name) {
			return Values{}, s.itemError()
		}
	}
	return s.Validate(obj)
}

func (s *Schema) itemError() *Error {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, "'"+f.Name+"'")
		}
	}
	item := s.Item
	if item == "" {
		item = "item"
	}
	return &Error{Message: fmt.Sprintf("Each %s must have %s", item, strings.Join(names, " and "))}
}

func typeError(f Field, fallback string) *Error {
	msg := f.Message
	if msg == "" {
		msg = fallback
	}
	return &Error{Field: f.Name, Message: msg}
}

func present(body map[string]any, name string) bool {
	v, ok := body[name]
	return ok && v != nil
}

// maxExponent bounds the decimal exponent of any accepted number. Arithmetic
// on decimals rescales operands to a common exponent, so an unbounded one
// turns a short body into a very large integer.
const maxExponent = 308

var maxMagnitude = decimal.NewFromFloat(math.MaxFloat64)

// inRange reports whether d has a bounded exponent and fits in a float64,
// which is how results are encoded.
func inRange(d decimal.Decimal) bool {
	if exp := d.Exponent(); exp > maxExponent || exp < -maxExponent {
		return false
	}
	return d.Abs().LessThanOrEqual(maxMagnitude)
}

// toDecimal accepts JSON numbers. Strings are accepted only when coerce is
// set; booleans never are.
func toDecimal(raw any, coerce bool) (decimal.Decimal, bool) {
	switch n := raw.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case string:
		if !coerce {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	default:
		return decimal.Zero, false
	}
}
