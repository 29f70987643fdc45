/*
Package factory converts external row and form shapes into canonical records.

PURPOSE:
  Grid rows and policy payloads arrive in several legacy shapes (one table
  per line of business, one form per product). Instead of guessing field
  names per request, every shape is described by an explicit, versioned
  Mapping from canonical fields to source keys. Mappings are validated once
  when a factory is built; parsing a row never consults anything else.

MAPPING TABLE:
  Mapping{
      Shape:       "motor_payout_grid",
      Version:     1,
      Line:        commission.LineMotor,
      ProductType: "motor",                 // fixed by the shape
      Fields: map[Field]string{
          FieldProvider:  "insurer",
          FieldBaseRate:  "base_payout",
          FieldBaseFrom:  "base_start",
          ...
      },
  }

  Source keys may be dotted paths ("vehicle.category") for nested forms.

VALUE COERCION:
  Numbers:  JSON numbers or numeric strings ("12.5"), parsed as decimals
  Dates:    "YYYY-MM-DD", or RFC3339 timestamps truncated to the day
  Booleans: true/false, 1/0, "active"/"inactive", "yes"/"no", "y"/"n"
  Empty strings and nulls are treated as absent.

SEE ALSO:
  - grid.go: Grid row shapes
  - policy.go: Policy payload shapes
*/
package factory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUnknownShape is returned when no mapping is registered for a shape key.
	ErrUnknownShape = errors.New("unknown shape")

	// ErrInvalidMapping is returned when a mapping fails load-time validation.
	ErrInvalidMapping = errors.New("invalid mapping")

	// ErrInvalidPayload is returned when a row cannot be decoded with its mapping.
	ErrInvalidPayload = errors.New("invalid payload")
)

// FieldError reports a single field that could not be mapped.
type FieldError struct {
	Shape  string
	Field  Field
	Source string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: field %s (source %q) %s", e.Shape, e.Field, e.Source, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidPayload }

// RowError locates a failure inside a multi-row import.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }
func (e *RowError) Unwrap() error { return e.Err }

// =============================================================================
// MAPPING
// =============================================================================

// Field is a canonical field name.
type Field string

// Mapping describes one versioned external shape.
type Mapping struct {
	Shape       string
	Version     int
	Line        commission.Line
	ProductType string // Fixed product type; overrides FieldProductType when set
	Fields      map[Field]string
	Required    []Field
}

// Key is the shape identifier used on the wire, e.g. "motor_payout_grid/v1".
func (m Mapping) Key() string {
	return fmt.Sprintf("%s/v%d", m.Shape, m.Version)
}

// Validate checks that every required field is mapped and that no source
// key is claimed by two canonical fields.
func (m Mapping) Validate(known map[Field]bool) error {
	if m.Shape == "" || m.Version < 1 {
		return fmt.Errorf("%w: shape and positive version required", ErrInvalidMapping)
	}

	for _, f := range m.Required {
		if f == FieldProductType && m.ProductType != "" {
			continue
		}
		if m.Fields[f] == "" {
			return fmt.Errorf("%w: %s does not map required field %s", ErrInvalidMapping, m.Key(), f)
		}
	}

	seen := make(map[string]Field, len(m.Fields))
	for f, src := range m.Fields {
		if !known[f] {
			return fmt.Errorf("%w: %s maps unknown field %s", ErrInvalidMapping, m.Key(), f)
		}
		if other, dup := seen[src]; dup {
			return fmt.Errorf("%w: %s maps source %q to both %s and %s", ErrInvalidMapping, m.Key(), src, other, f)
		}
		seen[src] = f
	}
	return nil
}

// =============================================================================
// REGISTRY
// =============================================================================

type registry struct {
	mappings map[string]Mapping
}

func newRegistry(known map[Field]bool, mappings []Mapping) (*registry, error) {
	r := &registry{mappings: make(map[string]Mapping, len(mappings))}
	for _, m := range mappings {
		if err := m.Validate(known); err != nil {
			return nil, err
		}
		if _, dup := r.mappings[m.Key()]; dup {
			return nil, fmt.Errorf("%w: duplicate shape %s", ErrInvalidMapping, m.Key())
		}
		r.mappings[m.Key()] = m
	}
	return r, nil
}

func (r *registry) lookup(shape string) (Mapping, error) {
	m, ok := r.mappings[shape]
	if !ok {
		return Mapping{}, fmt.Errorf("%w: %s", ErrUnknownShape, shape)
	}
	return m, nil
}

func (r *registry) shapes() []string {
	keys := make([]string, 0, len(r.mappings))
	for k := range r.mappings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// ROW ACCESS
// =============================================================================

// row is one decoded payload read through its mapping.
type row struct {
	mapping Mapping
	values  map[string]any
}

func decodeRow(m Mapping, raw json.RawMessage) (*row, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, m.Key(), err)
	}
	if values == nil {
		return nil, fmt.Errorf("%w: %s: payload must be a JSON object", ErrInvalidPayload, m.Key())
	}
	return &row{mapping: m, values: values}, nil
}

// raw returns the value at the field's source path, or nil when unmapped,
// missing, null or an empty string.
func (r *row) raw(f Field) (any, string) {
	src := r.mapping.Fields[f]
	if src == "" {
		return nil, ""
	}

	var cur any = r.values
	for _, part := range strings.Split(src, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, src
		}
		cur = obj[part]
	}
	if s, ok := cur.(string); ok && strings.TrimSpace(s) == "" {
		return nil, src
	}
	return cur, src
}

func (r *row) fieldError(f Field, src, reason string) error {
	return &FieldError{Shape: r.mapping.Key(), Field: f, Source: src, Reason: reason}
}

func (r *row) isRequired(f Field) bool {
	for _, req := range r.mapping.Required {
		if req == f {
			return true
		}
	}
	return false
}

func (r *row) missing(f Field, src string) error {
	if r.isRequired(f) {
		return r.fieldError(f, src, "is required")
	}
	return nil
}

func (r *row) str(f Field) (string, error) {
	v, src := r.raw(f)
	switch val := v.(type) {
	case nil:
		return "", r.missing(f, src)
	case string:
		return strings.TrimSpace(val), nil
	case json.Number:
		return val.String(), nil
	default:
		return "", r.fieldError(f, src, "must be a string")
	}
}

func (r *row) decimal(f Field) (*decimal.Decimal, error) {
	v, src := r.raw(f)
	var s string
	switch val := v.(type) {
	case nil:
		return nil, r.missing(f, src)
	case json.Number:
		s = val.String()
	case string:
		s = strings.ReplaceAll(strings.TrimSpace(val), ",", "")
		s = strings.TrimSuffix(s, "%")
	default:
		return nil, r.fieldError(f, src, "must be a number")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, r.fieldError(f, src, "must be a number")
	}
	return &d, nil
}

// rate returns a decimal defaulting to zero when absent.
func (r *row) rate(f Field) (decimal.Decimal, error) {
	d, err := r.decimal(f)
	if err != nil || d == nil {
		return decimal.Zero, err
	}
	return *d, nil
}

func (r *row) date(f Field) (*commission.Date, error) {
	v, src := r.raw(f)
	if v == nil {
		return nil, r.missing(f, src)
	}
	s, ok := v.(string)
	if !ok {
		return nil, r.fieldError(f, src, "must be a date string")
	}
	s = strings.TrimSpace(s)

	if d, err := commission.ParseDate(s); err == nil {
		return &d, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		d := commission.DateOf(t)
		return &d, nil
	}
	return nil, r.fieldError(f, src, "must be YYYY-MM-DD")
}

// boolean defaults to def when absent.
func (r *row) boolean(f Field, def bool) (bool, error) {
	v, src := r.raw(f)
	switch val := v.(type) {
	case nil:
		return def, nil
	case bool:
		return val, nil
	case json.Number:
		return val.String() != "0", nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "active", "yes", "y", "1", "enabled":
			return true, nil
		case "false", "inactive", "no", "n", "0", "disabled":
			return false, nil
		}
	}
	return false, r.fieldError(f, src, "must be a boolean")
}
