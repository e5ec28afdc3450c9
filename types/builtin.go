package types

import (
	"encoding/json"
	"time"

	"github.com/spf13/cast"
)

// missing reports whether a value counts as absent under the shared built-in
// policy: non-required fields coerce nil input to nil in every direction.
func missing(value any, f FieldInfo) bool {
	return value == nil && !f.Required
}

// stringType coerces values with cast semantics (numbers and booleans
// stringify, fmt.Stringer is honored).
type stringType struct{}

func (stringType) Norm(value any, f FieldInfo) (any, error) { return coerceString(value, f) }
func (stringType) Load(value any, f FieldInfo) (any, error) { return coerceString(value, f) }
func (stringType) Save(value any, f FieldInfo) (any, error) { return coerceString(value, f) }

func coerceString(value any, f FieldInfo) (any, error) {
	if missing(value, f) {
		return nil, nil
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		return nil, &ConversionError{Type: "string", Field: f.Name, Value: value, Cause: err}
	}
	return s, nil
}

// numberType coerces to float64, the canonical numeric form on both the read
// and write paths.
type numberType struct{}

func (numberType) Norm(value any, f FieldInfo) (any, error) { return coerceNumber(value, f) }
func (numberType) Load(value any, f FieldInfo) (any, error) { return coerceNumber(value, f) }
func (numberType) Save(value any, f FieldInfo) (any, error) { return coerceNumber(value, f) }

func coerceNumber(value any, f FieldInfo) (any, error) {
	if missing(value, f) {
		return nil, nil
	}
	n, err := cast.ToFloat64E(value)
	if err != nil {
		return nil, &ConversionError{Type: "number", Field: f.Name, Value: value, Cause: err}
	}
	return n, nil
}

type booleanType struct{}

func (booleanType) Norm(value any, f FieldInfo) (any, error) { return coerceBool(value, f) }
func (booleanType) Load(value any, f FieldInfo) (any, error) { return coerceBool(value, f) }
func (booleanType) Save(value any, f FieldInfo) (any, error) { return coerceBool(value, f) }

func coerceBool(value any, f FieldInfo) (any, error) {
	if missing(value, f) {
		return nil, nil
	}
	b, err := cast.ToBoolE(value)
	if err != nil {
		return nil, &ConversionError{Type: "boolean", Field: f.Name, Value: value, Cause: err}
	}
	return b, nil
}

// dateType accepts anything the time caster understands. Unparseable dates
// coerce to nil rather than failing.
type dateType struct{}

func (dateType) Norm(value any, f FieldInfo) (any, error) { return coerceDate(value, f) }
func (dateType) Load(value any, f FieldInfo) (any, error) { return coerceDate(value, f) }
func (dateType) Save(value any, f FieldInfo) (any, error) { return coerceDate(value, f) }

func coerceDate(value any, f FieldInfo) (any, error) {
	if value == nil {
		return nil, nil
	}
	if t, ok := value.(time.Time); ok {
		return t, nil
	}
	t, err := cast.ToTimeE(value)
	if err != nil {
		return nil, nil
	}
	return t, nil
}

type objectType struct{}

func (objectType) Norm(value any, f FieldInfo) (any, error) { return coerceObject(value, f) }
func (objectType) Load(value any, f FieldInfo) (any, error) { return coerceObject(value, f) }
func (objectType) Save(value any, f FieldInfo) (any, error) { return coerceObject(value, f) }

func coerceObject(value any, f FieldInfo) (any, error) {
	if missing(value, f) {
		return nil, nil
	}
	if e, ok := value.(Entity); ok {
		return map[string]any(e), nil
	}
	m, err := cast.ToStringMapE(value)
	if err != nil {
		return nil, &ConversionError{Type: "object", Field: f.Name, Value: value, Cause: err}
	}
	return m, nil
}

type arrayType struct{}

func (arrayType) Norm(value any, f FieldInfo) (any, error) { return coerceArray(value, f) }
func (arrayType) Load(value any, f FieldInfo) (any, error) { return coerceArray(value, f) }
func (arrayType) Save(value any, f FieldInfo) (any, error) { return coerceArray(value, f) }

func coerceArray(value any, f FieldInfo) (any, error) {
	if missing(value, f) {
		return nil, nil
	}
	a, err := cast.ToSliceE(value)
	if err != nil {
		return nil, &ConversionError{Type: "array", Field: f.Name, Value: value, Cause: err}
	}
	return a, nil
}

// jsonType stores values serialized: save marshals to a string, load parses
// strings back. Parse and stringify failures are conversion errors.
type jsonType struct{}

func (jsonType) Norm(value any, f FieldInfo) (any, error) {
	if missing(value, f) {
		return nil, nil
	}
	return value, nil
}

func (jsonType) Load(value any, f FieldInfo) (any, error) {
	if missing(value, f) {
		return nil, nil
	}
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return value, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &ConversionError{Type: "json", Field: f.Name, Value: value, Cause: err}
	}
	return out, nil
}

func (jsonType) Save(value any, f FieldInfo) (any, error) {
	if missing(value, f) {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, &ConversionError{Type: "json", Field: f.Name, Value: value, Cause: err}
	}
	return string(raw), nil
}

// anyType passes values through untouched apart from the missing-value policy.
type anyType struct{}

func (anyType) Norm(value any, f FieldInfo) (any, error) {
	if missing(value, f) {
		return nil, nil
	}
	return value, nil
}

func (anyType) Load(value any, f FieldInfo) (any, error) {
	if missing(value, f) {
		return nil, nil
	}
	return value, nil
}

func (anyType) Save(value any, f FieldInfo) (any, error) {
	if missing(value, f) {
		return nil, nil
	}
	return value, nil
}
