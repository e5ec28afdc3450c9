package query

import (
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/missyorm/missy/types"
)

// Criteria operators.
const (
	OpEq     = "$eq"
	OpGt     = "$gt"
	OpGte    = "$gte"
	OpLt     = "$lt"
	OpLte    = "$lte"
	OpNe     = "$ne"
	OpIn     = "$in"
	OpNin    = "$nin"
	OpExists = "$exists"
)

// operator classes decide operand conversion: scalar operands run through
// the field's save conversion, vector operands convert element-wise, raw
// operands pass through untouched.
type opClass int

const (
	opScalar opClass = iota
	opVector
	opRaw
)

var criteriaOperators = map[string]opClass{
	OpEq:     opScalar,
	OpGt:     opScalar,
	OpGte:    opScalar,
	OpLt:     opScalar,
	OpLte:    opScalar,
	OpNe:     opScalar,
	OpIn:     opVector,
	OpNin:    opVector,
	OpExists: opRaw,
}

// Criteria is a normalized search condition: a mapping from field name to an
// operator map, with every operand already run through the model's save
// conversion. Immutable after construction.
type Criteria struct {
	model  Model
	fields map[string]map[string]any
	order  []string
}

// NewCriteria normalizes a loose condition into canonical form. The input
// may be nil (match everything), a map of field to value or operator-map, a
// types.Entity, or an already-built *Criteria (returned as-is). A bare value
// wraps into {$eq: value}; an unknown operator is an argument error.
func NewCriteria(m Model, condition any) (*Criteria, error) {
	switch cond := condition.(type) {
	case nil:
		return &Criteria{model: m, fields: map[string]map[string]any{}}, nil
	case *Criteria:
		return cond, nil
	case types.Entity:
		return newCriteriaMap(m, cond)
	case map[string]any:
		return newCriteriaMap(m, cond)
	default:
		return nil, &ArgumentError{Model: m.Name(), Reason: "criteria must be a map of conditions"}
	}
}

func newCriteriaMap(m Model, cond map[string]any) (*Criteria, error) {
	c := &Criteria{model: m, fields: make(map[string]map[string]any, len(cond))}
	fieldNames := make([]string, 0, len(cond))
	for name := range cond {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)

	for _, field := range fieldNames {
		ops, err := normalizeOperators(m, field, cond[field])
		if err != nil {
			return nil, err
		}
		c.fields[field] = ops
		c.order = append(c.order, field)
	}
	return c, nil
}

// normalizeOperators wraps bare values into {$eq: value}, validates operator
// names and converts operands per operator class.
func normalizeOperators(m Model, field string, value any) (map[string]any, error) {
	opMap, ok := asOperatorMap(value)
	if !ok {
		opMap = map[string]any{OpEq: value}
	}

	out := make(map[string]any, len(opMap))
	for op, operand := range opMap {
		class, known := criteriaOperators[op]
		if !known {
			return nil, &ArgumentError{Model: m.Name(), Field: field, Operator: op, Reason: "unsupported criteria operator"}
		}
		switch class {
		case opRaw:
			out[op] = operand
		case opVector:
			items, err := cast.ToSliceE(operand)
			if err != nil {
				return nil, &ArgumentError{Model: m.Name(), Field: field, Operator: op, Reason: "operand must be an array"}
			}
			converted := make([]any, len(items))
			for i, item := range items {
				cv, err := m.ConvertValue(field, types.MethodSave, item, true)
				if err != nil {
					return nil, err
				}
				converted[i] = cv
			}
			out[op] = converted
		default:
			cv, err := m.ConvertValue(field, types.MethodSave, operand, true)
			if err != nil {
				return nil, err
			}
			out[op] = cv
		}
	}
	return out, nil
}

// asOperatorMap reports whether the value is an operator map: a string map
// with at least one key starting with '$'.
func asOperatorMap(value any) (map[string]any, bool) {
	var m map[string]any
	switch v := value.(type) {
	case map[string]any:
		m = v
	case types.Entity:
		m = v
	default:
		return nil, false
	}
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return m, true
		}
	}
	return nil, false
}

// FromPk builds equality criteria from a primary-key value. A scalar wraps
// into a one-element array; an array must match the declared primary-key
// arity and zips positionally; a map must cover every declared primary-key
// field.
func FromPk(m Model, pk any) (*Criteria, error) {
	pkFields := m.PrimaryKey()
	if len(pkFields) == 0 {
		return nil, &ArgumentError{Model: m.Name(), Reason: "model declares no primary key"}
	}

	var obj map[string]any
	switch v := pk.(type) {
	case nil:
		return nil, &ArgumentError{Model: m.Name(), Reason: "missing primary-key value"}
	case map[string]any:
		obj = v
	case types.Entity:
		obj = v
	}

	cond := make(map[string]any, len(pkFields))
	switch {
	case obj != nil:
		for _, f := range pkFields {
			val, ok := obj[f]
			if !ok {
				return nil, &ArgumentError{Model: m.Name(), Field: f, Reason: "incomplete primary key"}
			}
			cond[f] = val
		}
	default:
		values, err := cast.ToSliceE(pk)
		if err != nil {
			values = []any{pk}
		}
		if len(values) != len(pkFields) {
			return nil, &ArgumentError{Model: m.Name(), Reason: "primary-key arity mismatch"}
		}
		for i, f := range pkFields {
			cond[f] = values[i]
		}
	}
	return NewCriteria(m, cond)
}

// Fields returns the canonical {field: {operator: operand}} form. Callers
// must not mutate the result.
func (c *Criteria) Fields() map[string]map[string]any { return c.fields }

// FieldOrder returns the field names in normalized order.
func (c *Criteria) FieldOrder() []string { return c.order }

// Empty reports whether the criteria matches everything.
func (c *Criteria) Empty() bool { return len(c.fields) == 0 }

// EqualityValues returns the $eq operand per field, for fields constrained
// by equality. Used to seed upsert-inserted entities.
func (c *Criteria) EqualityValues() map[string]any {
	out := map[string]any{}
	for field, ops := range c.fields {
		if v, ok := ops[OpEq]; ok {
			out[field] = v
		}
	}
	return out
}

// EntityMatch reports whether the entity satisfies the criteria: a
// conjunction over all fields and all operators per field.
func (c *Criteria) EntityMatch(e types.Entity) bool {
	for field, ops := range c.fields {
		value, present := e[field]
		for op, operand := range ops {
			if !matchOperator(op, operand, value, present) {
				return false
			}
		}
	}
	return true
}

func matchOperator(op string, operand, value any, present bool) bool {
	switch op {
	case OpEq:
		return equalValues(value, operand)
	case OpNe:
		return !equalValues(value, operand)
	case OpGt:
		cmp, ok := compareValues(value, operand)
		return ok && cmp > 0
	case OpGte:
		cmp, ok := compareValues(value, operand)
		return ok && cmp >= 0
	case OpLt:
		cmp, ok := compareValues(value, operand)
		return ok && cmp < 0
	case OpLte:
		cmp, ok := compareValues(value, operand)
		return ok && cmp <= 0
	case OpIn:
		items, _ := operand.([]any)
		for _, item := range items {
			if equalValues(value, item) {
				return true
			}
		}
		return false
	case OpNin:
		items, _ := operand.([]any)
		for _, item := range items {
			if equalValues(value, item) {
				return false
			}
		}
		return true
	case OpExists:
		return present == cast.ToBool(operand)
	}
	return false
}
