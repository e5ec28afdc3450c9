package query

import (
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/missyorm/missy/types"
)

// Update operators.
const (
	OpSet         = "$set"
	OpInc         = "$inc"
	OpUnset       = "$unset"
	OpSetOnInsert = "$setOnInsert"
	OpRename      = "$rename"
)

var updateOperators = map[string]struct{}{
	OpSet: {}, OpInc: {}, OpUnset: {}, OpSetOnInsert: {}, OpRename: {},
}

// Update is a normalized update-operator document. Bare top-level keys fold
// into $set; explicit $set entries win over bare-key shorthand for the same
// field (bare keys merge first, the explicit $set map second).
type Update struct {
	model Model
	ops   map[string]map[string]any
}

// NewUpdate normalizes an update document. Operand values of $set, $inc and
// $setOnInsert run through the field's save conversion; $unset and $rename
// operands pass through raw. An unknown $-prefixed operator is an argument
// error.
func NewUpdate(m Model, doc any) (*Update, error) {
	var src map[string]any
	switch v := doc.(type) {
	case nil:
		return &Update{model: m, ops: map[string]map[string]any{}}, nil
	case *Update:
		return v, nil
	case types.Entity:
		src = v
	case map[string]any:
		src = v
	default:
		return nil, &ArgumentError{Model: m.Name(), Reason: "update must be a map"}
	}

	u := &Update{model: m, ops: map[string]map[string]any{}}

	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Bare assignment keys first, so explicit $set entries override them.
	for _, key := range keys {
		if strings.HasPrefix(key, "$") {
			continue
		}
		cv, err := m.ConvertValue(key, types.MethodSave, src[key], true)
		if err != nil {
			return nil, err
		}
		u.setOp(OpSet, key, cv)
	}

	for _, key := range keys {
		if !strings.HasPrefix(key, "$") {
			continue
		}
		if _, known := updateOperators[key]; !known {
			return nil, &ArgumentError{Model: m.Name(), Operator: key, Reason: "unsupported update operator"}
		}
		fields, err := cast.ToStringMapE(src[key])
		if err != nil {
			return nil, &ArgumentError{Model: m.Name(), Operator: key, Reason: "operator value must be a map of fields"}
		}
		for field, value := range fields {
			switch key {
			case OpUnset, OpRename:
				u.setOp(key, field, value)
			default:
				cv, err := m.ConvertValue(field, types.MethodSave, value, true)
				if err != nil {
					return nil, err
				}
				u.setOp(key, field, cv)
			}
		}
	}
	return u, nil
}

func (u *Update) setOp(op, field string, value any) {
	if u.ops[op] == nil {
		u.ops[op] = map[string]any{}
	}
	u.ops[op][field] = value
}

// Ops returns the canonical operator document. Callers must not mutate it.
func (u *Update) Ops() map[string]map[string]any { return u.ops }

// Empty reports whether the update changes nothing.
func (u *Update) Empty() bool { return len(u.ops) == 0 }

// EntityUpdate applies the update to the entity in place and returns it.
// Operators apply in a fixed order: $set, $inc, $unset, $rename.
// $setOnInsert is inert here.
func (u *Update) EntityUpdate(e types.Entity) types.Entity {
	for field, value := range u.ops[OpSet] {
		e[field] = value
	}
	for field, delta := range u.ops[OpInc] {
		// A missing counter increments from zero.
		e[field] = cast.ToFloat64(e[field]) + cast.ToFloat64(delta)
	}
	for field := range u.ops[OpUnset] {
		delete(e, field)
	}
	for field, target := range u.ops[OpRename] {
		name := cast.ToString(target)
		if value, ok := e[field]; ok {
			e[name] = value
			delete(e, field)
		}
	}
	return e
}

// EntityInsert synthesizes a fresh entity for the insert branch of an
// upsert: the equality values of the criteria, overlaid with $set and then
// $setOnInsert, and finally the remaining operators applied.
func (u *Update) EntityInsert(c *Criteria) types.Entity {
	e := types.Entity{}
	if c != nil {
		for field, value := range c.EqualityValues() {
			e[field] = value
		}
	}
	for field, value := range u.ops[OpSet] {
		e[field] = value
	}
	for field, value := range u.ops[OpSetOnInsert] {
		e[field] = value
	}
	for field, delta := range u.ops[OpInc] {
		e[field] = cast.ToFloat64(e[field]) + cast.ToFloat64(delta)
	}
	return e
}
