package query

import (
	"sort"

	"github.com/spf13/cast"

	"github.com/missyorm/missy/types"
)

// Projection is a normalized field-selection filter: a mode (inclusion or
// exclusion) plus the selected field names. An empty projection selects all
// fields, unrestricted.
type Projection struct {
	inclusion bool
	fields    []string
	set       map[string]struct{}
}

// FieldDetails is the effective field set a projection yields for a model.
type FieldDetails struct {
	// Fields is the full list of fields the projected entity will carry.
	Fields []string
	// Pick, when non-empty, lists the only fields to keep (inclusion mode).
	Pick []string
	// Omit, when non-empty, lists the fields to drop (exclusion mode).
	Omit []string
}

// NewProjection normalizes a field-selection spec. Accepted forms: nil or an
// empty value (unrestricted), an array of names (inclusion), or a map whose
// values decide the mode — any truthy value makes it an inclusion projection,
// all-falsy makes it an exclusion projection. An already-built *Projection
// passes through.
func NewProjection(spec any) (*Projection, error) {
	switch v := spec.(type) {
	case nil:
		return &Projection{}, nil
	case *Projection:
		return v, nil
	case []string:
		return newInclusion(v), nil
	case []any:
		names := make([]string, len(v))
		for i, item := range v {
			s, err := cast.ToStringE(item)
			if err != nil {
				return nil, &ArgumentError{Reason: "projection field names must be strings"}
			}
			names[i] = s
		}
		return newInclusion(names), nil
	case map[string]any:
		return newFromMap(v)
	case map[string]bool:
		m := make(map[string]any, len(v))
		for k, b := range v {
			m[k] = b
		}
		return newFromMap(m)
	case map[string]int:
		m := make(map[string]any, len(v))
		for k, n := range v {
			m[k] = n
		}
		return newFromMap(m)
	default:
		return nil, &ArgumentError{Reason: "unsupported projection spec"}
	}
}

func newInclusion(names []string) *Projection {
	p := &Projection{inclusion: true, set: make(map[string]struct{}, len(names))}
	for _, name := range names {
		if _, dup := p.set[name]; dup {
			continue
		}
		p.set[name] = struct{}{}
		p.fields = append(p.fields, name)
	}
	return p
}

func newFromMap(spec map[string]any) (*Projection, error) {
	if len(spec) == 0 {
		return &Projection{}, nil
	}
	inclusion := false
	for _, v := range spec {
		if cast.ToBool(v) {
			inclusion = true
			break
		}
	}
	names := make([]string, 0, len(spec))
	for name := range spec {
		names = append(names, name)
	}
	sort.Strings(names)

	p := &Projection{inclusion: inclusion, set: make(map[string]struct{}, len(names))}
	for _, name := range names {
		p.set[name] = struct{}{}
		p.fields = append(p.fields, name)
	}
	return p, nil
}

// Empty reports whether the projection is unrestricted.
func (p *Projection) Empty() bool { return len(p.fields) == 0 }

// Inclusion reports whether the projection is in inclusion mode. Meaningless
// for empty projections.
func (p *Projection) Inclusion() bool { return p.inclusion }

// FieldNames returns the selected field names in normalized order.
func (p *Projection) FieldNames() []string { return p.fields }

// Includes reports whether the given field survives the projection.
func (p *Projection) Includes(field string) bool {
	if p.Empty() {
		return true
	}
	_, listed := p.set[field]
	if p.inclusion {
		return listed
	}
	return !listed
}

// GetFieldDetails computes the effective field set against a model's
// declared fields.
func (p *Projection) GetFieldDetails(m Model) FieldDetails {
	declared := m.FieldNames()
	if p.Empty() {
		return FieldDetails{Fields: declared}
	}
	if p.inclusion {
		return FieldDetails{Fields: p.fields, Pick: p.fields}
	}
	kept := make([]string, 0, len(declared))
	for _, f := range declared {
		if _, dropped := p.set[f]; !dropped {
			kept = append(kept, f)
		}
	}
	return FieldDetails{Fields: kept, Omit: p.fields}
}

// EntityApply applies the projection to an entity without mutating it.
// Inclusion keeps only the listed fields; exclusion drops them.
func (p *Projection) EntityApply(m Model, e types.Entity) types.Entity {
	if p.Empty() {
		return e.Clone()
	}
	out := make(types.Entity, len(e))
	for k, v := range e {
		_, listed := p.set[k]
		if p.inclusion == listed {
			out[k] = v
		}
	}
	return out
}
