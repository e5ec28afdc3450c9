package schema

import (
	"github.com/missyorm/missy/types"
)

// FieldDef describes one model field at definition time.
type FieldDef struct {
	// Name is the field name; unique within the model.
	Name string
	// Type is a (possibly shorthand) key into the schema's type registry.
	Type string
	// Required overrides the model's default-required flag when non-nil.
	Required *bool
	// Def is a static default value, applied when the value is missing.
	Def any
	// DefFunc is an entity-bound default generator; takes precedence over
	// Def when both are set.
	DefFunc func(e types.Entity) any
}

// Field is the resolved per-field descriptor a model owns.
type Field struct {
	// Name is the field name.
	Name string
	// Type is the canonical type name.
	Type string
	// Required marks the field as mandatory.
	Required bool

	def     any
	defFunc func(e types.Entity) any
	handler types.Handler
	model   *Model
}

// HasDefault reports whether the field carries a default value or generator.
func (f *Field) HasDefault() bool { return f.def != nil || f.defFunc != nil }

// Default resolves the field's default against the given entity, invoking
// the generator if one is set. Returns nil when the field has no default.
func (f *Field) Default(e types.Entity) any {
	if f.defFunc != nil {
		return f.defFunc(e)
	}
	return f.def
}

// Info returns the conversion-facing view of the field.
func (f *Field) Info() types.FieldInfo {
	return types.FieldInfo{Name: f.Name, Required: f.Required}
}

// resolveField validates a definition against the registry and builds the
// owned descriptor. Every field must resolve to a registered type, or model
// construction fails.
func resolveField(m *Model, def FieldDef, registry *types.Registry, defaultRequired bool) (*Field, error) {
	if def.Name == "" {
		return nil, &ConfigError{Model: m.name, Reason: "field with empty name"}
	}
	if def.Type == "" {
		return nil, &ConfigError{Model: m.name, Field: def.Name, Reason: "field has no type"}
	}
	handler, ok := registry.Lookup(def.Type)
	if !ok {
		return nil, &ConfigError{Model: m.name, Field: def.Name, Reason: "unknown field type " + def.Type}
	}
	required := defaultRequired
	if def.Required != nil {
		required = *def.Required
	}
	return &Field{
		Name:     def.Name,
		Type:     types.Canonical(def.Type),
		Required: required,
		def:      def.Def,
		defFunc:  def.DefFunc,
		handler:  handler,
		model:    m,
	}, nil
}
