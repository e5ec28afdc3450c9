package schema

import (
	"github.com/missyorm/missy/hooks"
	"github.com/missyorm/missy/types"
)

// ModelOptions configures a model at definition time. The field and option
// shape of a model is immutable once defined; relations and hooks may still
// be registered afterwards, any time before first use.
type ModelOptions struct {
	// Table is the backing table/collection name. Defaults to the model
	// name.
	Table string
	// PrimaryKey lists the primary-key fields, in order. At least one is
	// required and each must be a declared field.
	PrimaryKey []string
	// Required is the default required flag fields inherit when their
	// definition leaves it unset.
	Required bool
	// Prototype, when set, produces the base entity new records start
	// from on the upsert-insert path and in entity construction helpers.
	Prototype func() types.Entity
}

// Model is a named, typed schema for entities plus the operations to
// persist them.
type Model struct {
	name     string
	schema   *Schema
	fields   []*Field
	fieldIdx map[string]*Field
	options  ModelOptions

	converter *Converter
	hooks     *hooks.Hooks[*Event]
	relations map[string]*Relation
}

func newModel(s *Schema, name string, defs []FieldDef, options ModelOptions) (*Model, error) {
	if len(defs) == 0 {
		return nil, &ConfigError{Model: name, Reason: "model declares no fields"}
	}
	if options.Table == "" {
		options.Table = name
	}

	m := &Model{
		name:      name,
		schema:    s,
		fieldIdx:  make(map[string]*Field, len(defs)),
		options:   options,
		hooks:     hooks.New[*Event](),
		relations: map[string]*Relation{},
	}
	m.converter = &Converter{model: m}

	for _, def := range defs {
		f, err := resolveField(m, def, s.types, options.Required)
		if err != nil {
			return nil, err
		}
		if _, dup := m.fieldIdx[f.Name]; dup {
			return nil, &ConfigError{Model: name, Field: f.Name, Reason: "duplicate field"}
		}
		m.fields = append(m.fields, f)
		m.fieldIdx[f.Name] = f
	}

	if len(options.PrimaryKey) == 0 {
		return nil, &ConfigError{Model: name, Reason: "model declares no primary key"}
	}
	for _, pk := range options.PrimaryKey {
		if _, ok := m.fieldIdx[pk]; !ok {
			return nil, &ConfigError{Model: name, Field: pk, Reason: "primary-key field not declared"}
		}
	}
	return m, nil
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// Table returns the backing table/collection name.
func (m *Model) Table() string { return m.options.Table }

// Schema returns the owning schema.
func (m *Model) Schema() *Schema { return m.schema }

// Options returns the model options.
func (m *Model) Options() ModelOptions { return m.options }

// FieldNames returns the declared field names in definition order.
func (m *Model) FieldNames() []string {
	out := make([]string, len(m.fields))
	for i, f := range m.fields {
		out[i] = f.Name
	}
	return out
}

// Field looks up a declared field by name.
func (m *Model) Field(name string) (*Field, bool) {
	f, ok := m.fieldIdx[name]
	return f, ok
}

// PrimaryKey returns the declared primary-key field names.
func (m *Model) PrimaryKey() []string { return m.options.PrimaryKey }

// Converter returns the model's converter.
func (m *Model) Converter() *Converter { return m.converter }

// ConvertValue implements query.Model by delegating to the converter.
func (m *Model) ConvertValue(field string, method types.Method, value any, ignoreUnknown bool) (any, error) {
	return m.converter.ConvertValue(field, method, value, ignoreUnknown)
}

// On registers a hook handler on the named extension point (see the
// Hook* constants).
func (m *Model) On(name string, fn hooks.Handler[*Event]) {
	m.hooks.On(name, fn)
}

// Hooks exposes the model's hook set.
func (m *Model) Hooks() *hooks.Hooks[*Event] { return m.hooks }

// Relations returns the declared relations by property name.
func (m *Model) Relations() map[string]*Relation { return m.relations }

// Relation looks up a declared relation by property name.
func (m *Model) Relation(prop string) (*Relation, bool) {
	r, ok := m.relations[prop]
	return r, ok
}

// prototype returns a fresh base entity for synthesized records.
func (m *Model) prototype() types.Entity {
	if m.options.Prototype != nil {
		if e := m.options.Prototype(); e != nil {
			return e.Clone()
		}
	}
	return types.Entity{}
}
