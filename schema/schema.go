// Package schema is the heart of Missy: it owns the model registry, the
// per-model CRUD pipeline (hook-wrapped import/export around every verb),
// and the relation resolver. Storage backends plug in through the Driver
// contract and receive only normalized query forms.
package schema

import (
	"context"

	"github.com/missyorm/missy/internal/debug"
	"github.com/missyorm/missy/types"
)

// Schema binds exactly one driver to a type registry and a set of models.
type Schema struct {
	driver Driver
	types  *types.Registry
	models map[string]*Model
}

// New constructs a schema bound to the driver. Binding is one-time: the
// driver's BindSchema runs here and the driver cannot be swapped later.
func New(ctx context.Context, driver Driver) (*Schema, error) {
	if driver == nil {
		return nil, &ConfigError{Reason: "schema requires a driver"}
	}
	s := &Schema{
		driver: driver,
		types:  types.NewRegistry(),
		models: map[string]*Model{},
	}
	if err := driver.BindSchema(ctx, s); err != nil {
		return nil, &ConfigError{Reason: "driver binding failed: " + err.Error()}
	}
	debug.Debug("schema bound", "driver", driver.Name())
	return s, nil
}

// Driver returns the bound driver.
func (s *Schema) Driver() Driver { return s.driver }

// Types returns the schema's type registry.
func (s *Schema) Types() *types.Registry { return s.types }

// RegisterType adds a user-defined field type. Registration failures are
// configuration errors raised here, not at first use.
func (s *Schema) RegisterType(name string, factory types.HandlerFactory) error {
	return s.types.Register(name, factory)
}

// Define creates and registers a model. Model names are unique; every field
// must resolve to a registered type.
func (s *Schema) Define(name string, fields []FieldDef, options ModelOptions) (*Model, error) {
	if name == "" {
		return nil, &ConfigError{Reason: "model with empty name"}
	}
	if _, dup := s.models[name]; dup {
		return nil, &ConfigError{Model: name, Reason: "model already defined"}
	}
	m, err := newModel(s, name, fields, options)
	if err != nil {
		return nil, err
	}
	s.models[name] = m
	debug.Debug("model defined", "model", name, "fields", len(fields))
	return m, nil
}

// MustDefine is Define, panicking on configuration errors. Convenient at
// program start where a bad schema is unrecoverable anyway.
func (s *Schema) MustDefine(name string, fields []FieldDef, options ModelOptions) *Model {
	m, err := s.Define(name, fields, options)
	if err != nil {
		panic(err)
	}
	return m
}

// Model looks up a registered model by name.
func (s *Schema) Model(name string) (*Model, bool) {
	m, ok := s.models[name]
	return m, ok
}

// ModelNames returns the registered model names, in no particular order.
func (s *Schema) ModelNames() []string {
	out := make([]string, 0, len(s.models))
	for name := range s.models {
		out = append(out, name)
	}
	return out
}
