// Package types provides the runtime base types for Missy: entities, the
// field type-handler contract, and the registry of built-in and user-defined
// field types.
package types

import (
	"fmt"
	"sort"
)

// Entity is a plain keyed record representing one row or document of a model.
type Entity map[string]any

// Clone returns a shallow copy of the entity.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Method identifies a conversion direction.
type Method string

const (
	// MethodNorm normalizes a user-supplied value into its canonical in-memory form.
	MethodNorm Method = "norm"
	// MethodLoad converts a value arriving from the storage backend.
	MethodLoad Method = "load"
	// MethodSave converts a value on its way to the storage backend.
	MethodSave Method = "save"
)

// FieldInfo carries the per-field data a type handler needs to make
// conversion decisions.
type FieldInfo struct {
	// Name is the field name, used for error context.
	Name string
	// Required controls the missing-value policy: non-required fields
	// coerce nil input to nil output in every direction.
	Required bool
}

// Handler converts values of one field type. All three methods must return a
// value for well-formed input; only documented failure modes (such as
// malformed JSON) produce an error.
type Handler interface {
	Norm(value any, f FieldInfo) (any, error)
	Load(value any, f FieldInfo) (any, error)
	Save(value any, f FieldInfo) (any, error)
}

// HandlerFactory produces a Handler. Registration fails synchronously if the
// factory errors or returns nil.
type HandlerFactory func() (Handler, error)

// Convert dispatches a value through the handler method for the given
// direction.
func Convert(h Handler, method Method, value any, f FieldInfo) (any, error) {
	switch method {
	case MethodNorm:
		return h.Norm(value, f)
	case MethodLoad:
		return h.Load(value, f)
	case MethodSave:
		return h.Save(value, f)
	default:
		return nil, fmt.Errorf("unknown conversion method %q", method)
	}
}

// aliases maps shorthand type names onto canonical registry names. Consulted
// once, at field-definition time.
var aliases = map[string]string{
	"str":      "string",
	"text":     "string",
	"int":      "number",
	"integer":  "number",
	"float":    "number",
	"bool":     "boolean",
	"datetime": "date",
	"time":     "date",
	"map":      "object",
	"slice":    "array",
	"list":     "array",
	"mixed":    "any",
}

// Canonical resolves a shorthand type name to its canonical registry name.
// Unknown names pass through unchanged (they may be user-registered types).
func Canonical(name string) string {
	if c, ok := aliases[name]; ok {
		return c
	}
	return name
}

// Registry holds the type handlers known to a schema, keyed by canonical
// type name. A new registry is seeded with the built-in types.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns a registry seeded with the built-in types: string,
// number, boolean, date, object, array, json and any.
func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{
		"string":  stringType{},
		"number":  numberType{},
		"boolean": booleanType{},
		"date":    dateType{},
		"object":  objectType{},
		"array":   arrayType{},
		"json":    jsonType{},
		"any":     anyType{},
	}}
}

// Register adds a user-defined type. The factory is invoked immediately;
// a factory error or nil handler is a configuration error raised here,
// not at first use.
func (r *Registry) Register(name string, factory HandlerFactory) error {
	if name == "" {
		return &RegistrationError{Type: name, Reason: "empty type name"}
	}
	if factory == nil {
		return &RegistrationError{Type: name, Reason: "nil handler factory"}
	}
	h, err := factory()
	if err != nil {
		return &RegistrationError{Type: name, Reason: "factory failed", Cause: err}
	}
	if h == nil {
		return &RegistrationError{Type: name, Reason: "factory returned nil handler"}
	}
	r.handlers[Canonical(name)] = h
	return nil
}

// Lookup resolves a type name (shorthand or canonical) to its handler.
func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[Canonical(name)]
	return h, ok
}

// Names returns the registered type names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
