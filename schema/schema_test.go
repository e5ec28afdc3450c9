package schema_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missyorm/missy/driver/memory"
	"github.com/missyorm/missy/schema"
	"github.com/missyorm/missy/types"
)

func newSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(context.Background(), memory.New())
	require.NoError(t, err)
	return s
}

func TestSchema_RequiresDriver(t *testing.T) {
	_, err := schema.New(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrConfig)
}

func TestSchema_DefineValidation(t *testing.T) {
	s := newSchema(t)

	// Unknown field type fails at definition time.
	_, err := s.Define("bad", []schema.FieldDef{
		{Name: "x", Type: "no-such-type"},
	}, schema.ModelOptions{PrimaryKey: []string{"x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrConfig)

	// Duplicate field names fail.
	_, err = s.Define("dup", []schema.FieldDef{
		{Name: "x", Type: "string"},
		{Name: "x", Type: "number"},
	}, schema.ModelOptions{PrimaryKey: []string{"x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrConfig)

	// Undeclared primary-key field fails.
	_, err = s.Define("nopk", []schema.FieldDef{
		{Name: "x", Type: "string"},
	}, schema.ModelOptions{PrimaryKey: []string{"y"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrConfig)

	// Missing primary key fails.
	_, err = s.Define("empty", []schema.FieldDef{
		{Name: "x", Type: "string"},
	}, schema.ModelOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrConfig)

	// A valid definition registers once; duplicate names fail.
	m, err := s.Define("ok", []schema.FieldDef{
		{Name: "x", Type: "string"},
	}, schema.ModelOptions{PrimaryKey: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", m.Name())
	assert.Equal(t, "ok", m.Table())

	_, err = s.Define("ok", []schema.FieldDef{
		{Name: "x", Type: "string"},
	}, schema.ModelOptions{PrimaryKey: []string{"x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrConfig)

	got, ok := s.Model("ok")
	require.True(t, ok)
	assert.Same(t, m, got)
}

func TestSchema_RegisterType(t *testing.T) {
	s := newSchema(t)

	err := s.RegisterType("bad", func() (types.Handler, error) {
		return nil, errors.New("factory blew up")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRegistration)

	err = s.RegisterType("trimmed", func() (types.Handler, error) {
		return trimmedType{}, nil
	})
	require.NoError(t, err)

	m, err := s.Define("doc", []schema.FieldDef{
		{Name: "id", Type: "number"},
		{Name: "title", Type: "trimmed"},
	}, schema.ModelOptions{PrimaryKey: []string{"id"}})
	require.NoError(t, err)

	e, err := m.InsertOne(context.Background(), types.Entity{"id": 1, "title": "  spaced  "})
	require.NoError(t, err)
	assert.Equal(t, "spaced", e["title"])
}

type trimmedType struct{}

func trim(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	for len(s) > 0 && s[0] == ' ' {
		s = s[1:]
	}
	for len(s) > 0 && s[len(s)-1] == ' ' {
		s = s[:len(s)-1]
	}
	return s
}

func (trimmedType) Norm(v any, f types.FieldInfo) (any, error) { return trim(v), nil }
func (trimmedType) Load(v any, f types.FieldInfo) (any, error) { return trim(v), nil }
func (trimmedType) Save(v any, f types.FieldInfo) (any, error) { return trim(v), nil }

func TestModel_DefaultGenerators(t *testing.T) {
	s := newSchema(t)

	m, err := s.Define("session", []schema.FieldDef{
		{Name: "token", Type: "string", DefFunc: func(e types.Entity) any { return uuid.NewString() }},
		{Name: "kind", Type: "string", Def: "web"},
		{Name: "user", Type: "string"},
	}, schema.ModelOptions{PrimaryKey: []string{"token"}})
	require.NoError(t, err)

	e, err := m.InsertOne(context.Background(), types.Entity{"user": "kate"})
	require.NoError(t, err)

	// Generated and static defaults materialize on insert.
	token, _ := e["token"].(string)
	require.NotEmpty(t, token)
	_, err = uuid.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "web", e["kind"])

	// A supplied value suppresses the default.
	e2, err := m.InsertOne(context.Background(), types.Entity{"user": "joe", "kind": "api"})
	require.NoError(t, err)
	assert.Equal(t, "api", e2["kind"])
}

func TestConverter_DefaultOnlyForRequired(t *testing.T) {
	s := newSchema(t)
	required := true
	m, err := s.Define("cfg", []schema.FieldDef{
		{Name: "key", Type: "string"},
		{Name: "mode", Type: "string", Required: &required, Def: "auto"},
		{Name: "note", Type: "string", Def: "none"},
	}, schema.ModelOptions{PrimaryKey: []string{"key"}})
	require.NoError(t, err)

	// A required field with a nil value takes its default before coercion.
	v, err := m.ConvertValue("mode", types.MethodNorm, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "auto", v)

	// An optional field keeps the explicit nil.
	v, err = m.ConvertValue("note", types.MethodNorm, nil, false)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestConverter_ConvertEntity(t *testing.T) {
	s := newSchema(t)
	m, err := s.Define("user", []schema.FieldDef{
		{Name: "_id", Type: "number"},
		{Name: "login", Type: "string"},
		{Name: "meta", Type: "json"},
	}, schema.ModelOptions{PrimaryKey: []string{"_id"}})
	require.NoError(t, err)

	in := types.Entity{"_id": "7", "login": 42, "unknown": "kept"}
	out, err := m.Converter().ConvertEntity(types.MethodSave, in)
	require.NoError(t, err)

	// A new entity is produced; the input is untouched.
	assert.Equal(t, float64(7), out["_id"])
	assert.Equal(t, "42", out["login"])
	assert.Equal(t, "kept", out["unknown"])
	assert.Equal(t, "7", in["_id"])

	// Unknown fields error without ignoreUnknown.
	_, err = m.ConvertValue("unknown", types.MethodSave, 1, false)
	require.Error(t, err)

	// Nil entities are argument errors.
	_, err = m.Converter().ConvertEntity(types.MethodSave, nil)
	require.Error(t, err)
}

func TestConverter_JSONFieldRoundTrip(t *testing.T) {
	s := newSchema(t)
	m, err := s.Define("doc", []schema.FieldDef{
		{Name: "id", Type: "number"},
		{Name: "payload", Type: "json"},
	}, schema.ModelOptions{PrimaryKey: []string{"id"}})
	require.NoError(t, err)
	ctx := context.Background()

	payload := map[string]any{"tags": []any{"a", "b"}, "n": float64(5)}
	_, err = m.InsertOne(ctx, types.Entity{"id": 1, "payload": payload})
	require.NoError(t, err)

	// The driver stores the serialized form; the pipeline loads it back.
	e, err := m.Get(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, payload, e["payload"])
}
