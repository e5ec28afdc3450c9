package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missyorm/missy/driver/memory"
	"github.com/missyorm/missy/query"
	"github.com/missyorm/missy/schema"
	"github.com/missyorm/missy/types"
)

func newTestSchema(t *testing.T) (*schema.Schema, *schema.Model) {
	t.Helper()
	s, err := schema.New(context.Background(), memory.New())
	require.NoError(t, err)

	user, err := s.Define("user", []schema.FieldDef{
		{Name: "_id", Type: "number"},
		{Name: "login", Type: "string"},
		{Name: "age", Type: "number"},
		{Name: "roles", Type: "array"},
	}, schema.ModelOptions{PrimaryKey: []string{"_id"}})
	require.NoError(t, err)
	return s, user
}

func TestDriver_Lifecycle(t *testing.T) {
	d := memory.New()
	s, err := schema.New(context.Background(), d)
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.True(t, d.Connected())
	require.NoError(t, d.Disconnect(context.Background()))
	assert.False(t, d.Connected())
	require.NoError(t, d.Connect(context.Background()))
	assert.True(t, d.Connected())
	assert.NotNil(t, d.Client())
}

func TestDriver_InsertCollision(t *testing.T) {
	_, user := newTestSchema(t)
	ctx := context.Background()

	_, err := user.InsertOne(ctx, types.Entity{"_id": 1, "login": "a"})
	require.NoError(t, err)

	_, err = user.InsertOne(ctx, types.Entity{"_id": 1, "login": "dup"})
	require.Error(t, err)
	assert.True(t, schema.IsEntityExists(err))
}

func TestDriver_InsertCollisionWithinBatch(t *testing.T) {
	_, user := newTestSchema(t)
	ctx := context.Background()

	// A duplicate key inside one batch fails the whole insert.
	_, err := user.Insert(ctx, []types.Entity{
		{"_id": 1, "login": "a"},
		{"_id": 2, "login": "b"},
		{"_id": 1, "login": "dup"},
	})
	require.Error(t, err)
	assert.True(t, schema.IsEntityExists(err))

	n, err := user.Count(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestDriver_UpdateAndRemoveMiss(t *testing.T) {
	_, user := newTestSchema(t)
	ctx := context.Background()

	_, err := user.UpdateOne(ctx, types.Entity{"_id": 404, "login": "x"})
	require.Error(t, err)
	assert.True(t, schema.IsEntityNotFound(err))

	_, err = user.RemoveOne(ctx, types.Entity{"_id": 404})
	require.Error(t, err)
	assert.True(t, schema.IsEntityNotFound(err))
}

func TestDriver_SaveUpserts(t *testing.T) {
	_, user := newTestSchema(t)
	ctx := context.Background()

	_, err := user.SaveOne(ctx, types.Entity{"_id": 1, "login": "a"})
	require.NoError(t, err)
	_, err = user.SaveOne(ctx, types.Entity{"_id": 1, "login": "replaced"})
	require.NoError(t, err)

	e, err := user.Get(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "replaced", e["login"])

	n, err := user.Count(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestDriver_UpdateQueryUpsert(t *testing.T) {
	_, user := newTestSchema(t)
	ctx := context.Background()

	// Against an empty table, upsert synthesizes the entity from criteria
	// equality values plus the update document.
	out, err := user.UpdateQuery(ctx,
		map[string]any{"_id": 3},
		map[string]any{"login": "c", "$inc": map[string]any{"age": 2}},
		query.Options{Upsert: true})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, types.Entity{"_id": float64(3), "login": "c", "age": float64(2)}, out[0])

	// And it is persisted.
	e, err := user.Get(ctx, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, "c", e["login"])
	assert.Equal(t, float64(2), e["age"])
}

func TestDriver_UpdateQueryMiss(t *testing.T) {
	_, user := newTestSchema(t)
	ctx := context.Background()

	_, err := user.UpdateQuery(ctx, map[string]any{"_id": 9}, map[string]any{"login": "x"})
	require.Error(t, err)
	assert.True(t, schema.IsEntityNotFound(err))
}

func TestDriver_UpdateQueryMulti(t *testing.T) {
	_, user := newTestSchema(t)
	ctx := context.Background()

	_, err := user.Insert(ctx, []types.Entity{
		{"_id": 1, "login": "a", "age": 10},
		{"_id": 2, "login": "b", "age": 10},
		{"_id": 3, "login": "c", "age": 99},
	})
	require.NoError(t, err)

	// Without Multi only the first match updates.
	out, err := user.UpdateQuery(ctx, map[string]any{"age": 10}, map[string]any{"$inc": map[string]any{"age": 1}})
	require.NoError(t, err)
	assert.Len(t, out, 1)

	// With Multi every match updates.
	out, err = user.UpdateQuery(ctx, map[string]any{"age": map[string]any{"$lt": 50}},
		map[string]any{"$set": map[string]any{"age": 0}}, query.Options{Multi: true})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestDriver_RemoveQuery(t *testing.T) {
	_, user := newTestSchema(t)
	ctx := context.Background()

	_, err := user.Insert(ctx, []types.Entity{
		{"_id": 1, "age": 10},
		{"_id": 2, "age": 10},
		{"_id": 3, "age": 30},
	})
	require.NoError(t, err)

	out, err := user.RemoveQuery(ctx, map[string]any{"age": 10}, query.Options{Multi: true})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	n, err := user.Count(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestDriver_FindSkipLimit(t *testing.T) {
	_, user := newTestSchema(t)
	ctx := context.Background()

	_, err := user.Insert(ctx, []types.Entity{
		{"_id": 1}, {"_id": 2}, {"_id": 3}, {"_id": 4},
	})
	require.NoError(t, err)

	out, err := user.Find(ctx, nil, nil, "_id", query.Options{Skip: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, float64(2), out[0]["_id"])
	assert.Equal(t, float64(3), out[1]["_id"])

	// Negative skip/limit clamp to zero.
	out, err = user.Find(ctx, nil, nil, "_id", query.Options{Skip: -5, Limit: -5})
	require.NoError(t, err)
	assert.Len(t, out, 4)
}

func TestDriver_StorageIsolated(t *testing.T) {
	_, user := newTestSchema(t)
	ctx := context.Background()

	src := types.Entity{"_id": 1, "login": "a"}
	_, err := user.InsertOne(ctx, src)
	require.NoError(t, err)

	// Mutating a returned entity must not leak into storage.
	e, err := user.Get(ctx, 1, nil)
	require.NoError(t, err)
	e["login"] = "mutated"

	again, err := user.Get(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", again["login"])
}
