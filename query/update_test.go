package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missyorm/missy/types"
)

func TestUpdate_BareKeysFoldIntoSet(t *testing.T) {
	m := newModelStub()

	u, err := NewUpdate(m, map[string]any{"login": "kate", "$inc": map[string]any{"age": 1}})
	require.NoError(t, err)

	ops := u.Ops()
	assert.Equal(t, map[string]any{"login": "kate"}, ops[OpSet])
	assert.Equal(t, map[string]any{"age": float64(1)}, ops[OpInc])
}

func TestUpdate_ExplicitSetWinsOverBareKey(t *testing.T) {
	m := newModelStub()

	u, err := NewUpdate(m, map[string]any{
		"login": "bare",
		"$set":  map[string]any{"login": "explicit"},
	})
	require.NoError(t, err)
	assert.Equal(t, "explicit", u.Ops()[OpSet]["login"])
}

func TestUpdate_UnknownOperator(t *testing.T) {
	m := newModelStub()
	_, err := NewUpdate(m, map[string]any{"$push": map[string]any{"roles": "admin"}})
	require.Error(t, err)
	assert.True(t, IsArgument(err))
}

func TestUpdate_EntityUpdate(t *testing.T) {
	m := newModelStub()

	u, err := NewUpdate(m, map[string]any{
		"$set":    map[string]any{"a": 1},
		"$inc":    map[string]any{"c": 3},
		"$unset":  map[string]any{"d": 1},
		"$rename": map[string]any{"f": "g"},
	})
	require.NoError(t, err)

	e := types.Entity{"d": "drop me", "f": "move me"}
	out := u.EntityUpdate(e)

	assert.Equal(t, 1, out["a"])
	assert.Equal(t, float64(3), out["c"], "$inc from absent treats the value as 0")
	assert.NotContains(t, out, "d")
	assert.NotContains(t, out, "f")
	assert.Equal(t, "move me", out["g"])

	// EntityUpdate mutates and returns the same entity.
	assert.Equal(t, e, out)
}

func TestUpdate_EntityInsert(t *testing.T) {
	m := newModelStub()

	c, err := NewCriteria(m, map[string]any{"_id": 3})
	require.NoError(t, err)

	u, err := NewUpdate(m, map[string]any{
		"login":        "c",
		"$inc":         map[string]any{"age": 2},
		"$setOnInsert": map[string]any{"roles": []any{"user"}},
	})
	require.NoError(t, err)

	e := u.EntityInsert(c)
	assert.Equal(t, float64(3), e["_id"])
	assert.Equal(t, "c", e["login"])
	assert.Equal(t, float64(2), e["age"])
	assert.Equal(t, []any{"user"}, e["roles"])
}
