package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missyorm/missy/types"
)

func TestSort_Syntaxes(t *testing.T) {
	want := []SortField{{Name: "a", Dir: 1}, {Name: "b", Dir: 1}, {Name: "c", Dir: -1}}

	s, err := NewSort("a,b+,c-")
	require.NoError(t, err)
	assert.Equal(t, want, s.Fields())

	s, err = NewSort([]string{"a", "b+", "c-"})
	require.NoError(t, err)
	assert.Equal(t, want, s.Fields())

	s, err = NewSort(map[string]any{"a": 1, "b": "x", "c": -1})
	require.NoError(t, err)
	assert.Equal(t, want, s.Fields())

	s, err = NewSort(nil)
	require.NoError(t, err)
	assert.True(t, s.Empty())
}

func TestSort_DirectionTokens(t *testing.T) {
	descending := []any{-1, "-1", "-", "0", 0, false, ""}
	for _, token := range descending {
		assert.Equal(t, -1, parseDirection(token), "token %v", token)
	}
	for _, token := range []any{1, "1", "+", true, "asc", 42} {
		assert.Equal(t, 1, parseDirection(token), "token %v", token)
	}
}

func TestSort_EntitiesSort(t *testing.T) {
	s, err := NewSort("age-,login")
	require.NoError(t, err)

	in := []types.Entity{
		{"login": "d", "age": 20},
		{"login": "b", "age": 30},
		{"login": "a", "age": 30},
		{"login": "c", "age": 20},
	}
	out := s.EntitiesSort(in)

	logins := make([]string, len(out))
	for i, e := range out {
		logins[i] = e["login"].(string)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, logins)

	// Input order untouched.
	assert.Equal(t, "d", in[0]["login"])
}

func TestSort_Stability(t *testing.T) {
	s, err := NewSort("age")
	require.NoError(t, err)

	in := []types.Entity{
		{"login": "x", "age": 1},
		{"login": "y", "age": 1},
		{"login": "z", "age": 1},
	}
	out := s.EntitiesSort(in)

	// Fully equal entities retain their relative order.
	assert.Equal(t, "x", out[0]["login"])
	assert.Equal(t, "y", out[1]["login"])
	assert.Equal(t, "z", out[2]["login"])
}
