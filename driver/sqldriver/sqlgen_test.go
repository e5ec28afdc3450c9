package sqldriver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missyorm/missy/driver/memory"
	"github.com/missyorm/missy/query"
	"github.com/missyorm/missy/schema"
)

func testModel(t *testing.T) *schema.Model {
	t.Helper()
	s, err := schema.New(context.Background(), memory.New())
	require.NoError(t, err)
	m, err := s.Define("user", []schema.FieldDef{
		{Name: "_id", Type: "number"},
		{Name: "login", Type: "string"},
		{Name: "age", Type: "number"},
	}, schema.ModelOptions{Table: "users", PrimaryKey: []string{"_id"}})
	require.NoError(t, err)
	return m
}

func mustCriteria(t *testing.T, m *schema.Model, cond any) *query.Criteria {
	t.Helper()
	c, err := query.NewCriteria(m, cond)
	require.NoError(t, err)
	return c
}

func TestGenerator_SelectPostgres(t *testing.T) {
	m := testModel(t)
	g := newGenerator("postgres")

	c := mustCriteria(t, m, map[string]any{
		"_id":   map[string]any{"$gte": 2},
		"login": "a",
	})
	srt, err := query.NewSort("_id-")
	require.NoError(t, err)

	sql, args := g.selectQuery(m, c, nil, srt, query.Options{Limit: 10, Skip: 5})
	assert.Equal(t,
		`SELECT "_id", "login", "age" FROM "users" WHERE "_id" >= $1 AND "login" = $2 ORDER BY "_id" DESC LIMIT $3 OFFSET $4`,
		sql)
	assert.Equal(t, []any{float64(2), "a", 10, 5}, args)
}

func TestGenerator_SelectMySQLPlaceholders(t *testing.T) {
	m := testModel(t)
	g := newGenerator("mysql")

	c := mustCriteria(t, m, map[string]any{"login": "a"})
	sql, args := g.selectQuery(m, c, nil, nil, query.Options{})
	assert.Equal(t, "SELECT `_id`, `login`, `age` FROM `users` WHERE `login` = ?", sql)
	assert.Equal(t, []any{"a"}, args)
}

func TestGenerator_SelectProjection(t *testing.T) {
	m := testModel(t)
	g := newGenerator("sqlite")

	p, err := query.NewProjection([]string{"login"})
	require.NoError(t, err)
	sql, _ := g.selectQuery(m, nil, p, nil, query.Options{})
	assert.Equal(t, `SELECT "login" FROM "users"`, sql)

	// Exclusion keeps the remaining declared fields.
	p, err = query.NewProjection(map[string]any{"age": 0})
	require.NoError(t, err)
	sql, _ = g.selectQuery(m, nil, p, nil, query.Options{})
	assert.Equal(t, `SELECT "_id", "login" FROM "users"`, sql)
}

func TestGenerator_WhereOperators(t *testing.T) {
	m := testModel(t)
	g := newGenerator("postgres")

	c := mustCriteria(t, m, map[string]any{
		"_id":   map[string]any{"$in": []any{1, 2}},
		"age":   map[string]any{"$ne": nil},
		"login": map[string]any{"$exists": false},
	})
	sql, args := g.selectQuery(m, c, nil, nil, query.Options{})
	assert.Equal(t,
		`SELECT "_id", "login", "age" FROM "users" WHERE "_id" IN ($1, $2) AND "age" IS NOT NULL AND "login" IS NULL`,
		sql)
	assert.Equal(t, []any{float64(1), float64(2)}, args)
}

func TestGenerator_SkipWithoutLimit(t *testing.T) {
	m := testModel(t)

	// Postgres allows a bare OFFSET; MySQL and SQLite need a LIMIT first.
	sql, args := newGenerator("postgres").selectQuery(m, nil, nil, nil, query.Options{Skip: 5})
	assert.Equal(t, `SELECT "_id", "login", "age" FROM "users" OFFSET $1`, sql)
	assert.Equal(t, []any{5}, args)

	sql, args = newGenerator("sqlite").selectQuery(m, nil, nil, nil, query.Options{Skip: 5})
	assert.Equal(t, `SELECT "_id", "login", "age" FROM "users" LIMIT -1 OFFSET ?`, sql)
	assert.Equal(t, []any{5}, args)

	sql, args = newGenerator("mysql").selectQuery(m, nil, nil, nil, query.Options{Skip: 5})
	assert.Equal(t, "SELECT `_id`, `login`, `age` FROM `users` LIMIT ? OFFSET ?", sql)
	assert.Equal(t, []any{int64(1) << 62, 5}, args)
}

func TestGenerator_EmptyIn(t *testing.T) {
	m := testModel(t)
	g := newGenerator("postgres")

	c := mustCriteria(t, m, map[string]any{"_id": map[string]any{"$in": []any{}}})
	sql, args := g.selectQuery(m, c, nil, nil, query.Options{})
	assert.Equal(t, `SELECT "_id", "login", "age" FROM "users" WHERE 1 = 0`, sql)
	assert.Empty(t, args)
}

func TestGenerator_Insert(t *testing.T) {
	m := testModel(t)
	g := newGenerator("postgres")

	sql, args := g.insertQuery(m, map[string]any{"_id": float64(1), "login": "a"})
	assert.Equal(t, `INSERT INTO "users" ("_id", "login") VALUES ($1, $2)`, sql)
	assert.Equal(t, []any{float64(1), "a"}, args)
}

func TestGenerator_UpdateByPk(t *testing.T) {
	m := testModel(t)
	g := newGenerator("postgres")

	sql, args := g.updateByPk(m, map[string]any{"_id": float64(1), "login": "a", "age": float64(3)})
	assert.Equal(t, `UPDATE "users" SET "login" = $1, "age" = $2 WHERE "_id" = $3`, sql)
	assert.Equal(t, []any{"a", float64(3), float64(1)}, args)
}

func TestGenerator_DeleteByPk(t *testing.T) {
	m := testModel(t)
	g := newGenerator("mysql")

	sql, args := g.deleteByPk(m, map[string]any{"_id": float64(7)})
	assert.Equal(t, "DELETE FROM `users` WHERE `_id` = ?", sql)
	assert.Equal(t, []any{float64(7)}, args)
}

func TestGenerator_Count(t *testing.T) {
	m := testModel(t)
	g := newGenerator("postgres")

	sql, args := g.countQuery(m, mustCriteria(t, m, map[string]any{"age": map[string]any{"$lt": 30}}))
	assert.Equal(t, `SELECT COUNT(*) FROM "users" WHERE "age" < $1`, sql)
	assert.Equal(t, []any{float64(30)}, args)
}

func TestGenerator_CompositeValuesBindAsJSON(t *testing.T) {
	assert.Equal(t, `["a","b"]`, bindValue([]any{"a", "b"}))
	assert.Equal(t, `{"k":1}`, bindValue(map[string]any{"k": 1}))
	assert.Equal(t, "plain", bindValue("plain"))
	assert.Nil(t, bindValue(nil))
}

func TestDriverName(t *testing.T) {
	assert.Equal(t, "postgres", driverName("postgresql"))
	assert.Equal(t, "mysql", driverName("mysql"))
	assert.Equal(t, "sqlite3", driverName("sqlite"))
	assert.Equal(t, "", driverName("oracle"))

	_, err := New("oracle", "dsn")
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrConfig)
}
