// Package sqldriver backs models with a relational database through
// database/sql. PostgreSQL, MySQL and SQLite are supported; the provider
// name selects the registered database driver and the SQL dialect.
package sqldriver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/missyorm/missy/internal/debug"
	"github.com/missyorm/missy/query"
	"github.com/missyorm/missy/schema"
	"github.com/missyorm/missy/types"
)

// Driver is a schema.Driver over a *sql.DB.
type Driver struct {
	provider  string
	db        *sql.DB
	gen       *generator
	schema    *schema.Schema
	connected bool
}

var _ schema.Driver = (*Driver)(nil)

// New opens a database handle for the provider and DSN. The connection is
// verified on Connect, not here.
func New(provider, dsn string) (*Driver, error) {
	name := driverName(provider)
	if name == "" {
		return nil, &schema.ConfigError{Reason: "unsupported provider " + provider}
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, err
	}
	return &Driver{provider: provider, db: db, gen: newGenerator(provider)}, nil
}

// NewFromDB wraps an existing database handle.
func NewFromDB(provider string, db *sql.DB) (*Driver, error) {
	if driverName(provider) == "" {
		return nil, &schema.ConfigError{Reason: "unsupported provider " + provider}
	}
	return &Driver{provider: provider, db: db, gen: newGenerator(provider)}, nil
}

// driverName maps provider names to registered database driver names.
func driverName(provider string) string {
	switch provider {
	case "postgresql", "postgres":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return ""
	}
}

func (d *Driver) Name() string { return d.provider }

func (d *Driver) BindSchema(ctx context.Context, s *schema.Schema) error {
	d.schema = s
	return nil
}

// Connect verifies the connection with a ping.
func (d *Driver) Connect(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return err
	}
	d.connected = true
	debug.Debug("sql driver connected", "provider", d.provider)
	return nil
}

func (d *Driver) Disconnect(ctx context.Context) error {
	d.connected = false
	return d.db.Close()
}

func (d *Driver) Connected() bool { return d.connected }

// Client exposes the underlying *sql.DB.
func (d *Driver) Client() any { return d.db }

func (d *Driver) FindOne(ctx context.Context, m *schema.Model, c *query.Criteria, p *query.Projection, s *query.Sort, o query.Options) (types.Entity, error) {
	o.Limit = 1
	rows, err := d.Find(ctx, m, c, p, s, o)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (d *Driver) Find(ctx context.Context, m *schema.Model, c *query.Criteria, p *query.Projection, s *query.Sort, o query.Options) ([]types.Entity, error) {
	sqlText, args := d.gen.selectQuery(m, c, p, s, o)
	debug.Debug("sql find", "sql", sqlText)
	rows, err := d.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntities(rows)
}

func (d *Driver) Count(ctx context.Context, m *schema.Model, c *query.Criteria, o query.Options) (int64, error) {
	sqlText, args := d.gen.countQuery(m, c)
	var n int64
	if err := d.db.QueryRowContext(ctx, sqlText, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Insert stores the entities in one transaction. A violated unique
// constraint maps to ErrEntityExists.
func (d *Driver) Insert(ctx context.Context, m *schema.Model, entities []types.Entity, o query.Options) ([]types.Entity, error) {
	out := make([]types.Entity, len(entities))
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		for i, e := range entities {
			if err := d.insertOne(ctx, tx, m, e); err != nil {
				return err
			}
			out[i] = e.Clone()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Driver) insertOne(ctx context.Context, tx *sql.Tx, m *schema.Model, e types.Entity) error {
	sqlText, args := d.gen.insertQuery(m, e)
	if _, err := tx.ExecContext(ctx, sqlText, args...); err != nil {
		if isDuplicateErr(err) {
			return &schema.EntityExistsError{Model: m.Name(), Entity: e}
		}
		return err
	}
	return nil
}

// Update replaces the entities in one transaction, matched by primary key.
// A row that matches nothing maps to ErrEntityNotFound.
func (d *Driver) Update(ctx context.Context, m *schema.Model, entities []types.Entity, o query.Options) ([]types.Entity, error) {
	out := make([]types.Entity, len(entities))
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		for i, e := range entities {
			n, err := d.updateOne(ctx, tx, m, e)
			if err != nil {
				return err
			}
			if n == 0 {
				return &schema.EntityNotFoundError{Model: m.Name(), Entity: e}
			}
			out[i] = e.Clone()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Driver) updateOne(ctx context.Context, tx *sql.Tx, m *schema.Model, e types.Entity) (int64, error) {
	sqlText, args := d.gen.updateByPk(m, e)
	res, err := tx.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Save upserts: update first, insert when nothing matched.
func (d *Driver) Save(ctx context.Context, m *schema.Model, entities []types.Entity, o query.Options) ([]types.Entity, error) {
	out := make([]types.Entity, len(entities))
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		for i, e := range entities {
			n, err := d.updateOne(ctx, tx, m, e)
			if err != nil {
				return err
			}
			if n == 0 {
				if err := d.insertOne(ctx, tx, m, e); err != nil {
					return err
				}
			}
			out[i] = e.Clone()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Remove deletes the entities in one transaction, matched by primary key.
func (d *Driver) Remove(ctx context.Context, m *schema.Model, entities []types.Entity, o query.Options) ([]types.Entity, error) {
	out := make([]types.Entity, len(entities))
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		for i, e := range entities {
			sqlText, args := d.gen.deleteByPk(m, e)
			res, err := tx.ExecContext(ctx, sqlText, args...)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return &schema.EntityNotFoundError{Model: m.Name(), Entity: e}
			}
			out[i] = e.Clone()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateQuery loads the matching rows, applies the update document and
// writes them back. Zero matches either synthesize an insert (upsert) or
// fail with ErrEntityNotFound.
func (d *Driver) UpdateQuery(ctx context.Context, m *schema.Model, c *query.Criteria, u *query.Update, o query.Options) ([]types.Entity, error) {
	matched, err := d.matchRows(ctx, m, c, o)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		if !o.Upsert {
			return nil, &schema.EntityNotFoundError{Model: m.Name()}
		}
		e := u.EntityInsert(c)
		err := d.withTx(ctx, func(tx *sql.Tx) error {
			return d.insertOne(ctx, tx, m, e)
		})
		if err != nil {
			return nil, err
		}
		return []types.Entity{e}, nil
	}

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range matched {
			u.EntityUpdate(e)
			if _, err := d.updateOne(ctx, tx, m, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matched, nil
}

// RemoveQuery deletes the matching rows and returns them. Zero matches is
// not an error.
func (d *Driver) RemoveQuery(ctx context.Context, m *schema.Model, c *query.Criteria, o query.Options) ([]types.Entity, error) {
	matched, err := d.matchRows(ctx, m, c, o)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, nil
	}
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range matched {
			sqlText, args := d.gen.deleteByPk(m, e)
			if _, err := tx.ExecContext(ctx, sqlText, args...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matched, nil
}

// matchRows selects the rows a query verb operates on: the first match
// only unless Multi is set.
func (d *Driver) matchRows(ctx context.Context, m *schema.Model, c *query.Criteria, o query.Options) ([]types.Entity, error) {
	sel := query.Options{}
	if !o.Multi {
		sel.Limit = 1
	}
	return d.Find(ctx, m, c, nil, nil, sel)
}

func (d *Driver) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// isDuplicateErr sniffs unique-constraint violations across the supported
// drivers without importing their error types.
func isDuplicateErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
