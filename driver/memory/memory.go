// Package memory provides the reference in-memory driver. It delegates all
// matching, projection, sorting and update semantics to the query value
// objects, which makes it the semantics oracle other drivers are validated
// against.
//
// Storage is a plain ordered collection per model. Internals are fully
// synchronous; the mutex only guards against accidental cross-goroutine
// use — mutation is not designed for real parallel schedulers.
package memory

import (
	"context"
	"sync"

	"github.com/spf13/cast"

	"github.com/missyorm/missy/query"
	"github.com/missyorm/missy/schema"
	"github.com/missyorm/missy/types"
)

// Driver is an in-memory storage backend.
type Driver struct {
	mu        sync.RWMutex
	tables    map[string][]types.Entity
	schema    *schema.Schema
	connected bool
}

// compile-time contract check
var _ schema.Driver = (*Driver)(nil)

// New creates an empty in-memory driver.
func New() *Driver {
	return &Driver{tables: map[string][]types.Entity{}}
}

// Name identifies the backend.
func (d *Driver) Name() string { return "memory" }

// BindSchema is called once at schema construction.
func (d *Driver) BindSchema(ctx context.Context, s *schema.Schema) error {
	d.schema = s
	d.connected = true
	return nil
}

// Connect marks the driver connected.
func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = true
	return nil
}

// Disconnect marks the driver disconnected. Data is retained.
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = false
	return nil
}

// Connected reports connectivity.
func (d *Driver) Connected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// Client returns the raw table storage.
func (d *Driver) Client() any { return d.tables }

// pkKey renders an entity's primary key as a comparable string, or false
// when any key field is missing.
func pkKey(m *schema.Model, e types.Entity) (string, bool) {
	key := ""
	for i, f := range m.PrimaryKey() {
		v, ok := e[f]
		if !ok || v == nil {
			return "", false
		}
		if i > 0 {
			key += "\x00"
		}
		key += cast.ToString(v)
	}
	return key, true
}

// FindOne returns the first match, or nil.
func (d *Driver) FindOne(ctx context.Context, m *schema.Model, c *query.Criteria, p *query.Projection, s *query.Sort, o query.Options) (types.Entity, error) {
	rows, err := d.Find(ctx, m, c, p, s, query.Options{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Find applies criteria, sort, skip/limit and projection in order.
func (d *Driver) Find(ctx context.Context, m *schema.Model, c *query.Criteria, p *query.Projection, s *query.Sort, o query.Options) ([]types.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	var matched []types.Entity
	for _, e := range d.tables[m.Table()] {
		if c == nil || c.EntityMatch(e) {
			matched = append(matched, e)
		}
	}
	if s != nil {
		matched = s.EntitiesSort(matched)
	}
	if o.Skip > 0 {
		if o.Skip >= len(matched) {
			matched = nil
		} else {
			matched = matched[o.Skip:]
		}
	}
	if o.Limit > 0 && o.Limit < len(matched) {
		matched = matched[:o.Limit]
	}

	out := make([]types.Entity, len(matched))
	for i, e := range matched {
		if p != nil {
			out[i] = p.EntityApply(m, e)
		} else {
			out[i] = e.Clone()
		}
	}
	return out, nil
}

// Count returns the number of matches.
func (d *Driver) Count(ctx context.Context, m *schema.Model, c *query.Criteria, o query.Options) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	var n int64
	for _, e := range d.tables[m.Table()] {
		if c == nil || c.EntityMatch(e) {
			n++
		}
	}
	return n, nil
}

// Insert adds entities, failing with ErrEntityExists when a primary key is
// already present. All-or-nothing: the collision check runs before any row
// is stored.
func (d *Driver) Insert(ctx context.Context, m *schema.Model, entities []types.Entity, o query.Options) ([]types.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	table := d.tables[m.Table()]
	batch := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		if _, idx := d.locate(table, m, e); idx >= 0 {
			return nil, &schema.EntityExistsError{Model: m.Name(), Entity: e}
		}
		// Keys may also collide within the batch itself.
		key, ok := pkKey(m, e)
		if !ok {
			continue
		}
		if _, dup := batch[key]; dup {
			return nil, &schema.EntityExistsError{Model: m.Name(), Entity: e}
		}
		batch[key] = struct{}{}
	}
	out := make([]types.Entity, len(entities))
	for i, e := range entities {
		stored := e.Clone()
		table = append(table, stored)
		out[i] = stored.Clone()
	}
	d.tables[m.Table()] = table
	return out, nil
}

// Update replaces existing entities matched by primary key, failing with
// ErrEntityNotFound when one is absent.
func (d *Driver) Update(ctx context.Context, m *schema.Model, entities []types.Entity, o query.Options) ([]types.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	table := d.tables[m.Table()]
	indexes := make([]int, len(entities))
	for i, e := range entities {
		_, idx := d.locate(table, m, e)
		if idx < 0 {
			return nil, &schema.EntityNotFoundError{Model: m.Name(), Entity: e}
		}
		indexes[i] = idx
	}
	out := make([]types.Entity, len(entities))
	for i, e := range entities {
		stored := e.Clone()
		table[indexes[i]] = stored
		out[i] = stored.Clone()
	}
	return out, nil
}

// Save upserts entities: replace when the primary key exists, insert
// otherwise.
func (d *Driver) Save(ctx context.Context, m *schema.Model, entities []types.Entity, o query.Options) ([]types.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	table := d.tables[m.Table()]
	out := make([]types.Entity, len(entities))
	for i, e := range entities {
		stored := e.Clone()
		if _, idx := d.locate(table, m, e); idx >= 0 {
			table[idx] = stored
		} else {
			table = append(table, stored)
		}
		out[i] = stored.Clone()
	}
	d.tables[m.Table()] = table
	return out, nil
}

// Remove deletes entities matched by primary key, failing with
// ErrEntityNotFound when one is absent.
func (d *Driver) Remove(ctx context.Context, m *schema.Model, entities []types.Entity, o query.Options) ([]types.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	table := d.tables[m.Table()]
	out := make([]types.Entity, 0, len(entities))
	for _, e := range entities {
		_, idx := d.locate(table, m, e)
		if idx < 0 {
			return nil, &schema.EntityNotFoundError{Model: m.Name(), Entity: e}
		}
		out = append(out, table[idx].Clone())
		table = append(table[:idx], table[idx+1:]...)
	}
	d.tables[m.Table()] = table
	return out, nil
}

// UpdateQuery updates matching rows in place. Zero matches either
// synthesize an insert (upsert) or fail with ErrEntityNotFound.
func (d *Driver) UpdateQuery(ctx context.Context, m *schema.Model, c *query.Criteria, u *query.Update, o query.Options) ([]types.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	table := d.tables[m.Table()]
	var out []types.Entity
	for i, e := range table {
		if c != nil && !c.EntityMatch(e) {
			continue
		}
		updated := u.EntityUpdate(e.Clone())
		table[i] = updated
		out = append(out, updated.Clone())
		if !o.Multi {
			break
		}
	}
	if len(out) > 0 {
		return out, nil
	}
	if !o.Upsert {
		return nil, &schema.EntityNotFoundError{Model: m.Name()}
	}
	stored := u.EntityInsert(c)
	d.tables[m.Table()] = append(table, stored)
	return []types.Entity{stored.Clone()}, nil
}

// RemoveQuery deletes matching rows (first match only unless Multi) and
// returns them.
func (d *Driver) RemoveQuery(ctx context.Context, m *schema.Model, c *query.Criteria, o query.Options) ([]types.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	table := d.tables[m.Table()]
	var out []types.Entity
	kept := table[:0]
	done := false
	for _, e := range table {
		if !done && (c == nil || c.EntityMatch(e)) {
			out = append(out, e.Clone())
			if !o.Multi {
				done = true
			}
			continue
		}
		kept = append(kept, e)
	}
	d.tables[m.Table()] = kept
	return out, nil
}

// locate finds an entity with the same primary key in the table. Returns
// the key and index, or -1 when absent.
func (d *Driver) locate(table []types.Entity, m *schema.Model, e types.Entity) (string, int) {
	key, ok := pkKey(m, e)
	if !ok {
		return "", -1
	}
	for i, row := range table {
		if rowKey, ok := pkKey(m, row); ok && rowKey == key {
			return key, i
		}
	}
	return key, -1
}
