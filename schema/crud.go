package schema

import (
	"context"
	"errors"

	"github.com/missyorm/missy/internal/debug"
	"github.com/missyorm/missy/query"
	"github.com/missyorm/missy/types"
)

// Every verb below runs the same ordered pipeline: normalize the loose
// inputs into a Context, fire the before-hook, delegate to the driver with
// the normalized forms, run the load conversion (import) over the driver's
// results, fire the after-hook, then shape the return value. The single /
// array return-shaping of the reference contract maps onto typed One/Many
// method pairs.

// Get fetches a single entity by primary key. Returns nil when no entity
// matches.
func (m *Model) Get(ctx context.Context, pk any, fields any) (types.Entity, error) {
	criteria, err := query.FromPk(m, pk)
	if err != nil {
		return nil, err
	}
	return m.FindOne(ctx, criteria, fields, nil)
}

// FindOne returns the first entity matching the condition, or nil when
// nothing matches.
func (m *Model) FindOne(ctx context.Context, cond, fields, sortSpec any) (types.Entity, error) {
	pctx, err := m.newReadContext(cond, fields, sortSpec, query.Options{})
	if err != nil {
		return nil, err
	}
	if err := m.hooks.Emit(ctx, HookBeforeFindOne, &Event{Context: pctx}); err != nil {
		return nil, err
	}

	found, err := m.schema.driver.FindOne(ctx, m, pctx.Criteria, pctx.Projection, pctx.Sort, pctx.Options)
	if err != nil {
		return nil, m.wrapDriverErr("findOne", err)
	}

	var entities []types.Entity
	if found != nil {
		entities, err = m.importEntities(ctx, pctx, []types.Entity{found})
		if err != nil {
			return nil, err
		}
	}
	if err := m.hooks.Emit(ctx, HookAfterFindOne, &Event{Entities: entities, Context: pctx}); err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return entities[0], nil
}

// Find returns every entity matching the condition, honoring projection,
// sort, skip and limit.
func (m *Model) Find(ctx context.Context, cond, fields, sortSpec any, opts ...query.Options) ([]types.Entity, error) {
	var o query.Options
	if len(opts) > 0 {
		o = opts[0]
	}
	pctx, err := m.newReadContext(cond, fields, sortSpec, o)
	if err != nil {
		return nil, err
	}
	if err := m.hooks.Emit(ctx, HookBeforeFind, &Event{Context: pctx}); err != nil {
		return nil, err
	}

	rows, err := m.schema.driver.Find(ctx, m, pctx.Criteria, pctx.Projection, pctx.Sort, pctx.Options)
	if err != nil {
		return nil, m.wrapDriverErr("find", err)
	}
	entities, err := m.importEntities(ctx, pctx, rows)
	if err != nil {
		return nil, err
	}
	if err := m.hooks.Emit(ctx, HookAfterFind, &Event{Entities: entities, Context: pctx}); err != nil {
		return nil, err
	}
	return entities, nil
}

// Count returns the number of entities matching the condition.
func (m *Model) Count(ctx context.Context, cond any) (int64, error) {
	pctx, err := m.newReadContext(cond, nil, nil, query.Options{})
	if err != nil {
		return 0, err
	}
	if err := m.hooks.Emit(ctx, HookBeforeCount, &Event{Context: pctx}); err != nil {
		return 0, err
	}
	n, err := m.schema.driver.Count(ctx, m, pctx.Criteria, pctx.Options)
	if err != nil {
		return 0, m.wrapDriverErr("count", err)
	}
	if err := m.hooks.Emit(ctx, HookAfterCount, &Event{Context: pctx}); err != nil {
		return 0, err
	}
	return n, nil
}

// Insert persists new entities. Fails with ErrEntityExists when a primary
// key is already present. The returned slice matches the input order.
func (m *Model) Insert(ctx context.Context, entities []types.Entity, opts ...query.Options) ([]types.Entity, error) {
	return m.writeVerb(ctx, "insert", HookBeforeInsert, HookAfterInsert, entities, opts, m.schema.driver.Insert)
}

// InsertOne is Insert for a single entity.
func (m *Model) InsertOne(ctx context.Context, entity types.Entity) (types.Entity, error) {
	return m.writeOne(ctx, entity, m.Insert)
}

// Update replaces existing entities, matched by primary key. Fails with
// ErrEntityNotFound when one is absent.
func (m *Model) Update(ctx context.Context, entities []types.Entity, opts ...query.Options) ([]types.Entity, error) {
	return m.writeVerb(ctx, "update", HookBeforeUpdate, HookAfterUpdate, entities, opts, m.schema.driver.Update)
}

// UpdateOne is Update for a single entity.
func (m *Model) UpdateOne(ctx context.Context, entity types.Entity) (types.Entity, error) {
	return m.writeOne(ctx, entity, m.Update)
}

// Save upserts entities: insert when the primary key is absent, replace
// otherwise.
func (m *Model) Save(ctx context.Context, entities []types.Entity, opts ...query.Options) ([]types.Entity, error) {
	return m.writeVerb(ctx, "save", HookBeforeSave, HookAfterSave, entities, opts, m.schema.driver.Save)
}

// SaveOne is Save for a single entity.
func (m *Model) SaveOne(ctx context.Context, entity types.Entity) (types.Entity, error) {
	return m.writeOne(ctx, entity, m.Save)
}

// Remove deletes entities, matched by primary key. Fails with
// ErrEntityNotFound when one is absent.
func (m *Model) Remove(ctx context.Context, entities []types.Entity, opts ...query.Options) ([]types.Entity, error) {
	return m.writeVerb(ctx, "remove", HookBeforeRemove, HookAfterRemove, entities, opts, m.schema.driver.Remove)
}

// RemoveOne is Remove for a single entity.
func (m *Model) RemoveOne(ctx context.Context, entity types.Entity) (types.Entity, error) {
	return m.writeOne(ctx, entity, m.Remove)
}

type driverWrite func(ctx context.Context, m *Model, entities []types.Entity, o query.Options) ([]types.Entity, error)

func (m *Model) writeVerb(ctx context.Context, verb, beforeHook, afterHook string, entities []types.Entity, opts []query.Options, call driverWrite) ([]types.Entity, error) {
	var o query.Options
	if len(opts) > 0 {
		o = opts[0]
	}
	pctx := &Context{Model: m, Options: o.Normalize()}

	exported, err := m.exportEntities(ctx, pctx, entities)
	if err != nil {
		return nil, err
	}
	if err := m.hooks.Emit(ctx, beforeHook, &Event{Entities: exported, Context: pctx}); err != nil {
		return nil, err
	}

	debug.Debug("model write", "model", m.name, "verb", verb, "entities", len(exported))
	rows, err := call(ctx, m, exported, pctx.Options)
	if err != nil {
		return nil, m.wrapDriverErr(verb, err)
	}

	imported, err := m.importEntities(ctx, pctx, rows)
	if err != nil {
		return nil, err
	}
	if err := m.hooks.Emit(ctx, afterHook, &Event{Entities: imported, Context: pctx}); err != nil {
		return nil, err
	}
	return imported, nil
}

func (m *Model) writeOne(ctx context.Context, entity types.Entity, many func(context.Context, []types.Entity, ...query.Options) ([]types.Entity, error)) (types.Entity, error) {
	if entity == nil {
		return nil, &query.ArgumentError{Model: m.name, Reason: "entity must be a map"}
	}
	out, err := many(ctx, []types.Entity{entity})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// UpdateQuery applies an update document to every entity matching the
// criteria (first match only unless Multi is set). With Upsert set, zero
// matches synthesize and insert a new entity from criteria and update;
// without it, zero matches fail with ErrEntityNotFound.
func (m *Model) UpdateQuery(ctx context.Context, cond, update any, opts ...query.Options) ([]types.Entity, error) {
	var o query.Options
	if len(opts) > 0 {
		o = opts[0]
	}
	criteria, err := query.NewCriteria(m, cond)
	if err != nil {
		return nil, err
	}
	upd, err := query.NewUpdate(m, update)
	if err != nil {
		return nil, err
	}
	pctx := &Context{Model: m, Criteria: criteria, Update: upd, Options: o.Normalize()}

	if err := m.hooks.Emit(ctx, HookBeforeUpdateQuery, &Event{Context: pctx}); err != nil {
		return nil, err
	}
	rows, err := m.schema.driver.UpdateQuery(ctx, m, criteria, upd, pctx.Options)
	if err != nil {
		return nil, m.wrapDriverErr("updateQuery", err)
	}
	entities, err := m.importEntities(ctx, pctx, rows)
	if err != nil {
		return nil, err
	}
	if err := m.hooks.Emit(ctx, HookAfterUpdateQuery, &Event{Entities: entities, Context: pctx}); err != nil {
		return nil, err
	}
	return entities, nil
}

// RemoveQuery deletes every entity matching the criteria (first match only
// unless Multi is set) and returns the removed entities.
func (m *Model) RemoveQuery(ctx context.Context, cond any, opts ...query.Options) ([]types.Entity, error) {
	var o query.Options
	if len(opts) > 0 {
		o = opts[0]
	}
	criteria, err := query.NewCriteria(m, cond)
	if err != nil {
		return nil, err
	}
	pctx := &Context{Model: m, Criteria: criteria, Options: o.Normalize()}

	if err := m.hooks.Emit(ctx, HookBeforeRemoveQuery, &Event{Context: pctx}); err != nil {
		return nil, err
	}
	rows, err := m.schema.driver.RemoveQuery(ctx, m, criteria, pctx.Options)
	if err != nil {
		return nil, m.wrapDriverErr("removeQuery", err)
	}
	entities, err := m.importEntities(ctx, pctx, rows)
	if err != nil {
		return nil, err
	}
	if err := m.hooks.Emit(ctx, HookAfterRemoveQuery, &Event{Entities: entities, Context: pctx}); err != nil {
		return nil, err
	}
	return entities, nil
}

// importEntities runs the load conversion over driver results, wrapped in
// the Import hook pair. Output order matches input order.
func (m *Model) importEntities(ctx context.Context, pctx *Context, rows []types.Entity) ([]types.Entity, error) {
	event := &Event{Entities: rows, Context: pctx}
	if err := m.hooks.Emit(ctx, HookBeforeImport, event); err != nil {
		return nil, err
	}
	entities, err := m.converter.ConvertEntities(ctx, types.MethodLoad, event.Entities)
	if err != nil {
		return nil, err
	}
	event.Entities = entities
	if err := m.hooks.Emit(ctx, HookAfterImport, event); err != nil {
		return nil, err
	}
	return event.Entities, nil
}

// exportEntities runs the save conversion (with default materialization)
// over caller input, wrapped in the Export hook pair.
func (m *Model) exportEntities(ctx context.Context, pctx *Context, entities []types.Entity) ([]types.Entity, error) {
	for _, e := range entities {
		if e == nil {
			return nil, &query.ArgumentError{Model: m.name, Reason: "entity must be a map"}
		}
	}
	event := &Event{Entities: entities, Context: pctx}
	if err := m.hooks.Emit(ctx, HookBeforeExport, event); err != nil {
		return nil, err
	}
	exported, err := m.converter.ExportEntities(ctx, event.Entities)
	if err != nil {
		return nil, err
	}
	event.Entities = exported
	if err := m.hooks.Emit(ctx, HookAfterExport, event); err != nil {
		return nil, err
	}
	return event.Entities, nil
}

// wrapDriverErr wraps opaque backend failures with the driver identity.
// Errors already belonging to the core taxonomy pass through unchanged.
func (m *Model) wrapDriverErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrEntityExists) ||
		errors.Is(err, ErrEntityNotFound) ||
		errors.Is(err, ErrRelation) ||
		errors.Is(err, query.ErrArgument) ||
		errors.Is(err, types.ErrConversion) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &DriverError{Driver: m.schema.driver.Name(), Op: op, Cause: err}
}
