package schema

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/missyorm/missy/query"
	"github.com/missyorm/missy/types"
)

// Converter applies a model's type handlers across entity fields for a
// given conversion direction. Whole-entity conversion tolerates unknown
// fields; single-value conversion does not unless asked to.
type Converter struct {
	model *Model
}

// ConvertValue converts one field value. A missing value (nil) on a
// required field resolves the field's default first, invoking the generator
// if one is set. Unknown fields error unless ignoreUnknown is set, in which
// case the value passes through unchanged.
func (c *Converter) ConvertValue(field string, method types.Method, value any, ignoreUnknown bool) (any, error) {
	return c.convertValue(field, method, value, nil, ignoreUnknown)
}

func (c *Converter) convertValue(field string, method types.Method, value any, entity types.Entity, ignoreUnknown bool) (any, error) {
	f, ok := c.model.fieldIdx[field]
	if !ok {
		if ignoreUnknown {
			return value, nil
		}
		return nil, &query.ArgumentError{Model: c.model.name, Field: field, Reason: "unknown field"}
	}
	if value == nil && f.Required && f.HasDefault() {
		value = f.Default(entity)
	}
	return types.Convert(f.handler, method, value, f.Info())
}

// ConvertEntity converts every present key of the entity, producing a new
// entity. The input is never mutated. Unknown fields pass through unchanged.
func (c *Converter) ConvertEntity(method types.Method, e types.Entity) (types.Entity, error) {
	if e == nil {
		return nil, &query.ArgumentError{Model: c.model.name, Reason: "entity must be a map"}
	}
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(types.Entity, len(e))
	for _, k := range keys {
		v, err := c.convertValue(k, method, e[k], e, true)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// ExportEntity converts an entity in the save direction and materializes
// defaults for declared fields the entity is missing. Used on the insert
// path so generated values (ids, timestamps) exist before the driver sees
// the entity.
func (c *Converter) ExportEntity(e types.Entity) (types.Entity, error) {
	out, err := c.ConvertEntity(types.MethodSave, e)
	if err != nil {
		return nil, err
	}
	for _, f := range c.model.fields {
		if _, present := out[f.Name]; present {
			continue
		}
		if !f.HasDefault() && !f.Required {
			continue
		}
		v, err := types.Convert(f.handler, types.MethodSave, f.Default(e), f.Info())
		if err != nil {
			return nil, err
		}
		if v != nil {
			out[f.Name] = v
		}
	}
	return out, nil
}

// ConvertEntities converts a batch concurrently, awaiting all conversions.
// The output order matches the input order; the first failure aborts the
// whole batch.
func (c *Converter) ConvertEntities(ctx context.Context, method types.Method, entities []types.Entity) ([]types.Entity, error) {
	out := make([]types.Entity, len(entities))
	g, _ := errgroup.WithContext(ctx)
	for i, e := range entities {
		i, e := i, e
		g.Go(func() error {
			converted, err := c.ConvertEntity(method, e)
			if err != nil {
				return err
			}
			out[i] = converted
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportEntities is the batch form of ExportEntity.
func (c *Converter) ExportEntities(ctx context.Context, entities []types.Entity) ([]types.Entity, error) {
	out := make([]types.Entity, len(entities))
	g, _ := errgroup.WithContext(ctx)
	for i, e := range entities {
		i, e := i, e
		g.Go(func() error {
			converted, err := c.ExportEntity(e)
			if err != nil {
				return err
			}
			out[i] = converted
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
