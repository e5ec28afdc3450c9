package schema

import (
	"context"
	"strings"

	"github.com/spf13/cast"

	"github.com/missyorm/missy/query"
	"github.com/missyorm/missy/types"
)

// RelationKind is the cardinality of a relation.
type RelationKind int

const (
	// HasOne populates a single-valued property.
	HasOne RelationKind = iota
	// HasMany populates an array-valued property.
	HasMany
)

// keySep joins multi-column key tuples. NUL never appears in field data.
const keySep = "\x00"

// Relation is a directed edge from a host model to a foreign model: the
// property it populates and the local-to-foreign field mapping (multi-column
// joins supported). Relations reference the foreign model, they never own
// it.
type Relation struct {
	Kind    RelationKind
	Prop    string
	Foreign *Model

	model       *Model
	fields      map[string]string
	localOrder  []string
	foreignKeys []string
}

// HasOne declares a single-valued relation on the model. The "on" mapping
// accepts a field name (same name both sides), a list of field names, or an
// explicit local-to-foreign map.
func (m *Model) HasOne(prop string, foreign *Model, on any) (*Relation, error) {
	return m.addRelation(HasOne, prop, foreign, on)
}

// HasMany declares an array-valued relation on the model. Shares all
// resolution logic with HasOne; only the cardinality differs.
func (m *Model) HasMany(prop string, foreign *Model, on any) (*Relation, error) {
	return m.addRelation(HasMany, prop, foreign, on)
}

func (m *Model) addRelation(kind RelationKind, prop string, foreign *Model, on any) (*Relation, error) {
	if prop == "" {
		return nil, &RelationError{Model: m.name, Reason: "relation with empty property name"}
	}
	if foreign == nil {
		return nil, &RelationError{Model: m.name, Relation: prop, Reason: "relation requires a foreign model"}
	}
	if _, dup := m.relations[prop]; dup {
		return nil, &RelationError{Model: m.name, Relation: prop, Reason: "relation already declared"}
	}

	fields, order, err := normalizeRelationFields(m, prop, on)
	if err != nil {
		return nil, err
	}
	for local, foreignField := range fields {
		if _, ok := m.fieldIdx[local]; !ok {
			return nil, &RelationError{Model: m.name, Relation: prop, Reason: "unknown local field " + local}
		}
		if _, ok := foreign.fieldIdx[foreignField]; !ok {
			return nil, &RelationError{Model: m.name, Relation: prop, Reason: "unknown foreign field " + foreignField}
		}
	}

	r := &Relation{
		Kind:       kind,
		Prop:       prop,
		Foreign:    foreign,
		model:      m,
		fields:     fields,
		localOrder: order,
	}
	for _, local := range order {
		r.foreignKeys = append(r.foreignKeys, fields[local])
	}
	m.relations[prop] = r
	return r, nil
}

func normalizeRelationFields(m *Model, prop string, on any) (map[string]string, []string, error) {
	switch v := on.(type) {
	case string:
		if v == "" {
			return nil, nil, &RelationError{Model: m.name, Relation: prop, Reason: "empty field mapping"}
		}
		return map[string]string{v: v}, []string{v}, nil
	case []string:
		fields := make(map[string]string, len(v))
		order := make([]string, 0, len(v))
		for _, name := range v {
			fields[name] = name
			order = append(order, name)
		}
		return fields, order, nil
	case map[string]string:
		if len(v) == 0 {
			return nil, nil, &RelationError{Model: m.name, Relation: prop, Reason: "empty field mapping"}
		}
		order := make([]string, 0, len(v))
		for local := range v {
			order = append(order, local)
		}
		// Deterministic tuple order for multi-column keys.
		for i := 1; i < len(order); i++ {
			for j := i; j > 0 && order[j] < order[j-1]; j-- {
				order[j], order[j-1] = order[j-1], order[j]
			}
		}
		return v, order, nil
	default:
		return nil, nil, &RelationError{Model: m.name, Relation: prop, Reason: "unsupported field mapping"}
	}
}

// Fields returns the local-to-foreign field mapping.
func (r *Relation) Fields() map[string]string { return r.fields }

// joinToken renders one key-tuple component.
func joinToken(v any) string { return cast.ToString(v) }

// joinKey renders the value tuple of the given fields as a lookup key.
// The second result is false when any field is missing.
func joinKey(e types.Entity, fields []string) (string, bool) {
	parts := make([]string, len(fields))
	for i, f := range fields {
		v, ok := e[f]
		if !ok || v == nil {
			return "", false
		}
		parts[i] = joinToken(v)
	}
	return strings.Join(parts, keySep), true
}

// LoadRelated batch-resolves one declared relation across the host
// entities: one find against the foreign model with $in-criteria per join
// column, then reassembly through a lookup keyed by the joined local field
// values. Duplicate host entities sharing a key all receive the same data.
//
// A caller-supplied projection must keep every foreign-side join field,
// otherwise reassembly would be impossible and a relation error is raised
// before any query runs.
func (m *Model) LoadRelated(ctx context.Context, entities []types.Entity, prop string, fields, sortSpec any, opts ...query.Options) error {
	rel, ok := m.relations[prop]
	if !ok {
		return &RelationError{Model: m.name, Relation: prop, Reason: "relation not declared"}
	}

	projection, err := query.NewProjection(fields)
	if err != nil {
		return err
	}
	if !projection.Empty() {
		for _, ff := range rel.foreignKeys {
			if !projection.Includes(ff) {
				return &RelationError{Model: m.name, Relation: prop, Reason: "projection drops join field " + ff}
			}
		}
	}

	// Gather phase: initialize target properties, collect distinct local
	// values per join column, and index hosts by their joined key.
	lookup := map[string][]types.Entity{}
	cond := map[string]any{}
	seen := map[string]map[string]struct{}{}
	for _, local := range rel.localOrder {
		seen[local] = map[string]struct{}{}
	}

	for _, e := range entities {
		if rel.Kind == HasMany {
			e[prop] = []types.Entity{}
		} else {
			delete(e, prop)
		}
		for _, local := range rel.localOrder {
			v, ok := e[local]
			if !ok || v == nil {
				continue
			}
			token := cast.ToString(v)
			if _, dup := seen[local][token]; dup {
				continue
			}
			seen[local][token] = struct{}{}
			ff := rel.fields[local]
			values, _ := cond[ff].(map[string]any)
			if values == nil {
				cond[ff] = map[string]any{"$in": []any{v}}
			} else {
				values["$in"] = append(values["$in"].([]any), v)
			}
		}
		if key, complete := joinKey(e, rel.localOrder); complete {
			lookup[key] = append(lookup[key], e)
		}
	}
	if len(lookup) == 0 {
		return nil
	}

	var o query.Options
	if len(opts) > 0 {
		o = opts[0]
	}
	related, err := rel.Foreign.Find(ctx, cond, fields, sortSpec, o)
	if err != nil {
		return err
	}

	// Distribute phase: recompute each related row's key from its foreign
	// fields and hand it to every matching host.
	multiColumn := len(rel.localOrder) > 1
	for _, row := range related {
		key, complete := joinKey(row, rel.foreignKeys)
		if !complete {
			return &RelationError{Model: m.name, Relation: prop, Reason: "related entity missing join fields"}
		}
		hosts, matched := lookup[key]
		if !matched {
			if multiColumn {
				// Independent per-column $in criteria over-fetch on
				// multi-column joins; rows outside the host tuple set
				// are expected there.
				continue
			}
			return &RelationError{Model: m.name, Relation: prop, Reason: "related entity matches no host"}
		}
		for _, host := range hosts {
			if rel.Kind == HasMany {
				host[prop] = append(host[prop].([]types.Entity), row)
			} else {
				host[prop] = row
			}
		}
	}
	return nil
}

// EagerQuery composes one or more named relations (including dotted
// multi-hop paths) onto a subsequent find.
type EagerQuery struct {
	model *Model
	paths []string
}

// With returns an eager query that resolves the named relations against
// the results of the next Find/FindOne/Get. Dotted paths ("posts.comments")
// resolve breadth-first: the top-level relation loads for all primary
// entities, then each next segment loads against the just-loaded related
// entities.
func (m *Model) With(paths ...string) *EagerQuery {
	return &EagerQuery{model: m, paths: paths}
}

// Find runs the primary find, then resolves the eager paths.
func (q *EagerQuery) Find(ctx context.Context, cond, fields, sortSpec any, opts ...query.Options) ([]types.Entity, error) {
	entities, err := q.model.Find(ctx, cond, fields, sortSpec, opts...)
	if err != nil {
		return nil, err
	}
	if err := loadRelatedPaths(ctx, q.model, entities, q.paths); err != nil {
		return nil, err
	}
	return entities, nil
}

// FindOne runs the primary findOne, then resolves the eager paths.
func (q *EagerQuery) FindOne(ctx context.Context, cond, fields, sortSpec any) (types.Entity, error) {
	entity, err := q.model.FindOne(ctx, cond, fields, sortSpec)
	if err != nil || entity == nil {
		return entity, err
	}
	if err := loadRelatedPaths(ctx, q.model, []types.Entity{entity}, q.paths); err != nil {
		return nil, err
	}
	return entity, nil
}

// Get fetches by primary key, then resolves the eager paths.
func (q *EagerQuery) Get(ctx context.Context, pk, fields any) (types.Entity, error) {
	entity, err := q.model.Get(ctx, pk, fields)
	if err != nil || entity == nil {
		return entity, err
	}
	if err := loadRelatedPaths(ctx, q.model, []types.Entity{entity}, q.paths); err != nil {
		return nil, err
	}
	return entity, nil
}

// loadRelatedPaths resolves dotted relation paths breadth-first, one
// relation at a time in first-appearance order. Every relation mutates the
// same host entity maps, so resolution must stay sequential; only the
// foreign query inside each LoadRelated is batched.
func loadRelatedPaths(ctx context.Context, m *Model, entities []types.Entity, paths []string) error {
	if len(entities) == 0 || len(paths) == 0 {
		return nil
	}

	type group struct {
		head  string
		tails []string
	}
	var ordered []*group
	index := map[string]*group{}
	for _, path := range paths {
		head, tail, _ := strings.Cut(path, ".")
		g, ok := index[head]
		if !ok {
			g = &group{head: head}
			index[head] = g
			ordered = append(ordered, g)
		}
		if tail != "" {
			g.tails = append(g.tails, tail)
		}
	}

	for _, g := range ordered {
		if err := m.LoadRelated(ctx, entities, g.head, nil, nil); err != nil {
			return err
		}
		if len(g.tails) == 0 {
			continue
		}
		rel := m.relations[g.head]
		next := collectRelated(entities, rel)
		if err := loadRelatedPaths(ctx, rel.Foreign, next, g.tails); err != nil {
			return err
		}
	}
	return nil
}

// collectRelated flattens the just-loaded related entities of a relation.
func collectRelated(entities []types.Entity, rel *Relation) []types.Entity {
	var out []types.Entity
	for _, e := range entities {
		switch v := e[rel.Prop].(type) {
		case []types.Entity:
			out = append(out, v...)
		case types.Entity:
			out = append(out, v)
		}
	}
	return out
}
