package schema

import (
	"context"

	"github.com/missyorm/missy/query"
	"github.com/missyorm/missy/types"
)

// relatedOf extracts the nested related entities a caller attached to the
// host property, tolerating []types.Entity, []any and single-entity forms.
func (r *Relation) relatedOf(host types.Entity) []types.Entity {
	switch v := host[r.Prop].(type) {
	case nil:
		return nil
	case types.Entity:
		return []types.Entity{v}
	case map[string]any:
		return []types.Entity{v}
	case []types.Entity:
		return v
	case []any:
		out := make([]types.Entity, 0, len(v))
		for _, item := range v {
			switch e := item.(type) {
			case types.Entity:
				out = append(out, e)
			case map[string]any:
				out = append(out, e)
			}
		}
		return out
	default:
		return nil
	}
}

// SaveRelated persists the related-entity graph attached to the hosts'
// relation property. Foreign-key values are copied from each host into its
// nested entities first; previously persisted related rows absent from the
// new set are removed, then the new rows are saved (upsert).
//
// Single-column joins remove stale rows with one $in/$nin query;
// multi-column joins fall back to load-then-diff.
func (m *Model) SaveRelated(ctx context.Context, entities []types.Entity, prop string) error {
	rel, ok := m.relations[prop]
	if !ok {
		return &RelationError{Model: m.name, Relation: prop, Reason: "relation not declared"}
	}
	foreign := rel.Foreign

	var toSave []types.Entity
	hostValues := map[string][]any{}
	hostSeen := map[string]map[string]struct{}{}
	for _, local := range rel.localOrder {
		hostSeen[local] = map[string]struct{}{}
	}

	for _, host := range entities {
		related := rel.relatedOf(host)
		for _, e := range related {
			for local, ff := range rel.fields {
				e[ff] = host[local]
			}
			toSave = append(toSave, e)
		}
		for _, local := range rel.localOrder {
			v, present := host[local]
			if !present || v == nil {
				continue
			}
			token := joinToken(v)
			if _, dup := hostSeen[local][token]; dup {
				continue
			}
			hostSeen[local][token] = struct{}{}
			hostValues[local] = append(hostValues[local], v)
		}
	}

	if err := m.removeStaleRelated(ctx, rel, hostValues, toSave); err != nil {
		return err
	}
	if len(toSave) == 0 {
		return nil
	}
	saved, err := foreign.Save(ctx, toSave)
	if err != nil {
		return err
	}

	// Hand the persisted forms back onto the hosts.
	i := 0
	for _, host := range entities {
		n := len(rel.relatedOf(host))
		if n == 0 {
			continue
		}
		if rel.Kind == HasMany {
			host[prop] = saved[i : i+n]
		} else {
			host[prop] = saved[i]
		}
		i += n
	}
	return nil
}

// removeStaleRelated deletes previously persisted related rows that are not
// part of the new set.
func (m *Model) removeStaleRelated(ctx context.Context, rel *Relation, hostValues map[string][]any, kept []types.Entity) error {
	if len(hostValues) == 0 {
		return nil
	}
	foreign := rel.Foreign
	foreignPk := foreign.PrimaryKey()

	if len(rel.localOrder) == 1 && len(foreignPk) == 1 {
		local := rel.localOrder[0]
		values := hostValues[local]
		if len(values) == 0 {
			return nil
		}
		cond := map[string]any{rel.fields[local]: map[string]any{"$in": values}}
		var keptPks []any
		for _, e := range kept {
			if pk, ok := e[foreignPk[0]]; ok && pk != nil {
				keptPks = append(keptPks, pk)
			}
		}
		if len(keptPks) > 0 {
			cond[foreignPk[0]] = map[string]any{"$nin": keptPks}
		}
		_, err := foreign.RemoveQuery(ctx, cond, query.Options{Multi: true})
		return err
	}

	// Multi-column join: load the current related set and diff by primary
	// key.
	cond := map[string]any{}
	for _, local := range rel.localOrder {
		if len(hostValues[local]) == 0 {
			return nil
		}
		cond[rel.fields[local]] = map[string]any{"$in": hostValues[local]}
	}
	existing, err := foreign.Find(ctx, cond, nil, nil)
	if err != nil {
		return err
	}

	keptKeys := map[string]struct{}{}
	for _, e := range kept {
		if key, ok := joinKey(e, foreignPk); ok {
			keptKeys[key] = struct{}{}
		}
	}
	var stale []types.Entity
	for _, e := range existing {
		key, ok := joinKey(e, foreignPk)
		if !ok {
			continue
		}
		if _, keep := keptKeys[key]; !keep {
			stale = append(stale, e)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	_, err = foreign.Remove(ctx, stale)
	return err
}

// RemoveRelated deletes every persisted related row of the hosts for the
// named relation and clears the relation property.
func (m *Model) RemoveRelated(ctx context.Context, entities []types.Entity, prop string) error {
	rel, ok := m.relations[prop]
	if !ok {
		return &RelationError{Model: m.name, Relation: prop, Reason: "relation not declared"}
	}

	cond := map[string]any{}
	for _, local := range rel.localOrder {
		seen := map[string]struct{}{}
		var values []any
		for _, host := range entities {
			v, present := host[local]
			if !present || v == nil {
				continue
			}
			token := joinToken(v)
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			values = append(values, v)
		}
		if len(values) == 0 {
			return nil
		}
		cond[rel.fields[local]] = map[string]any{"$in": values}
	}

	if _, err := rel.Foreign.RemoveQuery(ctx, cond, query.Options{Multi: true}); err != nil {
		return err
	}
	for _, host := range entities {
		if rel.Kind == HasMany {
			host[prop] = []types.Entity{}
		} else {
			delete(host, prop)
		}
	}
	return nil
}
