package query

import (
	"sort"
	"strings"

	"github.com/missyorm/missy/types"
)

// SortField is one normalized sort key.
type SortField struct {
	Name string
	// Dir is +1 for ascending, -1 for descending.
	Dir int
}

// Sort is a normalized ordered list of sort keys.
type Sort struct {
	fields []SortField
}

// descending direction tokens; everything else parses as ascending.
var descendingTokens = map[any]struct{}{
	-1: {}, "-1": {}, "-": {}, "0": {}, 0: {}, false: {}, "": {},
}

func parseDirection(token any) int {
	if n, ok := token.(float64); ok && (n == -1 || n == 0) {
		return -1
	}
	if _, ok := descendingTokens[token]; ok {
		return -1
	}
	return 1
}

// NewSort normalizes a sort spec. Accepted forms: nil (no ordering), a
// string "a,b+,c-", an array of "name", "name+", "name-" items, or a map of
// field to direction token. Map input is normalized in ascending key order
// since Go maps carry no order; use the string or array form when multi-key
// precedence matters. An already-built *Sort passes through.
func NewSort(spec any) (*Sort, error) {
	switch v := spec.(type) {
	case nil:
		return &Sort{}, nil
	case *Sort:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return &Sort{}, nil
		}
		return newSortList(strings.Split(v, ","))
	case []string:
		return newSortList(v)
	case []any:
		items := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, &ArgumentError{Reason: "sort array items must be strings"}
			}
			items[i] = s
		}
		return newSortList(items)
	case map[string]any:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		s := &Sort{}
		for _, name := range names {
			s.fields = append(s.fields, SortField{Name: name, Dir: parseDirection(v[name])})
		}
		return s, nil
	case map[string]int:
		m := make(map[string]any, len(v))
		for k, d := range v {
			m[k] = d
		}
		return NewSort(m)
	default:
		return nil, &ArgumentError{Reason: "unsupported sort spec"}
	}
}

func newSortList(items []string) (*Sort, error) {
	s := &Sort{}
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		dir := 1
		switch {
		case strings.HasSuffix(item, "-"):
			dir = -1
			item = strings.TrimSuffix(item, "-")
		case strings.HasSuffix(item, "+"):
			item = strings.TrimSuffix(item, "+")
		}
		if item == "" {
			return nil, &ArgumentError{Reason: "sort item has no field name"}
		}
		s.fields = append(s.fields, SortField{Name: item, Dir: dir})
	}
	return s, nil
}

// Empty reports whether the sort specifies no ordering.
func (s *Sort) Empty() bool { return len(s.fields) == 0 }

// Fields returns the normalized sort keys in declaration order.
func (s *Sort) Fields() []SortField { return s.fields }

// Compare orders two entities by walking the sort keys in declared order,
// short-circuiting on the first key where they differ.
func (s *Sort) Compare(a, b types.Entity) int {
	for _, key := range s.fields {
		cmp, ok := compareValues(a[key.Name], b[key.Name])
		if !ok || cmp == 0 {
			continue
		}
		return cmp * key.Dir
	}
	return 0
}

// EntitiesSort returns the entities ordered by the sort keys. The sort is
// stable and the input slice is not mutated.
func (s *Sort) EntitiesSort(entities []types.Entity) []types.Entity {
	out := make([]types.Entity, len(entities))
	copy(out, entities)
	if s.Empty() {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		return s.Compare(out[i], out[j]) < 0
	})
	return out
}
