package sqldriver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/missyorm/missy/query"
	"github.com/missyorm/missy/schema"
)

// generator renders provider-specific SQL from normalized query values.
// PostgreSQL numbers its placeholders; MySQL and SQLite use positional "?".
type generator struct {
	provider string
}

func newGenerator(provider string) *generator {
	return &generator{provider: provider}
}

func (g *generator) placeholder(n int) string {
	if g.provider == "postgres" || g.provider == "postgresql" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (g *generator) quote(name string) string {
	if g.provider == "mysql" {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

func (g *generator) quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = g.quote(n)
	}
	return out
}

// selectQuery renders a full SELECT honoring projection, criteria, sort and
// skip/limit.
func (g *generator) selectQuery(m *schema.Model, c *query.Criteria, p *query.Projection, s *query.Sort, o query.Options) (string, []any) {
	columns := strings.Join(g.quoteAll(m.FieldNames()), ", ")
	if p != nil && !p.Empty() {
		details := p.GetFieldDetails(m)
		if len(details.Fields) > 0 {
			columns = strings.Join(g.quoteAll(details.Fields), ", ")
		}
	}

	var b strings.Builder
	var args []any
	fmt.Fprintf(&b, "SELECT %s FROM %s", columns, g.quote(m.Table()))
	g.appendWhere(&b, &args, c)
	g.appendOrderBy(&b, s)
	g.appendLimit(&b, &args, o)
	return b.String(), args
}

func (g *generator) countQuery(m *schema.Model, c *query.Criteria) (string, []any) {
	var b strings.Builder
	var args []any
	fmt.Fprintf(&b, "SELECT COUNT(*) FROM %s", g.quote(m.Table()))
	g.appendWhere(&b, &args, c)
	return b.String(), args
}

// insertQuery renders an INSERT over the entity's present declared fields,
// in declaration order.
func (g *generator) insertQuery(m *schema.Model, e map[string]any) (string, []any) {
	var columns []string
	var args []any
	for _, name := range m.FieldNames() {
		v, ok := e[name]
		if !ok {
			continue
		}
		columns = append(columns, g.quote(name))
		args = append(args, bindValue(v))
	}
	marks := make([]string, len(args))
	for i := range marks {
		marks[i] = g.placeholder(i + 1)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		g.quote(m.Table()), strings.Join(columns, ", "), strings.Join(marks, ", "))
	return sql, args
}

// updateByPk renders an UPDATE of the entity's present non-key fields,
// matched by primary key.
func (g *generator) updateByPk(m *schema.Model, e map[string]any) (string, []any) {
	pk := map[string]struct{}{}
	for _, name := range m.PrimaryKey() {
		pk[name] = struct{}{}
	}

	var sets []string
	var args []any
	n := 1
	for _, name := range m.FieldNames() {
		if _, isKey := pk[name]; isKey {
			continue
		}
		v, ok := e[name]
		if !ok {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = %s", g.quote(name), g.placeholder(n)))
		args = append(args, bindValue(v))
		n++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s SET %s", g.quote(m.Table()), strings.Join(sets, ", "))
	g.appendPkWhere(&b, &args, m, e, n)
	return b.String(), args
}

func (g *generator) deleteByPk(m *schema.Model, e map[string]any) (string, []any) {
	var b strings.Builder
	var args []any
	fmt.Fprintf(&b, "DELETE FROM %s", g.quote(m.Table()))
	g.appendPkWhere(&b, &args, m, e, 1)
	return b.String(), args
}

func (g *generator) appendPkWhere(b *strings.Builder, args *[]any, m *schema.Model, e map[string]any, n int) {
	var conds []string
	for _, name := range m.PrimaryKey() {
		conds = append(conds, fmt.Sprintf("%s = %s", g.quote(name), g.placeholder(n)))
		*args = append(*args, bindValue(e[name]))
		n++
	}
	fmt.Fprintf(b, " WHERE %s", strings.Join(conds, " AND "))
}

// appendWhere renders the criteria as an AND conjunction. Field order
// follows the normalized criteria order for stable SQL.
func (g *generator) appendWhere(b *strings.Builder, args *[]any, c *query.Criteria) {
	if c == nil || c.Empty() {
		return
	}
	var conds []string
	for _, field := range c.FieldOrder() {
		ops := c.Fields()[field]
		opNames := make([]string, 0, len(ops))
		for op := range ops {
			opNames = append(opNames, op)
		}
		sort.Strings(opNames)
		for _, op := range opNames {
			conds = append(conds, g.condition(field, op, ops[op], args))
		}
	}
	fmt.Fprintf(b, " WHERE %s", strings.Join(conds, " AND "))
}

func (g *generator) condition(field, op string, operand any, args *[]any) string {
	col := g.quote(field)
	bind := func(v any) string {
		*args = append(*args, bindValue(v))
		return g.placeholder(len(*args))
	}

	switch op {
	case query.OpEq:
		if operand == nil {
			return col + " IS NULL"
		}
		return fmt.Sprintf("%s = %s", col, bind(operand))
	case query.OpNe:
		if operand == nil {
			return col + " IS NOT NULL"
		}
		return fmt.Sprintf("%s <> %s", col, bind(operand))
	case query.OpGt:
		return fmt.Sprintf("%s > %s", col, bind(operand))
	case query.OpGte:
		return fmt.Sprintf("%s >= %s", col, bind(operand))
	case query.OpLt:
		return fmt.Sprintf("%s < %s", col, bind(operand))
	case query.OpLte:
		return fmt.Sprintf("%s <= %s", col, bind(operand))
	case query.OpIn, query.OpNin:
		values, _ := operand.([]any)
		if len(values) == 0 {
			// Empty IN matches nothing, empty NOT IN matches everything.
			if op == query.OpIn {
				return "1 = 0"
			}
			return "1 = 1"
		}
		marks := make([]string, len(values))
		for i, v := range values {
			marks[i] = bind(v)
		}
		keyword := "IN"
		if op == query.OpNin {
			keyword = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, keyword, strings.Join(marks, ", "))
	case query.OpExists:
		if truthy(operand) {
			return col + " IS NOT NULL"
		}
		return col + " IS NULL"
	default:
		// Unknown operators are rejected during criteria normalization.
		return "1 = 1"
	}
}

func (g *generator) appendOrderBy(b *strings.Builder, s *query.Sort) {
	if s == nil || s.Empty() {
		return
	}
	parts := make([]string, 0, len(s.Fields()))
	for _, f := range s.Fields() {
		dir := "ASC"
		if f.Dir < 0 {
			dir = "DESC"
		}
		parts = append(parts, g.quote(f.Name)+" "+dir)
	}
	fmt.Fprintf(b, " ORDER BY %s", strings.Join(parts, ", "))
}

func (g *generator) appendLimit(b *strings.Builder, args *[]any, o query.Options) {
	o = o.Normalize()
	if o.Limit > 0 {
		*args = append(*args, o.Limit)
		fmt.Fprintf(b, " LIMIT %s", g.placeholder(len(*args)))
	} else if o.Skip > 0 {
		// MySQL and SQLite only accept OFFSET after LIMIT.
		switch g.provider {
		case "mysql":
			*args = append(*args, int64(1)<<62)
			fmt.Fprintf(b, " LIMIT %s", g.placeholder(len(*args)))
		case "sqlite", "sqlite3":
			b.WriteString(" LIMIT -1")
		}
	}
	if o.Skip > 0 {
		*args = append(*args, o.Skip)
		fmt.Fprintf(b, " OFFSET %s", g.placeholder(len(*args)))
	}
}
