package sqldriver

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/spf13/cast"

	"github.com/missyorm/missy/types"
)

// scanEntities reads every row into an entity keyed by the result columns.
// Raw []byte cells become strings so the load conversion sees text, not
// driver-specific buffers.
func scanEntities(rows *sql.Rows) ([]types.Entity, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []types.Entity
	for rows.Next() {
		cells := make([]any, len(columns))
		refs := make([]any, len(columns))
		for i := range cells {
			refs[i] = &cells[i]
		}
		if err := rows.Scan(refs...); err != nil {
			return nil, err
		}
		e := make(types.Entity, len(columns))
		for i, name := range columns {
			switch v := cells[i].(type) {
			case []byte:
				e[name] = string(v)
			default:
				e[name] = v
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// bindValue renders an entity value as a driver-bindable scalar. Composite
// values (arrays, objects) are stored as JSON text.
func bindValue(v any) any {
	switch v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, []byte, time.Time:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return cast.ToString(v)
		}
		return string(data)
	}
}

func truthy(v any) bool {
	return cast.ToBool(v)
}
