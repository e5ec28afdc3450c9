package query

import (
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// isNumeric reports whether the value has a numeric kind.
func isNumeric(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// equalValues compares two values for equality. Numeric values compare by
// magnitude regardless of their Go kind, times by instant, everything else
// by deep equality.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumeric(a) && isNumeric(b) {
		return cast.ToFloat64(a) == cast.ToFloat64(b)
	}
	at, aok := a.(time.Time)
	bt, bok := b.(time.Time)
	if aok && bok {
		return at.Equal(bt)
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two values using their native ordering. The second
// result reports whether the pair is comparable at all.
func compareValues(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if isNumeric(a) && isNumeric(b) {
		af, bf := cast.ToFloat64(a), cast.ToFloat64(b)
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	at, aok := a.(time.Time)
	bt, bok := b.(time.Time)
	if aok && bok {
		switch {
		case at.Before(bt):
			return -1, true
		case at.After(bt):
			return 1, true
		}
		return 0, true
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		switch {
		case !ab && bb:
			return -1, true
		case ab && !bb:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
