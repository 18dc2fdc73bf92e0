// Package value implements the dynamic value model shared by the expression
// evaluator and both execution backends.
//
// Values are plain Go values drawn from a small set after normalization:
// nil, bool, int64, float64, string, []any, Record and Grouping. Host values
// (typed slices, maps, structs, sized integers, decimals) are accepted at the
// boundary and normalized on entry.
package value

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind classifies a normalized value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindRecord
	KindGroup
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindRecord:
		return "object"
	case KindGroup:
		return "group"
	default:
		return "other"
	}
}

// Grouping is implemented by keyed sub-collections (group-by and group-join
// results) so expressions can read g.key, g.length and g[i].
type Grouping interface {
	GroupKey() any
	Elements() []any
}

// KindOf returns the kind of a normalized value.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case int64, float64:
		return KindNumber
	case string:
		return KindString
	case []any:
		return KindArray
	case Record:
		return KindRecord
	case Grouping:
		return KindGroup
	default:
		return KindOther
	}
}

// Normalize converts host values to the normalized set. Sized integers
// become int64, float32 becomes float64, decimals become int64 when integral
// and float64 otherwise, []byte becomes string, maps become records with
// sorted keys, and slices become []any. Unknown types pass through.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil, bool, int64, float64, string, Record, Grouping:
		return v
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return normalizeUint(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return normalizeUint(x)
	case float32:
		return float64(x)
	case decimal.Decimal:
		return fromDecimal(x)
	case []byte:
		return string(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		r := Record{keys: keys, vals: make([]any, len(keys))}
		for i, k := range keys {
			r.vals[i] = Normalize(x[k])
		}
		return r
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return Normalize(m)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return normalizeUint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
	}
	return v
}

func normalizeUint(u uint64) any {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int64(u)
}

func fromDecimal(d decimal.Decimal) any {
	if d.IsInteger() && d.Abs().LessThanOrEqual(decimal.NewFromInt(math.MaxInt64)) {
		return d.IntPart()
	}
	f, _ := d.Float64()
	return f
}

// ParseNumeric parses a NUMERIC/DECIMAL column rendered as text.
func ParseNumeric(s string) (any, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return fromDecimal(d), nil
}

// IsNumeric reports whether v is an int64 or float64.
func IsNumeric(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

// ToFloat converts a numeric value to float64.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// Truthy applies JavaScript-style truthiness: nil, false, 0, NaN and "" are
// false; everything else is true.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	}
	return true
}

// Plain converts records and groupings to maps and slices so results can be
// compared against decoded YAML/JSON or re-encoded.
func Plain(v any) any {
	switch x := v.(type) {
	case Record:
		m := make(map[string]any, len(x.keys))
		for i, k := range x.keys {
			m[k] = Plain(x.vals[i])
		}
		return m
	case Grouping:
		return map[string]any{"key": Plain(x.GroupKey()), "items": Plain(x.Elements())}
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Plain(e)
		}
		return out
	}
	return v
}

// Format renders a value for text output.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case bool:
		return strconv.FormatBool(x)
	case Record:
		return x.String()
	case Grouping:
		return fmt.Sprintf("{key: %s, items: %s}", Format(x.GroupKey()), Format(x.Elements()))
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = Format(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprintf("%v", v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
