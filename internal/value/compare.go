package value

import (
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// kindRank orders values of different kinds so mixed-kind sorts stay
// deterministic.
func kindRank(v any) int {
	switch KindOf(v) {
	case KindNull:
		return 0
	case KindBool:
		return 1
	case KindNumber:
		return 2
	case KindString:
		return 3
	case KindArray:
		return 4
	case KindRecord:
		return 5
	case KindGroup:
		return 6
	default:
		return 7
	}
}

// Compare orders two normalized values, returning -1, 0 or 1.
//
// Numbers compare numerically across int64/float64 (NaN sorts first),
// strings compare by bytes after NFC normalization, false < true, arrays
// compare element-wise. Values of different kinds order by kind:
// null < bool < number < string < array < record < group.
func Compare(a, b any) int {
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch x := a.(type) {
	case nil:
		return 0
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case int64:
		if y, ok := b.(int64); ok {
			return cmpInt64(x, y)
		}
		return cmpFloat(float64(x), b.(float64))
	case float64:
		y, _ := ToFloat(b)
		return cmpFloat(x, y)
	case string:
		return strings.Compare(norm.NFC.String(x), norm.NFC.String(b.(string)))
	case []any:
		y := b.([]any)
		for i := 0; i < len(x) && i < len(y); i++ {
			if c := Compare(x[i], y[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(x), len(y))
	}
	return strings.Compare(Key(a), Key(b))
}

// Less reports whether a orders before b.
func Less(a, b any) bool {
	return Compare(a, b) < 0
}

// Equal reports value equality: numbers across int64/float64, strings after
// NFC normalization, records, arrays and groupings structurally.
func Equal(a, b any) bool {
	if KindOf(a) != KindOf(b) {
		return false
	}
	switch x := a.(type) {
	case nil:
		return true
	case bool:
		return x == b.(bool)
	case int64, float64:
		fa, _ := ToFloat(x)
		fb, _ := ToFloat(b)
		if ia, ok := x.(int64); ok {
			if ib, ok := b.(int64); ok {
				return ia == ib
			}
		}
		return fa == fb
	case string:
		return norm.NFC.String(x) == norm.NFC.String(b.(string))
	case []any:
		y := b.([]any)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Record:
		y := b.(Record)
		if x.Len() != y.Len() {
			return false
		}
		for i, k := range x.keys {
			v, ok := y.Get(k)
			if !ok || !Equal(x.vals[i], v) {
				return false
			}
		}
		return true
	}
	return Key(a) == Key(b)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
