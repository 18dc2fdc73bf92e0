package value

import (
	"math"
	"strconv"

	"github.com/roach88/linx/internal/errs"
)

// Binary applies a non-short-circuit binary operator to two normalized
// values. Logical && and || are evaluated by the caller.
func Binary(op string, a, b any) (any, error) {
	switch op {
	case "==", "===":
		return Equal(a, b), nil
	case "!=", "!==":
		return !Equal(a, b), nil
	case "<":
		return ordered(a, b) && Compare(a, b) < 0, nil
	case "<=":
		return ordered(a, b) && Compare(a, b) <= 0, nil
	case ">":
		return ordered(a, b) && Compare(a, b) > 0, nil
	case ">=":
		return ordered(a, b) && Compare(a, b) >= 0, nil
	case "+":
		if sa, ok := a.(string); ok {
			return sa + text(b), nil
		}
		if sb, ok := b.(string); ok {
			return text(a) + sb, nil
		}
		return arith(op, a, b)
	case "-", "*", "/", "%":
		return arith(op, a, b)
	}
	return nil, errs.Semantic("Unknown operator %s", op)
}

// Negate implements unary minus.
func Negate(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return -x, nil
	case float64:
		return -x, nil
	}
	return nil, errs.Semantic("Can't negate non-numeric value %s", Format(v))
}

// Not implements logical negation.
func Not(v any) bool {
	return !Truthy(v)
}

// ordered reports whether relational operators are meaningful: NaN never
// compares.
func ordered(a, b any) bool {
	if f, ok := a.(float64); ok && math.IsNaN(f) {
		return false
	}
	if f, ok := b.(float64); ok && math.IsNaN(f) {
		return false
	}
	return true
}

func arith(op string, a, b any) (any, error) {
	if !IsNumeric(a) || !IsNumeric(b) {
		return nil, errs.Semantic("Can't apply %s to %s and %s", op, KindOf(a), KindOf(b))
	}
	ia, aInt := a.(int64)
	ib, bInt := b.(int64)
	if aInt && bInt {
		switch op {
		case "+":
			return ia + ib, nil
		case "-":
			return ia - ib, nil
		case "*":
			return ia * ib, nil
		case "/":
			if ib != 0 && ia%ib == 0 {
				return ia / ib, nil
			}
		case "%":
			if ib != 0 {
				return ia % ib, nil
			}
			return math.NaN(), nil
		}
	}
	fa, _ := ToFloat(a)
	fb, _ := ToFloat(b)
	switch op {
	case "+":
		return fa + fb, nil
	case "-":
		return fa - fb, nil
	case "*":
		return fa * fb, nil
	case "/":
		return fa / fb, nil
	default:
		return math.Mod(fa, fb), nil
	}
}

// text converts a value to its string-concatenation form.
func text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return "null"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	}
	return Format(v)
}
