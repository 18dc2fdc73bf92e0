package value

import (
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/roach88/linx/internal/errs"
)

// Member reads property name of v.
//
// Records and maps return the entry (nil when absent). Strings, arrays and
// groupings expose length; groupings also expose key. Go structs expose
// exported fields by name or by json tag. Reading a property of null is a
// semantic error.
func Member(v any, name string) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, errs.Semantic("Cannot read property %q of null", name)
	case Record:
		got, _ := x.Get(name)
		return got, nil
	case map[string]any:
		return Normalize(x[name]), nil
	case Grouping:
		switch name {
		case "key":
			return x.GroupKey(), nil
		case "length":
			return int64(len(x.Elements())), nil
		}
		return nil, nil
	case string:
		if name == "length" {
			return int64(utf8.RuneCountInString(x)), nil
		}
		return nil, nil
	case []any:
		if name == "length" {
			return int64(len(x)), nil
		}
		return nil, nil
	}
	return structField(v, name)
}

// Index reads v[idx]. Numeric indexes address arrays and groupings; string
// indexes behave like Member.
func Index(v any, idx any) (any, error) {
	if s, ok := idx.(string); ok {
		return Member(v, s)
	}
	n, ok := idx.(int64)
	if !ok {
		if f, isF := idx.(float64); isF && f == float64(int64(f)) {
			n, ok = int64(f), true
		}
	}
	if !ok {
		return nil, errs.Semantic("Unsupported index %s", Format(idx))
	}
	var elems []any
	switch x := v.(type) {
	case nil:
		return nil, errs.Semantic("Cannot read index %d of null", n)
	case []any:
		elems = x
	case Grouping:
		elems = x.Elements()
	case string:
		r := []rune(x)
		if n < 0 || n >= int64(len(r)) {
			return nil, nil
		}
		return string(r[n]), nil
	default:
		nv := Normalize(v)
		arr, isArr := nv.([]any)
		if !isArr {
			return nil, nil
		}
		elems = arr
	}
	if n < 0 || n >= int64(len(elems)) {
		return nil, nil
	}
	return elems[n], nil
}

func structField(v any, name string) (any, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, errs.Semantic("Cannot read property %q of null", name)
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if f.Name == name || tag == name {
				return Normalize(rv.Field(i).Interface()), nil
			}
		}
		return nil, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, nil
		}
		got := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !got.IsValid() {
			return nil, nil
		}
		return Normalize(got.Interface()), nil
	case reflect.Slice, reflect.Array:
		if name == "length" {
			return int64(rv.Len()), nil
		}
	}
	return nil, nil
}
