package value

import (
	"fmt"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// IsFunc reports whether v is a Go function.
func IsFunc(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}

// Arity returns the number of parameters of a Go function, or -1 when fn is
// not a function or is variadic.
func Arity(fn any) int {
	if !IsFunc(fn) {
		return -1
	}
	t := reflect.TypeOf(fn)
	if t.IsVariadic() {
		return -1
	}
	return t.NumIn()
}

// Call invokes a Go function with dynamic arguments. Arguments are converted
// to the declared parameter types; the function may return one value, or a
// value and an error. The result is normalized.
func Call(fn any, args ...any) (any, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, fmt.Errorf("not a function: %T", fn)
	}
	rt := rv.Type()
	if rt.IsVariadic() {
		return nil, fmt.Errorf("variadic functions are not supported: %s", rt)
	}
	if rt.NumIn() != len(args) {
		return nil, fmt.Errorf("function %s expects %d argument(s), got %d", rt, rt.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		conv, err := convert(a, rt.In(i))
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in[i] = conv
	}
	out := rv.Call(in)
	switch len(out) {
	case 1:
		if rt.Out(0) == errorType {
			if err, _ := out[0].Interface().(error); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return Normalize(out[0].Interface()), nil
	case 2:
		if rt.Out(1) != errorType {
			return nil, fmt.Errorf("second result of %s must be error", rt)
		}
		if err, _ := out[1].Interface().(error); err != nil {
			return nil, err
		}
		return Normalize(out[0].Interface()), nil
	}
	return nil, fmt.Errorf("function %s must return a value, optionally with an error", rt)
}

func convert(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if IsNumeric(v) {
			return rv.Convert(t), nil
		}
	case reflect.Slice:
		if arr, ok := v.([]any); ok {
			out := reflect.MakeSlice(t, len(arr), len(arr))
			for i, e := range arr {
				ev, err := convert(e, t.Elem())
				if err != nil {
					return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
				}
				out.Index(i).Set(ev)
			}
			return out, nil
		}
		if g, ok := v.(Grouping); ok {
			return convert(g.Elements(), t)
		}
	}
	if rv.Type().ConvertibleTo(t) && rv.Kind() == t.Kind() {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", KindOf(v), t)
}
