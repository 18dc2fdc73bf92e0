package expr

import (
	"fmt"

	"github.com/roach88/linx/internal/errs"
	"github.com/roach88/linx/internal/value"
)

// Evaluator is the runnable form of an Expression. It holds no per-call
// state and can be reused across rows and pipelines.
type Evaluator struct {
	expr *Expression
	run  func(s *scope) (any, error)
}

type scope struct {
	vals []any // parameter values, aligned with Expression.Params
	row  any   // the row for BindNames/BindRow
	pos  []any // positional arguments for BindPositional
}

// Expression returns the expression the evaluator was compiled from.
func (ev *Evaluator) Expression() *Expression {
	return ev.expr
}

// Row evaluates the expression against one row. Named parameters are read
// from the row record; positional expressions receive the row as their only
// argument.
func (ev *Evaluator) Row(row any) (any, error) {
	e := ev.expr
	if e.Binding == BindPositional {
		return ev.Call(row)
	}
	if e.HasConstant {
		return e.Constant, nil
	}
	if e.Func != nil {
		if e.Binding == BindRow {
			return value.Call(e.Func, row)
		}
		return value.Call(e.Func, lookupAll(row, e.Params)...)
	}
	return ev.run(&scope{vals: lookupAll(row, e.Params), row: row})
}

// Call evaluates the expression with positional arguments.
func (ev *Evaluator) Call(args ...any) (any, error) {
	e := ev.expr
	if e.HasConstant {
		return e.Constant, nil
	}
	if e.Binding != BindPositional {
		if len(args) != 1 {
			return nil, fmt.Errorf("expression `%s` takes one row, got %d arguments", e.Body, len(args))
		}
		return ev.Row(args[0])
	}
	if e.Func != nil {
		return value.Call(e.Func, args...)
	}
	if len(args) != len(e.Params) {
		return nil, fmt.Errorf("expression `%s` expects %d argument(s), got %d", e.Body, len(e.Params), len(args))
	}
	return ev.run(&scope{vals: args, pos: args})
}

func lookupAll(row any, names []string) []any {
	vals := make([]any, len(names))
	rec, isRec := row.(value.Record)
	for i, name := range names {
		if isRec {
			vals[i], _ = rec.Get(name)
		} else if len(names) == 1 {
			vals[i] = row
		}
	}
	return vals
}

func compile(e *Expression) (*Evaluator, error) {
	ev := &Evaluator{expr: e}
	if e.tree == nil {
		return ev, nil
	}
	run, err := compileNode(e, e.tree)
	if err != nil {
		return nil, err
	}
	ev.run = run
	return ev, nil
}

type evalFunc func(s *scope) (any, error)

func compileNode(e *Expression, n Node) (evalFunc, error) {
	switch x := n.(type) {
	case Literal:
		v := x.Value
		return func(*scope) (any, error) { return v, nil }, nil
	case Ident:
		idx := -1
		for i, p := range e.Params {
			if p == x.Name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, errs.Semantic("Unknown argument(s): %s", x.Name)
		}
		return func(s *scope) (any, error) { return s.vals[idx], nil }, nil
	case Arg:
		if x.Index >= len(e.Args) {
			return nil, errs.Syntax("captured value %d out of range (%d captured)", x.Index, len(e.Args))
		}
		i := x.Index
		return func(s *scope) (any, error) { return argValue(e, i, s) }, nil
	case Member:
		obj, err := compileNode(e, x.Object)
		if err != nil {
			return nil, err
		}
		prop := x.Property
		return func(s *scope) (any, error) {
			o, err := obj(s)
			if err != nil {
				return nil, err
			}
			return value.Member(o, prop)
		}, nil
	case Index:
		obj, err := compileNode(e, x.Object)
		if err != nil {
			return nil, err
		}
		idx, err := compileNode(e, x.Index)
		if err != nil {
			return nil, err
		}
		return func(s *scope) (any, error) {
			o, err := obj(s)
			if err != nil {
				return nil, err
			}
			i, err := idx(s)
			if err != nil {
				return nil, err
			}
			return value.Index(o, i)
		}, nil
	case Unary:
		arg, err := compileNode(e, x.X)
		if err != nil {
			return nil, err
		}
		op := x.Op
		return func(s *scope) (any, error) {
			v, err := arg(s)
			if err != nil {
				return nil, err
			}
			switch op {
			case "!":
				return value.Not(v), nil
			case "-":
				return value.Negate(v)
			default:
				if !value.IsNumeric(v) {
					return nil, errs.Semantic("Can't apply unary + to %s", value.KindOf(v))
				}
				return v, nil
			}
		}, nil
	case Binary:
		return compileBinary(e, x)
	case Conditional:
		test, err := compileNode(e, x.Test)
		if err != nil {
			return nil, err
		}
		then, err := compileNode(e, x.Then)
		if err != nil {
			return nil, err
		}
		els, err := compileNode(e, x.Else)
		if err != nil {
			return nil, err
		}
		return func(s *scope) (any, error) {
			t, err := test(s)
			if err != nil {
				return nil, err
			}
			if value.Truthy(t) {
				return then(s)
			}
			return els(s)
		}, nil
	case Object:
		keys := make([]string, len(x.Props))
		vals := make([]evalFunc, len(x.Props))
		for i, p := range x.Props {
			f, err := compileNode(e, p.Value)
			if err != nil {
				return nil, err
			}
			keys[i], vals[i] = p.Key, f
		}
		return func(s *scope) (any, error) {
			rec := value.Record{}
			for i, f := range vals {
				v, err := f(s)
				if err != nil {
					return nil, err
				}
				rec = rec.With(keys[i], v)
			}
			return rec, nil
		}, nil
	case Array:
		elems := make([]evalFunc, len(x.Elems))
		for i, el := range x.Elems {
			f, err := compileNode(e, el)
			if err != nil {
				return nil, err
			}
			elems[i] = f
		}
		return func(s *scope) (any, error) {
			out := make([]any, len(elems))
			for i, f := range elems {
				v, err := f(s)
				if err != nil {
					return nil, err
				}
				out[i] = v
			}
			return out, nil
		}, nil
	}
	return nil, errs.Syntax("unsupported expression node %T", n)
}

func compileBinary(e *Expression, x Binary) (evalFunc, error) {
	left, err := compileNode(e, x.Left)
	if err != nil {
		return nil, err
	}
	right, err := compileNode(e, x.Right)
	if err != nil {
		return nil, err
	}
	op := x.Op
	switch op {
	case "&&":
		return func(s *scope) (any, error) {
			l, err := left(s)
			if err != nil || !value.Truthy(l) {
				return l, err
			}
			return right(s)
		}, nil
	case "||":
		return func(s *scope) (any, error) {
			l, err := left(s)
			if err != nil || value.Truthy(l) {
				return l, err
			}
			return right(s)
		}, nil
	}
	return func(s *scope) (any, error) {
		l, err := left(s)
		if err != nil {
			return nil, err
		}
		r, err := right(s)
		if err != nil {
			return nil, err
		}
		return value.Binary(op, l, r)
	}, nil
}

// argValue resolves captured value i. Callables are invoked with the row
// variables they bind to; plain values are normalized.
func argValue(e *Expression, i int, s *scope) (any, error) {
	a := e.Args[i]
	if l, ok := a.(*Lambda); ok {
		if s.pos != nil {
			return value.Call(l.Fn, s.pos...)
		}
		return value.Call(l.Fn, lookupAll(s.row, l.Params)...)
	}
	if !value.IsFunc(a) {
		return value.Normalize(a), nil
	}
	n := value.Arity(a)
	switch {
	case s.pos != nil && n == len(s.pos):
		return value.Call(a, s.pos...)
	case s.pos == nil && n == len(e.Visible):
		return value.Call(a, lookupAll(s.row, e.Visible)...)
	case n == 1 && s.pos == nil:
		return value.Call(a, s.row)
	}
	return nil, errs.Syntax("Captured function %T expects %d parameter(s)", a, n)
}
