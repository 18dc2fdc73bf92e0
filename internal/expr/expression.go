// Package expr implements portable expressions: the normalized form of a
// predicate, selector or key extractor that both execution backends consume.
//
// An expression comes from one of three sources:
//
//   - inline text from the query, with captured values spliced in as
//     $argv[i] references (parsed into a tree, so it is introspectable)
//   - a native Go callable (opaque; usable by the memory backend only)
//   - a bare constant
//
// Expressions are built through a Cache owned by an engine instance, which
// interns identical expressions and memoizes their compiled evaluators.
package expr

import (
	"fmt"
	"strings"

	"github.com/roach88/linx/internal/errs"
	"github.com/roach88/linx/internal/value"
)

// ID identifies an expression within its Cache.
type ID uint64

// Binding describes how an expression receives its inputs.
type Binding int

const (
	// BindNames reads each parameter by name from the row record.
	BindNames Binding = iota

	// BindRow passes the whole row as the single argument of a callable.
	BindRow

	// BindPositional passes the call arguments positionally.
	BindPositional
)

func (b Binding) String() string {
	switch b {
	case BindNames:
		return "names"
	case BindRow:
		return "row"
	default:
		return "positional"
	}
}

// Inline is expression text captured from a query: literal fragments with
// values between them. len(Strings) is len(Args) or len(Args)+1.
type Inline struct {
	Strings []string
	Args    []any
}

// String renders the inline text with ${…} placeholders.
func (iv *Inline) String() string {
	var sb strings.Builder
	for i, s := range iv.Strings {
		sb.WriteString(s)
		if i < len(iv.Args) {
			sb.WriteString("${…}")
		}
	}
	return sb.String()
}

// Lambda is a Go callable with declared parameter names. Go cannot report
// the names of a function's parameters, so named binding needs them spelled
// out.
type Lambda struct {
	Params []string
	Fn     any
}

// Named wraps fn with the comma-separated parameter names.
//
//	expr.Named("n, m", func(n, m int) int { return n + m })
func Named(params string, fn any) *Lambda {
	var names []string
	for _, p := range strings.Split(params, ",") {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return &Lambda{Params: names, Fn: fn}
}

// Expression is a normalized, immutable portable expression.
type Expression struct {
	// ID is unique within the owning Cache and never reused.
	ID ID

	// Params are the names the expression reads (BindNames), or its
	// declared positional parameters.
	Params []string

	// Body is the source text; "$argv[0]" for constants and the Go type for
	// callables.
	Body string

	// Func is the native callable, nil for inline text and constants.
	Func any

	// Args are the captured values referenced as $argv[i].
	Args []any

	// Constant holds the pre-resolved value when HasConstant is set.
	Constant    any
	HasConstant bool

	// Binding says how inputs reach Params.
	Binding Binding

	// Visible are the row variables in scope where the expression was
	// built. Callables captured in Args bind against them.
	Visible []string

	tree  Node
	cache *Cache
}

// Tree returns the parsed inline text, or nil for callables and constants.
func (e *Expression) Tree() Node {
	return e.tree
}

// Evaluator returns the compiled form of e. Expressions obtained from a
// Cache share one evaluator per ID.
func (e *Expression) Evaluator() (*Evaluator, error) {
	if e.cache != nil {
		return e.cache.Compile(e)
	}
	return compile(e)
}

// IsNative reports whether the expression is an opaque Go callable.
func (e *Expression) IsNative() bool {
	return e.Func != nil
}

func (e *Expression) String() string {
	return e.Body
}

// validate checks that params are all visible.
func validate(params, visible []string) error {
	var absent []string
	for _, p := range params {
		if !contains(visible, p) {
			absent = append(absent, p)
		}
	}
	if len(absent) > 0 {
		return errs.Semantic("Unknown argument(s): %s", strings.Join(absent, ", "))
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// build normalizes src for a row scope with the given visible variables.
func build(src any, visible []string) (*Expression, error) {
	switch s := src.(type) {
	case *Expression:
		return s, nil
	case *Inline:
		return buildInline(s, visible)
	case *Lambda:
		if !value.IsFunc(s.Fn) {
			return nil, errs.Syntax("Invalid function: %T", s.Fn)
		}
		if n := value.Arity(s.Fn); n != len(s.Params) {
			return nil, errs.Syntax("Expected %d parameter(s), but got %d", len(s.Params), n)
		}
		if err := validate(s.Params, visible); err != nil {
			return nil, err
		}
		return &Expression{Params: s.Params, Body: fmt.Sprintf("%T", s.Fn), Func: s.Fn, Binding: BindNames, Visible: visible}, nil
	}
	if value.IsFunc(src) {
		return buildFunc(src, visible)
	}
	return constant(src), nil
}

func buildFunc(fn any, visible []string) (*Expression, error) {
	n := value.Arity(fn)
	e := &Expression{Body: fmt.Sprintf("%T", fn), Func: fn, Visible: visible}
	switch {
	case n == len(visible):
		e.Params = append([]string(nil), visible...)
		e.Binding = BindNames
	case n == 1:
		e.Binding = BindRow
	default:
		return nil, errs.Syntax("Expected %d parameter(s), but got %d", len(visible), n)
	}
	return e, nil
}

func constant(v any) *Expression {
	return &Expression{
		Body:        ArgvName + "[0]",
		Args:        []any{v},
		Constant:    v,
		HasConstant: true,
		Binding:     BindNames,
	}
}

func buildInline(iv *Inline, visible []string) (*Expression, error) {
	body, err := inlineBody(iv)
	if err != nil {
		return nil, err
	}
	if body == "" && len(iv.Args) == 1 {
		return constant(iv.Args[0]), nil
	}
	tree, err := Parse(body)
	if err != nil {
		return nil, err
	}
	params := FreeIdentifiers(tree)
	if err := validate(params, visible); err != nil {
		return nil, err
	}
	return &Expression{Params: params, Body: body, Args: iv.Args, Binding: BindNames, Visible: visible, tree: tree}, nil
}

// inlineBody joins the fragments, replacing each captured value by its
// $argv reference.
func inlineBody(iv *Inline) (string, error) {
	ns, na := len(iv.Strings), len(iv.Args)
	if na == 0 {
		if ns != 1 {
			return "", errs.Syntax("Invalid inline value: %s", strings.Join(iv.Strings, ", "))
		}
		return strings.TrimSpace(iv.Strings[0]), nil
	}
	if ns == 0 {
		if na != 1 {
			return "", errs.Syntax("Invalid inline value (%d values, no text)", na)
		}
		return "", nil
	}
	if ns != na && ns != na+1 {
		return "", errs.Syntax("Invalid inline value (strings: %d, args: %d)", ns, na)
	}
	var sb strings.Builder
	for i, s := range iv.Strings {
		sb.WriteString(s)
		if i < na {
			fmt.Fprintf(&sb, " %s[%d] ", ArgvName, i)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// buildLambda normalizes src for positional use on bare elements: arrow
// text ("n => n * 2", "(a, b) => a + b"), a Go callable, a *Lambda, or a
// constant.
func buildLambda(src any) (*Expression, error) {
	switch s := src.(type) {
	case *Expression:
		return s, nil
	case string:
		params, body, ok := splitArrow(s)
		if !ok {
			return nil, errs.Syntax("Invalid function (must be lambda): %s", s)
		}
		tree, err := Parse(body)
		if err != nil {
			return nil, err
		}
		if err := validate(FreeIdentifiers(tree), params); err != nil {
			return nil, err
		}
		return &Expression{Params: params, Body: body, Binding: BindPositional, Visible: params, tree: tree}, nil
	case *Lambda:
		if n := value.Arity(s.Fn); n != len(s.Params) {
			return nil, errs.Syntax("Expected %d parameter(s), but got %d", len(s.Params), n)
		}
		return &Expression{Params: s.Params, Body: fmt.Sprintf("%T", s.Fn), Func: s.Fn, Binding: BindPositional, Visible: s.Params}, nil
	}
	if value.IsFunc(src) {
		if value.Arity(src) < 0 {
			return nil, errs.Syntax("Invalid function: %T", src)
		}
		return &Expression{Body: fmt.Sprintf("%T", src), Func: src, Binding: BindPositional}, nil
	}
	e := constant(src)
	e.Binding = BindPositional
	return e, nil
}

func splitArrow(s string) ([]string, string, bool) {
	head, body, ok := strings.Cut(s, "=>")
	if !ok {
		return nil, "", false
	}
	head = strings.TrimSpace(head)
	head = strings.TrimSuffix(strings.TrimPrefix(head, "("), ")")
	var params []string
	for _, p := range strings.Split(head, ",") {
		if p = strings.TrimSpace(p); p != "" {
			params = append(params, p)
		}
	}
	return params, strings.TrimSpace(body), true
}
