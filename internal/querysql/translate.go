package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/linx/internal/errs"
	"github.com/roach88/linx/internal/expr"
	"github.com/roach88/linx/internal/value"
)

var binaryOps = map[string]string{
	"==":  "=",
	"===": "=",
	"!=":  "<>",
	"!==": "<>",
	"<":   "<",
	"<=":  "<=",
	">":   ">",
	">=":  ">=",
	"&&":  "AND",
	"||":  "OR",
	"+":   "+",
	"-":   "-",
	"*":   "*",
	"/":   "/",
	"%":   "%",
}

var unaryOps = map[string]string{
	"!": "NOT ",
	"-": "-",
	"+": "+",
}

// precedence of the SQL rendering of each operator; operands binding looser
// than their parent are parenthesized.
var precedence = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "===": 3, "!=": 3, "!==": 3,
	"<": 4, "<=": 4, ">": 4, ">=": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

const unaryPrecedence = 7

// translator walks an expression tree against a row shape.
//
// In value mode (complex false) literals become bound parameters and the
// result must be a single SQL value. In complex mode (select lists)
// literals are inlined and object literals produce nested shapes.
type translator struct {
	e       *expr.Expression
	base    Shape
	scope   Shape
	complex bool
}

// Translate converts e to a shape over s. A nil expression is the identity.
func Translate(e *expr.Expression, s Shape, complex bool) (Shape, error) {
	if e == nil {
		return s, nil
	}
	if e.HasConstant {
		p, err := param(e.Constant)
		if err != nil {
			return nil, err
		}
		return &Leaf{SQL: "?", Params: []any{p}}, nil
	}
	if e.IsNative() {
		return nil, errs.Translation("Native function %s cannot be translated to SQL", e.Body)
	}
	scope := s
	if e.Binding == expr.BindPositional {
		if len(e.Params) != 1 {
			return nil, errs.Translation("Expected 1 parameter, but got %d", len(e.Params))
		}
		scope = Wrapped(e.Params[0], s)
	}
	if e.Tree() == nil {
		return nil, errs.Translation("Expression `%s` has no syntax tree", e.Body)
	}
	t := &translator{e: e, base: s, scope: scope, complex: complex}
	out, err := t.shapeOf(e.Tree())
	if err != nil {
		return nil, fmt.Errorf("while translating `%s`: %w", e.Body, err)
	}
	return out, nil
}

// TranslateValue converts e to a single SQL value over s.
func TranslateValue(e *expr.Expression, s Shape) (*Leaf, error) {
	out, err := Translate(e, s, false)
	if err != nil {
		return nil, err
	}
	leaf, ok := out.(*Leaf)
	if !ok {
		return nil, errs.Translation("Cannot retrieve field from %s", out)
	}
	return leaf, nil
}

func (t *translator) shapeOf(n expr.Node) (Shape, error) {
	switch x := n.(type) {
	case expr.Object:
		if !t.complex {
			return nil, errs.Semantic("No object expressions in primitive values")
		}
		names := make([]string, len(x.Props))
		shapes := make([]Shape, len(x.Props))
		for i, p := range x.Props {
			s, err := t.shapeOf(p.Value)
			if err != nil {
				return nil, err
			}
			names[i], shapes[i] = p.Key, s
		}
		return NewFields(names, shapes), nil
	case expr.Ident, expr.Member, expr.Index:
		if t.complex {
			return t.field(n)
		}
	}
	return t.leaf(n)
}

func (t *translator) leaf(n expr.Node) (*Leaf, error) {
	switch x := n.(type) {
	case expr.Literal:
		return t.literal(x.Value)

	case expr.Arg:
		return t.arg(x.Index)

	case expr.Ident, expr.Member, expr.Index:
		s, err := t.field(n)
		if err != nil {
			return nil, err
		}
		leaf, ok := s.(*Leaf)
		if !ok {
			return nil, errs.Translation("Cannot retrieve field from %s", s)
		}
		return grouped(leaf), nil

	case expr.Unary:
		op, ok := unaryOps[x.Op]
		if !ok {
			return nil, errs.Translation("Unsupported prefix operator %s", x.Op)
		}
		operand, err := t.operand(x.X, unaryPrecedence, false)
		if err != nil {
			return nil, err
		}
		return &Leaf{SQL: op + operand.SQL, Params: operand.Params}, nil

	case expr.Binary:
		return t.binary(x)

	case expr.Conditional:
		parts := make([]*Leaf, 3)
		for i, c := range []expr.Node{x.Test, x.Then, x.Else} {
			l, err := t.leaf(c)
			if err != nil {
				return nil, err
			}
			parts[i] = l
		}
		return &Leaf{
			SQL:    fmt.Sprintf("CASE WHEN %s THEN %s ELSE %s END", parts[0].SQL, parts[1].SQL, parts[2].SQL),
			Params: concatParams(parts...),
		}, nil

	case expr.Object:
		if !t.complex {
			return nil, errs.Semantic("No object expressions in primitive values")
		}
		return nil, errs.Translation("Object literal cannot be used as a value")

	case expr.Array:
		return nil, errs.Translation("Unsupported construct: array literal")
	}
	return nil, errs.Translation("Unsupported construct: %T", n)
}

func (t *translator) binary(x expr.Binary) (*Leaf, error) {
	op, ok := binaryOps[x.Op]
	if !ok {
		return nil, errs.Translation("Unsupported operator %s", x.Op)
	}
	if !t.complex && (op == "=" || op == "<>") {
		if l, ok := t.nullTest(x.Left, x.Right, op); ok {
			return l, nil
		}
	}
	prec := precedence[x.Op]
	left, err := t.operand(x.Left, prec, false)
	if err != nil {
		return nil, err
	}
	right, err := t.operand(x.Right, prec, true)
	if err != nil {
		return nil, err
	}
	return &Leaf{
		SQL:    left.SQL + " " + op + " " + right.SQL,
		Params: concatParams(left, right),
	}, nil
}

// nullTest renders comparisons with null, written or captured, as
// IS [NOT] NULL.
func (t *translator) nullTest(left, right expr.Node, op string) (*Leaf, bool) {
	other := left
	if t.isNull(left) {
		other = right
	} else if !t.isNull(right) {
		return nil, false
	}
	l, err := t.operand(other, unaryPrecedence, false)
	if err != nil {
		return nil, false
	}
	test := " IS NULL"
	if op == "<>" {
		test = " IS NOT NULL"
	}
	return &Leaf{SQL: l.SQL + test, Params: l.Params}, true
}

func (t *translator) isNull(n expr.Node) bool {
	switch x := n.(type) {
	case expr.Literal:
		return x.Value == nil
	case expr.Arg:
		if x.Index < 0 || x.Index >= len(t.e.Args) {
			return false
		}
		return value.Normalize(t.e.Args[x.Index]) == nil
	}
	return false
}

// operand renders n as an operand of an operator of precedence parent,
// parenthesizing when n binds looser (or equally on the right, since all
// operators are left-associative).
func (t *translator) operand(n expr.Node, parent int, right bool) (*Leaf, error) {
	l, err := t.leaf(n)
	if err != nil {
		return nil, err
	}
	var own int
	switch x := n.(type) {
	case expr.Binary:
		own = precedence[x.Op]
	case expr.Unary:
		own = unaryPrecedence
	default:
		return l, nil
	}
	if own < parent || (right && own == parent) {
		return &Leaf{SQL: "(" + l.SQL + ")", Params: l.Params}, nil
	}
	return l, nil
}

func (t *translator) literal(v any) (*Leaf, error) {
	if !t.complex {
		return &Leaf{SQL: "?", Params: []any{v}}, nil
	}
	return &Leaf{SQL: inline(v)}, nil
}

// inline renders a literal as SQL text.
func inline(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	}
	return value.Format(v)
}

// arg translates the i-th captured value. Captured expressions are
// translated against the same row; anything else is bound as a parameter.
func (t *translator) arg(i int) (*Leaf, error) {
	if i < 0 || i >= len(t.e.Args) {
		return nil, errs.Translation("Argument index %d out of range", i)
	}
	a := t.e.Args[i]
	if e, ok := a.(*expr.Expression); ok {
		l, err := TranslateValue(e, t.base)
		if err != nil {
			return nil, err
		}
		return grouped(l), nil
	}
	if value.IsFunc(a) {
		return nil, errs.Translation("Native function %T cannot be translated to SQL", a)
	}
	p, err := param(a)
	if err != nil {
		return nil, err
	}
	return &Leaf{SQL: "?", Params: []any{p}}, nil
}

// field resolves an identifier or member chain through the row shape.
func (t *translator) field(n expr.Node) (Shape, error) {
	switch x := n.(type) {
	case expr.Ident:
		return t.member(t.scope, x.Name)
	case expr.Member:
		obj, err := t.field(x.Object)
		if err != nil {
			return nil, err
		}
		return t.member(obj, x.Property)
	case expr.Index:
		lit, ok := x.Index.(expr.Literal)
		if !ok {
			return nil, errs.Translation("Computed properties not allowed")
		}
		name, ok := lit.Value.(string)
		if !ok {
			return nil, errs.Translation("Unsupported index %T for field retrieval", lit.Value)
		}
		obj, err := t.field(x.Object)
		if err != nil {
			return nil, err
		}
		return t.member(obj, name)
	}
	return nil, errs.Translation("Unsupported node %T for field retrieval", n)
}

func (t *translator) member(s Shape, name string) (Shape, error) {
	f, ok := s.(*Fields)
	if !ok {
		return nil, errs.Translation("Field has no components: %s", s)
	}
	sub, ok := f.Get(name)
	if !ok {
		return nil, errs.Translation("Unknown field %s", name)
	}
	return sub, nil
}

// param converts a captured value to a driver argument.
func param(v any) (any, error) {
	if d, ok := v.(decimal.Decimal); ok {
		return d, nil
	}
	n := value.Normalize(v)
	switch value.KindOf(n) {
	case value.KindNull, value.KindBool, value.KindNumber, value.KindString:
		return n, nil
	}
	return nil, errs.Translation("Cannot bind %T as a SQL parameter", v)
}

// grouped parenthesizes a computed leaf spliced into a larger expression.
func grouped(l *Leaf) *Leaf {
	if l.Plain() || l.SQL == "?" {
		return l
	}
	return &Leaf{SQL: "(" + l.SQL + ")", Params: l.Params}
}

func concatParams(leaves ...*Leaf) []any {
	var out []any
	for _, l := range leaves {
		out = append(out, l.Params...)
	}
	return out
}
