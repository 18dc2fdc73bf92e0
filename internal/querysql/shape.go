package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/linx/internal/errs"
)

// Shape maps the logical row of a SQL collection onto SQL expressions.
//
// A row that is a single value has a *Leaf shape; a record row has a
// *Fields shape whose entries mirror the record's keys. Shapes are
// immutable: operations build new ones.
type Shape interface {
	shape()
	String() string
}

// Leaf is a column reference or a computed fragment with its bound
// parameters.
type Leaf struct {
	SQL    string
	Params []any

	// Ref is the unquoted alias.column of a column reference, empty for
	// computed fragments.
	Ref string
}

// Fields is an ordered record of sub-shapes.
type Fields struct {
	names  []string
	shapes []Shape
}

func (*Leaf) shape()   {}
func (*Fields) shape() {}

// Column returns the leaf for column of the table aliased alias, with both
// identifiers quoted for d.
func Column(d Dialect, alias, column string) *Leaf {
	return &Leaf{SQL: d.Quote(alias) + "." + d.Quote(column), Ref: alias + "." + column}
}

// Plain reports whether the leaf is a bare column reference.
func (l *Leaf) Plain() bool {
	return len(l.Params) == 0 && l.Ref != ""
}

func (l *Leaf) String() string {
	if len(l.Params) == 0 {
		return l.SQL
	}
	return fmt.Sprintf("%s %v", l.SQL, l.Params)
}

// NewFields builds a record shape; names and shapes are parallel.
func NewFields(names []string, shapes []Shape) *Fields {
	return &Fields{names: append([]string(nil), names...), shapes: append([]Shape(nil), shapes...)}
}

// Wrapped returns the record shape {name: s}.
func Wrapped(name string, s Shape) *Fields {
	return &Fields{names: []string{name}, shapes: []Shape{s}}
}

// Len returns the number of entries.
func (f *Fields) Len() int { return len(f.names) }

// Names returns the entry names in order.
func (f *Fields) Names() []string { return append([]string(nil), f.names...) }

// Get returns the entry named name.
func (f *Fields) Get(name string) (Shape, bool) {
	for i, n := range f.names {
		if n == name {
			return f.shapes[i], true
		}
	}
	return nil, false
}

// With returns a copy of f with name bound to s.
func (f *Fields) With(name string, s Shape) *Fields {
	out := NewFields(f.names, f.shapes)
	for i, n := range out.names {
		if n == name {
			out.shapes[i] = s
			return out
		}
	}
	out.names = append(out.names, name)
	out.shapes = append(out.shapes, s)
	return out
}

func (f *Fields) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, n := range f.names {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(n)
		sb.WriteString(": ")
		sb.WriteString(f.shapes[i].String())
	}
	sb.WriteByte('}')
	return sb.String()
}

// tableShape is the record of a table's columns, each qualified by alias.
func tableShape(d Dialect, alias string, columns []string) *Fields {
	f := &Fields{}
	for _, c := range columns {
		f.names = append(f.names, c)
		f.shapes = append(f.shapes, Column(d, alias, c))
	}
	return f
}

// unwrapShape returns the sole entry of a single-entry record shape.
func unwrapShape(s Shape) (Shape, error) {
	f, ok := s.(*Fields)
	if !ok {
		return nil, errs.Semantic("Not a wrapped object: %s", s)
	}
	if f.Len() != 1 {
		return nil, errs.Semantic("selection cannot select several objects: %s", strings.Join(f.names, ", "))
	}
	return f.shapes[0], nil
}
