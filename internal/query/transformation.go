package query

import (
	"fmt"
	"strings"

	"github.com/roach88/linx/internal/collection"
	"github.com/roach88/linx/internal/expr"
)

// Transformation is one clause of a parsed query.
//
// This is a sealed interface - only types in this package implement it.
type Transformation interface {
	// NewVariables returns the row variables after this clause, given the
	// variables before it.
	NewVariables(already []string) []string

	// Apply adds the clause to c. collect turns clause sources (join
	// inputs) into collections.
	Apply(c collection.Collection, collect collection.Collector) (collection.Collection, error)

	String() string

	transformation()
}

// From crosses every row with a second source.
type From struct {
	Variable string
	Source   *expr.Expression
}

// Where filters rows.
type Where struct {
	Predicate *expr.Expression
}

// Let binds a computed value to a new variable.
type Let struct {
	Variable string
	Value    *expr.Expression
}

// OrderBy sorts rows, first spec first.
type OrderBy struct {
	Specs []collection.OrderSpec
}

// Join matches rows with the elements of an external source. With Into
// set it is a group-join.
type Join struct {
	Variable string
	Source   any
	OuterKey *expr.Expression
	InnerKey *expr.Expression
	Into     string
}

// Group partitions rows by key. A nil Value groups the sole variable.
type Group struct {
	Value *expr.Expression
	Key   *expr.Expression
	Into  string
}

// Select projects rows. It ends the query.
type Select struct {
	Value *expr.Expression
	Into  string
}

func (From) transformation()    {}
func (Where) transformation()   {}
func (Let) transformation()     {}
func (OrderBy) transformation() {}
func (Join) transformation()    {}
func (Group) transformation()   {}
func (Select) transformation()  {}

func appendVar(already []string, name string) []string {
	out := make([]string, 0, len(already)+1)
	return append(append(out, already...), name)
}

func (t From) NewVariables(already []string) []string    { return appendVar(already, t.Variable) }
func (t Where) NewVariables(already []string) []string   { return already }
func (t Let) NewVariables(already []string) []string     { return appendVar(already, t.Variable) }
func (t OrderBy) NewVariables(already []string) []string { return already }
func (t Group) NewVariables([]string) []string           { return []string{t.Into} }
func (t Select) NewVariables([]string) []string          { return []string{t.Into} }

func (t Join) NewVariables(already []string) []string {
	if t.Into != "" {
		return appendVar(already, t.Into)
	}
	return appendVar(already, t.Variable)
}

func (t From) Apply(c collection.Collection, _ collection.Collector) (collection.Collection, error) {
	return c.MultiplyBy(t.Source, t.Variable)
}

func (t Where) Apply(c collection.Collection, _ collection.Collector) (collection.Collection, error) {
	return c.Where(t.Predicate)
}

func (t Let) Apply(c collection.Collection, _ collection.Collector) (collection.Collection, error) {
	return c.Let(t.Value, t.Variable)
}

func (t OrderBy) Apply(c collection.Collection, _ collection.Collector) (collection.Collection, error) {
	if len(t.Specs) == 0 {
		return c, nil
	}
	first := t.Specs[0]
	start := collection.OrderBy
	if first.Descending {
		start = collection.OrderByDescending
	}
	o, err := start(c, first.By)
	if err != nil {
		return nil, err
	}
	for _, s := range t.Specs[1:] {
		if s.Descending {
			o, err = o.ThenByDescending(s.By)
		} else {
			o, err = o.ThenBy(s.By)
		}
		if err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (t Join) Apply(c collection.Collection, collect collection.Collector) (collection.Collection, error) {
	inner, err := collect(t.Source)
	if err != nil {
		return nil, fmt.Errorf("join %s: %w", t.Variable, err)
	}
	if t.Into != "" {
		return c.GroupJoin(inner, t.OuterKey, t.InnerKey, t.Variable, t.Into)
	}
	return c.Join(inner, t.OuterKey, t.InnerKey, t.Variable)
}

func (t Group) Apply(c collection.Collection, _ collection.Collector) (collection.Collection, error) {
	g, err := c.GroupBy(t.Key, t.Value)
	if err != nil {
		return nil, err
	}
	return g.Wrap(t.Into)
}

func (t Select) Apply(c collection.Collection, _ collection.Collector) (collection.Collection, error) {
	s, err := c.Select(t.Value)
	if err != nil {
		return nil, err
	}
	return s.Wrap(t.Into)
}

func into(name string) string {
	if name == "" {
		return ""
	}
	return " into " + name
}

func (t From) String() string  { return fmt.Sprintf("from %s in %s", t.Variable, t.Source) }
func (t Where) String() string { return "where " + t.Predicate.String() }
func (t Let) String() string   { return fmt.Sprintf("let %s = %s", t.Variable, t.Value) }

func (t OrderBy) String() string {
	items := make([]string, len(t.Specs))
	for i, s := range t.Specs {
		items[i] = s.By.String()
		if s.Descending {
			items[i] += " descending"
		}
	}
	return "order by " + strings.Join(items, ", ")
}

func (t Join) String() string {
	return fmt.Sprintf("join %s in %T on %s equals %s%s", t.Variable, t.Source, t.OuterKey, t.InnerKey, into(t.Into))
}

func (t Group) String() string {
	if t.Value == nil {
		return fmt.Sprintf("group by %s%s", t.Key, into(t.Into))
	}
	return fmt.Sprintf("group %s by %s%s", t.Value, t.Key, into(t.Into))
}

func (t Select) String() string { return fmt.Sprintf("select %s%s", t.Value, into(t.Into)) }
