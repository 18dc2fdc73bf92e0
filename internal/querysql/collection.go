package querysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/linx/internal/collection"
	"github.com/roach88/linx/internal/errs"
	"github.com/roach88/linx/internal/expr"
	"github.com/roach88/linx/internal/mem"
	"github.com/roach88/linx/internal/value"
)

// calcField prefixes the aliases of computed select-list entries.
const calcField = "linx_calc_field"

// Collection is a SQL collection over one table.
type Collection struct {
	b     *Backend
	table string
	alias string
	where []*Leaf
	shape Shape
}

var _ collection.Collection = (*Collection)(nil)

func (c *Collection) with(shape Shape, where []*Leaf) *Collection {
	return &Collection{b: c.b, table: c.table, alias: c.alias, where: where, shape: shape}
}

// Shape returns the current row shape.
func (c *Collection) Shape() Shape {
	return c.shape
}

// rowBuilder rebuilds a row from the scanned select list.
type rowBuilder func(vals []any) any

// selectList flattens the shape into select-list entries. Plain column
// references keep their name as alias and appear once; computed entries
// get linx_calc_fieldN aliases and contribute their parameters in order.
func (c *Collection) selectList() ([]string, []any, rowBuilder) {
	var (
		list []string
		args []any
		calc int
	)
	seen := make(map[string]int)

	var walk func(s Shape) rowBuilder
	walk = func(s Shape) rowBuilder {
		switch x := s.(type) {
		case *Leaf:
			idx, ok := seen[x.SQL]
			if !x.Plain() || !ok {
				idx = len(list)
				if x.Plain() {
					seen[x.SQL] = idx
					list = append(list, x.SQL+" AS "+c.b.dialect.Quote(x.Ref))
				} else {
					calc++
					list = append(list, fmt.Sprintf("%s AS %s%d", x.SQL, calcField, calc))
					args = append(args, x.Params...)
				}
			}
			return func(vals []any) any { return vals[idx] }
		case *Fields:
			subs := make([]rowBuilder, len(x.shapes))
			for i, sub := range x.shapes {
				subs[i] = walk(sub)
			}
			names := x.names
			return func(vals []any) any {
				pairs := make([]value.Pair, len(names))
				for i, n := range names {
					pairs[i] = value.P(n, subs[i](vals))
				}
				return value.NewRecord(pairs...)
			}
		}
		return func([]any) any { return nil }
	}
	build := walk(c.shape)
	if len(list) == 0 {
		list = append(list, "1")
	}
	return list, args, build
}

// fromWhere renders the FROM and WHERE clauses.
func (c *Collection) fromWhere() (string, []any) {
	var sb strings.Builder
	sb.WriteString(" FROM ")
	sb.WriteString(c.b.dialect.Quote(c.table))
	if c.alias != c.table {
		sb.WriteString(" AS ")
		sb.WriteString(c.b.dialect.Quote(c.alias))
	}
	var args []any
	for i, w := range c.where {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		if len(c.where) > 1 {
			sb.WriteString("(" + w.SQL + ")")
		} else {
			sb.WriteString(w.SQL)
		}
		args = append(args, w.Params...)
	}
	return sb.String(), args
}

// SQL returns the statement enumeration runs, with its arguments.
func (c *Collection) SQL() (string, []any) {
	q, args, _ := c.statement()
	return q, args
}

func (c *Collection) statement() (string, []any, rowBuilder) {
	list, args, build := c.selectList()
	from, whereArgs := c.fromWhere()
	q := "SELECT " + strings.Join(list, ", ") + from
	return c.b.dialect.Rebind(q), append(args, whereArgs...), build
}

func (c *Collection) query(ctx context.Context, q string, args []any) (*sql.Rows, error) {
	c.b.logger.Debug("sql query", "table", c.table, "sql", q, "params", len(args))
	rows, err := c.b.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.table, err)
	}
	return rows, nil
}

// Cursor runs the statement and streams its rows.
func (c *Collection) Cursor(ctx context.Context) (collection.Cursor, error) {
	q, args, build := c.statement()
	rows, err := c.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("column types: %w", err)
	}
	numeric := make([]bool, len(types))
	for i, t := range types {
		switch strings.ToUpper(t.DatabaseTypeName()) {
		case "NUMERIC", "DECIMAL", "NEWDECIMAL":
			numeric[i] = true
		}
	}
	return &cursor{rows: rows, build: build, numeric: numeric}, nil
}

// ToSlice runs the statement and returns every row.
func (c *Collection) ToSlice(ctx context.Context) ([]any, error) {
	cur, err := c.Cursor(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	out := []any{}
	for cur.Next(ctx) {
		out = append(out, cur.Value())
	}
	return out, cur.Err()
}

type cursor struct {
	rows    *sql.Rows
	build   rowBuilder
	numeric []bool
	cur     any
	err     error
	closed  bool
}

func (c *cursor) Next(ctx context.Context) bool {
	if c.closed {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		c.Close()
		return false
	}
	if !c.rows.Next() {
		c.err = c.rows.Err()
		c.Close()
		return false
	}
	vals := make([]any, len(c.numeric))
	ptrs := make([]any, len(vals))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		c.err = fmt.Errorf("scan row: %w", err)
		c.Close()
		return false
	}
	for i, v := range vals {
		n, err := c.convert(i, v)
		if err != nil {
			c.err = err
			c.Close()
			return false
		}
		vals[i] = n
	}
	c.cur = c.build(vals)
	return true
}

// convert normalizes a scanned value. NUMERIC and DECIMAL columns come back
// as text from most drivers.
func (c *cursor) convert(i int, v any) (any, error) {
	if c.numeric[i] {
		switch x := v.(type) {
		case []byte:
			return value.ParseNumeric(string(x))
		case string:
			return value.ParseNumeric(x)
		}
	}
	return value.Normalize(v), nil
}

func (c *cursor) Value() any { return c.cur }

func (c *cursor) Err() error { return c.err }

func (c *cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rows.Close()
}

func (c *Collection) Where(pred *expr.Expression) (collection.Collection, error) {
	if pred == nil {
		return c, nil
	}
	leaf, err := TranslateValue(pred, c.shape)
	if err != nil {
		return nil, err
	}
	where := append(append([]*Leaf(nil), c.where...), leaf)
	return c.with(c.shape, where), nil
}

func (c *Collection) Select(proj *expr.Expression) (collection.Collection, error) {
	s, err := Translate(proj, c.shape, true)
	if err != nil {
		return nil, err
	}
	return c.with(s, c.where), nil
}

func (c *Collection) Let(val *expr.Expression, name string) (collection.Collection, error) {
	f, ok := c.shape.(*Fields)
	if !ok {
		return nil, errs.Semantic("Not a wrapped object: %s", c.shape)
	}
	s, err := Translate(val, c.shape, true)
	if err != nil {
		return nil, err
	}
	return c.with(f.With(name, s), c.where), nil
}

func (c *Collection) Wrap(name string) (collection.Collection, error) {
	return c.with(Wrapped(name, c.shape), c.where), nil
}

func (c *Collection) Unwrap() (collection.Collection, error) {
	s, err := unwrapShape(c.shape)
	if err != nil {
		return nil, err
	}
	return c.with(s, c.where), nil
}

// Count runs SELECT COUNT(*), or COUNT(DISTINCT key) when by is set.
func (c *Collection) Count(ctx context.Context, by *expr.Expression) (int, error) {
	sel := "COUNT(*)"
	var args []any
	if by != nil {
		leaf, err := TranslateValue(by, c.shape)
		if err != nil {
			return 0, err
		}
		sel = "COUNT(DISTINCT " + leaf.SQL + ")"
		args = leaf.Params
	}
	from, whereArgs := c.fromWhere()
	q := c.b.dialect.Rebind("SELECT " + sel + from)
	rows, err := c.query(ctx, q, append(args, whereArgs...))
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("scan count: %w", err)
		}
	}
	return n, rows.Err()
}

// Join and GroupJoin run both sides as separate queries and merge them in
// process. Both keys must be plain field references.
func (c *Collection) Join(inner collection.Collection, outerKey, innerKey *expr.Expression, innerVar string) (collection.Collection, error) {
	m, err := c.joinable(inner, outerKey, innerKey, innerVar)
	if err != nil {
		return nil, err
	}
	return m.Join(inner, outerKey, innerKey, innerVar)
}

func (c *Collection) GroupJoin(inner collection.Collection, outerKey, innerKey *expr.Expression, innerVar, into string) (collection.Collection, error) {
	m, err := c.joinable(inner, outerKey, innerKey, innerVar)
	if err != nil {
		return nil, err
	}
	return m.GroupJoin(inner, outerKey, innerKey, innerVar, into)
}

func (c *Collection) joinable(inner collection.Collection, outerKey, innerKey *expr.Expression, innerVar string) (*mem.Collection, error) {
	if err := plainKey(outerKey, c.shape); err != nil {
		return nil, err
	}
	if ic, ok := inner.(*Collection); ok {
		if err := plainKey(innerKey, Wrapped(innerVar, ic.shape)); err != nil {
			return nil, err
		}
	}
	return mem.From(c)
}

func plainKey(key *expr.Expression, s Shape) error {
	leaf, err := TranslateValue(key, s)
	if err != nil {
		return err
	}
	if !leaf.Plain() {
		return errs.Semantic("Join key `%s` must be a single field", key)
	}
	return nil
}

func (c *Collection) MultiplyBy(*expr.Expression, string) (collection.Collection, error) {
	return nil, errs.NotImplemented("multiplyBy")
}

func (c *Collection) GroupBy(_, _ *expr.Expression) (collection.Collection, error) {
	return nil, errs.NotImplemented("groupBy")
}

func (c *Collection) Order(...collection.OrderSpec) (collection.Collection, error) {
	return nil, errs.NotImplemented("order")
}

func (c *Collection) Take(int) (collection.Collection, error) {
	return nil, errs.NotImplemented("take")
}

func (c *Collection) TakeWhile(*expr.Expression) (collection.Collection, error) {
	return nil, errs.NotImplemented("takeWhile")
}

func (c *Collection) TakeLast(int) (collection.Collection, error) {
	return nil, errs.NotImplemented("takeLast")
}

func (c *Collection) TakeLastWhile(*expr.Expression) (collection.Collection, error) {
	return nil, errs.NotImplemented("takeLastWhile")
}

func (c *Collection) Skip(int) (collection.Collection, error) {
	return nil, errs.NotImplemented("skip")
}

func (c *Collection) SkipWhile(*expr.Expression) (collection.Collection, error) {
	return nil, errs.NotImplemented("skipWhile")
}

func (c *Collection) DefaultIfEmpty(any) (collection.Collection, error) {
	return nil, errs.NotImplemented("defaultIfEmpty")
}

func (c *Collection) Distinct(*expr.Expression) (collection.Collection, error) {
	return nil, errs.NotImplemented("distinct")
}

func (c *Collection) DistinctBy(*expr.Expression) (collection.Collection, error) {
	return nil, errs.NotImplemented("distinctBy")
}

func (c *Collection) Append(...any) (collection.Collection, error) {
	return nil, errs.NotImplemented("append")
}

func (c *Collection) Prepend(...any) (collection.Collection, error) {
	return nil, errs.NotImplemented("prepend")
}

func (c *Collection) Concat(collection.Collection) (collection.Collection, error) {
	return nil, errs.NotImplemented("concat")
}

func (c *Collection) Union(collection.Collection) (collection.Collection, error) {
	return nil, errs.NotImplemented("union")
}

func (c *Collection) Intersect(collection.Collection) (collection.Collection, error) {
	return nil, errs.NotImplemented("intersect")
}

func (c *Collection) Except(collection.Collection) (collection.Collection, error) {
	return nil, errs.NotImplemented("except")
}

func (c *Collection) Sum(context.Context, *expr.Expression) (any, error) {
	return nil, errs.NotImplemented("sum")
}

func (c *Collection) Average(context.Context, *expr.Expression) (float64, error) {
	return 0, errs.NotImplemented("average")
}

func (c *Collection) Min(context.Context, *expr.Expression) (any, error) {
	return nil, errs.NotImplemented("min")
}

func (c *Collection) Max(context.Context, *expr.Expression) (any, error) {
	return nil, errs.NotImplemented("max")
}

func (c *Collection) Aggregate(context.Context, any, *expr.Expression) (any, error) {
	return nil, errs.NotImplemented("aggregate")
}

func (c *Collection) All(context.Context, *expr.Expression) (bool, error) {
	return false, errs.NotImplemented("all")
}

func (c *Collection) Any(context.Context, *expr.Expression) (bool, error) {
	return false, errs.NotImplemented("any")
}

func (c *Collection) Contains(context.Context, any) (bool, error) {
	return false, errs.NotImplemented("contains")
}

func (c *Collection) First(context.Context, *expr.Expression) (any, error) {
	return nil, errs.NotImplemented("first")
}

func (c *Collection) FirstOrDefault(context.Context, *expr.Expression, any) (any, error) {
	return nil, errs.NotImplemented("firstOrDefault")
}

func (c *Collection) Last(context.Context, *expr.Expression) (any, error) {
	return nil, errs.NotImplemented("last")
}

func (c *Collection) LastOrDefault(context.Context, *expr.Expression, any) (any, error) {
	return nil, errs.NotImplemented("lastOrDefault")
}

func (c *Collection) Single(context.Context, *expr.Expression) (any, error) {
	return nil, errs.NotImplemented("single")
}

func (c *Collection) SingleOrDefault(context.Context, *expr.Expression, any) (any, error) {
	return nil, errs.NotImplemented("singleOrDefault")
}
