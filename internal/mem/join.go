package mem

import (
	"context"
	"iter"
	"slices"

	"github.com/roach88/linx/internal/collection"
	"github.com/roach88/linx/internal/expr"
	"github.com/roach88/linx/internal/value"
)

// Group is a materialized group of a group-by or group-join.
type Group struct {
	key   any
	items []any
}

var _ collection.Group = (*Group)(nil)

// NewGroup creates a group holding items under key.
func NewGroup(key any, items []any) *Group {
	if items == nil {
		items = []any{}
	}
	return &Group{key: key, items: items}
}

func (g *Group) GroupKey() any { return g.key }

func (g *Group) Elements() []any { return g.items }

func (g *Group) Collection() collection.Collection { return New(g.items...) }

func (g *Group) MarshalJSON() ([]byte, error) {
	return value.NewRecord(value.P("key", g.key), value.P("items", g.items)).MarshalJSON()
}

func (g *Group) String() string {
	return value.Format(g)
}

// keyed is a row with its precomputed sort keys.
type keyed struct {
	keys []any
	row  any
}

// sortKeyed materializes src, computes the keys of every row once, and
// sorts stably, key by key.
func sortKeyed(ctx context.Context, src source, keys []compiled, desc []bool) ([]keyed, error) {
	var rows []keyed
	for v, err := range src(ctx) {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		k := keyed{keys: make([]any, len(keys)), row: v}
		for i, key := range keys {
			if k.keys[i], err = key.value(v); err != nil {
				return nil, err
			}
		}
		rows = append(rows, k)
	}
	slices.SortStableFunc(rows, func(a, b keyed) int {
		for i := range keys {
			c := value.Compare(a.keys[i], b.keys[i])
			if c == 0 {
				continue
			}
			if desc[i] {
				return -c
			}
			return c
		}
		return 0
	})
	return rows, nil
}

func (c *Collection) Order(specs ...collection.OrderSpec) (collection.Collection, error) {
	keys := make([]compiled, len(specs))
	desc := make([]bool, len(specs))
	for i, s := range specs {
		k, err := compile(s.By)
		if err != nil {
			return nil, err
		}
		keys[i], desc[i] = k, s.Descending
	}
	src := c.seq
	return derive(func(ctx context.Context) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			rows, err := sortKeyed(ctx, src, keys, desc)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, r := range rows {
				if !yield(r.row, nil) {
					return
				}
			}
		}
	}), nil
}

func (c *Collection) GroupBy(key, element *expr.Expression) (collection.Collection, error) {
	k, err := compile(key)
	if err != nil {
		return nil, err
	}
	el, err := compile(element)
	if err != nil {
		return nil, err
	}
	src := c.seq
	return derive(func(ctx context.Context) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			rows, err := sortKeyed(ctx, src, []compiled{k}, []bool{false})
			if err != nil {
				yield(nil, err)
				return
			}
			for band := range bands(rows) {
				items := make([]any, len(band))
				for i, r := range band {
					if element == nil {
						items[i], err = unwrap(r.row)
					} else {
						items[i], err = el.value(r.row)
					}
					if err != nil {
						yield(nil, err)
						return
					}
				}
				if !yield(NewGroup(band[0].keys[0], items), nil) {
					return
				}
			}
		}
	}), nil
}

// bands splits rows sorted on their first key into runs of equal key.
func bands(rows []keyed) iter.Seq[[]keyed] {
	return func(yield func([]keyed) bool) {
		for start := 0; start < len(rows); {
			end := start + 1
			for end < len(rows) && value.Compare(rows[end].keys[0], rows[start].keys[0]) == 0 {
				end++
			}
			if !yield(rows[start:end]) {
				return
			}
			start = end
		}
	}
}

func (c *Collection) Join(inner collection.Collection, outerKey, innerKey *expr.Expression, innerVar string) (collection.Collection, error) {
	return c.merge(inner, outerKey, innerKey, innerVar, func(outer value.Record, _ any, matches []any, yield func(any, error) bool) bool {
		for _, m := range matches {
			if !yield(outer.With(innerVar, m), nil) {
				return false
			}
		}
		return true
	})
}

func (c *Collection) GroupJoin(inner collection.Collection, outerKey, innerKey *expr.Expression, innerVar, into string) (collection.Collection, error) {
	return c.merge(inner, outerKey, innerKey, innerVar, func(outer value.Record, key any, matches []any, yield func(any, error) bool) bool {
		return yield(outer.With(into, NewGroup(key, matches)), nil)
	})
}

// emitFunc receives every outer row with the inner elements of equal key
// (none for unmatched outer rows).
type emitFunc func(outer value.Record, key any, matches []any, yield func(any, error) bool) bool

// merge is the sort-merge behind Join and GroupJoin. Both sides are sorted
// ascending by key; the inner side is wrapped under innerVar for key
// evaluation and unwrapped on emission. Rows come out in key order.
func (c *Collection) merge(inner collection.Collection, outerKey, innerKey *expr.Expression, innerVar string, emit emitFunc) (collection.Collection, error) {
	ok, err := compile(outerKey)
	if err != nil {
		return nil, err
	}
	ik, err := compile(innerKey)
	if err != nil {
		return nil, err
	}
	in, err := From(inner)
	if err != nil {
		return nil, err
	}
	wrapped, err := in.Wrap(innerVar)
	if err != nil {
		return nil, err
	}
	innerSrc := wrapped.(*Collection).seq
	outerSrc := c.seq
	asc := []bool{false}

	return derive(func(ctx context.Context) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			outer, err := sortKeyed(ctx, outerSrc, []compiled{ok}, asc)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(outer) == 0 {
				return
			}
			innerRows, err := sortKeyed(ctx, innerSrc, []compiled{ik}, asc)
			if err != nil {
				yield(nil, err)
				return
			}

			emitBand := func(band []keyed, key any, matches []any) bool {
				for _, o := range band {
					rec, err := asRecord(o.row)
					if err != nil {
						yield(nil, err)
						return false
					}
					if !emit(rec, key, matches, yield) {
						return false
					}
				}
				return true
			}

			i := 0
			for band := range bands(outer) {
				key := band[0].keys[0]
				for i < len(innerRows) && value.Compare(innerRows[i].keys[0], key) < 0 {
					i++
				}
				var matches []any
				for i < len(innerRows) && value.Compare(innerRows[i].keys[0], key) == 0 {
					m, _ := innerRows[i].row.(value.Record).Get(innerVar)
					matches = append(matches, m)
					i++
				}
				if !emitBand(band, key, matches) {
					return
				}
			}
		}
	}), nil
}
