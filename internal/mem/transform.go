package mem

import (
	"context"
	"iter"

	"github.com/roach88/linx/internal/collection"
	"github.com/roach88/linx/internal/errs"
	"github.com/roach88/linx/internal/expr"
	"github.com/roach88/linx/internal/value"
)

// compiled wraps an optional expression's evaluator.
type compiled struct {
	ev *expr.Evaluator
}

func compile(e *expr.Expression) (compiled, error) {
	if e == nil {
		return compiled{}, nil
	}
	ev, err := e.Evaluator()
	if err != nil {
		return compiled{}, err
	}
	return compiled{ev: ev}, nil
}

// value evaluates against row; identity when unset.
func (c compiled) value(row any) (any, error) {
	if c.ev == nil {
		return row, nil
	}
	return c.ev.Row(row)
}

// test evaluates a predicate; always true when unset.
func (c compiled) test(row any) (bool, error) {
	if c.ev == nil {
		return true, nil
	}
	v, err := c.ev.Row(row)
	if err != nil {
		return false, err
	}
	return value.Truthy(v), nil
}

func asRecord(row any) (value.Record, error) {
	rec, ok := row.(value.Record)
	if !ok {
		return value.Record{}, errs.Semantic("Not a wrapped object: %s", value.Format(row))
	}
	return rec, nil
}

// mapRows derives a collection that maps every row through fn.
func (c *Collection) mapRows(fn func(row any) (any, error)) *Collection {
	src := c.seq
	return derive(func(ctx context.Context) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			for v, err := range src(ctx) {
				if err == nil {
					v, err = fn(v)
				}
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(v, nil) {
					return
				}
			}
		}
	})
}

// filter derives a collection keeping rows for which keep returns true;
// keep can end the enumeration by returning stop.
func (c *Collection) filter(keep func(row any) (ok, stop bool, err error)) *Collection {
	src := c.seq
	return derive(func(ctx context.Context) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			for v, err := range src(ctx) {
				if err != nil {
					yield(nil, err)
					return
				}
				ok, stop, err := keep(v)
				if err != nil {
					yield(nil, err)
					return
				}
				if stop {
					return
				}
				if ok && !yield(v, nil) {
					return
				}
			}
		}
	})
}

func (c *Collection) Where(pred *expr.Expression) (collection.Collection, error) {
	p, err := compile(pred)
	if err != nil {
		return nil, err
	}
	return c.filter(func(row any) (bool, bool, error) {
		ok, err := p.test(row)
		return ok, false, err
	}), nil
}

func (c *Collection) Select(proj *expr.Expression) (collection.Collection, error) {
	p, err := compile(proj)
	if err != nil {
		return nil, err
	}
	return c.mapRows(p.value), nil
}

func (c *Collection) Let(val *expr.Expression, name string) (collection.Collection, error) {
	p, err := compile(val)
	if err != nil {
		return nil, err
	}
	return c.mapRows(func(row any) (any, error) {
		rec, err := asRecord(row)
		if err != nil {
			return nil, err
		}
		v, err := p.value(row)
		if err != nil {
			return nil, err
		}
		return rec.With(name, v), nil
	}), nil
}

func (c *Collection) Wrap(name string) (collection.Collection, error) {
	return c.mapRows(func(row any) (any, error) {
		return value.Single(name, row), nil
	}), nil
}

func (c *Collection) Unwrap() (collection.Collection, error) {
	return c.mapRows(unwrap), nil
}

func unwrap(row any) (any, error) {
	rec, err := asRecord(row)
	if err != nil {
		return nil, err
	}
	v, err := rec.Sole()
	if err != nil {
		return nil, errs.Wrap(errs.CodeSemantic, err, "unwrap")
	}
	return v, nil
}

func (c *Collection) MultiplyBy(src *expr.Expression, name string) (collection.Collection, error) {
	p, err := compile(src)
	if err != nil {
		return nil, err
	}
	outer := c.seq
	return derive(func(ctx context.Context) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			for row, err := range outer(ctx) {
				var rec value.Record
				if err == nil {
					rec, err = asRecord(row)
				}
				var other *Collection
				if err == nil {
					var list any
					if list, err = p.value(row); err == nil {
						other, err = From(list)
					}
				}
				if err != nil {
					yield(nil, err)
					return
				}
				for v, err := range other.seq(ctx) {
					if err != nil {
						yield(nil, err)
						return
					}
					if !yield(rec.With(name, v), nil) {
						return
					}
				}
			}
		}
	}), nil
}

func (c *Collection) Take(n int) (collection.Collection, error) {
	src := c.seq
	return derive(func(ctx context.Context) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			if n <= 0 {
				return
			}
			i := 0
			for v, err := range src(ctx) {
				if !yield(v, err) || err != nil {
					return
				}
				if i++; i >= n {
					return
				}
			}
		}
	}), nil
}

func (c *Collection) TakeWhile(pred *expr.Expression) (collection.Collection, error) {
	p, err := compile(pred)
	if err != nil {
		return nil, err
	}
	return c.filter(func(row any) (bool, bool, error) {
		ok, err := p.test(row)
		return ok, !ok, err
	}), nil
}

func (c *Collection) Skip(n int) (collection.Collection, error) {
	return c.filterFresh(func() func(any) (bool, bool, error) {
		i := 0
		return func(any) (bool, bool, error) {
			i++
			return i > n, false, nil
		}
	}), nil
}

func (c *Collection) SkipWhile(pred *expr.Expression) (collection.Collection, error) {
	p, err := compile(pred)
	if err != nil {
		return nil, err
	}
	return c.filterFresh(func() func(any) (bool, bool, error) {
		emitting := false
		return func(row any) (bool, bool, error) {
			if emitting {
				return true, false, nil
			}
			skip, err := p.test(row)
			if err != nil {
				return false, false, err
			}
			emitting = !skip
			return emitting, false, nil
		}
	}), nil
}

// filterFresh is filter with per-enumeration state: mk is called at the
// start of every enumeration.
func (c *Collection) filterFresh(mk func() func(row any) (ok, stop bool, err error)) *Collection {
	return derive(func(ctx context.Context) iter.Seq2[any, error] {
		return c.filter(mk()).seq(ctx)
	})
}

func (c *Collection) TakeLast(n int) (collection.Collection, error) {
	src := c.seq
	return derive(func(ctx context.Context) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			if n <= 0 {
				return
			}
			// window is a ring once full; head is the oldest row.
			var window []any
			head := 0
			for v, err := range src(ctx) {
				if err != nil {
					yield(nil, err)
					return
				}
				if len(window) < n {
					window = append(window, v)
					continue
				}
				window[head] = v
				head = (head + 1) % n
			}
			for i := range window {
				if !yield(window[(head+i)%len(window)], nil) {
					return
				}
			}
		}
	}), nil
}

func (c *Collection) TakeLastWhile(pred *expr.Expression) (collection.Collection, error) {
	p, err := compile(pred)
	if err != nil {
		return nil, err
	}
	src := c.seq
	return derive(func(ctx context.Context) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			var tail []any
			for v, err := range src(ctx) {
				var ok bool
				if err == nil {
					ok, err = p.test(v)
				}
				if err != nil {
					yield(nil, err)
					return
				}
				if !ok {
					tail = tail[:0]
					continue
				}
				tail = append(tail, v)
			}
			for _, v := range tail {
				if !yield(v, nil) {
					return
				}
			}
		}
	}), nil
}

func (c *Collection) DefaultIfEmpty(def any) (collection.Collection, error) {
	src := c.seq
	def = value.Normalize(def)
	return derive(func(ctx context.Context) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			empty := true
			for v, err := range src(ctx) {
				empty = false
				if !yield(v, err) || err != nil {
					return
				}
			}
			if empty {
				yield(def, nil)
			}
		}
	}), nil
}

func (c *Collection) Distinct(comparer *expr.Expression) (collection.Collection, error) {
	if comparer != nil {
		return nil, errs.Configuration("Memory `distinct` does not support `comparer`")
	}
	return c.distinct(compiled{}), nil
}

func (c *Collection) DistinctBy(key *expr.Expression) (collection.Collection, error) {
	p, err := compile(key)
	if err != nil {
		return nil, err
	}
	return c.distinct(p), nil
}

func (c *Collection) distinct(key compiled) *Collection {
	return c.filterFresh(func() func(any) (bool, bool, error) {
		seen := make(map[string]struct{})
		return func(row any) (bool, bool, error) {
			k, err := key.value(row)
			if err != nil {
				return false, false, err
			}
			ks := value.Key(k)
			if _, dup := seen[ks]; dup {
				return false, false, nil
			}
			seen[ks] = struct{}{}
			return true, false, nil
		}
	})
}

func (c *Collection) Append(items ...any) (collection.Collection, error) {
	return concat(c, New(items...)), nil
}

func (c *Collection) Prepend(items ...any) (collection.Collection, error) {
	return concat(New(items...), c), nil
}

func (c *Collection) Concat(other collection.Collection) (collection.Collection, error) {
	o, err := From(other)
	if err != nil {
		return nil, err
	}
	return concat(c, o), nil
}

func concat(parts ...*Collection) *Collection {
	return derive(func(ctx context.Context) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			for _, p := range parts {
				for v, err := range p.seq(ctx) {
					if !yield(v, err) || err != nil {
						return
					}
				}
			}
		}
	})
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
