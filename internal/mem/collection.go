// Package mem is the in-memory execution backend. Collections are chains of
// pull-based producers; nothing runs until a cursor or terminal method
// pulls rows.
package mem

import (
	"context"
	"iter"
	"reflect"

	"github.com/roach88/linx/internal/collection"
	"github.com/roach88/linx/internal/errs"
	"github.com/roach88/linx/internal/value"
)

// source produces the rows of a collection for one enumeration.
type source func(ctx context.Context) iter.Seq2[any, error]

// Collection is the in-memory implementation of collection.Collection.
type Collection struct {
	seq source

	// items is set for array-backed collections, which know their length.
	items []any
}

var _ collection.Collection = (*Collection)(nil)

// New creates an array-backed collection over items.
func New(items ...any) *Collection {
	c := &Collection{items: items}
	c.seq = func(context.Context) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			for _, v := range items {
				if !yield(value.Normalize(v), nil) {
					return
				}
			}
		}
	}
	return c
}

// FromSeq creates a collection over a Go sequence. The sequence is
// restarted on every enumeration.
func FromSeq(seq iter.Seq[any]) *Collection {
	return derive(func(context.Context) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			for v := range seq {
				if !yield(value.Normalize(v), nil) {
					return
				}
			}
		}
	})
}

func derive(seq source) *Collection {
	return &Collection{seq: seq}
}

// Collector is the default collection.Collector.
func Collector(src any) (collection.Collection, error) {
	return From(src)
}

// From adapts src to a memory collection. Accepted sources are memory
// collections, any other collection.Collection, groups, slices and arrays,
// iter.Seq / iter.Seq2 of any element type, and receive channels.
func From(src any) (*Collection, error) {
	switch s := src.(type) {
	case *Collection:
		return s, nil
	case collection.Group:
		return New(s.Elements()...), nil
	case collection.Collection:
		return fromCollection(s), nil
	case []any:
		return New(s...), nil
	case iter.Seq[any]:
		return FromSeq(s), nil
	case iter.Seq2[any, error]:
		return derive(func(context.Context) iter.Seq2[any, error] { return s }), nil
	case nil:
		return nil, errs.Semantic("Can't create collection from null")
	}

	rv := reflect.ValueOf(src)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return New(items...), nil
	case reflect.Chan:
		if rv.Type().ChanDir()&reflect.RecvDir == 0 {
			break
		}
		return fromChan(rv), nil
	case reflect.Func:
		if c, ok := fromReflectSeq(rv); ok {
			return c, nil
		}
	}
	return nil, errs.Semantic("Can't create collection from non-iterable: %T", src)
}

func fromCollection(c collection.Collection) *Collection {
	return derive(func(ctx context.Context) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			cur, err := c.Cursor(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			defer cur.Close()
			for cur.Next(ctx) {
				if !yield(cur.Value(), nil) {
					return
				}
			}
			if err := cur.Err(); err != nil {
				yield(nil, err)
			}
		}
	})
}

func fromChan(ch reflect.Value) *Collection {
	return derive(func(ctx context.Context) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			cases := []reflect.SelectCase{
				{Dir: reflect.SelectRecv, Chan: ch},
				{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
			}
			for {
				chosen, v, ok := reflect.Select(cases)
				if chosen == 1 {
					yield(nil, ctx.Err())
					return
				}
				if !ok {
					return
				}
				if !yield(value.Normalize(v.Interface()), nil) {
					return
				}
			}
		}
	})
}

// fromReflectSeq adapts iter.Seq[T] and iter.Seq2[T, error] for any T.
func fromReflectSeq(fn reflect.Value) (*Collection, bool) {
	t := fn.Type()
	if t.NumIn() != 1 || t.NumOut() != 0 {
		return nil, false
	}
	yt := t.In(0)
	if yt.Kind() != reflect.Func || yt.NumOut() != 1 || yt.Out(0).Kind() != reflect.Bool {
		return nil, false
	}
	errType := reflect.TypeFor[error]()
	switch {
	case yt.NumIn() == 1:
	case yt.NumIn() == 2 && yt.In(1) == errType:
	default:
		return nil, false
	}
	return derive(func(context.Context) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			y := reflect.MakeFunc(yt, func(args []reflect.Value) []reflect.Value {
				var err error
				if len(args) == 2 && !args[1].IsNil() {
					err = args[1].Interface().(error)
				}
				var v any
				if err == nil {
					v = value.Normalize(args[0].Interface())
				}
				return []reflect.Value{reflect.ValueOf(yield(v, err))}
			})
			fn.Call([]reflect.Value{y})
		}
	}), true
}

// Cursor starts an enumeration.
func (c *Collection) Cursor(ctx context.Context) (collection.Cursor, error) {
	next, stop := iter.Pull2(c.seq(ctx))
	return &cursor{next: next, stop: stop}, nil
}

// ToSlice enumerates the whole collection.
func (c *Collection) ToSlice(ctx context.Context) ([]any, error) {
	var out []any
	err := c.each(ctx, func(v any) (bool, error) {
		out = append(out, v)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

// Rows returns the rows as a Go sequence. An enumeration error is yielded
// with a nil row and ends the sequence.
func (c *Collection) Rows(ctx context.Context) iter.Seq2[any, error] {
	return c.seq(ctx)
}

// each runs fn over every row until fn returns false or an error occurs.
// Cancellation is checked on every pull.
func (c *Collection) each(ctx context.Context, fn func(v any) (bool, error)) error {
	for v, err := range c.seq(ctx) {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		more, err := fn(v)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

type cursor struct {
	next func() (any, error, bool)
	stop func()
	cur  any
	err  error
	done bool
}

func (c *cursor) Next(ctx context.Context) bool {
	if c.done {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		c.Close()
		return false
	}
	v, err, ok := c.next()
	switch {
	case !ok:
		c.Close()
		return false
	case err != nil:
		c.err = err
		c.Close()
		return false
	}
	c.cur = v
	return true
}

func (c *cursor) Value() any {
	return c.cur
}

func (c *cursor) Err() error {
	return c.err
}

func (c *cursor) Close() error {
	if !c.done {
		c.done = true
		c.cur = nil
		c.stop()
	}
	return nil
}
