// Package collection defines the contract every execution backend
// implements: a lazy sequence of rows with LINQ-style transformations and
// aggregates.
//
// Transforming methods never touch data; they return a new collection that
// owns a reference to its source. Data flows only through a Cursor or one of
// the context-taking terminal methods.
package collection

import (
	"context"

	"github.com/roach88/linx/internal/expr"
	"github.com/roach88/linx/internal/value"
)

// Cursor pulls rows from a collection one at a time.
//
// Next reports whether a row is available; when it returns false, Err
// explains why (nil at end of sequence). Close may be called at any point to
// stop the producer early and is safe to call more than once.
type Cursor interface {
	Next(ctx context.Context) bool
	Value() any
	Err() error
	Close() error
}

// OrderSpec is one sort key of an order operation.
type OrderSpec struct {
	By         *expr.Expression
	Descending bool
}

// Group is a keyed sub-collection produced by group-by and group-join.
type Group interface {
	value.Grouping
	Collection() Collection
}

// Collector turns a query source (a slice, a sequence, a table reference,
// an existing collection) into a Collection.
type Collector func(source any) (Collection, error)

// Collection is a lazy sequence bound to a backend.
//
// Expressions passed as predicates, selectors and keys are evaluated per
// row. A nil expression means "none" for predicates and "identity" for
// selectors and keys.
type Collection interface {
	// Cursor starts an enumeration.
	Cursor(ctx context.Context) (Cursor, error)
	// ToSlice enumerates the whole collection.
	ToSlice(ctx context.Context) ([]any, error)

	Where(pred *expr.Expression) (Collection, error)
	Select(proj *expr.Expression) (Collection, error)
	// Let extends every row record with name bound to val.
	Let(val *expr.Expression, name string) (Collection, error)
	// Wrap turns every row v into the record {name: v}.
	Wrap(name string) (Collection, error)
	// Unwrap turns every single-entry record back into its value.
	Unwrap() (Collection, error)
	// MultiplyBy crosses every row with the sequence source evaluates to,
	// binding each element to name.
	MultiplyBy(source *expr.Expression, name string) (Collection, error)
	// Join pairs rows with the inner elements of equal key. The inner key
	// sees the inner element as innerVar; each match is emitted as the outer
	// record extended with innerVar.
	Join(inner Collection, outerKey, innerKey *expr.Expression, innerVar string) (Collection, error)
	// GroupJoin is Join emitting one row per outer row, with into bound to
	// the Group of matching inner elements (empty when unmatched).
	GroupJoin(inner Collection, outerKey, innerKey *expr.Expression, innerVar, into string) (Collection, error)
	// GroupBy partitions rows by key; element selects what each group holds
	// (by default the sole value of the row record).
	GroupBy(key, element *expr.Expression) (Collection, error)
	Order(specs ...OrderSpec) (Collection, error)

	Take(n int) (Collection, error)
	TakeWhile(pred *expr.Expression) (Collection, error)
	TakeLast(n int) (Collection, error)
	TakeLastWhile(pred *expr.Expression) (Collection, error)
	Skip(n int) (Collection, error)
	SkipWhile(pred *expr.Expression) (Collection, error)

	DefaultIfEmpty(def any) (Collection, error)
	Distinct(comparer *expr.Expression) (Collection, error)
	DistinctBy(key *expr.Expression) (Collection, error)
	Append(items ...any) (Collection, error)
	Prepend(items ...any) (Collection, error)
	Concat(other Collection) (Collection, error)
	Union(other Collection) (Collection, error)
	Intersect(other Collection) (Collection, error)
	Except(other Collection) (Collection, error)

	// Count returns the number of rows, or the number of distinct keys
	// when by is set.
	Count(ctx context.Context, by *expr.Expression) (int, error)
	Sum(ctx context.Context, sel *expr.Expression) (any, error)
	Average(ctx context.Context, sel *expr.Expression) (float64, error)
	// Min and Max return the element with the smallest/largest key.
	Min(ctx context.Context, key *expr.Expression) (any, error)
	Max(ctx context.Context, key *expr.Expression) (any, error)
	// Aggregate folds the rows with reducer(acc, row), starting from seed.
	Aggregate(ctx context.Context, seed any, reducer *expr.Expression) (any, error)
	All(ctx context.Context, pred *expr.Expression) (bool, error)
	Any(ctx context.Context, pred *expr.Expression) (bool, error)
	Contains(ctx context.Context, item any) (bool, error)
	First(ctx context.Context, pred *expr.Expression) (any, error)
	FirstOrDefault(ctx context.Context, pred *expr.Expression, def any) (any, error)
	Last(ctx context.Context, pred *expr.Expression) (any, error)
	LastOrDefault(ctx context.Context, pred *expr.Expression, def any) (any, error)
	Single(ctx context.Context, pred *expr.Expression) (any, error)
	SingleOrDefault(ctx context.Context, pred *expr.Expression, def any) (any, error)
}
