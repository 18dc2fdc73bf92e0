package collection

import (
	"context"

	"github.com/roach88/linx/internal/expr"
)

// Ordered is a collection with a pending sort. It behaves as its source
// ordered by the accumulated specs; ThenBy and ThenByDescending add keys
// without sorting twice. Order-insensitive aggregates bypass the sort.
type Ordered struct {
	Collection

	source Collection
	specs  []OrderSpec
}

// OrderBy starts an ordered collection sorted ascending by key.
func OrderBy(c Collection, key *expr.Expression) (*Ordered, error) {
	return newOrdered(c, []OrderSpec{{By: key}})
}

// OrderByDescending starts an ordered collection sorted descending by key.
func OrderByDescending(c Collection, key *expr.Expression) (*Ordered, error) {
	return newOrdered(c, []OrderSpec{{By: key, Descending: true}})
}

func newOrdered(source Collection, specs []OrderSpec) (*Ordered, error) {
	sorted, err := source.Order(specs...)
	if err != nil {
		return nil, err
	}
	return &Ordered{Collection: sorted, source: source, specs: specs}, nil
}

// ThenBy adds an ascending tie-break key.
func (o *Ordered) ThenBy(key *expr.Expression) (*Ordered, error) {
	return newOrdered(o.source, o.with(OrderSpec{By: key}))
}

// ThenByDescending adds a descending tie-break key.
func (o *Ordered) ThenByDescending(key *expr.Expression) (*Ordered, error) {
	return newOrdered(o.source, o.with(OrderSpec{By: key, Descending: true}))
}

// Specs returns the accumulated sort keys.
func (o *Ordered) Specs() []OrderSpec {
	return append([]OrderSpec(nil), o.specs...)
}

func (o *Ordered) with(spec OrderSpec) []OrderSpec {
	specs := make([]OrderSpec, 0, len(o.specs)+1)
	return append(append(specs, o.specs...), spec)
}

func (o *Ordered) Count(ctx context.Context, by *expr.Expression) (int, error) {
	return o.source.Count(ctx, by)
}

func (o *Ordered) Sum(ctx context.Context, sel *expr.Expression) (any, error) {
	return o.source.Sum(ctx, sel)
}

func (o *Ordered) Average(ctx context.Context, sel *expr.Expression) (float64, error) {
	return o.source.Average(ctx, sel)
}

func (o *Ordered) All(ctx context.Context, pred *expr.Expression) (bool, error) {
	return o.source.All(ctx, pred)
}

func (o *Ordered) Any(ctx context.Context, pred *expr.Expression) (bool, error) {
	return o.source.Any(ctx, pred)
}

func (o *Ordered) Contains(ctx context.Context, item any) (bool, error) {
	return o.source.Contains(ctx, item)
}

func (o *Ordered) Single(ctx context.Context, pred *expr.Expression) (any, error) {
	return o.source.Single(ctx, pred)
}

func (o *Ordered) SingleOrDefault(ctx context.Context, pred *expr.Expression, def any) (any, error) {
	return o.source.SingleOrDefault(ctx, pred, def)
}
