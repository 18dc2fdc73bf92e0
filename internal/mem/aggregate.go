package mem

import (
	"context"
	"math"

	"github.com/roach88/linx/internal/errs"
	"github.com/roach88/linx/internal/expr"
	"github.com/roach88/linx/internal/value"
)

var (
	errEmpty    = errs.Semantic("Empty collection")
	errMultiple = errs.Semantic("Collection contains multiple elements")
)

func (c *Collection) Count(ctx context.Context, by *expr.Expression) (int, error) {
	if by == nil && c.items != nil {
		return len(c.items), nil
	}
	src := c
	if by != nil {
		d, err := c.DistinctBy(by)
		if err != nil {
			return 0, err
		}
		src = d.(*Collection)
	}
	n := 0
	err := src.each(ctx, func(any) (bool, error) {
		n++
		return true, nil
	})
	return n, err
}

// numbers runs fn over the numeric value of every row.
func (c *Collection) numbers(ctx context.Context, sel *expr.Expression, fn func(n any) error) error {
	p, err := compile(sel)
	if err != nil {
		return err
	}
	return c.each(ctx, func(row any) (bool, error) {
		n, err := p.value(row)
		if err != nil {
			return false, err
		}
		if !value.IsNumeric(n) {
			return false, errs.Semantic("Can't sum non-numeric values")
		}
		return true, fn(n)
	})
}

func (c *Collection) Sum(ctx context.Context, sel *expr.Expression) (any, error) {
	var sum any = int64(0)
	err := c.numbers(ctx, sel, func(n any) error {
		var err error
		sum, err = value.Binary("+", sum, n)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sum, nil
}

func (c *Collection) Average(ctx context.Context, sel *expr.Expression) (float64, error) {
	var sum float64
	count := 0
	err := c.numbers(ctx, sel, func(n any) error {
		f, _ := value.ToFloat(n)
		sum += f
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return math.NaN(), nil
	}
	return sum / float64(count), nil
}

func (c *Collection) Min(ctx context.Context, key *expr.Expression) (any, error) {
	return c.extreme(ctx, key, -1)
}

func (c *Collection) Max(ctx context.Context, key *expr.Expression) (any, error) {
	return c.extreme(ctx, key, 1)
}

// extreme returns the first element whose key compares as sign against
// every other key.
func (c *Collection) extreme(ctx context.Context, key *expr.Expression, sign int) (any, error) {
	p, err := compile(key)
	if err != nil {
		return nil, err
	}
	var best, bestKey any
	found := false
	err = c.each(ctx, func(row any) (bool, error) {
		k, err := p.value(row)
		if err != nil {
			return false, err
		}
		switch value.KindOf(k) {
		case value.KindNumber, value.KindString, value.KindBool:
		default:
			return false, errs.Semantic("Can't compare non-primitive values")
		}
		if !found || value.Compare(k, bestKey)*sign > 0 {
			best, bestKey, found = row, k, true
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errEmpty
	}
	return best, nil
}

func (c *Collection) Aggregate(ctx context.Context, seed any, reducer *expr.Expression) (any, error) {
	if reducer == nil {
		return nil, errs.Semantic("Aggregate requires a reducer")
	}
	ev, err := reducer.Evaluator()
	if err != nil {
		return nil, err
	}
	acc := value.Normalize(seed)
	err = c.each(ctx, func(row any) (bool, error) {
		var err error
		acc, err = ev.Call(acc, row)
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (c *Collection) All(ctx context.Context, pred *expr.Expression) (bool, error) {
	p, err := compile(pred)
	if err != nil {
		return false, err
	}
	all := true
	err = c.each(ctx, func(row any) (bool, error) {
		ok, err := p.test(row)
		if !ok {
			all = false
		}
		return ok, err
	})
	return all && err == nil, err
}

func (c *Collection) Any(ctx context.Context, pred *expr.Expression) (bool, error) {
	p, err := compile(pred)
	if err != nil {
		return false, err
	}
	found := false
	err = c.each(ctx, func(row any) (bool, error) {
		ok, err := p.test(row)
		found = ok
		return !ok, err
	})
	return found && err == nil, err
}

func (c *Collection) Contains(ctx context.Context, item any) (bool, error) {
	item = value.Normalize(item)
	found := false
	err := c.each(ctx, func(row any) (bool, error) {
		found = value.Equal(row, item)
		return !found, nil
	})
	return found, err
}

func (c *Collection) First(ctx context.Context, pred *expr.Expression) (any, error) {
	v, ok, err := c.first(ctx, pred)
	if err == nil && !ok {
		err = errEmpty
	}
	return v, err
}

func (c *Collection) FirstOrDefault(ctx context.Context, pred *expr.Expression, def any) (any, error) {
	v, ok, err := c.first(ctx, pred)
	if err == nil && !ok {
		return value.Normalize(def), nil
	}
	return v, err
}

func (c *Collection) first(ctx context.Context, pred *expr.Expression) (any, bool, error) {
	p, err := compile(pred)
	if err != nil {
		return nil, false, err
	}
	var out any
	found := false
	err = c.each(ctx, func(row any) (bool, error) {
		ok, err := p.test(row)
		if ok {
			out, found = row, true
		}
		return !ok, err
	})
	return out, found && err == nil, err
}

func (c *Collection) Last(ctx context.Context, pred *expr.Expression) (any, error) {
	v, ok, err := c.last(ctx, pred)
	if err == nil && !ok {
		err = errEmpty
	}
	return v, err
}

func (c *Collection) LastOrDefault(ctx context.Context, pred *expr.Expression, def any) (any, error) {
	v, ok, err := c.last(ctx, pred)
	if err == nil && !ok {
		return value.Normalize(def), nil
	}
	return v, err
}

func (c *Collection) last(ctx context.Context, pred *expr.Expression) (any, bool, error) {
	p, err := compile(pred)
	if err != nil {
		return nil, false, err
	}
	var out any
	found := false
	err = c.each(ctx, func(row any) (bool, error) {
		ok, err := p.test(row)
		if ok {
			out, found = row, true
		}
		return true, err
	})
	return out, found && err == nil, err
}

func (c *Collection) Single(ctx context.Context, pred *expr.Expression) (any, error) {
	v, ok, err := c.single(ctx, pred)
	if err == nil && !ok {
		err = errEmpty
	}
	return v, err
}

func (c *Collection) SingleOrDefault(ctx context.Context, pred *expr.Expression, def any) (any, error) {
	v, ok, err := c.single(ctx, pred)
	if err == nil && !ok {
		return value.Normalize(def), nil
	}
	return v, err
}

func (c *Collection) single(ctx context.Context, pred *expr.Expression) (any, bool, error) {
	p, err := compile(pred)
	if err != nil {
		return nil, false, err
	}
	var out any
	found := false
	err = c.each(ctx, func(row any) (bool, error) {
		ok, err := p.test(row)
		if err != nil || !ok {
			return err == nil, err
		}
		if found {
			return false, errMultiple
		}
		out, found = row, true
		return true, nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, found, nil
}
