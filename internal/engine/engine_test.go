package engine

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linx/internal/collection"
	"github.com/roach88/linx/internal/errs"
	"github.com/roach88/linx/internal/expr"
	"github.com/roach88/linx/internal/mem"
	"github.com/roach88/linx/internal/querysql"
	"github.com/roach88/linx/internal/store"
	"github.com/roach88/linx/internal/value"
)

var numbers = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

// q splits alternating fragments and values.
func q(parts ...any) ([]string, []any) {
	var fragments []string
	var values []any
	for i, p := range parts {
		if i%2 == 0 {
			fragments = append(fragments, p.(string))
		} else {
			values = append(values, p)
		}
	}
	if len(parts)%2 == 0 {
		fragments = append(fragments, "")
	}
	return fragments, values
}

func run(t *testing.T, e *Engine, parts ...any) collection.Collection {
	t.Helper()
	fragments, values := q(parts...)
	c, err := e.Query(context.Background(), fragments, values)
	require.NoError(t, err)
	return c
}

func slice(t *testing.T, c collection.Collection) []any {
	t.Helper()
	got, err := c.ToSlice(context.Background())
	require.NoError(t, err)
	return got
}

func ints(ns ...int64) []any {
	out := make([]any, len(ns))
	for i, n := range ns {
		out[i] = n
	}
	return out
}

func TestQuery_Where(t *testing.T) {
	e := New()
	c := run(t, e, "n in ", numbers, " where n % 2 == 0")
	assert.Equal(t, ints(2, 4, 6, 8, 10), slice(t, c))
}

func TestQuery_Group(t *testing.T) {
	e := New()
	got := slice(t, run(t, e, "n in ", numbers, " group n by n % 2"))
	require.Len(t, got, 2)

	evens, ok := got[0].(*mem.Group)
	require.True(t, ok, "got %T", got[0])
	assert.Equal(t, int64(0), evens.GroupKey())
	assert.Equal(t, ints(2, 4, 6, 8, 10), evens.Elements())

	odds := got[1].(*mem.Group)
	assert.Equal(t, int64(1), odds.GroupKey())
	assert.Equal(t, ints(1, 3, 5, 7, 9), odds.Elements())
}

func TestQuery_SelfJoin(t *testing.T) {
	e := New()
	c := run(t, e, "n in ", numbers, " join m in ", numbers, " on n equals m select n + m")
	assert.Equal(t, ints(2, 4, 6, 8, 10, 12, 14, 16, 18, 20), slice(t, c))
}

func TestQuery_OrderDescending(t *testing.T) {
	e := New()
	c := run(t, e, "n in ", []int{1, 10, 2, 9, 3, 8, 4, 7, 5, 6}, " order by n descending")
	assert.Equal(t, ints(10, 9, 8, 7, 6, 5, 4, 3, 2, 1), slice(t, c))
}

func TestQuery_Aggregates(t *testing.T) {
	e := New()
	ctx := context.Background()
	c := run(t, e, "n in ", numbers, " where n <= 5")

	n, err := c.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	sum, err := c.Sum(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(15), sum)

	lo, err := c.Min(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), lo)

	hi, err := c.Max(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), hi)

	avg, err := c.Average(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, avg)
}

func TestQuery_Errors(t *testing.T) {
	e := New()
	ctx := context.Background()

	fragments, values := q("n in ", numbers, " let x != n")
	_, err := e.Query(ctx, fragments, values)
	assert.True(t, errs.IsParseError(err), "got %v", err)

	fragments, values = q("n in ", numbers, " select blah")
	_, err = e.Query(ctx, fragments, values)
	assert.True(t, errs.IsSemanticError(err), "got %v", err)
}

func TestQuery_InlineSource(t *testing.T) {
	e := New()
	c := run(t, e, "n in [3, 1, 2] order by n")
	assert.Equal(t, ints(1, 2, 3), slice(t, c))
}

func TestQuery_DependentFrom(t *testing.T) {
	e := New()
	people := []any{
		map[string]any{"name": "ann", "kids": []any{"x", "y"}},
		map[string]any{"name": "bob", "kids": []any{"z"}},
	}
	c := run(t, e, "p in ", people, " from k in p.kids select p.name + ':' + k")
	assert.Equal(t, []any{"ann:x", "ann:y", "bob:z"}, slice(t, c))
}

func TestQuery_SeveralVariablesStayRecords(t *testing.T) {
	e := New()
	c := run(t, e, "n in ", []int{1, 2}, " let sq = n * n")
	assert.Equal(t, []any{
		value.NewRecord(value.P("n", int64(1)), value.P("sq", int64(1))),
		value.NewRecord(value.P("n", int64(2)), value.P("sq", int64(4))),
	}, slice(t, c))
}

func TestQuery_ReusesExpressions(t *testing.T) {
	e := New()
	run(t, e, "n in ", numbers, " where n > 3 select n * 2")
	before := e.Cache().Len()
	run(t, e, "n in ", numbers, " where n > 3 select n * 2")
	assert.Equal(t, before, e.Cache().Len())
}

func TestQuery_VaryingCapturedValuesStayBounded(t *testing.T) {
	e := New(WithCache(expr.NewCache(expr.WithCapacity(16))))
	for k := range 1000 {
		c := run(t, e, "n in ", numbers, " where n > ", k%10)
		if k%250 == 0 {
			assert.Len(t, slice(t, c), 10-k%10)
		}
	}
	assert.LessOrEqual(t, e.Cache().Len(), 16)

	c := run(t, e, "n in ", numbers, " where n > ", 7)
	assert.Equal(t, ints(8, 9, 10), slice(t, c))
}

func TestQuery_LogsRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := New(WithLogger(logger), WithRunIDs(NewFixedGenerator("run-1")))

	run(t, e, "n in ", numbers, " where n > 3")
	assert.Contains(t, buf.String(), "run_id=run-1")
	assert.Contains(t, buf.String(), "clause=")
}

func TestQuery_Lazy(t *testing.T) {
	e := New()
	calls := 0
	src := func(yield func(int) bool) {
		for _, n := range numbers {
			calls++
			if !yield(n) {
				return
			}
		}
	}
	c := run(t, e, "n in ", src, " where n > 2")
	assert.Equal(t, 0, calls)

	first, err := c.First(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), first)
	assert.Equal(t, 3, calls)
}

func sqlEngine(t *testing.T) *Engine {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, "sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	rows := make([]any, len(numbers))
	for i, n := range numbers {
		rows[i] = value.Single("n", n)
	}
	require.NoError(t, s.Seed(ctx, "numbers", rows))
	return New(WithBackend(s.Backend()))
}

func TestQuery_SQL_Where(t *testing.T) {
	e := sqlEngine(t)
	c := run(t, e, "x in ", querysql.Table("numbers"), " where x.n % 2 == 0 select x.n")

	_, isSQL := c.(*querysql.Collection)
	assert.True(t, isSQL)
	assert.Equal(t, ints(2, 4, 6, 8, 10), slice(t, c))
}

func TestQuery_SQL_Join(t *testing.T) {
	e := sqlEngine(t)
	c := run(t, e, "x in ", querysql.Table("numbers"), " join y in ", querysql.Table("numbers"), " on x.n equals y.n select x.n + y.n")
	assert.Equal(t, ints(2, 4, 6, 8, 10, 12, 14, 16, 18, 20), slice(t, c))
}

func TestQuery_SQL_Count(t *testing.T) {
	e := sqlEngine(t)
	c := run(t, e, "x in ", querysql.Table("numbers"), " where x.n <= 5")

	n, err := c.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestQuery_SQL_NotImplemented(t *testing.T) {
	e := sqlEngine(t)
	fragments, values := q("x in ", querysql.Table("numbers"), " order by x.n descending")

	c, err := e.Query(context.Background(), fragments, values)
	if err == nil {
		// Ordering is pending until the first pull.
		_, err = c.ToSlice(context.Background())
	}
	assert.True(t, errs.IsNotImplemented(err), "got %v", err)
}
