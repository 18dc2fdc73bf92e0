package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linx/internal/errs"
	"github.com/roach88/linx/internal/expr"
)

var numbers = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

// q splits alternating fragments and values. A trailing value gets an empty
// closing fragment.
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

func mustParse(t *testing.T, parts ...any) *Parsed {
	t.Helper()
	f, v := q(parts...)
	p, err := Parse(f, v, expr.NewCache())
	require.NoError(t, err)
	return p
}

func parseErr(t *testing.T, parts ...any) error {
	t.Helper()
	f, v := q(parts...)
	_, err := Parse(f, v, expr.NewCache())
	require.Error(t, err)
	return err
}

func TestParse_Where(t *testing.T) {
	p := mustParse(t, "n in ", numbers, " where n % 2 == 0")

	assert.Equal(t, "n", p.Variable)
	assert.Equal(t, numbers, p.Source)
	require.Len(t, p.Transformations, 1)
	w, ok := p.Transformations[0].(Where)
	require.True(t, ok)
	assert.Equal(t, "n % 2 == 0", w.Predicate.Body)
	assert.Equal(t, []string{"n"}, w.Predicate.Params)
	assert.Equal(t, []string{"n"}, p.Variables)
}

func TestParse_Group(t *testing.T) {
	p := mustParse(t, "n in ", numbers, " group n by n % 2")

	require.Len(t, p.Transformations, 1)
	g := p.Transformations[0].(Group)
	assert.Equal(t, "n", g.Value.Body)
	assert.Equal(t, "n % 2", g.Key.Body)
	assert.Equal(t, "", g.Into)
	assert.Equal(t, []string{""}, p.Variables)
}

func TestParse_BareGroupInto(t *testing.T) {
	p := mustParse(t, "n in ", numbers, " group by n % 3 into g where g.key > 0 select g.length")

	require.Len(t, p.Transformations, 3)
	g := p.Transformations[0].(Group)
	assert.Nil(t, g.Value)
	assert.Equal(t, "g", g.Into)
	w := p.Transformations[1].(Where)
	assert.Equal(t, []string{"g"}, w.Predicate.Params)
}

func TestParse_Join(t *testing.T) {
	p := mustParse(t, "n in ", numbers, " join m in ", numbers, " on n equals m select n + m")

	require.Len(t, p.Transformations, 2)
	j := p.Transformations[0].(Join)
	assert.Equal(t, "m", j.Variable)
	assert.Equal(t, numbers, j.Source)
	assert.Equal(t, []string{"n"}, j.OuterKey.Params)
	assert.Equal(t, []string{"m"}, j.InnerKey.Params)
	assert.Empty(t, j.Into)

	s := p.Transformations[1].(Select)
	assert.Equal(t, []string{"n", "m"}, s.Value.Params)
}

func TestParse_JoinInto(t *testing.T) {
	p := mustParse(t, "n in ", numbers, " join m in ", numbers, " on n equals m into ms select ms.length")

	j := p.Transformations[0].(Join)
	assert.Equal(t, "ms", j.Into)
	assert.Equal(t, []string{"n", "ms"}, j.NewVariables([]string{"n"}))
}

func TestParse_OrderBy(t *testing.T) {
	p := mustParse(t, "p in ", []any{}, " order by p.age descending, p.name select p")

	o := p.Transformations[0].(OrderBy)
	require.Len(t, o.Specs, 2)
	assert.Equal(t, "p.age", o.Specs[0].By.Body)
	assert.True(t, o.Specs[0].Descending)
	assert.Equal(t, "p.name", o.Specs[1].By.Body)
	assert.False(t, o.Specs[1].Descending)
	assert.Equal(t, "order by p.age descending, p.name", o.String())
}

func TestParse_OrderByCapturedValue(t *testing.T) {
	p := mustParse(t, "n in ", numbers, " order by n % ", 3, " descending")

	o := p.Transformations[0].(OrderBy)
	require.Len(t, o.Specs, 1)
	assert.Equal(t, []any{3}, o.Specs[0].By.Args)
	assert.True(t, o.Specs[0].Descending)
}

func TestParse_LetAndFrom(t *testing.T) {
	p := mustParse(t, "a in ", numbers, " from b in ", numbers, " let c = a * b where c > 10 select { a, b, c }")

	require.Len(t, p.Transformations, 4)
	f := p.Transformations[0].(From)
	assert.Equal(t, "b", f.Variable)
	assert.True(t, f.Source.HasConstant)

	l := p.Transformations[1].(Let)
	assert.Equal(t, "c", l.Variable)
	assert.Equal(t, []string{"a", "b"}, l.Value.Params)

	w := p.Transformations[2].(Where)
	assert.Equal(t, []string{"c"}, w.Predicate.Params)
}

func TestParse_DependentFrom(t *testing.T) {
	p := mustParse(t, "a in ", numbers, " from b in [a, a + 1] select b")

	f := p.Transformations[0].(From)
	assert.Equal(t, []string{"a"}, f.Source.Params)
	assert.NotNil(t, f.Source.Tree())
}

func TestParse_CapturedValues(t *testing.T) {
	limit := 3
	p := mustParse(t, "n in ", numbers, " where n > ", limit, "")

	w := p.Transformations[0].(Where)
	assert.Equal(t, []any{3}, w.Predicate.Args)
	assert.Equal(t, "n >  $argv[0]", w.Predicate.Body)
}

func TestParse_DirectCallable(t *testing.T) {
	p := mustParse(t, "n in ", numbers, " where ", func(n int64) bool { return n > 2 })

	w := p.Transformations[0].(Where)
	assert.True(t, w.Predicate.IsNative())
}

func TestParse_InlineSource(t *testing.T) {
	p := mustParse(t, "n in [1, 2, 3] select n")

	iv, ok := p.Source.(*expr.Inline)
	require.True(t, ok)
	assert.Equal(t, []string{"[1, 2, 3]"}, iv.Strings)
}

func TestParse_MultilineQuery(t *testing.T) {
	p := mustParse(t, "n in ", numbers, "\n  where n > 2\r\n  select n")
	assert.Len(t, p.Transformations, 2)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name      string
		parts     []any
		isErr     func(error) bool
		contains  string
		indicator string
	}{
		{
			name:      "let without equals",
			parts:     []any{"n in ", numbers, " let x != n"},
			isErr:     errs.IsParseError,
			contains:  "Expecting =",
			indicator: " let x <^>!= n",
		},
		{
			name:     "unknown identifier",
			parts:    []any{"n in ", numbers, " select blah"},
			isErr:    errs.IsSemanticError,
			contains: "Unknown argument(s): blah",
		},
		{
			name:     "select not last",
			parts:    []any{"n in ", numbers, " select n where n > 1"},
			isErr:    errs.IsParseError,
			contains: "Expecting `select` to finish the query",
		},
		{
			name:      "unknown clause",
			parts:     []any{"n in ", numbers, " frobnicate n"},
			isErr:     errs.IsParseError,
			contains:  "Expecting linq set transformation",
			indicator: " <^>frobnicate n",
		},
		{
			name:     "clause names are lowercase",
			parts:    []any{"n in ", numbers, " where n > 1 WHERE n < 3"},
			isErr:    errs.IsParseError,
			contains: "Expecting linq set transformation",
		},
		{
			name:     "bare group on several variables",
			parts:    []any{"n in ", numbers, " from m in ", numbers, " group by n"},
			isErr:    errs.IsSemanticError,
			contains: "single variable",
		},
		{
			name:     "join source must be a value",
			parts:    []any{"n in ", numbers, " join m in numbers on n equals m"},
			isErr:    errs.IsParseError,
			contains: "Expecting external value",
		},
		{
			name:      "missing value at end",
			parts:     []any{"n in ", numbers, " where"},
			isErr:     errs.IsParseError,
			contains:  "Expecting value",
			indicator: errs.EndOfQuery,
		},
		{
			name:     "missing in",
			parts:    []any{"n of ", numbers},
			isErr:    errs.IsParseError,
			contains: "Expecting in",
		},
		{
			name:     "variable redefined",
			parts:    []any{"n in ", numbers, " from n in ", numbers},
			isErr:    errs.IsSemanticError,
			contains: "already defined",
		},
		{
			name:     "join inner key sees only the joined variable",
			parts:    []any{"n in ", numbers, " join m in ", numbers, " on n equals n"},
			isErr:    errs.IsSemanticError,
			contains: "Unknown argument(s): n",
		},
		{
			name:     "malformed expression",
			parts:    []any{"n in ", numbers, " where n +"},
			isErr:    errs.IsParseError,
			contains: "Invalid expression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseErr(t, tt.parts...)
			assert.True(t, tt.isErr(err), "unexpected error kind: %v", err)
			assert.Contains(t, err.Error(), tt.contains)
			if tt.indicator != "" {
				var e *errs.Error
				require.ErrorAs(t, err, &e)
				assert.Equal(t, tt.indicator, e.Indicator)
			}
		})
	}
}

func TestParse_FragmentCountMismatch(t *testing.T) {
	_, err := Parse([]string{"n in "}, []any{numbers}, nil)
	assert.True(t, errs.IsParseError(err))
}

func TestNewVariables(t *testing.T) {
	p := mustParse(t, "a in ", numbers, " from b in ", numbers, " join c in ", numbers, " on a equals c let d = a where d > 0")

	vars := []string{p.Variable}
	var trail [][]string
	for _, tr := range p.Transformations {
		vars = tr.NewVariables(vars)
		trail = append(trail, vars)
	}
	assert.Equal(t, [][]string{
		{"a", "b"},
		{"a", "b", "c"},
		{"a", "b", "c", "d"},
		{"a", "b", "c", "d"},
	}, trail)
	assert.Equal(t, vars, p.Variables)
}
