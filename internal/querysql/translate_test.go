package querysql

import (
	"context"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linx/internal/collection"
	"github.com/roach88/linx/internal/errs"
	"github.com/roach88/linx/internal/expr"
)

var cache = expr.NewCache()

func text(t *testing.T, src string, visible ...string) *expr.Expression {
	t.Helper()
	e, err := cache.Build(&expr.Inline{Strings: []string{src}}, visible)
	require.NoError(t, err)
	return e
}

var schema = map[string][]string{
	"people": {"id", "name", "age"},
	"pets":   {"owner", "name"},
	"prices": {"item", "price"},
}

func schemaColumns() ColumnSource {
	return ColumnsFunc(func(_ context.Context, table string) ([]string, error) {
		return schema[table], nil
	})
}

// people returns the people table wrapped under p.
func people(t *testing.T, b *Backend) collection.Collection {
	t.Helper()
	c, err := b.Table(context.Background(), "people")
	require.NoError(t, err)
	w, err := c.Wrap("p")
	require.NoError(t, err)
	return w
}

func peopleRow() Shape {
	return Wrapped("p", tableShape(SQLite, "people", schema["people"]))
}

func TestTranslateValue(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		sql    string
		params []any
	}{
		{"comparison", "p.age > 30", `"people"."age" > ?`, []any{int64(30)}},
		{"logical and", "p.age >= 18 && p.name != 'bob'", `"people"."age" >= ? AND "people"."name" <> ?`, []any{int64(18), "bob"}},
		{"grouping kept", "(p.age + 1) * 2 == 10", `("people"."age" + ?) * ? = ?`, []any{int64(1), int64(2), int64(10)}},
		{"right operand grouping", "p.age - (p.id - 1) > 0", `"people"."age" - ("people"."id" - ?) > ?`, []any{int64(1), int64(0)}},
		{"and binds tighter than or", "p.age > 10 || p.age < 5 && p.id == 1", `"people"."age" > ? OR "people"."age" < ? AND "people"."id" = ?`, []any{int64(10), int64(5), int64(1)}},
		{"not", "!(p.age < 18)", `NOT ("people"."age" < ?)`, []any{int64(18)}},
		{"null test", "p.name == null", `"people"."name" IS NULL`, nil},
		{"not null test", "null !== p.name", `"people"."name" IS NOT NULL`, nil},
		{"string index", "p['name'] === 'x'", `"people"."name" = ?`, []any{"x"}},
		{"conditional", "p.age > 5 ? 1 : 0", `CASE WHEN "people"."age" > ? THEN ? ELSE ? END`, []any{int64(5), int64(1), int64(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leaf, err := TranslateValue(text(t, tt.text, "p"), peopleRow())
			require.NoError(t, err)
			assert.Equal(t, tt.sql, leaf.SQL)
			assert.Equal(t, tt.params, leaf.Params)
		})
	}
}

func TestTranslateValue_CapturedValues(t *testing.T) {
	e, err := cache.Build(&expr.Inline{Strings: []string{"p.age > ", ""}, Args: []any{21}}, []string{"p"})
	require.NoError(t, err)

	leaf, err := TranslateValue(e, peopleRow())
	require.NoError(t, err)
	assert.Equal(t, `"people"."age" > ?`, leaf.SQL)
	assert.Equal(t, []any{int64(21)}, leaf.Params)
}

func TestTranslateValue_CapturedNull(t *testing.T) {
	tests := []struct {
		name string
		src  []string
		sql  string
	}{
		{"equal", []string{"p.name == ", ""}, `"people"."name" IS NULL`},
		{"not equal", []string{"p.name !== ", ""}, `"people"."name" IS NOT NULL`},
		{"null on the left", []string{"", " == p.name"}, `"people"."name" IS NULL`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var nick *string
			e, err := cache.Build(&expr.Inline{Strings: tt.src, Args: []any{nick}}, []string{"p"})
			require.NoError(t, err)

			leaf, err := TranslateValue(e, peopleRow())
			require.NoError(t, err)
			assert.Equal(t, tt.sql, leaf.SQL)
			assert.Empty(t, leaf.Params)
		})
	}
}

func TestTranslateValue_CapturedExpression(t *testing.T) {
	inner := text(t, "p.age + 1", "p")
	e, err := cache.Build(&expr.Inline{Strings: []string{"p.id * ", ""}, Args: []any{inner}}, []string{"p"})
	require.NoError(t, err)

	leaf, err := TranslateValue(e, peopleRow())
	require.NoError(t, err)
	assert.Equal(t, `"people"."id" * ("people"."age" + ?)`, leaf.SQL)
	assert.Equal(t, []any{int64(1)}, leaf.Params)
}

func TestTranslate_Constant(t *testing.T) {
	e, err := cache.Build(42, []string{"p"})
	require.NoError(t, err)

	leaf, err := TranslateValue(e, peopleRow())
	require.NoError(t, err)
	assert.Equal(t, "?", leaf.SQL)
	assert.Equal(t, []any{int64(42)}, leaf.Params)
}

func TestTranslate_Lambda(t *testing.T) {
	e, err := cache.Lambda("n => n.age")
	require.NoError(t, err)

	s, err := Translate(e, tableShape(SQLite, "people", schema["people"]), true)
	require.NoError(t, err)
	assert.Equal(t, `"people"."age"`, s.String())
}

func TestTranslate_ComplexMode(t *testing.T) {
	e := text(t, `{ name: p.name, next: p.age + 1, tag: "it's" }`, "p")

	s, err := Translate(e, peopleRow(), true)
	require.NoError(t, err)

	f, ok := s.(*Fields)
	require.True(t, ok)
	assert.Equal(t, []string{"name", "next", "tag"}, f.Names())
	assert.Equal(t, `{name: "people"."name", next: "people"."age" + 1, tag: 'it''s'}`, f.String())
}

func TestTranslate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		isErr    func(error) bool
		contains string
	}{
		{"unknown field", "p.salary > 1", errs.IsTranslationError, "Unknown field salary"},
		{"record as value", "p == 1", errs.IsTranslationError, "Cannot retrieve field from"},
		{"object in value mode", "{ a: p.id }", errs.IsSemanticError, "No object expressions"},
		{"array literal", "[p.id]", errs.IsTranslationError, "array literal"},
		{"computed property", "p[p.name]", errs.IsTranslationError, "Computed properties not allowed"},
		{"member of column", "p.name.first == 'a'", errs.IsTranslationError, "Field has no components"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TranslateValue(text(t, tt.text, "p"), peopleRow())
			require.Error(t, err)
			assert.True(t, tt.isErr(err), "unexpected error kind: %v", err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Contains(t, err.Error(), "while translating `"+tt.text+"`")
		})
	}
}

func TestTranslate_NativeFunction(t *testing.T) {
	e, err := cache.Build(func(p any) bool { return true }, []string{"p"})
	require.NoError(t, err)

	_, err = TranslateValue(e, peopleRow())
	assert.True(t, errs.IsTranslationError(err))
	assert.Contains(t, err.Error(), "cannot be translated to SQL")
}

func TestDialect_Rebind(t *testing.T) {
	q := "SELECT 'a?' AS x FROM t WHERE a = ? AND b = 'it''s?' AND c = ?"

	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, q, MySQL.Rebind(q))
	assert.Equal(t, "SELECT 'a?' AS x FROM t WHERE a = $1 AND b = 'it''s?' AND c = $2", Postgres.Rebind(q))
}

func TestParseDialect(t *testing.T) {
	tests := map[string]Dialect{
		"":           SQLite,
		"sqlite3":    SQLite,
		"pgx":        Postgres,
		"PostgreSQL": Postgres,
		"mariadb":    MySQL,
	}
	for name, want := range tests {
		got, err := ParseDialect(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseDialect("oracle")
	assert.True(t, errs.IsConfigurationError(err))
}

func TestStatements_Golden(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		build   func(t *testing.T, b *Backend) collection.Collection
	}{
		{
			name: "where_select",
			build: func(t *testing.T, b *Backend) collection.Collection {
				c, err := people(t, b).Where(text(t, "p.age > 30", "p"))
				require.NoError(t, err)
				c, err = c.Select(text(t, "p.name", "p"))
				require.NoError(t, err)
				return c
			},
		},
		{
			name: "select_object",
			build: func(t *testing.T, b *Backend) collection.Collection {
				c, err := people(t, b).Select(text(t, `{ name: p.name, next: p.age + 1, tag: "it's" }`, "p"))
				require.NoError(t, err)
				return c
			},
		},
		{
			name: "two_filters",
			build: func(t *testing.T, b *Backend) collection.Collection {
				c, err := people(t, b).Where(text(t, "p.age > 30", "p"))
				require.NoError(t, err)
				c, err = c.Where(text(t, "p.name != 'bob' || p.id == 1", "p"))
				require.NoError(t, err)
				return c
			},
		},
		{
			name:    "postgres_placeholders",
			dialect: Postgres,
			build: func(t *testing.T, b *Backend) collection.Collection {
				c, err := people(t, b).Where(text(t, "p.age > 30 && p.name != 'bob'", "p"))
				require.NoError(t, err)
				c, err = c.Unwrap()
				require.NoError(t, err)
				return c
			},
		},
		{
			name: "let_and_select",
			build: func(t *testing.T, b *Backend) collection.Collection {
				c, err := people(t, b).Let(text(t, "p.age * 12", "p"), "months")
				require.NoError(t, err)
				c, err = c.Where(text(t, "months > 400", "p", "months"))
				require.NoError(t, err)
				c, err = c.Select(text(t, "{ who: p.name, months }", "p", "months"))
				require.NoError(t, err)
				return c
			},
		},
		{
			name: "second_reference",
			build: func(t *testing.T, b *Backend) collection.Collection {
				collect := b.Collector(context.Background())
				_, err := collect(Table("people"))
				require.NoError(t, err)
				c, err := collect(Table("people"))
				require.NoError(t, err)
				c, err = c.Wrap("p")
				require.NoError(t, err)
				c, err = c.Select(text(t, "p.id", "p"))
				require.NoError(t, err)
				return c
			},
		},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.dialect
			if d == "" {
				d = SQLite
			}
			b := New(nil, schemaColumns(), WithDialect(d))
			c, ok := tt.build(t, b).(*Collection)
			require.True(t, ok)

			q, args := c.SQL()
			g.Assert(t, tt.name, []byte(fmt.Sprintf("%s\nparams: %v\n", q, args)))
		})
	}
}
