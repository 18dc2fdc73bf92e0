package querysql

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linx/internal/collection"
	"github.com/roach88/linx/internal/errs"
	"github.com/roach88/linx/internal/mem"
	"github.com/roach88/linx/internal/value"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func peopleRows() *sqlmock.Rows {
	return sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("people.id").OfType("INTEGER", int64(0)),
		sqlmock.NewColumn("people.name").OfType("TEXT", ""),
		sqlmock.NewColumn("people.age").OfType("INTEGER", int64(0)),
	)
}

const selectPeople = `SELECT "people"."id" AS "people.id", "people"."name" AS "people.name", "people"."age" AS "people.age" FROM "people"`

func TestCollection_Enumerate(t *testing.T) {
	db, mock := newMock(t)
	b := New(db, schemaColumns())

	c, err := people(t, b).Where(text(t, "p.age > 30", "p"))
	require.NoError(t, err)
	c, err = c.Select(text(t, "{ name: p.name, age: p.age }", "p"))
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT "people"."name" AS "people.name", "people"."age" AS "people.age" FROM "people" WHERE "people"."age" > ?`).
		WithArgs(int64(30)).
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("people.name").OfType("TEXT", ""),
			sqlmock.NewColumn("people.age").OfType("INTEGER", int64(0)),
		).AddRow("ann", int64(41)).AddRow("cid", int64(35)))

	got, err := c.ToSlice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{
		value.NewRecord(value.P("name", "ann"), value.P("age", int64(41))),
		value.NewRecord(value.P("name", "cid"), value.P("age", int64(35))),
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollection_UnwrapToValues(t *testing.T) {
	db, mock := newMock(t)
	b := New(db, schemaColumns())

	c, err := people(t, b).Select(text(t, "p.name", "p"))
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT "people"."name" AS "people.name" FROM "people"`).
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("people.name").OfType("TEXT", ""),
		).AddRow("ann").AddRow([]byte("bob")))

	got, err := c.ToSlice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{"ann", "bob"}, got)
}

func TestCollection_DecimalColumns(t *testing.T) {
	db, mock := newMock(t)
	b := New(db, schemaColumns())

	c, err := b.Table(context.Background(), "prices")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT "prices"."item" AS "prices.item", "prices"."price" AS "prices.price" FROM "prices"`).
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("prices.item").OfType("TEXT", ""),
			sqlmock.NewColumn("prices.price").OfType("DECIMAL", ""),
		).AddRow("tea", []byte("12.50")).AddRow("cup", "3.00"))

	got, err := c.ToSlice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{
		value.NewRecord(value.P("item", "tea"), value.P("price", 12.5)),
		value.NewRecord(value.P("item", "cup"), value.P("price", int64(3))),
	}, got)
}

func TestCollection_CloseEarly(t *testing.T) {
	db, mock := newMock(t)
	b := New(db, schemaColumns())

	c, err := b.Table(context.Background(), "people")
	require.NoError(t, err)

	mock.ExpectQuery(selectPeople).
		WillReturnRows(peopleRows().AddRow(1, "ann", 41).AddRow(2, "bob", 12).AddRow(3, "cid", 35)).
		RowsWillBeClosed()

	ctx := context.Background()
	cur, err := c.Cursor(ctx)
	require.NoError(t, err)
	require.True(t, cur.Next(ctx))
	assert.Equal(t, value.NewRecord(value.P("id", int64(1)), value.P("name", "ann"), value.P("age", int64(41))), cur.Value())
	require.NoError(t, cur.Close())
	require.NoError(t, cur.Close())
	assert.False(t, cur.Next(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollection_Count(t *testing.T) {
	db, mock := newMock(t)
	b := New(db, schemaColumns())
	ctx := context.Background()

	c, err := people(t, b).Where(text(t, "p.age > 30", "p"))
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT COUNT(*) FROM "people" WHERE "people"."age" > ?`).
		WithArgs(int64(30)).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(2))
	n, err := c.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mock.ExpectQuery(`SELECT COUNT(DISTINCT "people"."age") FROM "people" WHERE "people"."age" > ?`).
		WithArgs(int64(30)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	n, err = c.Count(ctx, text(t, "p.age", "p"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollection_Join(t *testing.T) {
	db, mock := newMock(t)
	b := New(db, schemaColumns())
	ctx := context.Background()

	pets, err := b.Table(ctx, "pets")
	require.NoError(t, err)

	joined, err := people(t, b).Join(pets, text(t, "p.id", "p"), text(t, "q.owner", "q"), "q")
	require.NoError(t, err)
	_, isMem := joined.(*mem.Collection)
	assert.True(t, isMem)

	mock.ExpectQuery(selectPeople).
		WillReturnRows(peopleRows().AddRow(2, "bob", 12).AddRow(1, "ann", 41).AddRow(3, "cid", 35))
	mock.ExpectQuery(`SELECT "pets"."owner" AS "pets.owner", "pets"."name" AS "pets.name" FROM "pets"`).
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("pets.owner").OfType("INTEGER", int64(0)),
			sqlmock.NewColumn("pets.name").OfType("TEXT", ""),
		).AddRow(1, "rex").AddRow(3, "tom").AddRow(1, "kit"))

	sel, err := joined.Select(text(t, "{ person: p.name, pet: q.name }", "p", "q"))
	require.NoError(t, err)
	got, err := sel.ToSlice(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{
		value.NewRecord(value.P("person", "ann"), value.P("pet", "rex")),
		value.NewRecord(value.P("person", "ann"), value.P("pet", "kit")),
		value.NewRecord(value.P("person", "cid"), value.P("pet", "tom")),
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollection_GroupJoin(t *testing.T) {
	db, mock := newMock(t)
	b := New(db, schemaColumns())
	ctx := context.Background()

	pets, err := b.Table(ctx, "pets")
	require.NoError(t, err)

	joined, err := people(t, b).GroupJoin(pets, text(t, "p.id", "p"), text(t, "q.owner", "q"), "q", "owned")
	require.NoError(t, err)

	mock.ExpectQuery(selectPeople).
		WillReturnRows(peopleRows().AddRow(1, "ann", 41).AddRow(2, "bob", 12))
	mock.ExpectQuery(`SELECT "pets"."owner" AS "pets.owner", "pets"."name" AS "pets.name" FROM "pets"`).
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("pets.owner").OfType("INTEGER", int64(0)),
			sqlmock.NewColumn("pets.name").OfType("TEXT", ""),
		).AddRow(1, "rex"))

	sel, err := joined.Select(text(t, "{ who: p.name, pets: owned.length }", "p", "owned"))
	require.NoError(t, err)
	got, err := sel.ToSlice(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{
		value.NewRecord(value.P("who", "ann"), value.P("pets", int64(1))),
		value.NewRecord(value.P("who", "bob"), value.P("pets", int64(0))),
	}, got)
}

func TestCollection_JoinKeysMustBeFields(t *testing.T) {
	b := New(nil, schemaColumns())
	pets, err := b.Table(context.Background(), "pets")
	require.NoError(t, err)

	_, err = people(t, b).Join(pets, text(t, "p.id + 1", "p"), text(t, "q.owner", "q"), "q")
	assert.True(t, errs.IsSemanticError(err), "got %v", err)

	_, err = people(t, b).GroupJoin(pets, text(t, "p.id", "p"), text(t, "q.owner * 2", "q"), "q", "g")
	assert.True(t, errs.IsSemanticError(err), "got %v", err)
}

func TestCollection_NotImplemented(t *testing.T) {
	b := New(nil, schemaColumns())
	c := people(t, b)
	ctx := context.Background()
	key := text(t, "p.age", "p")

	ops := map[string]func() error{
		"order": func() error {
			_, err := c.Order(collection.OrderSpec{By: key})
			return err
		},
		"groupBy": func() error {
			_, err := c.GroupBy(key, nil)
			return err
		},
		"take": func() error {
			_, err := c.Take(1)
			return err
		},
		"distinct": func() error {
			_, err := c.Distinct(nil)
			return err
		},
		"union": func() error {
			_, err := c.Union(c)
			return err
		},
		"sum": func() error {
			_, err := c.Sum(ctx, key)
			return err
		},
		"first": func() error {
			_, err := c.First(ctx, nil)
			return err
		},
		"multiplyBy": func() error {
			_, err := c.MultiplyBy(key, "x")
			return err
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			assert.True(t, errs.IsNotImplemented(err), "got %v", err)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestCollection_Unwrap(t *testing.T) {
	b := New(nil, schemaColumns())
	c, err := b.Table(context.Background(), "people")
	require.NoError(t, err)

	_, err = c.Unwrap()
	assert.True(t, errs.IsSemanticError(err))
	assert.Contains(t, err.Error(), "several objects")
}

func TestBackend_ColumnsCached(t *testing.T) {
	calls := 0
	b := New(nil, ColumnsFunc(func(_ context.Context, table string) ([]string, error) {
		calls++
		return schema[table], nil
	}))
	ctx := context.Background()

	for range 3 {
		_, err := b.Table(ctx, "people")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)

	_, err := b.Table(ctx, "missing")
	assert.Error(t, err)
}

func TestBackend_Collector(t *testing.T) {
	b := New(nil, schemaColumns())
	collect := b.Collector(context.Background())

	c, err := collect(Table("people"))
	require.NoError(t, err)
	sc, ok := c.(*Collection)
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name", "age"}, sc.Shape().(*Fields).Names())

	same, err := collect(sc)
	require.NoError(t, err)
	assert.Same(t, sc, same)

	m, err := collect([]int{1, 2})
	require.NoError(t, err)
	_, ok = m.(*mem.Collection)
	assert.True(t, ok)
}

func TestBackend_AliasesPerCollector(t *testing.T) {
	b := New(nil, schemaColumns())
	ctx := context.Background()

	statement := func() string {
		collect := b.Collector(ctx)
		c, err := collect(Table("people"))
		require.NoError(t, err)
		c, err = c.Wrap("p")
		require.NoError(t, err)
		c, err = c.Select(text(t, "p.name", "p"))
		require.NoError(t, err)
		q, _ := c.(*Collection).SQL()
		return q
	}

	first := statement()
	assert.Equal(t, `SELECT "people"."name" AS "people.name" FROM "people"`, first)
	assert.Equal(t, first, statement())

	a, err := b.Table(ctx, "people")
	require.NoError(t, err)
	again, err := b.Table(ctx, "people")
	require.NoError(t, err)
	qa, _ := a.SQL()
	qb, _ := again.SQL()
	assert.Equal(t, qa, qb)
}
