// Package querysql is the SQL execution backend.
//
// A SQL collection is a plan, not data: Where, Select, Wrap, Unwrap and Let
// rewrite the plan's field shape and filter list, and only enumeration runs
// a query. Expressions are translated to SQL fragments by walking their
// syntax tree against the current shape. Joins run both sides as separate
// queries and merge the rows in process with the memory backend's
// sort-merge. Operations with no SQL rendering fail with a not-implemented
// error.
package querysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/roach88/linx/internal/collection"
	"github.com/roach88/linx/internal/mem"
)

// Queryer runs SQL. *sql.DB, *sql.Conn and *sql.Tx satisfy it.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ColumnSource discovers the columns of a table.
type ColumnSource interface {
	Columns(ctx context.Context, table string) ([]string, error)
}

// ColumnsFunc adapts a function to ColumnSource.
type ColumnsFunc func(ctx context.Context, table string) ([]string, error)

func (f ColumnsFunc) Columns(ctx context.Context, table string) ([]string, error) {
	return f(ctx, table)
}

// Table is a table reference. Used as a query source, it is collected into
// a SQL collection over all the table's columns.
type Table string

// Backend builds SQL collections over one database.
type Backend struct {
	db      Queryer
	columns ColumnSource
	dialect Dialect
	logger  *slog.Logger

	mu     sync.Mutex
	tables map[string][]string
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger generated statements are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = l
	}
}

// WithDialect sets the SQL dialect (default SQLite).
func WithDialect(d Dialect) Option {
	return func(b *Backend) {
		b.dialect = d
	}
}

// New creates a backend running queries on db and discovering table
// columns through columns.
func New(db Queryer, columns ColumnSource, opts ...Option) *Backend {
	b := &Backend{
		db:      db,
		columns: columns,
		dialect: SQLite,
		logger:  slog.New(slog.DiscardHandler),
		tables:  make(map[string][]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dialect returns the backend's dialect.
func (b *Backend) Dialect() Dialect {
	return b.dialect
}

// Columns returns the columns of table, asking the column source once per
// table name.
func (b *Backend) Columns(ctx context.Context, table string) ([]string, error) {
	b.mu.Lock()
	cols, ok := b.tables[table]
	b.mu.Unlock()
	if ok {
		return cols, nil
	}

	cols, err := b.columns.Columns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("columns of %s: table not found or has no columns", table)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.tables[table]; ok {
		return prev, nil
	}
	b.tables[table] = cols
	return cols, nil
}

// aliases names the references to tables within one query: the table name
// for the first reference, then table2, table3, ...
type aliases map[string]int

func (a aliases) next(table string) string {
	n := a[table]
	a[table] = n + 1
	if n == 0 {
		return table
	}
	return table + strconv.Itoa(n+1)
}

// Table returns a collection over the rows of table. Each row is a record
// of the table's columns.
func (b *Backend) Table(ctx context.Context, table string) (*Collection, error) {
	return b.table(ctx, table, aliases{})
}

func (b *Backend) table(ctx context.Context, table string, a aliases) (*Collection, error) {
	cols, err := b.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	alias := a.next(table)
	return &Collection{
		b:     b,
		table: table,
		alias: alias,
		shape: tableShape(b.dialect, alias, cols),
	}, nil
}

// Collector returns a collection.Collector that turns Table references
// into SQL collections and hands any other source to the memory backend.
// Aliases are numbered per collector, so one collector serves one query.
func (b *Backend) Collector(ctx context.Context) collection.Collector {
	a := aliases{}
	return func(src any) (collection.Collection, error) {
		switch s := src.(type) {
		case *Collection:
			return s, nil
		case Table:
			return b.table(ctx, string(s), a)
		}
		return mem.From(src)
	}
}
