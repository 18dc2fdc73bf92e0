// Package linx runs LINQ-style queries written as text interleaved with Go
// values.
//
//	eng := linx.New()
//	c, err := eng.Q(ctx, "n in ", []int{1, 2, 3, 4}, " where n % 2 == 0 select n * ", 10)
//	rows, err := c.ToSlice(ctx) // [20 40]
//
// Values spliced between fragments are sources, captured constants or
// callables. Queries run lazily in memory by default; an engine built with
// WithDatabase resolves Table sources to SQL run on that database.
package linx

import (
	"context"
	"log/slog"

	"github.com/roach88/linx/internal/collection"
	"github.com/roach88/linx/internal/engine"
	"github.com/roach88/linx/internal/errs"
	"github.com/roach88/linx/internal/expr"
	"github.com/roach88/linx/internal/querysql"
	"github.com/roach88/linx/internal/store"
)

// Collection is a lazy query result.
type Collection = collection.Collection

// Cursor pulls the rows of a Collection one at a time.
type Cursor = collection.Cursor

// Group is a keyed sub-collection produced by group and group-join clauses.
type Group = collection.Group

// Table references a database table as a query source.
type Table = querysql.Table

// Lambda is a Go callable with declared parameter names.
type Lambda = expr.Lambda

// Expression is a compiled expression accepted by Collection methods such
// as Where, Sum and Aggregate. Engine.Lambda builds one.
type Expression = expr.Expression

// Func wraps fn so that its parameters bind to the row variables named in
// params, a comma-separated list.
//
//	linx.Func("n, m", func(n, m int) int { return n * m })
func Func(params string, fn any) *Lambda {
	return expr.Named(params, fn)
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	logger *slog.Logger
	db     *DB
}

// WithLogger sets the logger query runs and SQL statements are reported to.
// Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithDatabase runs Table sources on db.
func WithDatabase(db *DB) Option {
	return func(o *options) {
		o.db = db
	}
}

// Engine runs queries. It is safe for concurrent use; the collections it
// returns are not.
type Engine struct {
	engine *engine.Engine
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	o := &options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(o)
	}

	eopts := []engine.EngineOption{engine.WithLogger(o.logger)}
	if o.db != nil {
		eopts = append(eopts, engine.WithBackend(o.db.store.Backend(querysql.WithLogger(o.logger))))
	}
	return &Engine{engine: engine.New(eopts...)}
}

// Query parses and runs a query. There is one more fragment than values:
// values[i] sits between fragments[i] and fragments[i+1].
func (e *Engine) Query(ctx context.Context, fragments []string, values ...any) (Collection, error) {
	if len(fragments) != len(values)+1 {
		return nil, errs.Configuration("Expected %d fragments for %d values, got %d", len(values)+1, len(values), len(fragments))
	}
	return e.engine.Query(ctx, fragments, values)
}

// Q runs a query given as alternating fragments and values, starting with a
// fragment. A trailing value gets an empty closing fragment.
func (e *Engine) Q(ctx context.Context, parts ...any) (Collection, error) {
	var fragments []string
	var values []any
	for i, p := range parts {
		if i%2 == 1 {
			values = append(values, p)
			continue
		}
		s, ok := p.(string)
		if !ok {
			return nil, errs.Configuration("Part %d must be a query fragment, got %T", i, p)
		}
		fragments = append(fragments, s)
	}
	if len(fragments) == len(values) {
		fragments = append(fragments, "")
	}
	return e.Query(ctx, fragments, values...)
}

// Lambda builds an expression over bare elements for use with Collection
// methods. src is arrow text such as "n => n % 2" or "(acc, n) => acc + n",
// a Go func, a *Lambda, or a constant.
func (e *Engine) Lambda(src any) (*Expression, error) {
	return e.engine.Cache().Lambda(src)
}

// DB is a database connection queries can run on.
type DB struct {
	store *store.Store
}

// Open connects to a database. driver is "sqlite3", "postgres" or "mysql";
// an empty driver means sqlite3.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	st, err := store.Open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{store: st}, nil
}

// Seed replaces table with rows, creating its columns from the rows' keys.
func (db *DB) Seed(ctx context.Context, table string, rows []any) error {
	return db.store.Seed(ctx, table, rows)
}

// Columns returns the columns of table, in table order.
func (db *DB) Columns(ctx context.Context, table string) ([]string, error) {
	return db.store.Columns(ctx, table)
}

// Close closes the connection.
func (db *DB) Close() error {
	return db.store.Close()
}

// IsParseError reports whether err is a query syntax error.
func IsParseError(err error) bool { return errs.IsParseError(err) }

// IsSemanticError reports whether err is a well-formed but invalid query,
// such as a reference to an unknown variable.
func IsSemanticError(err error) bool { return errs.IsSemanticError(err) }

// IsTranslationError reports whether err is an expression the SQL backend
// cannot render.
func IsTranslationError(err error) bool { return errs.IsTranslationError(err) }

// IsNotImplemented reports whether err is an operation the backend lacks.
func IsNotImplemented(err error) bool { return errs.IsNotImplemented(err) }

// IsConfigurationError reports whether err is an invalid engine or query
// option.
func IsConfigurationError(err error) bool { return errs.IsConfigurationError(err) }
