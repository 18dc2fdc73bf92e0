package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/linx/internal/dataset"
	"github.com/roach88/linx/internal/engine"
	"github.com/roach88/linx/internal/query"
	"github.com/roach88/linx/internal/querysql"
	"github.com/roach88/linx/internal/store"
)

// session is an engine bound to the configured backend, and the tables
// $name references resolve to.
type session struct {
	engine *engine.Engine
	store  *store.Store // nil on the memory backend
	tables *dataset.Dataset
}

// openSession sets up the backend the options select. With a DSN queries
// run on that database. Otherwise they run in memory over the dataset, or,
// when sql is set, on a fresh in-memory SQLite database seeded with it.
func openSession(ctx context.Context, opts *RootOptions, sql bool) (*session, error) {
	s := &session{tables: dataset.New()}
	if opts.Dataset != "" {
		d, err := dataset.Load(opts.Dataset)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load dataset", err)
		}
		s.tables = d
	}

	log := opts.logger()
	if opts.DSN == "" && !sql {
		s.engine = engine.New(engine.WithLogger(log))
		return s, nil
	}

	if opts.DSN != "" {
		st, err := store.Open(ctx, opts.Driver, opts.DSN)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		if s.tables.Len() > 0 {
			log.Warn("dataset ignored with --dsn", "dataset", opts.Dataset)
		}
		log.Debug("opened database", "driver", opts.Driver)
		return s.withStore(st, log), nil
	}

	st, err := store.Open(ctx, "sqlite3", ":memory:")
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	if err := s.tables.Seed(ctx, st); err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to seed dataset", err)
	}
	log.Debug("seeded in-memory database", "tables", s.tables.Len())
	return s.withStore(st, log), nil
}

// withStore binds the session to the SQL backend of st.
func (s *session) withStore(st *store.Store, log *slog.Logger) *session {
	s.store = st
	s.engine = engine.New(
		engine.WithLogger(log),
		engine.WithBackend(st.Backend(querysql.WithLogger(log))),
	)
	return s
}

// Close releases the database, if any.
func (s *session) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// splice turns query text into fragments and values: $name becomes the
// table name on a database and the dataset table in memory.
func (s *session) splice(text string) ([]string, []any) {
	return query.Splice(text, func(name string) (any, bool) {
		if s.store != nil {
			return querysql.Table(name), true
		}
		rows, ok := s.tables.Get(name)
		return rows, ok
	})
}

// columns discovers the columns of a database table.
func (s *session) columns(ctx context.Context, table string) ([]string, error) {
	if s.store == nil {
		return nil, fmt.Errorf("no database")
	}
	return s.store.Columns(ctx, table)
}
