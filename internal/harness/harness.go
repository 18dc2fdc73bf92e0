package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/linx/internal/collection"
	"github.com/roach88/linx/internal/dataset"
	"github.com/roach88/linx/internal/engine"
	"github.com/roach88/linx/internal/errs"
	"github.com/roach88/linx/internal/query"
	"github.com/roach88/linx/internal/querysql"
	"github.com/roach88/linx/internal/store"
	"github.com/roach88/linx/internal/value"
)

// Result is the outcome of a scenario across its backends.
type Result struct {
	Scenario *Scenario
	Runs     []BackendRun
}

// BackendRun is the outcome of a scenario on one backend.
type BackendRun struct {
	Backend string

	// Value is the plain result (rows or aggregate); nil when Err is set.
	Value any

	// Statement and Params are the SQL the result enumerates with, when
	// the result is a SQL collection.
	Statement string
	Params    []any

	// Err is the query error, if any.
	Err error

	// Failure describes how the run missed the scenario's expectations.
	Failure string
}

// Passed reports whether every backend met the expectations.
func (r *Result) Passed() bool {
	for _, run := range r.Runs {
		if run.Failure != "" {
			return false
		}
	}
	return true
}

// Failures returns one message per failed backend.
func (r *Result) Failures() []string {
	var out []string
	for _, run := range r.Runs {
		if run.Failure != "" {
			out = append(out, run.Backend+": "+run.Failure)
		}
	}
	return out
}

type config struct {
	logger *slog.Logger
}

// Option configures a scenario run.
type Option func(*config)

// WithLogger sets the logger handed to the engines and the SQL backend.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// Run executes a scenario on each of its backends.
// Query failures are recorded per backend; the returned error is for
// failures to set the scenario up (dataset, database).
func Run(ctx context.Context, s *Scenario, opts ...Option) (*Result, error) {
	cfg := &config{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(cfg)
	}

	tables, err := Tables(s)
	if err != nil {
		return nil, err
	}

	result := &Result{Scenario: s}
	for _, backend := range []string{BackendMemory, BackendSQL} {
		if !s.RunsOn(backend) {
			continue
		}
		var run BackendRun
		switch backend {
		case BackendMemory:
			run = runMemory(ctx, s, tables, cfg)
		case BackendSQL:
			run, err = runSQL(ctx, s, tables, cfg)
			if err != nil {
				return nil, err
			}
		}
		run.Failure = check(s, run)
		cfg.logger.Debug("scenario run", "scenario", s.Name, "backend", backend, "passed", run.Failure == "")
		result.Runs = append(result.Runs, run)
	}
	return result, nil
}

// Tables merges the scenario's inline tables with its dataset.
func Tables(s *Scenario) (*dataset.Dataset, error) {
	d := dataset.New()
	if s.Dataset != "" {
		loaded, err := dataset.Load(s.Dataset)
		if err != nil {
			return nil, err
		}
		d = loaded
	}
	for name, rows := range s.Tables {
		if err := d.Add(name, rows); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
	}
	return d, nil
}

func runMemory(ctx context.Context, s *Scenario, tables *dataset.Dataset, cfg *config) BackendRun {
	e := engine.New(engine.WithLogger(cfg.logger))
	fragments, values := query.Splice(s.Query, func(name string) (any, bool) {
		rows, ok := tables.Get(name)
		return rows, ok
	})
	return execute(ctx, e, s, BackendMemory, fragments, values)
}

func runSQL(ctx context.Context, s *Scenario, tables *dataset.Dataset, cfg *config) (BackendRun, error) {
	st, err := store.Open(ctx, "sqlite3", ":memory:")
	if err != nil {
		return BackendRun{}, err
	}
	defer st.Close()

	if err := tables.Seed(ctx, st); err != nil {
		return BackendRun{}, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	e := engine.New(
		engine.WithLogger(cfg.logger),
		engine.WithBackend(st.Backend(querysql.WithLogger(cfg.logger))),
	)
	fragments, values := query.Splice(s.Query, func(name string) (any, bool) {
		if _, ok := tables.Get(name); !ok {
			return nil, false
		}
		return querysql.Table(name), true
	})
	return execute(ctx, e, s, BackendSQL, fragments, values), nil
}

func execute(ctx context.Context, e *engine.Engine, s *Scenario, backend string, fragments []string, values []any) BackendRun {
	run := BackendRun{Backend: backend}
	c, err := e.Query(ctx, fragments, values)
	if err != nil {
		run.Err = err
		return run
	}
	if sc, ok := c.(*querysql.Collection); ok {
		run.Statement, run.Params = sc.SQL()
	}
	v, err := terminal(ctx, c, s.Aggregate)
	if err != nil {
		run.Err = err
		return run
	}
	run.Value = value.Normalize(value.Plain(v))
	return run
}

// terminal enumerates c, or applies the named aggregate to it.
func terminal(ctx context.Context, c collection.Collection, aggregate string) (any, error) {
	switch aggregate {
	case "count":
		n, err := c.Count(ctx, nil)
		return int64(n), err
	case "sum":
		return c.Sum(ctx, nil)
	case "min":
		return c.Min(ctx, nil)
	case "max":
		return c.Max(ctx, nil)
	case "average":
		return c.Average(ctx, nil)
	case "first":
		return c.First(ctx, nil)
	case "last":
		return c.Last(ctx, nil)
	case "single":
		return c.Single(ctx, nil)
	}
	rows, err := c.ToSlice(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// check compares a run against the scenario, returning "" on a match.
func check(s *Scenario, run BackendRun) string {
	want := s.ExpectedError(run.Backend)
	if want != "" {
		if run.Err == nil {
			return fmt.Sprintf("expected %s, got result %s", want, value.Format(run.Value))
		}
		if got := errs.CodeOf(run.Err); string(got) != want {
			return fmt.Sprintf("expected %s, got error: %v", want, run.Err)
		}
		return ""
	}
	if run.Err != nil {
		return fmt.Sprintf("unexpected error: %v", run.Err)
	}
	if expected := value.Normalize(s.Expect); !value.Equal(expected, run.Value) {
		return fmt.Sprintf("expected %s, got %s", value.Format(expected), value.Format(run.Value))
	}
	return ""
}
