package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/linx/internal/collection"
	"github.com/roach88/linx/internal/expr"
	"github.com/roach88/linx/internal/mem"
	"github.com/roach88/linx/internal/query"
	"github.com/roach88/linx/internal/value"
)

// Backend hands out the collector queries are sourced through. The SQL
// backend (*querysql.Backend) is one.
type Backend interface {
	Collector(ctx context.Context) collection.Collector
}

// Engine runs queries.
//
// Thread-safety: an Engine may be shared by goroutines; each Query builds an
// independent pipeline. The collections it returns are not safe for
// concurrent enumeration.
type Engine struct {
	cache     *expr.Cache
	collector func(ctx context.Context) collection.Collector
	logger    *slog.Logger
	runIDs    RunIDGenerator
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the logger query runs are reported to.
// Default: discard.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithCollector sets the collector value sources and join sources go
// through. Default: mem.Collector.
func WithCollector(c collection.Collector) EngineOption {
	return func(e *Engine) {
		e.collector = func(context.Context) collection.Collector { return c }
	}
}

// WithBackend collects sources through b, with the context of each query.
func WithBackend(b Backend) EngineOption {
	return func(e *Engine) {
		e.collector = b.Collector
	}
}

// WithRunIDs sets the generator for run ids.
// Default: UUIDv7Generator.
func WithRunIDs(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithCache shares an expression cache between engines.
func WithCache(c *expr.Cache) EngineOption {
	return func(e *Engine) {
		e.cache = c
	}
}

// New creates an Engine. Without options it runs queries in memory.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		collector: func(context.Context) collection.Collector { return mem.Collector },
		logger:    slog.New(slog.DiscardHandler),
		runIDs:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = expr.NewCache()
	}
	return e
}

// Cache returns the engine's expression cache.
func (e *Engine) Cache() *expr.Cache {
	return e.cache
}

// Parse parses a query with the engine's expression cache.
func (e *Engine) Parse(fragments []string, values []any) (*query.Parsed, error) {
	return query.Parse(fragments, values, e.cache)
}

// Query parses and runs a query. fragments and values alternate, starting
// and ending with a fragment. The result is lazy.
func (e *Engine) Query(ctx context.Context, fragments []string, values []any) (collection.Collection, error) {
	parsed, err := e.Parse(fragments, values)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, parsed)
}

// Run builds the pipeline of a parsed query.
func (e *Engine) Run(ctx context.Context, parsed *query.Parsed) (collection.Collection, error) {
	runID := e.runIDs.Generate()
	log := e.logger.With("run_id", runID)
	log.Debug("query run", "variable", parsed.Variable, "clauses", len(parsed.Transformations))

	collect := e.collector(ctx)

	src, err := e.source(parsed.Source)
	if err != nil {
		return nil, err
	}
	c, err := collect(src)
	if err != nil {
		return nil, fmt.Errorf("source of %s: %w", parsed.Variable, err)
	}
	c, err = c.Wrap(parsed.Variable)
	if err != nil {
		return nil, err
	}

	for _, t := range parsed.Transformations {
		log.Debug("apply", "clause", t.String())
		c, err = t.Apply(c, collect)
		if err != nil {
			log.Debug("clause failed", "clause", t.String(), "error", err)
			return nil, fmt.Errorf("%s: %w", t, err)
		}
	}

	if len(parsed.Variables) == 1 {
		return c.Unwrap()
	}
	return c, nil
}

// source resolves a source written in the query text. Such a source sees
// no row variables.
func (e *Engine) source(src any) (any, error) {
	inline, ok := src.(*expr.Inline)
	if !ok {
		return src, nil
	}
	x, err := e.cache.Build(inline, nil)
	if err != nil {
		return nil, err
	}
	ev, err := x.Evaluator()
	if err != nil {
		return nil, err
	}
	return ev.Row(value.NewRecord())
}
