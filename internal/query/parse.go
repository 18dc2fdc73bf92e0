// Package query reads query text interleaved with values into a pipeline
// of transformations.
//
// A query is given as fragments with values between them, the shape of a
// tagged template:
//
//	query.Parse([]string{"n in ", " where n % 2 == 0 select n * ", ""}, []any{numbers, 10}, cache)
//
// A value alone in its position (numbers above) is taken as is; a value
// inside a clause (10 above) is captured into the clause's inline
// expression as $argv[i].
package query

import (
	"slices"

	"github.com/roach88/linx/internal/collection"
	"github.com/roach88/linx/internal/errs"
	"github.com/roach88/linx/internal/expr"
)

// Parsed is a parsed query.
type Parsed struct {
	// Variable is the name bound to the elements of Source.
	Variable string
	// Source is the first value slot, or an *expr.Inline when the source is
	// written in the query text.
	Source any
	// Transformations are the clauses in query order.
	Transformations []Transformation
	// Variables are the row variables after the last clause.
	Variables []string
}

// Parse parses a query. len(fragments) must be len(values)+1.
func Parse(fragments []string, values []any, cache *expr.Cache) (*Parsed, error) {
	if len(fragments) != len(values)+1 {
		return nil, errs.Syntax("query has %d fragments for %d values", len(fragments), len(values))
	}
	if cache == nil {
		cache = expr.NewCache()
	}
	p := &parser{r: newReader(fragments, values), cache: cache}
	return p.parse()
}

var clauses = []string{"from", "where", "let", "order", "join", "group", "select"}

type parser struct {
	r     *reader
	cache *expr.Cache
	vars  []string
}

func (p *parser) parse() (*Parsed, error) {
	r := p.r
	variable, err := r.nextWord()
	if err != nil {
		return nil, err
	}
	if err := r.expect("in"); err != nil {
		return nil, err
	}
	source, err := r.nextValue(modeDefault)
	if err != nil {
		return nil, err
	}

	out := &Parsed{Variable: variable, Source: source}
	p.vars = []string{variable}
	for !r.ended() {
		t, err := p.clause()
		if err != nil {
			return nil, err
		}
		out.Transformations = append(out.Transformations, t)
		p.vars = t.NewVariables(p.vars)
	}
	out.Variables = p.vars
	return out, nil
}

func (p *parser) clause() (Transformation, error) {
	r := p.r
	word := r.peekWord()
	if !slices.Contains(clauses, word) {
		return nil, r.errorf("Expecting linq set transformation")
	}
	_, _ = r.nextWord()
	switch word {
	case "from":
		return p.from()
	case "where":
		pred, err := p.value(modeDefault)
		if err != nil {
			return nil, err
		}
		return Where{Predicate: pred}, nil
	case "let":
		return p.let()
	case "order":
		if err := r.expect("by"); err != nil {
			return nil, err
		}
		return p.orderBy()
	case "join":
		return p.join()
	case "group":
		return p.group()
	default:
		return p.selectClause()
	}
}

// value reads the next clause argument as an expression over the variables
// in scope.
func (p *parser) value(mode valueMode) (*expr.Expression, error) {
	return p.valueIn(mode, p.vars)
}

func (p *parser) valueIn(mode valueMode, visible []string) (*expr.Expression, error) {
	src, err := p.r.nextValue(mode)
	if err != nil {
		return nil, err
	}
	return p.cache.Build(src, visible)
}

// newVariable reads a variable name that must not already be in scope.
func (p *parser) newVariable() (string, error) {
	name, err := p.r.nextWord()
	if err != nil {
		return "", err
	}
	if slices.Contains(p.vars, name) {
		return "", errs.Semantic("Variable `%s` is already defined", name)
	}
	return name, nil
}

func (p *parser) from() (Transformation, error) {
	name, err := p.newVariable()
	if err != nil {
		return nil, err
	}
	if err := p.r.expect("in"); err != nil {
		return nil, err
	}
	src, err := p.value(modeDefault)
	if err != nil {
		return nil, err
	}
	return From{Variable: name, Source: src}, nil
}

func (p *parser) let() (Transformation, error) {
	name, err := p.newVariable()
	if err != nil {
		return nil, err
	}
	if err := p.r.expectRaw("="); err != nil {
		return nil, err
	}
	val, err := p.value(modeDefault)
	if err != nil {
		return nil, err
	}
	return Let{Variable: name, Value: val}, nil
}

func (p *parser) orderBy() (Transformation, error) {
	var specs []collection.OrderSpec
	for {
		by, err := p.value(modeSimple)
		if err != nil {
			return nil, err
		}
		way, _ := p.r.isWord("ascending", "descending")
		specs = append(specs, collection.OrderSpec{By: by, Descending: way == "descending"})
		if !p.r.isRaw(",") {
			break
		}
	}
	return OrderBy{Specs: specs}, nil
}

func (p *parser) join() (Transformation, error) {
	r := p.r
	name, err := p.newVariable()
	if err != nil {
		return nil, err
	}
	if err := r.expect("in"); err != nil {
		return nil, err
	}
	src, err := r.nextValue(modeExternal)
	if err != nil {
		return nil, err
	}
	if err := r.expect("on"); err != nil {
		return nil, err
	}
	outer, err := p.value(modeDefault)
	if err != nil {
		return nil, err
	}
	if err := r.expect("equals"); err != nil {
		return nil, err
	}
	inner, err := p.valueIn(modeDefault, []string{name})
	if err != nil {
		return nil, err
	}
	j := Join{Variable: name, Source: src, OuterKey: outer, InnerKey: inner}
	if _, ok := r.isWord("into"); ok {
		if j.Into, err = p.newVariable(); err != nil {
			return nil, err
		}
	}
	return j, nil
}

func (p *parser) group() (Transformation, error) {
	r := p.r
	var g Group
	if r.peekWord() == "by" {
		if len(p.vars) != 1 {
			return nil, errs.Semantic("`group by` without value can only be used on a single variable collection")
		}
	} else {
		val, err := p.value(modeDefault)
		if err != nil {
			return nil, err
		}
		g.Value = val
	}
	if err := r.expect("by"); err != nil {
		return nil, err
	}
	key, err := p.value(modeDefault)
	if err != nil {
		return nil, err
	}
	g.Key = key
	if _, ok := r.isWord("into"); ok {
		if g.Into, err = r.nextWord(); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (p *parser) selectClause() (Transformation, error) {
	r := p.r
	val, err := p.value(modeDefault)
	if err != nil {
		return nil, err
	}
	s := Select{Value: val}
	if _, ok := r.isWord("into"); ok {
		if s.Into, err = r.nextWord(); err != nil {
			return nil, err
		}
	}
	if !r.ended() {
		return nil, r.errorf("Expecting `select` to finish the query")
	}
	return s, nil
}
