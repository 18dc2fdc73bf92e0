// Package engine drives parsed queries against a backend.
//
// A query runs in four steps:
//  1. Parse the fragments and values into a source and a list of
//     transformations (package query).
//  2. Collect the source into a collection. Value sources go through the
//     engine's collector; a source written in the query text is evaluated
//     first, with no row variables in scope.
//  3. Wrap the elements under the query variable, then fold every
//     transformation over the collection, left to right.
//  4. Unwrap the rows when a single variable remains, so `n in xs where ...`
//     yields elements rather than {n: element} records.
//
// Nothing is enumerated by Query itself: the returned collection is lazy and
// runs when a cursor or a terminal operation pulls from it.
//
// Each engine owns an expression cache. Expressions built while parsing are
// interned there, and their compiled evaluators are shared by every query of
// the engine.
package engine
