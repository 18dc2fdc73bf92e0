// Package dataset loads named tables of rows from CUE, YAML and JSON files.
//
// A dataset file is a struct (object, mapping) whose fields are tables:
//
//	people: [
//		{name: "ann", age: 41},
//		{name: "bob", age: 12},
//	]
//	numbers: [1, 2, 3]
//
// Rows are normalized values: records for objects, int64/float64 for
// numbers. Record keys are sorted, since YAML and JSON mappings carry no
// order. The CLI uses datasets as in-memory query sources and the scenario
// harness seeds them into SQL databases.
package dataset

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/linx/internal/value"
)

// Dataset is a set of named tables.
type Dataset struct {
	tables map[string][]any
}

// New creates an empty dataset.
func New() *Dataset {
	return &Dataset{tables: make(map[string][]any)}
}

// Add adds a table, normalizing its rows. Adding a name twice is an error.
func (d *Dataset) Add(name string, rows []any) error {
	if _, ok := d.tables[name]; ok {
		return fmt.Errorf("table %q defined twice", name)
	}
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = value.Normalize(r)
	}
	d.tables[name] = out
	return nil
}

// Get returns the rows of a table.
func (d *Dataset) Get(name string) ([]any, bool) {
	rows, ok := d.tables[name]
	return rows, ok
}

// Names returns the table names, sorted.
func (d *Dataset) Names() []string {
	names := make([]string, 0, len(d.tables))
	for n := range d.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of tables.
func (d *Dataset) Len() int {
	return len(d.tables)
}

// Seeder creates database tables from rows. *store.Store is one.
type Seeder interface {
	Seed(ctx context.Context, table string, rows []any) error
}

// Seed writes every table into s, in name order.
func (d *Dataset) Seed(ctx context.Context, s Seeder) error {
	for _, name := range d.Names() {
		if err := s.Seed(ctx, name, d.tables[name]); err != nil {
			return err
		}
	}
	return nil
}

// merge adds the tables of other to d.
func (d *Dataset) merge(other *Dataset) error {
	for _, name := range other.Names() {
		if err := d.Add(name, other.tables[name]); err != nil {
			return err
		}
	}
	return nil
}
