// Package harness runs query scenarios against the memory and SQL backends.
//
// A scenario is a YAML file naming a query, the tables it reads and what it
// should produce:
//
//	name: evens
//	description: keeps even numbers
//	tables:
//	  numbers: [1, 2, 3, 4]
//	query: n in $numbers where n % 2 == 0
//	expect: [2, 4]
//
// $name references in the query are bound to tables: to the rows themselves
// on the memory backend, and to a table of a fresh in-memory SQLite database,
// seeded with the rows, on the SQL backend.
//
// Every backend is checked against the same expectations. A snapshot of the
// run (results per backend, plus the statement the SQL backend generated)
// can be compared against a golden file, which pins the generated SQL.
package harness
