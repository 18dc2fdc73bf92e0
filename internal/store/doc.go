// Package store opens the databases the SQL backend queries.
//
// A Store wraps a *sql.DB for one of the supported dialects (sqlite3,
// postgres via pgx, mysql) and provides what the SQL backend needs from it:
//   - Query: runs generated statements
//   - Columns: discovers the columns of a table, implementing
//     querysql.ColumnSource
//   - Seed: creates and fills a table from in-memory rows, used by the
//     CLI and the scenario harness to load datasets
//
// # SQLite Configuration
//
//   - WAL mode for file databases
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
//   - a single open connection, so in-memory databases are shared by all
//     queries of the store
package store
