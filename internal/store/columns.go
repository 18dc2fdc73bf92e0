package store

import (
	"context"
	"fmt"

	"github.com/roach88/linx/internal/querysql"
)

var _ querysql.ColumnSource = (*Store)(nil)

// Columns returns the columns of table in declaration order. A missing
// table yields no columns and no error.
//
// SQLite is asked through pragma_table_info; postgres and mysql through
// information_schema, restricted to the current schema.
func (s *Store) Columns(ctx context.Context, table string) ([]string, error) {
	var query string
	switch s.dialect {
	case querysql.Postgres:
		query = `
			SELECT column_name FROM information_schema.columns
			WHERE table_name = $1 AND table_schema = current_schema()
			ORDER BY ordinal_position`
	case querysql.MySQL:
		query = `
			SELECT column_name FROM information_schema.columns
			WHERE table_name = ? AND table_schema = DATABASE()
			ORDER BY ordinal_position`
	default:
		query = `SELECT name FROM pragma_table_info(?) ORDER BY cid`
	}

	rows, err := s.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("discover columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns of %s: %w", table, err)
	}
	return cols, nil
}
