package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/linx/internal/errs"
	"github.com/roach88/linx/internal/querysql"
	"github.com/roach88/linx/internal/value"
)

// ValueColumn holds rows that are not records when seeding.
const ValueColumn = "value"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type columnType int

const (
	typeUnknown columnType = iota
	typeBool
	typeInt
	typeFloat
	typeText
)

// sqlType returns the column type used for t in the dialect.
func sqlType(d querysql.Dialect, t columnType) string {
	switch t {
	case typeBool:
		return "BOOLEAN"
	case typeInt:
		if d == querysql.SQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case typeFloat:
		switch d {
		case querysql.Postgres:
			return "DOUBLE PRECISION"
		case querysql.MySQL:
			return "DOUBLE"
		}
		return "REAL"
	}
	return "TEXT"
}

func typeOf(v any) columnType {
	switch v.(type) {
	case nil:
		return typeUnknown
	case bool:
		return typeBool
	case int64:
		return typeInt
	case float64:
		return typeFloat
	}
	return typeText
}

// widen combines the types seen in one column.
func widen(a, b columnType) columnType {
	switch {
	case a == typeUnknown:
		return b
	case b == typeUnknown || a == b:
		return a
	case (a == typeInt && b == typeFloat) || (a == typeFloat && b == typeInt):
		return typeFloat
	}
	return typeText
}

// Seed replaces table with rows. Record rows (value.Record or string-keyed
// maps) give one column per key, in order of first appearance; any other
// row is stored in a single "value" column. Nested values are stored as
// JSON text.
func (s *Store) Seed(ctx context.Context, table string, rows []any) error {
	if !identifier.MatchString(table) {
		return errs.Configuration("Invalid table name %q", table)
	}

	records := make([]value.Record, len(rows))
	var cols []string
	types := make(map[string]columnType)
	for i, row := range rows {
		rec, ok := value.Normalize(row).(value.Record)
		if !ok {
			rec = value.Single(ValueColumn, value.Normalize(row))
		}
		records[i] = rec
		for j := range rec.Len() {
			k, v := rec.At(j)
			if _, seen := types[k]; !seen {
				if !identifier.MatchString(k) {
					return errs.Configuration("Invalid column name %q in table %s", k, table)
				}
				cols = append(cols, k)
			}
			types[k] = widen(types[k], typeOf(value.Normalize(v)))
		}
	}
	if len(cols) == 0 {
		cols = []string{ValueColumn}
	}

	quoted := make([]string, len(cols))
	defs := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = s.dialect.Quote(c)
		defs[i] = quoted[i] + " " + sqlType(s.dialect, types[c])
	}
	name := s.dialect.Quote(table)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	insert := s.dialect.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", name, strings.Join(quoted, ", "), marks))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed %s: %w", table, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return fmt.Errorf("seed %s: drop: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("seed %s: create: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("seed %s: prepare: %w", table, err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for i, rec := range records {
		for j, c := range cols {
			v, _ := rec.Get(c)
			arg, err := columnValue(value.Normalize(v))
			if err != nil {
				return fmt.Errorf("seed %s: row %d column %s: %w", table, i, c, err)
			}
			args[j] = arg
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("seed %s: insert row %d: %w", table, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed %s: commit: %w", table, err)
	}
	return nil
}

// columnValue converts a normalized value to a driver argument.
func columnValue(v any) (any, error) {
	switch v.(type) {
	case nil, bool, int64, float64, string:
		return v, nil
	}
	b, err := json.Marshal(value.Plain(v))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
