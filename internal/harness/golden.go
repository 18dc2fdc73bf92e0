package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/linx/internal/errs"
	"github.com/roach88/linx/internal/value"
)

// Snapshot renders a result deterministically: the query, then per backend
// either the error code or the JSON result, preceded on SQL collections by
// the statement and its parameters.
//
//	scenario: adults
//	query: p in $people where p.age > 30 select p.name
//
//	--- memory
//	result: ["ann","cid"]
//
//	--- sql
//	statement: SELECT "people"."name" AS "people.name" FROM "people" WHERE "people"."age" > ?
//	params: [30]
//	result: ["ann","cid"]
func Snapshot(r *Result) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", r.Scenario.Name)
	fmt.Fprintf(&buf, "query: %s\n", strings.TrimSpace(r.Scenario.Query))

	for _, run := range r.Runs {
		fmt.Fprintf(&buf, "\n--- %s\n", run.Backend)
		if run.Statement != "" {
			params, err := encode(run.Params)
			if err != nil {
				return nil, err
			}
			fmt.Fprintf(&buf, "statement: %s\n", run.Statement)
			fmt.Fprintf(&buf, "params: %s\n", params)
		}
		if run.Err != nil {
			code := errs.CodeOf(run.Err)
			if code == "" {
				code = "ERROR"
			}
			fmt.Fprintf(&buf, "error: %s\n", code)
			continue
		}
		out, err := encode(run.Value)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "result: %s\n", out)
	}
	return buf.Bytes(), nil
}

// encode writes v as compact JSON without HTML escaping.
func encode(v any) (string, error) {
	if params, ok := v.([]any); ok && params == nil {
		v = []any{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value.Plain(v)); err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) *Result {
	t.Helper()

	result, err := Run(t.Context(), scenario, opts...)
	if err != nil {
		t.Fatalf("run scenario %s: %v", scenario.Name, err)
	}
	AssertGolden(t, scenario.Name, result)
	return result
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	snapshot, err := Snapshot(result)
	if err != nil {
		t.Fatalf("snapshot %s: %v", name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)
}

// GoldenPath returns the golden file of a scenario in a scenarios
// directory: dir/golden/name.golden.
func GoldenPath(dir, name string) string {
	return filepath.Join(dir, "golden", name+".golden")
}

// UpdateGolden writes the snapshot of result to path.
func UpdateGolden(path string, result *Result) error {
	snapshot, err := Snapshot(result)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, snapshot, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden reports whether the snapshot of result matches the golden
// file at path. A missing golden file is an error.
func CompareGolden(path string, result *Result) (bool, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("golden file not found: %s (use --update to create)", path)
		}
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	got, err := Snapshot(result)
	if err != nil {
		return false, err
	}
	return bytes.Equal(bytes.TrimSpace(want), bytes.TrimSpace(got)), nil
}
