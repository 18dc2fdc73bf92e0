package harness

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioFiles lists the scenarios under testdata/scenarios.
func scenarioFiles(t *testing.T) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	return files
}

func TestScenarios_Golden(t *testing.T) {
	for _, path := range scenarioFiles(t) {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result := RunWithGolden(t, scenario)
			assert.True(t, result.Passed(), "failures: %v", result.Failures())
		})
	}
}

func people() map[string][]any {
	return map[string][]any{
		"people": {
			map[string]any{"id": 1, "name": "ann", "age": 41},
			map[string]any{"id": 2, "name": "bob", "age": 12},
		},
	}
}

func TestRun_BothBackends(t *testing.T) {
	s := &Scenario{
		Name:   "names",
		Tables: people(),
		Query:  "p in $people select p.name",
		Expect: []any{"ann", "bob"},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, result.Runs, 2)
	assert.True(t, result.Passed(), "failures: %v", result.Failures())

	assert.Equal(t, BackendMemory, result.Runs[0].Backend)
	assert.Empty(t, result.Runs[0].Statement)

	assert.Equal(t, BackendSQL, result.Runs[1].Backend)
	assert.Equal(t, `SELECT "people"."name" AS "people.name" FROM "people"`, result.Runs[1].Statement)
}

func TestRun_Mismatch(t *testing.T) {
	s := &Scenario{
		Name:   "wrong",
		Tables: people(),
		Query:  "p in $people select p.name",
		Expect: []any{"bob", "ann"},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Passed())

	failures := result.Failures()
	require.Len(t, failures, 2)
	assert.True(t, strings.HasPrefix(failures[0], "memory: expected"))
	assert.True(t, strings.HasPrefix(failures[1], "sql: expected"))
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	s := &Scenario{
		Name:     "no error",
		Tables:   people(),
		Query:    "p in $people select p.name",
		Backends: []string{BackendMemory},
		Error:    "SEMANTIC_ERROR",
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, result.Runs, 1)
	assert.Contains(t, result.Runs[0].Failure, "expected SEMANTIC_ERROR, got result")
}

func TestRun_WrongErrorCode(t *testing.T) {
	s := &Scenario{
		Name:     "unknown name",
		Tables:   people(),
		Query:    "p in $people select blah",
		Backends: []string{BackendMemory},
		Error:    "PARSE_ERROR",
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.Contains(t, result.Runs[0].Failure, "expected PARSE_ERROR, got error")
}

func TestRun_UnresolvedReference(t *testing.T) {
	s := &Scenario{
		Name:     "missing table",
		Query:    "p in $people select p",
		Backends: []string{BackendMemory},
		Expect:   []any{},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.Error(t, result.Runs[0].Err)
	assert.False(t, result.Passed())
}

func TestRun_DuplicateTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.yaml")
	require.NoError(t, os.WriteFile(path, []byte("people: [{name: ann}]\n"), 0644))

	s := &Scenario{
		Name:    "dup",
		Dataset: path,
		Tables:  people(),
		Query:   "p in $people",
	}

	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defined twice")
}

func TestRun_InvalidTableForSQL(t *testing.T) {
	s := &Scenario{
		Name:   "bad table",
		Tables: map[string][]any{"bad-name": {1}},
		Query:  "n in [1] select n",
		Expect: []any{1},
	}

	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid table name")
}

func TestRun_Logs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s := &Scenario{
		Name:     "logged",
		Query:    "n in [1, 2] select n",
		Backends: []string{BackendMemory},
		Expect:   []any{1, 2},
	}

	result, err := Run(context.Background(), s, WithLogger(logger))
	require.NoError(t, err)
	assert.True(t, result.Passed(), "failures: %v", result.Failures())
	assert.Contains(t, buf.String(), "scenario=logged")
	assert.Contains(t, buf.String(), "run_id=")
}
