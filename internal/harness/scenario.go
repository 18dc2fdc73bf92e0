package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/linx/internal/errs"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendSQL    = "sql"
)

// Aggregates a scenario can apply to the query result.
var aggregates = []string{"count", "sum", "min", "max", "average", "first", "last", "single"}

// Scenario defines a query scenario.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Tables are inline tables the query can reference as $name.
	Tables map[string][]any `yaml:"tables,omitempty"`

	// Dataset is a dataset file or directory with more tables.
	// Relative paths are resolved against the scenario file.
	Dataset string `yaml:"dataset,omitempty"`

	// Query is the query text.
	Query string `yaml:"query"`

	// Backends lists the backends to run on. Default: memory and sql.
	Backends []string `yaml:"backends,omitempty"`

	// Aggregate applies a terminal operation (count, sum, min, max,
	// average, first, last, single) to the query result.
	Aggregate string `yaml:"aggregate,omitempty"`

	// Expect is the expected result: the list of rows, or the aggregate.
	Expect any `yaml:"expect,omitempty"`

	// Error is the expected error code (PARSE_ERROR, SEMANTIC_ERROR, ...).
	Error string `yaml:"error,omitempty"`

	// Errors overrides Error per backend, e.g. {sql: NOT_IMPLEMENTED}.
	Errors map[string]string `yaml:"errors,omitempty"`
}

// RunsOn reports whether the scenario runs on backend.
func (s *Scenario) RunsOn(backend string) bool {
	return len(s.Backends) == 0 || slices.Contains(s.Backends, backend)
}

// ExpectedError returns the error code expected on backend, "" for none.
func (s *Scenario) ExpectedError(backend string) string {
	if code, ok := s.Errors[backend]; ok {
		return code
	}
	return s.Error
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "expects:" vs "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Dataset != "" && !filepath.IsAbs(scenario.Dataset) {
		scenario.Dataset = filepath.Join(filepath.Dir(path), scenario.Dataset)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Query == "" {
		return fmt.Errorf("query is required")
	}

	for _, b := range s.Backends {
		if b != BackendMemory && b != BackendSQL {
			return fmt.Errorf("unknown backend %q", b)
		}
	}
	for b, code := range s.Errors {
		if b != BackendMemory && b != BackendSQL {
			return fmt.Errorf("errors: unknown backend %q", b)
		}
		if err := validateCode(code); err != nil {
			return fmt.Errorf("errors.%s: %w", b, err)
		}
	}
	if s.Error != "" {
		if err := validateCode(s.Error); err != nil {
			return fmt.Errorf("error: %w", err)
		}
	}

	if s.Aggregate != "" && !slices.Contains(aggregates, s.Aggregate) {
		return fmt.Errorf("unknown aggregate %q", s.Aggregate)
	}

	if s.Dataset != "" {
		if _, err := os.Stat(s.Dataset); os.IsNotExist(err) {
			return fmt.Errorf("dataset not found: %s", s.Dataset)
		}
	}

	return nil
}

func validateCode(code string) error {
	switch errs.Code(code) {
	case errs.CodeParse, errs.CodeSemantic, errs.CodeTranslation, errs.CodeNotImplemented, errs.CodeConfiguration:
		return nil
	}
	return fmt.Errorf("unknown error code %q", code)
}
