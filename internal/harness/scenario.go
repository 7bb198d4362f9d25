package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one federated query run and what it must produce.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Services lists CUE service spec files to compile and register.
	Services []string `yaml:"services"`

	// Data is an optional data document loaded into the triple store.
	Data string `yaml:"data,omitempty"`

	// SQL statements run against the service database before the query.
	// SQL-backed services read their tables from it.
	SQL []string `yaml:"sql,omitempty"`

	// Query is the plan file to rewrite and evaluate.
	Query string `yaml:"query"`

	// Parallelism bounds concurrent invocations of one delegated join.
	// Zero keeps joins sequential.
	Parallelism int `yaml:"parallelism,omitempty"`

	// MaxInvocations caps service calls. Zero is unlimited.
	MaxInvocations int `yaml:"max_invocations,omitempty"`

	// CacheSize enables per-service result caching when positive.
	CacheSize int `yaml:"cache_size,omitempty"`

	// QueryID fixes the query ID so error messages are reproducible.
	QueryID string `yaml:"query_id,omitempty"`

	// ExpectError, when set, must be a substring of the query error.
	// Runtime error codes such as UNBOUND_REQUIRED_INPUT work here.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions validate the rows, the plan and the invocation trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Assertion validates one aspect of a Result.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Count is the expected number (row_count, invocation_count).
	Count int `yaml:"count,omitempty"`

	// Row is a partial solution (rows_contain). Keys are variable names
	// without '?', values compact terms as the plan prints them.
	Row map[string]string `yaml:"row,omitempty"`

	// Var and Values give the expected column sequence (row_order).
	Var    string   `yaml:"var,omitempty"`
	Values []string `yaml:"values,omitempty"`

	// Service is the compact service reference (invocation_count).
	Service string `yaml:"service,omitempty"`

	// Text must occur in the rewritten plan (plan_contains).
	Text string `yaml:"text,omitempty"`
}

// Assertion types.
const (
	AssertRowCount        = "row_count"
	AssertRowsContain     = "rows_contain"
	AssertRowOrder        = "row_order"
	AssertInvocationCount = "invocation_count"
	AssertPlanContains    = "plan_contains"
)

// LoadScenario reads a scenario file. Relative paths inside it are
// resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads a scenario file, resolving relative
// paths inside it against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) || basePath == "" {
			return p
		}
		return filepath.Join(basePath, p)
	}
	for i, p := range scenario.Services {
		scenario.Services[i] = resolve(p)
	}
	scenario.Data = resolve(scenario.Data)
	scenario.Query = resolve(scenario.Query)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and referenced files.
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
	if len(s.Assertions) == 0 && s.ExpectError == "" {
		return fmt.Errorf("assertions or expect_error is required")
	}
	if s.Parallelism < 0 || s.MaxInvocations < 0 || s.CacheSize < 0 {
		return fmt.Errorf("parallelism, max_invocations and cache_size must not be negative")
	}

	files := append([]string{s.Query}, s.Services...)
	if s.Data != "" {
		files = append(files, s.Data)
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", f)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertRowsContain:
		if len(a.Row) == 0 {
			return fmt.Errorf("assertions[%d]: row is required for rows_contain", index)
		}
	case AssertRowOrder:
		if a.Var == "" || len(a.Values) == 0 {
			return fmt.Errorf("assertions[%d]: var and values are required for row_order", index)
		}
	case AssertInvocationCount:
		if a.Service == "" {
			return fmt.Errorf("assertions[%d]: service is required for invocation_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for invocation_count", index)
		}
	case AssertPlanContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for plan_contains", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
