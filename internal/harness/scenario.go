package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Storage backends for scenario collections.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Scenario defines one query test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Query is the query text.
	Query string `yaml:"query"`

	// Context is the initial context item. Absent means no context item.
	Context any `yaml:"context,omitempty"`

	// Collections maps collection names to their documents.
	Collections map[string][]any `yaml:"collections,omitempty"`

	// Storage selects where collections live: "memory" or "sqlite".
	Storage string `yaml:"storage,omitempty"`

	// Variables supplies external variables. A list is a sequence.
	Variables map[string]any `yaml:"variables,omitempty"`

	// Expect is the expected result.
	Expect Expectation `yaml:"expect,omitempty"`

	// ExpectError is the expected error code.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions add checks on the trace and the result.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Expectation holds expected result items. Set distinguishes "expect: []"
// from an absent field.
type Expectation struct {
	Items []any
	Set   bool
}

// UnmarshalYAML accepts a list of items or a single scalar or map.
func (e *Expectation) UnmarshalYAML(node *yaml.Node) error {
	e.Set = true
	if node.Kind == yaml.SequenceNode {
		return node.Decode(&e.Items)
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	e.Items = []any{v}
	return nil
}

// Assertion validates the trace or the result of a run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": clause appears in the trace
	// - "trace_order": clauses are first entered in order
	// - "trace_count": clause is entered exactly Count times
	// - "result_count": result has exactly Count items
	Type string `yaml:"type"`

	// Clause is a clause label such as "for $x" (trace_contains, trace_count).
	Clause string `yaml:"clause,omitempty"`

	// Event restricts trace_count to one stream event.
	Event string `yaml:"event,omitempty"`

	// Count is the expected number (trace_count, result_count).
	Count int `yaml:"count,omitempty"`

	// Clauses is the expected clause order (trace_order).
	Clauses []string `yaml:"clauses,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertResultCount   = "result_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every .yaml and .yml file of dir in name order.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	names := make(map[string]string)
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if prev, ok := names[s.Name]; ok {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", path, s.Name, prev)
		}
		names[s.Name] = path
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
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
	if s.Expect.Set == (s.ExpectError != "") {
		return fmt.Errorf("exactly one of expect and expect_error is required")
	}

	switch s.Storage {
	case "":
		s.Storage = StorageMemory
	case StorageMemory, StorageSQLite:
	default:
		return fmt.Errorf("unknown storage %q (want %s or %s)", s.Storage, StorageMemory, StorageSQLite)
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Clause == "" {
			return fmt.Errorf("assertions[%d]: clause is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Clauses) == 0 {
			return fmt.Errorf("assertions[%d]: clauses list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Clause == "" {
			return fmt.Errorf("assertions[%d]: clause is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertResultCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for result_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// needsTrace reports whether any assertion inspects the trace.
func (s *Scenario) needsTrace() bool {
	for _, a := range s.Assertions {
		if a.Type != AssertResultCount {
			return true
		}
	}
	return false
}
