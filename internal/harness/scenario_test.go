package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: basic
description: "basic scenario"
query: "for $x in $xs return $x"
variables:
  xs: [1, 2]
expect: [1, 2]
assertions:
  - type: trace_contains
    clause: "for $x"
`))
	require.NoError(t, err)

	assert.Equal(t, "basic", s.Name)
	assert.Equal(t, StorageMemory, s.Storage)
	assert.True(t, s.Expect.Set)
	assert.Equal(t, []any{1, 2}, s.Expect.Items)
	assert.Equal(t, []any{1, 2}, s.Variables["xs"])
	assert.True(t, s.needsTrace())
}

func TestParseScenario_ExpectForms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []any
	}{
		{"empty list", "expect: []", []any{}},
		{"scalar", "expect: 5", []any{5}},
		{"map", "expect: {a: 1}", []any{map[string]any{"a": 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseScenario([]byte("name: n\ndescription: d\nquery: q\n" + tt.src + "\n"))
			require.NoError(t, err)
			assert.True(t, s.Expect.Set)
			assert.Equal(t, tt.want, s.Expect.Items)
		})
	}
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"missing name", "description: d\nquery: q\nexpect: []", "name is required"},
		{"missing description", "name: n\nquery: q\nexpect: []", "description is required"},
		{"missing query", "name: n\ndescription: d\nexpect: []", "query is required"},
		{"no expectation", "name: n\ndescription: d\nquery: q", "exactly one of expect and expect_error"},
		{"both expectations", "name: n\ndescription: d\nquery: q\nexpect: []\nexpect_error: XPTY0004", "exactly one of expect and expect_error"},
		{"unknown field", "name: n\ndescription: d\nquery: q\nexpect: []\nexpected: []", "failed to parse YAML"},
		{"bad storage", "name: n\ndescription: d\nquery: q\nexpect: []\nstorage: disk", "unknown storage"},
		{"assertion without type", "name: n\ndescription: d\nquery: q\nexpect: []\nassertions: [{clause: x}]", "type is required"},
		{"trace_contains without clause", "name: n\ndescription: d\nquery: q\nexpect: []\nassertions: [{type: trace_contains}]", "clause is required"},
		{"trace_order without clauses", "name: n\ndescription: d\nquery: q\nexpect: []\nassertions: [{type: trace_order}]", "clauses list is required"},
		{"negative count", "name: n\ndescription: d\nquery: q\nexpect: []\nassertions: [{type: result_count, count: -1}]", "non-negative"},
		{"unknown assertion", "name: n\ndescription: d\nquery: q\nexpect: []\nassertions: [{type: final_state}]", "unknown assertion type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	assert.Equal(t, []string{
		"context_items",
		"customer_totals",
		"empty_result",
		"open_orders",
		"sliding_pairs",
		"type_error",
	}, names)
}

func TestLoadScenarios_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	src := []byte("name: same\ndescription: d\nquery: \"1\"\nexpect: [1]\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), src, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), src, 0o644))

	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scenario name "same" already used`)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
