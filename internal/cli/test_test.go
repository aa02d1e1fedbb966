package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doubleScenario = `name: double
description: "doubles each item"
query: "for $x in (1, 2) return $x * 2"
expect: [2, 4]
`

func TestTestCommand_HarnessScenarios(t *testing.T) {
	stdout, _, err := executeCommand(t, "test", "../harness/testdata/scenarios")
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "✓ open_orders")
	assert.Contains(t, stdout, "Test Summary: 6 passed, 0 failed, 6 total")
}

func TestTestCommand_UpdateAndCompare(t *testing.T) {
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	require.NoError(t, os.Mkdir(scenarios, 0o755))
	writeFile(t, scenarios, "double.yaml", doubleScenario)

	stdout, _, err := executeCommand(t, "test", scenarios, "--update")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ double (golden updated)")

	golden, err := os.ReadFile(filepath.Join(root, "golden", "double.golden"))
	require.NoError(t, err)
	assert.Equal(t, `{"result":[2,4],"scenario":"double"}`+"\n", string(golden))

	_, _, err = executeCommand(t, "test", scenarios)
	require.NoError(t, err)

	writeFile(t, filepath.Join(root, "golden"), "double.golden", `{"result":[4,2],"scenario":"double"}`+"\n")
	stdout, _, err = executeCommand(t, "test", scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "golden file mismatch")
}

func TestTestCommand_NoGoldenFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "double.yaml", doubleScenario)

	stdout, _, err := executeCommand(t, "test", dir, "--golden", filepath.Join(dir, "none"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ double")
}

func TestTestCommand_Failure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "wrong.yaml", `name: wrong
description: "expectation does not hold"
query: "1 + 1"
expect: [3]
`)
	writeFile(t, dir, "broken.yaml", "name: [\n")

	stdout, _, err := executeCommand(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Failed)
	assert.Equal(t, "broken.yaml", resp.Data.Scenarios[0].Name)
	assert.Equal(t, "wrong", resp.Data.Scenarios[1].Name)
}

func TestTestCommand_Filter(t *testing.T) {
	stdout, _, err := executeCommand(t, "test", "../harness/testdata/scenarios", "--filter", "open*")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommand_EmptyAndMissing(t *testing.T) {
	stdout, _, err := executeCommand(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, stdout, "No scenarios found.")

	stdout, _, err = executeCommand(t, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "scenarios directory not found")
}
