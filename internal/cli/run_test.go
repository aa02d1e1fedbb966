package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Inline(t *testing.T) {
	stdout, _, err := executeCommand(t, "run", "for $x in (1, 2, 3) return $x * 2")
	require.NoError(t, err)
	assert.Equal(t, "2\n4\n6\n", stdout)
}

func TestRun_Modes(t *testing.T) {
	query := "for $x in (3, 1, 2) order by $x descending return $x"
	for _, args := range [][]string{
		{"--mode", "pull"},
		{"--mode", "push"},
		{"--mode", "pull", "--no-optimize"},
		{"--mode", "push", "--no-optimize"},
	} {
		t.Run(args[1], func(t *testing.T) {
			stdout, _, err := executeCommand(t, append(append([]string{"run"}, args...), query)...)
			require.NoError(t, err)
			assert.Equal(t, "3\n2\n1\n", stdout)
		})
	}
}

func TestRun_JSONFormat(t *testing.T) {
	stdout, _, err := executeCommand(t, "--format", "json", "run", `for $x in (1, 2) return map { "n": $x }`)
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1", resp.Data.Version)
	assert.Equal(t, 2, resp.Data.Count)
	assert.JSONEq(t, `[{"n":1},{"n":2}]`, string(resp.Data.Items))
}

func TestRun_QueryFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "q.xq", "let $a := 20\nreturn $a + 1\n")

	stdout, _, err := executeCommand(t, "run", "@"+path)
	require.NoError(t, err)
	assert.Equal(t, "21\n", stdout)
}

func TestRun_Input(t *testing.T) {
	dir := t.TempDir()
	jsonPath := writeFile(t, dir, "doc.json", `{"items": [1, 2, 3]}`)
	yamlPath := writeFile(t, dir, "doc.yaml", "items: [1, 2, 3]\n")

	for _, path := range []string{jsonPath, yamlPath} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			stdout, _, err := executeCommand(t, "run", "--input", path, "for $i in items?* where $i ge 2 return $i")
			require.NoError(t, err)
			assert.Equal(t, "2\n3\n", stdout)
		})
	}
}

func TestRun_Variables(t *testing.T) {
	stdout, _, err := executeCommand(t, "run",
		"--var", "xs=[1, 2]",
		"--var", "$n=10",
		"for $x in $xs return $x + $n")
	require.NoError(t, err)
	assert.Equal(t, "11\n12\n", stdout)
}

func TestRun_BadVariable(t *testing.T) {
	tests := []struct {
		name string
		arg  string
	}{
		{"no equals", "xs"},
		{"empty name", "=1"},
		{"bad json", "xs={"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := executeCommand(t, "run", "--var", tt.arg, "1")
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, stdout, "Error [E003]")
		})
	}
}

func TestRun_QueryError(t *testing.T) {
	stdout, _, err := executeCommand(t, "run", "$nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [XPST0008]")
}

func TestRun_QueryErrorJSON(t *testing.T) {
	stdout, _, err := executeCommand(t, "--format", "json", "run", "$nope")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "XPST0008", resp.Error.Code)
}

func TestRun_CommandErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"missing query file", []string{"run", "@" + filepath.Join(dir, "missing.xq")}, ErrCodeNotFound},
		{"missing input", []string{"run", "--input", filepath.Join(dir, "missing.json"), "1"}, ErrCodeNotFound},
		{"missing database", []string{"run", "--db", filepath.Join(dir, "missing.db"), "1"}, ErrCodeNotFound},
		{"missing config", []string{"run", "--config", filepath.Join(dir, "missing.cue"), "1"}, ErrCodeNotFound},
		{"bad mode", []string{"run", "--mode", "sideways", "1"}, ErrCodeInvalidFlag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, stdout, "Error ["+tt.wantCode+"]")
		})
	}
}

func TestRun_Database(t *testing.T) {
	db := setupOrdersDB(t)
	query := `for $o in collection("orders") where $o?status = "open" return $o?id`

	for _, mode := range []string{"pull", "push"} {
		t.Run(mode, func(t *testing.T) {
			stdout, _, err := executeCommand(t, "run", "--db", db, "--mode", mode, query)
			require.NoError(t, err)
			assert.Equal(t, "1\n3\n", stdout)
		})
	}
}

func TestRun_UnknownCollection(t *testing.T) {
	db := setupOrdersDB(t)
	stdout, _, err := executeCommand(t, "run", "--db", db, `collection("customers")`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [FODC0002]")
}

func TestRun_Config(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orders.json", ordersJSON)
	cfg := writeFile(t, dir, "flwor.cue", `
engine: mode: "push"
collections: orders: "orders.json"
variables: min: 3
`)

	query := `for $o in collection("orders") where $o?qty ge $min return $o?id`
	stdout, _, err := executeCommand(t, "run", "--config", cfg, query)
	require.NoError(t, err)
	assert.Equal(t, "1\n3\n", stdout)

	// Flags override config values.
	stdout, _, err = executeCommand(t, "run", "--config", cfg, "--var", "min=5", query)
	require.NoError(t, err)
	assert.Equal(t, "3\n", stdout)
}

func TestRun_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "flwor.cue", `engine: mode: "sideways"`)

	stdout, _, err := executeCommand(t, "run", "--config", cfg, "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E004]")
}

func TestRun_Trace(t *testing.T) {
	stdout, stderr, err := executeCommand(t, "run", "--trace", "--no-optimize",
		"for $x in (1, 2) where $x > 1 return $x")
	require.NoError(t, err)
	assert.Equal(t, "2\n", stdout)
	assert.Contains(t, stderr, "enter clause")
	assert.Contains(t, stderr, "for $x")
}

func TestExplain(t *testing.T) {
	stdout, _, err := executeCommand(t, "explain", "--no-optimize", "for $x in (1, 2) return $x")
	require.NoError(t, err)
	assert.Contains(t, stdout, "for $x")
}

func TestExplain_JSON(t *testing.T) {
	stdout, _, err := executeCommand(t, "--format", "json", "explain", "--mode", "push", "--var", "n=1",
		"for $x in (1, 2) return $x + $n")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   ExplainResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "push", resp.Data.Mode)
	assert.Equal(t, []string{"n"}, resp.Data.Externals)
	assert.NotEmpty(t, resp.Data.Plan)
}

func TestExplain_StaticError(t *testing.T) {
	stdout, _, err := executeCommand(t, "explain", "for $x in")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [XPST0003]")
}

func TestParseVar(t *testing.T) {
	name, seq, err := parseVar(`s="open"`)
	require.NoError(t, err)
	assert.Equal(t, "s", name)
	require.Len(t, seq, 1)

	name, seq, err = parseVar(`xs=[]`)
	require.NoError(t, err)
	assert.Equal(t, "xs", name)
	assert.Empty(t, seq)
}
