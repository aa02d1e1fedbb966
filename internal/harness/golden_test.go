package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flwor/internal/ir"
)

func TestScenarios_Golden(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, s))
		})
	}
}

func TestSnapshot(t *testing.T) {
	data, err := Snapshot(&Result{
		Scenario: "s",
		Outcomes: []Outcome{{Items: ir.Sequence{ir.NewObject(ir.O("b", ir.Int(1)), ir.O("a", ir.String("x")))}}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"result":[{"a":"x","b":1}],"scenario":"s"}`+"\n", string(data))

	data, err = Snapshot(&Result{Scenario: "e", Outcomes: []Outcome{{Err: assert.AnError, ErrorCode: "XPTY0004"}}})
	require.NoError(t, err)
	assert.Equal(t, `{"error":"XPTY0004","scenario":"e"}`+"\n", string(data))

	data, err = Snapshot(&Result{Scenario: "empty", Outcomes: []Outcome{{}}})
	require.NoError(t, err)
	assert.Equal(t, `{"result":[],"scenario":"empty"}`+"\n", string(data))
}

func TestCheckGolden(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "golden")
	snapshot := []byte(`{"result":[1],"scenario":"one"}` + "\n")

	err := CheckGolden(dir, "one", snapshot, false)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, CheckGolden(dir, "one", snapshot, true))
	require.NoError(t, CheckGolden(dir, "one", snapshot, false))

	err = CheckGolden(dir, "one", []byte(`{"result":[2],"scenario":"one"}`+"\n"), false)
	var mismatch *GoldenMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, filepath.Join(dir, "one.golden"), mismatch.Path)
}
