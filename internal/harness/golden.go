package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/flwor/internal/ir"
)

// GoldenDir is where golden files live, relative to the test's package.
const GoldenDir = "testdata/golden"

// Snapshot renders the outcome of a scenario as canonical JSON. All
// combinations agree on a passing result, so the first outcome stands for
// the scenario.
func Snapshot(result *Result) ([]byte, error) {
	snap := map[string]any{
		"scenario": result.Scenario,
	}
	if len(result.Outcomes) > 0 {
		first := result.Outcomes[0]
		if first.Err != nil {
			snap["error"] = first.ErrorCode
		} else {
			items := first.Items
			if items == nil {
				items = ir.Sequence{}
			}
			snap["result"] = items
		}
	}
	data, err := ir.MarshalCanonical(snap)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", result.Scenario, err)
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario, fails the test on any scenario error
// and compares the snapshot with testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	snapshot, err := Snapshot(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, snapshot)
	return nil
}

// GoldenMismatchError reports a snapshot that differs from its golden file.
type GoldenMismatchError struct {
	Path     string
	Expected []byte
	Actual   []byte
}

func (e *GoldenMismatchError) Error() string {
	return fmt.Sprintf("golden file %s differs:\n  expected: %s  actual:   %s", e.Path, e.Expected, e.Actual)
}

// CheckGolden compares snapshot with dir/{name}.golden outside of go test.
// With update set, the golden file is (re)written instead.
func CheckGolden(dir, name string, snapshot []byte, update bool) error {
	path := filepath.Join(dir, name+".golden")
	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create golden dir: %w", err)
		}
		if err := os.WriteFile(path, snapshot, 0o644); err != nil {
			return fmt.Errorf("write golden file: %w", err)
		}
		return nil
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(expected, snapshot) {
		return &GoldenMismatchError{Path: path, Expected: expected, Actual: snapshot}
	}
	return nil
}
