package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/flwor/internal/ir"
	"github.com/roach88/flwor/internal/store"
)

// executeCommand runs the root command with args and returns what it wrote.
func executeCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCommand()
	outBuf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return outBuf.String(), errBuf.String(), err
}

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const ordersJSON = `[
  {"id": 1, "status": "open", "qty": 3},
  {"id": 2, "status": "closed", "qty": 1},
  {"id": 3, "status": "open", "qty": 5}
]`

// setupOrdersDB creates a database holding the orders collection.
func setupOrdersDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	docs, err := ir.DecodeJSON([]byte(ordersJSON))
	require.NoError(t, err)
	require.NoError(t, st.CreateCollection(context.Background(), "orders", ir.Sequence(docs.(ir.Array))))
	return path
}
