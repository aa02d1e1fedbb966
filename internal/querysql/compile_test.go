package querysql

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flwor/internal/ir"
	"github.com/roach88/flwor/internal/queryir"
)

func TestCompile_WholeCollection(t *testing.T) {
	compiler := NewSQLCompiler(nil)

	sql, params, err := compiler.Compile(queryir.Select{From: "orders"})
	require.NoError(t, err)

	assert.Equal(t, "SELECT body FROM documents WHERE collection = ? ORDER BY id COLLATE BINARY ASC", sql)
	assert.Equal(t, []any{"orders"}, params)
}

func TestCompile_SimpleSelect(t *testing.T) {
	compiler := NewSQLCompiler(nil)

	query := &queryir.Select{
		From:   "orders",
		Filter: queryir.Equals{Field: "status", Value: ir.String("open")},
	}

	sql, params, err := compiler.Compile(query)
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM documents")
	assert.Contains(t, sql, "json_tree(documents.body, ?)")
	assert.Contains(t, sql, "j.type = 'text' AND j.atom = ?")
	assert.Contains(t, sql, "ORDER BY id COLLATE BINARY ASC")

	// Values are never interpolated.
	assert.NotContains(t, sql, "open")
	assert.NotContains(t, sql, "status")
	assert.Equal(t, []any{"orders", `$."status"`, "open"}, params)
}

func TestCompile_ValueTypes(t *testing.T) {
	tests := []struct {
		name  string
		value ir.Item
		cond  string
		arg   any
	}{
		{"string", ir.String("x"), "j.type = 'text' AND j.atom = ?", "x"},
		{"integer", ir.Int(7), "j.type IN ('integer', 'real') AND j.atom = ?", int64(7)},
		{"double", ir.Double(2.5), "j.type IN ('integer', 'real') AND j.atom = ?", 2.5},
		{"true", ir.Bool(true), "j.type = ?", "true"},
		{"false", ir.Bool(false), "j.type = ?", "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := NewSQLCompiler(nil).Compile(queryir.Select{
				From:   "c",
				Filter: queryir.Equals{Field: "f", Value: tt.value},
			})
			require.NoError(t, err)
			assert.Contains(t, sql, tt.cond)
			assert.Equal(t, []any{"c", `$."f"`, tt.arg}, params)
		})
	}
}

func TestCompile_UnsupportedValues(t *testing.T) {
	tests := []struct {
		name  string
		value ir.Item
	}{
		{"null", ir.Null{}},
		{"nil", nil},
		{"nan", ir.Double(math.NaN())},
		{"object", ir.Object{}},
		{"array", ir.Array{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewSQLCompiler(nil).Compile(queryir.Select{
				From:   "c",
				Filter: queryir.Equals{Field: "f", Value: tt.value},
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), `field "f"`)
		})
	}
}

func TestCompile_AndWithBoundEquals(t *testing.T) {
	compiler := NewSQLCompiler(map[string]ir.Item{"p0": ir.Int(42)})

	query := queryir.Select{
		From: "orders",
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "status", Value: ir.String("open")},
			&queryir.BoundEquals{Field: "customer", Param: "p0"},
		}},
	}

	sql, params, err := compiler.Compile(query)
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(sql, "EXISTS")+strings.Count(sql, "collection = ?"))
	assert.Contains(t, sql, ") AND EXISTS (")
	assert.Equal(t, []any{"orders", `$."status"`, "open", `$."customer"`, int64(42)}, params)
}

func TestCompile_MissingBoundValue(t *testing.T) {
	_, _, err := NewSQLCompiler(nil).Compile(queryir.Select{
		From:   "orders",
		Filter: queryir.BoundEquals{Field: "customer", Param: "p3"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "p3")
}

func TestCompile_EmptyAnd(t *testing.T) {
	sql, params, err := NewSQLCompiler(nil).Compile(queryir.Select{From: "c", Filter: queryir.And{}})
	require.NoError(t, err)
	assert.Contains(t, sql, "collection = ? AND 1 = 1")
	assert.Equal(t, []any{"c"}, params)
}

func TestCompile_NilQuery(t *testing.T) {
	_, _, err := NewSQLCompiler(nil).Compile(nil)
	assert.Error(t, err)

	_, _, err = NewSQLCompiler(nil).Compile((*queryir.Select)(nil))
	assert.Error(t, err)
}
