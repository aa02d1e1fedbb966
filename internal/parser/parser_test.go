package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/flwor"
	"github.com/roach88/flwor/internal/ir"
)

// evaluate parses, compiles and runs query with the given context item
// and external variable values.
func evaluate(t *testing.T, query string, item ir.Item, vars map[string]ir.Sequence) ir.Sequence {
	t.Helper()
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	mod, err := Parse(query, WithExternals(names...))
	require.NoError(t, err)

	sc := expr.NewStaticContext(expr.DefaultLibrary(), mod.Slots)
	e, err := expr.TypeCheck(sc, mod.Body, ir.AnyItem)
	require.NoError(t, err)
	e, err = expr.Optimize(sc, e, ir.AnyItem)
	require.NoError(t, err)

	c := expr.NewContext(context.Background(), &expr.Env{}, mod.Slots.Size())
	for name, value := range vars {
		c.SetSequence(mod.Externals[name].Slot, value)
	}
	if item != nil {
		c = c.WithFocus(item, 1, 1)
	}
	got, err := e.Evaluate(c)
	require.NoError(t, err)
	return got
}

func TestParse_Expressions(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  ir.Sequence
	}{
		{"precedence", "1 + 2 * 3", ir.Ints(7)},
		{"parentheses", "(1 + 2) * 3", ir.Ints(9)},
		{"idiv and mod", "(10 idiv 3, 10 mod 3)", ir.Ints(3, 1)},
		{"unary minus", "- 2 + 5", ir.Ints(3)},
		{"double minus", "--4", ir.Ints(4)},
		{"decimal", "1.5 * 2", ir.Sequence{ir.Double(3)}},
		{"exponent", "1e2", ir.Sequence{ir.Double(100)}},
		{"range", "2 to 4", ir.Ints(2, 3, 4)},
		{"empty sequence", "()", nil},
		{"general comparison", "(1, 2) = (2, 3)", ir.Sequence{ir.Bool(true)}},
		{"value comparison", "3 lt 2", ir.Sequence{ir.Bool(false)}},
		{"and or", "1 = 2 or 2 = 2 and 3 = 3", ir.Sequence{ir.Bool(true)}},
		{"if", `if (1 < 2) then "yes" else "no"`, ir.Strings("yes")},
		{"positional filter", "(10, 20, 30)[2]", ir.Ints(20)},
		{"boolean filter", "(1, 2, 3, 4)[. > 2]", ir.Ints(3, 4)},
		{"function call", `upper-case("abc")`, ir.Strings("ABC")},
		{"fn prefix", `fn:count((1, 2))`, ir.Ints(2)},
		{"doubled quote", `'it''s'`, ir.Strings("it's")},
		{"entity", `"a &amp; b"`, ir.Strings("a & b")},
		{"comment", "1 (: one (: nested :) :) + 1", ir.Ints(2)},
		{"map lookup", `map { "a": 1, "b": [10, 20] }?b?2`, ir.Ints(20)},
		{"string key", `map { "a b": 1 }?"a b"`, ir.Ints(1)},
		{"array wildcard", `[1, (2, 3)]?*`, ir.Ints(1, 2, 3)},
		{"curly array", `array { 1 to 3 }?3`, ir.Ints(3)},
		{"empty array", `count([]?*)`, ir.Ints(0)},
		{"path step", `[map { "n": 1 }, map { "n": 2 }]?*/n`, ir.Ints(1, 2)},
		{"path wildcard", `map { "a": 1, "b": 2 }/*`, ir.Ints(1, 2)},
		{"path expression step", `(1, 2)/(. * 10)`, ir.Ints(10, 20)},
		{"version declaration", `xquery version "3.1"; 1`, ir.Ints(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluate(t, tt.query, nil, nil))
		})
	}
}

func TestParse_FLWOR(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  ir.Sequence
	}{
		{
			name:  "for where return",
			query: "for $x in 1 to 5 where $x mod 2 = 1 return $x * 10",
			want:  ir.Ints(10, 30, 50),
		},
		{
			name:  "multiple bindings",
			query: "for $x in (1, 2), $y in (10, 20) return $x + $y",
			want:  ir.Ints(11, 21, 12, 22),
		},
		{
			name:  "positional variable",
			query: `for $s at $i in ("a", "b", "c") where $i = 2 return $s`,
			want:  ir.Strings("b"),
		},
		{
			name:  "allowing empty",
			query: "for $x allowing empty in () return count($x)",
			want:  ir.Ints(0),
		},
		{
			name:  "typed let",
			query: "let $x as xs:integer := 3 return $x + 1",
			want:  ir.Ints(4),
		},
		{
			name:  "let shadows",
			query: "let $x := 1 let $x := $x + 1 return $x",
			want:  ir.Ints(2),
		},
		{
			name:  "order by descending",
			query: "for $x in (3, 1, 2) order by $x descending return $x",
			want:  ir.Ints(3, 2, 1),
		},
		{
			name:  "empty sorts least",
			query: "for $x in (3, 2, 1) order by (if ($x = 2) then () else $x) return $x",
			want:  ir.Ints(2, 1, 3),
		},
		{
			name:  "empty greatest",
			query: "for $x in (3, 2, 1) stable order by (if ($x = 2) then () else $x) empty greatest return $x",
			want:  ir.Ints(1, 3, 2),
		},
		{
			name: "collation",
			query: `for $s in ("b", "a") order by $s ascending
				collation "http://www.w3.org/2005/xpath-functions/collation/codepoint" return $s`,
			want: ir.Strings("a", "b"),
		},
		{
			name:  "group by",
			query: "for $x in 1 to 6 let $k := $x mod 3 group by $k order by $k return sum($x)",
			want:  ir.Ints(9, 5, 7),
		},
		{
			name: "group by retains variables",
			query: `for $x in (1, 2, 3) let $y := $x * 2
				group by $k := $x mod 2 order by $k return [$k, sum($y)]`,
			want: ir.Sequence{ir.Array{ir.Int(0), ir.Int(4)}, ir.Array{ir.Int(1), ir.Int(8)}},
		},
		{
			name:  "count",
			query: `for $x in ("a", "b") count $c return $c`,
			want:  ir.Ints(1, 2),
		},
		{
			name: "tumbling window",
			query: `for tumbling window $w in 1 to 5
				start $s when true() end $e when $e - $s = 1 return sum($w)`,
			want: ir.Ints(3, 7, 5),
		},
		{
			name: "sliding window only end",
			query: `for sliding window $w in 1 to 3
				start at $s when true() only end at $e when $e - $s = 1 return sum($w)`,
			want: ir.Ints(3, 5),
		},
		{
			name: "window previous and next",
			query: `for tumbling window $w in (1, 2, 5, 6, 9)
				start $s previous $p when empty($p) or $s - $p > 1 return count($w)`,
			want: ir.Ints(2, 2, 1),
		},
		{
			name:  "nested flwor",
			query: "for $x in (1, 2) return (for $y in (1 to $x) return $y)",
			want:  ir.Ints(1, 1, 2),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluate(t, tt.query, nil, nil))
		})
	}
}

func TestParse_ContextItemFields(t *testing.T) {
	doc := ir.NewObject(ir.O("a", ir.Int(5)), ir.O("tags", ir.Array{ir.String("x"), ir.String("y")}))

	assert.Equal(t, ir.Ints(6), evaluate(t, "a + 1", doc, nil))
	assert.Equal(t, ir.Ints(6), evaluate(t, "?a + 1", doc, nil))
	assert.Equal(t, ir.Strings("y"), evaluate(t, "./tags?2", doc, nil))
}

func TestParse_ExternalVariables(t *testing.T) {
	got := evaluate(t, "$n * 2", nil, map[string]ir.Sequence{"n": ir.Ints(21)})
	assert.Equal(t, ir.Ints(42), got)
}

func TestParse_PrologDeclaration(t *testing.T) {
	mod, err := Parse("declare variable $n as xs:integer external; $n + 1")
	require.NoError(t, err)

	b, ok := mod.Externals["n"]
	require.True(t, ok)
	assert.True(t, b.Typed)
	assert.Equal(t, ir.SingleInteger, b.Declared)
}

func TestParse_Shapes(t *testing.T) {
	mod, err := Parse(`for $o in collection("orders") return $o/name`)
	require.NoError(t, err)

	e, ok := mod.Body.(*flwor.Expression)
	require.True(t, ok, "got %T", mod.Body)
	require.Len(t, e.Clauses, 1)

	path, ok := e.Return.Expr.(*expr.Path)
	require.True(t, ok, "got %T", e.Return.Expr)
	step, ok := path.Step.Expr.(*expr.Lookup)
	require.True(t, ok, "got %T", path.Step.Expr)
	assert.True(t, step.IsUnary())
	assert.Equal(t, "name", step.Key.Name)
}

func TestParse_DistinctSlots(t *testing.T) {
	mod, err := Parse("let $x := 1 let $x := 2 return $x")
	require.NoError(t, err)

	e := mod.Body.(*flwor.Expression)
	first := e.Clauses[0].RangeVariables()[0]
	second := e.Clauses[1].RangeVariables()[0]
	assert.NotEqual(t, first.Slot, second.Slot)
	assert.Equal(t, 2, mod.Slots.Size())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		code    expr.ErrorCode
		loc     expr.Location
		message string
	}{
		{
			name:  "misspelled keyword",
			query: "for $x in (1, 2) retrun $x",
			code:  expr.ErrSyntax,
			loc:   expr.Location{Line: 1, Column: 18},
		},
		{
			name:  "dangling operator",
			query: "1 +",
			code:  expr.ErrSyntax,
		},
		{
			name:    "unterminated string",
			query:   `"abc`,
			code:    expr.ErrSyntax,
			message: "unterminated string literal",
		},
		{
			name:    "unterminated comment",
			query:   "1 (: open",
			code:    expr.ErrSyntax,
			message: "unterminated comment",
		},
		{
			name:  "trailing tokens",
			query: "1 2",
			code:  expr.ErrSyntax,
		},
		{
			name:  "chained comparison",
			query: "1 < 2 < 3",
			code:  expr.ErrSyntax,
		},
		{
			name:  "position named like range variable",
			query: "for $x at $x in (1) return $x",
			code:  expr.ErrSyntax,
		},
		{
			name:  "undeclared variable",
			query: "for $x in 1\nreturn $y",
			code:  expr.ErrUndefinedVariable,
			loc:   expr.Location{Line: 2, Column: 8},
		},
		{
			name:  "window variable not visible in condition",
			query: "for tumbling window $w in (1) start when count($w) = 1 return $w",
			code:  expr.ErrUndefinedVariable,
		},
		{
			name:  "group by undeclared",
			query: "for $x in (1) group by $nope return $x",
			code:  expr.ErrUndefinedVariable,
		},
		{
			name:  "variable out of scope",
			query: "(for $x in (1) return $x), $x",
			code:  expr.ErrUndefinedVariable,
		},
		{
			name:    "unknown function with suggestion",
			query:   `upper-cse("a")`,
			code:    expr.ErrUnknownFunction,
			message: "did you mean upper-case()?",
		},
		{
			name:    "wrong arity",
			query:   "count()",
			code:    expr.ErrUnknownFunction,
			message: "does not accept 0 arguments",
		},
		{
			name:  "unknown type",
			query: "let $x as xs:date := 1 return $x",
			code:  expr.ErrSyntax,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query)
			require.Error(t, err)
			assert.True(t, expr.HasCode(err, tt.code), "got %v", err)
			assert.True(t, expr.IsStaticError(err))

			var qe *expr.Error
			require.ErrorAs(t, err, &qe)
			if !tt.loc.IsZero() {
				assert.Equal(t, tt.loc, qe.Location)
			}
			if tt.message != "" {
				assert.Contains(t, qe.Message, tt.message)
			}
		})
	}
}

func TestParse_CustomLibrary(t *testing.T) {
	lib := expr.DefaultLibrary().Clone()
	require.NoError(t, lib.Register(&expr.Function{
		Name:   "answer",
		Result: ir.SingleInteger,
		Impl: func(*expr.Context, []ir.Sequence, expr.Location) (ir.Sequence, error) {
			return ir.Ints(42), nil
		},
	}))

	_, err := Parse("answer()")
	assert.True(t, expr.HasCode(err, expr.ErrUnknownFunction))

	mod, err := Parse("answer()", WithFunctions(lib))
	require.NoError(t, err)
	call, ok := mod.Body.(*expr.FunctionCall)
	require.True(t, ok)
	assert.Equal(t, "answer", call.Fn.Name)
}
