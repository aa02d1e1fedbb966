package querysql

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/flwor/internal/ir"
	"github.com/roach88/flwor/internal/queryir"
)

// DocumentsTable is the table holding collection documents. Each row is
// (collection TEXT, id INTEGER, body TEXT) with body a JSON document.
const DocumentsTable = "documents"

// SQLCompiler compiles Query IR to parameterized SQL for SQLite.
//
// CRITICAL: ALL queries include ORDER BY id so documents come back in
// storage order.
// CRITICAL: All values are parameterized, never interpolated.
type SQLCompiler struct {
	// Params holds the values for BoundEquals predicates, keyed by
	// parameter name.
	Params map[string]ir.Item
}

// NewSQLCompiler creates a new SQLCompiler. params may be nil when the
// query has no BoundEquals predicates.
func NewSQLCompiler(params map[string]ir.Item) *SQLCompiler {
	if params == nil {
		params = make(map[string]ir.Item)
	}
	return &SQLCompiler{Params: params}
}

// Compile converts a Query IR query to parameterized SQL selecting the
// body column. Returns (sql, params, error).
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		if query == nil {
			return "", nil, fmt.Errorf("cannot compile nil query")
		}
		return c.compileSelect(*query)
	case nil:
		return "", nil, fmt.Errorf("cannot compile nil query")
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	where := "collection = ?"
	params := []any{q.From}
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where += " AND " + filterSQL
		params = append(params, filterParams...)
	}

	sql := fmt.Sprintf("SELECT body FROM %s WHERE %s ORDER BY %s",
		DocumentsTable,
		where,
		stableOrderKey())

	return sql, params, nil
}

// stableOrderKey returns the ORDER BY clause for a query.
// MANDATORY: Every query MUST call this function.
func stableOrderKey() string {
	return "id COLLATE BINARY ASC"
}

// compilePredicate compiles a predicate to a WHERE fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		return c.compileEquals(pred.Field, pred.Value)
	case *queryir.Equals:
		return c.compileEquals(pred.Field, pred.Value)
	case queryir.BoundEquals:
		return c.compileBoundEquals(pred)
	case *queryir.BoundEquals:
		return c.compileBoundEquals(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEquals matches documents where some atomic value reachable from
// the field equals value. json_tree yields the field itself when it is a
// scalar and every nested scalar member when it is an array, which is how
// the general comparison "=" atomizes arrays.
func (c *SQLCompiler) compileEquals(field string, value ir.Item) (string, []any, error) {
	cond, arg, err := atomCondition(value)
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", field, err)
	}
	sql := fmt.Sprintf("EXISTS (SELECT 1 FROM json_tree(%s.body, ?) AS j WHERE %s)", DocumentsTable, cond)
	return sql, []any{fieldPath(field), arg}, nil
}

// atomCondition compares a json_tree row with value. Types are compared
// first, so "1" never matches 1 and true never matches 1.
func atomCondition(value ir.Item) (string, any, error) {
	switch v := value.(type) {
	case ir.String:
		return "j.type = 'text' AND j.atom = ?", string(v), nil
	case ir.Int:
		return "j.type IN ('integer', 'real') AND j.atom = ?", int64(v), nil
	case ir.Double:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", nil, fmt.Errorf("cannot compare with %s", ir.StringValue(v))
		}
		return "j.type IN ('integer', 'real') AND j.atom = ?", f, nil
	case ir.Bool:
		return "j.type = ?", ir.StringValue(v), nil
	case nil:
		return "", nil, fmt.Errorf("missing comparison value")
	default:
		return "", nil, fmt.Errorf("%s cannot be used as SQL parameter", ir.TypeName(value))
	}
}

// fieldPath builds the JSON path of a top-level member.
func fieldPath(field string) string {
	return `$."` + field + `"`
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil // Always true (vacuous truth)
	}

	var sqlParts []string
	var allParams []any

	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}

	return strings.Join(sqlParts, " AND "), allParams, nil
}

// compileBoundEquals compiles a BoundEquals predicate with the parameter
// value from Params.
func (c *SQLCompiler) compileBoundEquals(beq queryir.BoundEquals) (string, []any, error) {
	val, ok := c.Params[beq.Param]
	if !ok {
		return "", nil, fmt.Errorf("no value for parameter %s", beq.Param)
	}
	return c.compileEquals(beq.Field, val)
}
