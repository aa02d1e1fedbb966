package queryir

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/flwor/internal/ir"
)

// ValidationResult contains portability analysis of a query.
type ValidationResult struct {
	// IsPortable indicates the query uses only portable fragment features
	// and may be handed to the store.
	IsPortable bool

	// Warnings lists non-portable features used in the query.
	// Empty when IsPortable is true.
	Warnings []string
}

// Validate checks if a query conforms to the portable fragment rules.
//
// Portable fragment rules:
//  1. A collection name is present
//  2. Field names are non-empty top-level members without quotes
//  3. Literal values are strings, integers, finite doubles or booleans
//  4. Parameters are named
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateQuery(query)

	return ValidationResult{
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addWarning("nil query - portable fragment requires valid query nodes")
			return
		}
		v.validateSelect(*query)
	case nil:
		v.addWarning("nil query - portable fragment requires valid query nodes")
	default:
		v.addWarning("Unknown query type: %T - portability cannot be verified", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.From == "" {
		v.addWarning("Empty collection name")
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case BoundEquals:
		v.validateBound(pred)
	case *BoundEquals:
		v.validateBound(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addWarning("Unknown predicate type: %T - portability cannot be verified", p)
	}
}

func (v *validator) validateField(field string) {
	switch {
	case field == "":
		v.addWarning("Empty field name")
	case strings.ContainsAny(field, `"\`):
		v.addWarning("Field name %q contains quotes or backslashes", field)
	}
}

func (v *validator) validateEquals(eq Equals) {
	v.validateField(eq.Field)
	switch val := eq.Value.(type) {
	case ir.String, ir.Int, ir.Bool:
	case ir.Double:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			v.addWarning("Field '%s' compared to %s - only finite numbers are portable", eq.Field, ir.StringValue(val))
		}
	case ir.Null, nil:
		v.addWarning("Field '%s' compared to null - portable fragment requires explicit values", eq.Field)
	default:
		v.addWarning("Field '%s' compared to a %s - only atomic values are portable", eq.Field, ir.TypeName(val))
	}
}

func (v *validator) validateBound(be BoundEquals) {
	v.validateField(be.Field)
	if be.Param == "" {
		v.addWarning("Field '%s' compared to an unnamed parameter", be.Field)
	}
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}

// Describe renders a predicate for plan output, e.g.
// `status = "open" and customer = $p0`.
func Describe(p Predicate) string {
	switch pred := p.(type) {
	case nil:
		return "true"
	case Equals:
		return pred.Field + " = " + describeValue(pred.Value)
	case *Equals:
		return Describe(*pred)
	case BoundEquals:
		return pred.Field + " = $" + pred.Param
	case *BoundEquals:
		return Describe(*pred)
	case And:
		if len(pred.Predicates) == 0 {
			return "true"
		}
		parts := make([]string, len(pred.Predicates))
		for i, sub := range pred.Predicates {
			parts[i] = Describe(sub)
		}
		return strings.Join(parts, " and ")
	case *And:
		return Describe(*pred)
	}
	return fmt.Sprintf("%T", p)
}

func describeValue(it ir.Item) string {
	if s, ok := it.(ir.String); ok {
		return fmt.Sprintf("%q", string(s))
	}
	return ir.StringValue(it)
}
