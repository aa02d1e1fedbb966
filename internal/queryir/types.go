package queryir

import "github.com/roach88/flwor/internal/ir"

// Query represents an abstract query in the Query IR.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition in the Query IR.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = literal value
//   - BoundEquals: field = parameter supplied at run time
//   - And: all predicates must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select reads the documents of one collection that satisfy Filter.
//
// Semantics:
//
//	SELECT body FROM documents WHERE collection = <from> AND <filter>
//	ORDER BY id
//
// Example:
//
//	Select{
//	  From: "orders",
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "status", Value: ir.String("open")},
//	    BoundEquals{Field: "customer", Param: "p0"},
//	  }},
//	}
type Select struct {
	From   string    // Collection name
	Filter Predicate // nil = every document
}

func (Select) queryNode() {}

// Equals represents a field-equals-literal predicate.
//
// Example:
//
//	Equals{Field: "status", Value: ir.String("open")}
//
// PORTABLE FRAGMENT RULES:
//   - Value must be a string, integer, finite double or boolean
//   - Field names a top-level member of the document
type Equals struct {
	Field string  // Top-level document member
	Value ir.Item // Atomic comparison value
}

func (Equals) predicateNode() {}

// BoundEquals represents a field-equals-parameter predicate. The value is
// computed by the enclosing expression for every evaluation, e.g. from a
// variable bound by an outer for clause.
//
// Example:
//
//	for $c in collection("customers")
//	for $o in collection("orders")
//	where $o?customer = $c?id
//
// pushes down as BoundEquals{Field: "customer", Param: "p0"}.
type BoundEquals struct {
	Field string // Top-level document member
	Param string // Parameter name (p0, p1, ...)
}

func (BoundEquals) predicateNode() {}

// And represents a conjunction of predicates. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
