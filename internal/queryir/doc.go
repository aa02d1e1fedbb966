// Package queryir provides the portable query representation used to push
// where-clause filters on collections down to the collection store.
//
// ARCHITECTURE:
//
// The optimizer recognizes filters of the shape
//
//	collection("orders")[.?status = "open" and .?customer = $c]
//
// and replaces them with an expr.CollectionQuery that carries a Select:
//
//	[FLWOR where] -> [absorbed predicate] -> [Query IR] -> [SQL backend]
//
// The Query IR is the contract between the optimizer and the store. It
// knows nothing about SQL; querysql compiles it.
//
// PORTABLE FRAGMENT:
//
// The portable fragment includes:
//   - Select(from, filter) - whole documents of one collection
//   - Predicates: Equals, BoundEquals, And
//
// The portable fragment EXCLUDES:
//   - Comparisons other than equality
//   - Null, map and array comparison values
//   - Empty field names and nested field paths
//   - OR predicates (they stay in the in-memory filter)
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package implement them, so backends can switch
// exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	    // field = literal
//	case BoundEquals:
//	    // field = run-time parameter
//	case And:
//	    // conjunction
//	}
//
// CRITICAL PATTERNS:
//
// Equality semantics follow the general comparison "=": a document matches
// when some atomic value of the field equals the comparison value. Arrays
// in documents are searched member by member.
//
// Documents come back in storage order. Pushdown never reorders a
// collection.
package queryir
