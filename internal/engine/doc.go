// Package engine is the runtime facade over the parser, the expression
// layer and the FLWOR core.
//
// An Engine compiles query text once (parse, type-check, optimize) and
// caches the result. A compiled Query is immutable and may be evaluated by
// many goroutines at once; every evaluation gets its own frame, its own
// execution ID and its own Go context.
//
// ARCHITECTURE:
//
// Compile:
//  1. parser.Parse resolves variables to frame slots and functions to the
//     engine's library
//  2. expr.TypeCheck validates the tree
//  3. expr.Optimize rewrites FLWOR expressions (where-term migration,
//     positional absorption, collection pushdown, collapse)
//  4. with a trace listener, trace clauses are inserted into every FLWOR
//     expression that survived optimization
//
// Evaluate:
// The engine's Mode decides whether the top-level result is pulled through
// Iterate or pushed through Process. Both produce the same items in the
// same order.
//
// Collections:
// collection("name") reads documents from in-memory collections registered
// with WithCollections, then from the SQLite store. Equality filters folded
// into a CollectionQuery are compiled to SQL by querysql and run by the
// store; in-memory collections fall back to filtering in Go.
//
// CRITICAL PATTERNS:
//
// Optimizer invariant violations panic with *expr.InternalError. Compile
// and Evaluate recover them and return a RuntimeError with ErrCodeInternal;
// any other panic is re-raised.
package engine
