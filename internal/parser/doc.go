// Package parser turns query text into expression trees.
//
// The accepted language is the XQuery subset the engine evaluates: FLWOR
// expressions with for, let, tumbling and sliding windows, where, order by,
// group by and count clauses; conditionals; logical, comparison, range and
// arithmetic operators; filter predicates; path steps and ?key lookups over
// maps and arrays; map and array constructors; function calls and
// (: comments :).
//
// Variable names are resolved while parsing. Every declared variable gets
// its own frame slot from a SlotManager, and references point at the
// Binding they resolve to. Unknown variables fail with XPST0008, unknown
// functions with XPST0017, and malformed text with XPST0003 at the line and
// column of the offending token.
package parser
