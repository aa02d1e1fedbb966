// Package expr is the expression layer underneath the FLWOR engine.
//
// It provides the narrow services the clause pipeline consumes:
//   - an evaluation Context holding the variable Frame (slots addressed by
//     integer index) and the focus (context item, position, size)
//   - the Expression interface: evaluate to a sequence, iterate, push into a
//     Receiver, or compute an effective boolean value
//   - a TypeChecker that validates or wraps an expression against a
//     required SequenceType
//   - tree utilities (Walk, ReplaceVariable, DependsOnFocus, ...) used by the
//     optimizer
//
// ARCHITECTURE:
//
// Every node exposes its children as Operands. An Operand records how the
// parent evaluates the child: FocusChanging operands run with a focus set by
// the parent (filter predicates, path steps), Looping operands run more than
// once per parent evaluation (loop bodies). Static analysis walks operands
// generically, so new node kinds only describe their children.
//
// Variables are Bindings: a name, a slot index and a declared type. Slots are
// assigned once by a SlotAllocator during parsing. A slot holds a Value,
// either a materialized sequence or a Closure that evaluates lazily and
// memoizes.
//
// ERROR MODEL:
//
// Static and dynamic failures are *Error values carrying an XQuery error code
// and the location of the failing node. Optimizer bugs panic with
// *InternalError; the engine recovers those at its boundary.
package expr
