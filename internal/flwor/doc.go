// Package flwor evaluates FLWOR expressions as tuple streams.
//
// A FLWOR expression is an ordered list of clauses followed by a return
// expression. Each clause produces a stage of a pipeline over a shared
// variable frame. Stages never copy tuples around; they write the variables
// they bind into frame slots and hand control to the next stage.
//
// ARCHITECTURE:
//
// Every clause builds two kinds of stage:
//
//	pull: singularity <- clause 1 <- clause 2 <- ... <- return iterator
//	push: clause 1 -> clause 2 -> ... -> return sink
//
// In pull mode the consumer calls Next on the last stage, which advances the
// stages it wraps until every variable of the current tuple is bound. In push
// mode the first stage is processed once and loops internally, forwarding
// each tuple to the stage after it. Both modes produce the same results in
// the same order; tests run every query both ways.
//
// Order by and group by see the whole tuple stream before emitting. They
// snapshot the raw slot values of every variable in scope, so lazily bound
// let variables stay unevaluated across the sort.
//
// CRITICAL PATTERNS:
//   - Close propagates through every stage exactly once, whether or not the
//     stream was exhausted.
//   - Clauses hold Bindings (slot indexes), never frame storage.
//   - A clause's variables are visible to the clauses after it and to the
//     return expression only.
//
// OPTIMIZATION:
//
// Optimize factors the context item out of where clauses, inlines single-use
// let variables, moves where terms as far left as their dependencies allow,
// absorbs them into the source sequences of for clauses as filter predicates,
// and finally collapses expressions made only of for and let clauses into
// nested expr.For and expr.Let primitives.
package flwor
