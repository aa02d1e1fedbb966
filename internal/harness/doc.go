// Package harness runs query scenarios: a query, its input and its expected
// result, written in YAML.
//
// # Scenario Format
//
//	name: open_orders
//	description: "Open orders sorted by total"
//	storage: sqlite            # memory (default) or sqlite
//	collections:
//	  orders:
//	    - { id: 1, status: open, total: 30 }
//	    - { id: 2, status: closed, total: 10 }
//	variables:
//	  min: 10
//	context: { region: "eu" }
//	query: |
//	  for $o in collection("orders")
//	  where $o?status = "open" and $o?total ge $min
//	  order by $o?total
//	  return $o?id
//	expect: [1]
//	assertions:
//	  - type: trace_contains
//	    clause: "for $o"
//
// A scenario sets either expect (the result items as JSON values; a
// scalar is a one-item result) or expect_error (an error code such as
// XPTY0004).
//
// # Combinations
//
// Every scenario runs four times: pull and push evaluation, each with and
// without the optimizer. All four runs must produce the expected outcome
// and agree with each other.
//
// # Assertion Types
//
//   - trace_contains: a clause appears in the trace
//   - trace_order: clauses are first entered in the given order
//   - trace_count: a clause is entered exactly N times (optionally for one
//     stream event: next, process or close)
//   - result_count: the result has exactly N items
//
// Trace assertions are checked on the unoptimized runs only; the optimizer
// may fold a FLWOR expression into plain iteration, which has no clauses
// to trace.
//
// # Golden Files
//
// RunWithGolden compares the canonical JSON snapshot of a scenario's
// outcome with testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
