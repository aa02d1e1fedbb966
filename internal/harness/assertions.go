package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/flwor/internal/testutil"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string                // Assertion type for categorization
	Expected string                // Human-readable expected outcome
	Actual   string                // Human-readable actual outcome
	Trace    []testutil.TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nfull trace:\n")
		for i, ev := range e.Trace {
			if ev.Phase == testutil.PhaseEnter {
				fmt.Fprintf(&buf, "  [%d] %s %s\n", i+1, ev.Clause, ev.Event)
			}
		}
	}
	return buf.String()
}

// assertTraceContains checks that the clause was entered at least once.
func assertTraceContains(trace []testutil.TraceEvent, assertion Assertion) error {
	for _, ev := range trace {
		if ev.Phase == testutil.PhaseEnter && ev.Clause == assertion.Clause {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("clause %s in trace", assertion.Clause),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that clauses are first entered in the specified
// order. Other clauses may be entered in between.
func assertTraceOrder(trace []testutil.TraceEvent, assertion Assertion) error {
	// Step 1: Find first position of each expected clause
	positions := make(map[string]int)
	for i, ev := range trace {
		if ev.Phase != testutil.PhaseEnter {
			continue
		}
		if _, seen := positions[ev.Clause]; !seen {
			positions[ev.Clause] = i + 1 // 1-indexed for readability
		}
	}

	// Step 2: Verify all clauses found
	for _, clause := range assertion.Clauses {
		if positions[clause] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all clauses present: %v", assertion.Clauses),
				Actual:   fmt.Sprintf("missing clause: %s", clause),
				Trace:    trace,
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Clauses); i++ {
		prev := assertion.Clauses[i-1]
		curr := assertion.Clauses[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("clauses in order: %v", assertion.Clauses),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the clause was entered exactly Count times,
// for one event when Event is set.
func assertTraceCount(trace []testutil.TraceEvent, assertion Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Phase == testutil.PhaseEnter && ev.Clause == assertion.Clause &&
			(assertion.Event == "" || ev.Event == assertion.Event) {
			count++
		}
	}

	if count != assertion.Count {
		what := assertion.Clause
		if assertion.Event != "" {
			what += " " + assertion.Event
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertResultCount checks the number of result items.
func assertResultCount(o Outcome, assertion Assertion) error {
	if o.Err != nil {
		return &AssertionError{
			Type:     AssertResultCount,
			Expected: fmt.Sprintf("%d items", assertion.Count),
			Actual:   fmt.Sprintf("error %v", o.Err),
		}
	}
	if len(o.Items) != assertion.Count {
		return &AssertionError{
			Type:     AssertResultCount,
			Expected: fmt.Sprintf("%d items", assertion.Count),
			Actual:   fmt.Sprintf("%d items", len(o.Items)),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against one outcome.
// Returns a slice of error messages for failed assertions. Trace
// assertions are skipped for optimized runs.
func EvaluateAssertions(o Outcome, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains, AssertTraceOrder, AssertTraceCount:
			if o.Combination.Optimize {
				continue
			}
			switch assertion.Type {
			case AssertTraceContains:
				err = assertTraceContains(o.Trace, assertion)
			case AssertTraceOrder:
				err = assertTraceOrder(o.Trace, assertion)
			default:
				err = assertTraceCount(o.Trace, assertion)
			}
		case AssertResultCount:
			err = assertResultCount(o, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
