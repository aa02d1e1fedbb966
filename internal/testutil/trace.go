package testutil

import (
	"sync"

	"github.com/roach88/flwor/internal/expr"
)

// Trace phases.
const (
	PhaseEnter = "enter"
	PhaseLeave = "leave"
)

// TraceEvent is one recorded trace notification.
type TraceEvent struct {
	Phase       string `json:"phase"`
	Clause      string `json:"clause"`
	Event       string `json:"event"`
	ExecutionID string `json:"execution_id"`
}

// TraceRecorder is an expr.TraceListener that keeps every notification in
// arrival order.
//
// Thread-safety: TraceRecorder is safe for concurrent use via internal mutex.
type TraceRecorder struct {
	mu     sync.Mutex
	events []TraceEvent
}

var _ expr.TraceListener = (*TraceRecorder)(nil)

// NewTraceRecorder creates an empty recorder.
func NewTraceRecorder() *TraceRecorder {
	return &TraceRecorder{}
}

func (r *TraceRecorder) Enter(_ *expr.Context, info expr.TraceInfo) {
	r.record(PhaseEnter, info)
}

func (r *TraceRecorder) Leave(info expr.TraceInfo) {
	r.record(PhaseLeave, info)
}

func (r *TraceRecorder) record(phase string, info expr.TraceInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, TraceEvent{
		Phase:       phase,
		Clause:      info.Clause,
		Event:       string(info.Event),
		ExecutionID: info.ExecutionID,
	})
}

// Events returns a copy of the recorded events.
func (r *TraceRecorder) Events() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TraceEvent(nil), r.events...)
}

// Reset discards the recorded events.
func (r *TraceRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Clauses returns the distinct clause labels in order of their first enter
// event.
func (r *TraceRecorder) Clauses() []string {
	seen := make(map[string]bool)
	var out []string
	for _, ev := range r.Events() {
		if ev.Phase == PhaseEnter && !seen[ev.Clause] {
			seen[ev.Clause] = true
			out = append(out, ev.Clause)
		}
	}
	return out
}

// Count returns the number of enter events for clause. An empty event
// matches every stream operation.
func (r *TraceRecorder) Count(clause, event string) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Phase == PhaseEnter && ev.Clause == clause && (event == "" || ev.Event == event) {
			n++
		}
	}
	return n
}

// Balanced reports whether every enter event has a matching leave event,
// properly nested per execution.
func (r *TraceRecorder) Balanced() bool {
	stacks := make(map[string][]TraceEvent)
	for _, ev := range r.Events() {
		stack := stacks[ev.ExecutionID]
		switch ev.Phase {
		case PhaseEnter:
			stacks[ev.ExecutionID] = append(stack, ev)
		case PhaseLeave:
			n := len(stack)
			if n == 0 || stack[n-1].Clause != ev.Clause || stack[n-1].Event != ev.Event {
				return false
			}
			stacks[ev.ExecutionID] = stack[:n-1]
		}
	}
	for _, stack := range stacks {
		if len(stack) > 0 {
			return false
		}
	}
	return true
}
