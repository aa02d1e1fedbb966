package expr

// TraceEvent names the stream operation a trace notification brackets.
type TraceEvent string

const (
	TraceNext    TraceEvent = "next"
	TraceProcess TraceEvent = "process"
	TraceClose   TraceEvent = "close"
)

// TraceInfo describes one traced stream call.
type TraceInfo struct {
	// Clause is the label of the traced clause, e.g. "for $x".
	Clause   string
	Location Location
	Event    TraceEvent

	// ExecutionID identifies the evaluation the call belongs to. Calls from
	// one evaluation are strictly nested.
	ExecutionID string
}

// TraceListener receives enter/leave notifications from trace clauses. It is
// only consulted when the evaluation Env has one set. One listener may serve
// many concurrent evaluations; ExecutionID tells them apart.
type TraceListener interface {
	Enter(c *Context, info TraceInfo)
	Leave(info TraceInfo)
}
