package flwor

import (
	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/ir"
)

// TraceClause is a pass-through stage that reports every call to the trace
// listener of the evaluation. Without a listener it adds no stage at all.
type TraceClause struct {
	loc expr.Location

	// Subject labels the clause being traced, i.e. the one before this.
	Subject string
}

// NewTraceClause creates a trace clause.
func NewTraceClause(subject string, loc expr.Location) *TraceClause {
	return &TraceClause{loc: loc, Subject: subject}
}

func (t *TraceClause) Kind() Kind { return KindTrace }

func (t *TraceClause) Location() expr.Location { return t.loc }

func (t *TraceClause) Copy(*expr.Rebinder) Clause {
	return NewTraceClause(t.Subject, t.loc)
}

func (t *TraceClause) TypeCheck(*expr.StaticContext, ir.ItemType) error { return nil }

func (t *TraceClause) Optimize(*expr.StaticContext, ir.ItemType) error { return nil }

func (t *TraceClause) RangeVariables() []*expr.Binding { return nil }

func (t *TraceClause) GatherVariableReferences(*expr.Binding, *[]*expr.VarRef) {}

func (t *TraceClause) RefineVariableType(*expr.Binding, []*expr.VarRef) {}

func (t *TraceClause) ContainsNonInlineableVariableReference(*expr.Binding) bool {
	return false
}

func (t *TraceClause) Operands() []*expr.Operand { return nil }

func (t *TraceClause) Explain(w *expr.ExplainWriter) {
	w.Line("trace " + t.Subject)
}

func (t *TraceClause) info(c *expr.Context, event expr.TraceEvent) expr.TraceInfo {
	return expr.TraceInfo{Clause: t.Subject, Location: t.loc, Event: event, ExecutionID: c.Env().ExecutionID}
}

func (t *TraceClause) PullStream(c *expr.Context, base PullStream) PullStream {
	listener := c.Env().Trace
	if listener == nil {
		return base
	}
	return &tracePull{clause: t, base: base, listener: listener}
}

func (t *TraceClause) PushStream(c *expr.Context, dest PushStream) PushStream {
	listener := c.Env().Trace
	if listener == nil {
		return dest
	}
	return &tracePush{clause: t, dest: dest, listener: listener}
}

type tracePull struct {
	clause   *TraceClause
	base     PullStream
	listener expr.TraceListener
}

func (s *tracePull) Next(c *expr.Context) (bool, error) {
	info := s.clause.info(c, expr.TraceNext)
	s.listener.Enter(c, info)
	defer s.listener.Leave(info)
	return s.base.Next(c)
}

func (s *tracePull) Close(c *expr.Context) error {
	info := s.clause.info(c, expr.TraceClose)
	s.listener.Enter(c, info)
	defer s.listener.Leave(info)
	return s.base.Close(c)
}

type tracePush struct {
	clause   *TraceClause
	dest     PushStream
	listener expr.TraceListener
}

func (s *tracePush) Process(c *expr.Context) error {
	info := s.clause.info(c, expr.TraceProcess)
	s.listener.Enter(c, info)
	defer s.listener.Leave(info)
	return s.dest.Process(c)
}

func (s *tracePush) Close(c *expr.Context) error {
	info := s.clause.info(c, expr.TraceClose)
	s.listener.Enter(c, info)
	defer s.listener.Leave(info)
	return s.dest.Close(c)
}
