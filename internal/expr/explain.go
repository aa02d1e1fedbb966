package expr

import "strings"

// ExplainWriter renders an expression tree as an indented outline, one node
// per line.
type ExplainWriter struct {
	buf   strings.Builder
	depth int
}

// NewExplainWriter creates an empty writer.
func NewExplainWriter() *ExplainWriter {
	return &ExplainWriter{}
}

// Line writes a leaf node.
func (w *ExplainWriter) Line(text string) {
	w.buf.WriteString(strings.Repeat("  ", w.depth))
	w.buf.WriteString(text)
	w.buf.WriteByte('\n')
}

// Begin writes a node whose children follow until the matching End.
func (w *ExplainWriter) Begin(text string) {
	w.Line(text)
	w.depth++
}

// End closes the innermost Begin.
func (w *ExplainWriter) End() {
	if w.depth == 0 {
		Internalf("explain: End without Begin")
	}
	w.depth--
}

// String returns the rendered outline.
func (w *ExplainWriter) String() string {
	return w.buf.String()
}

// Explain renders e.
func Explain(e Expression) string {
	w := NewExplainWriter()
	e.Explain(w)
	return w.String()
}
