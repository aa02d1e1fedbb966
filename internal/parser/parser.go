package parser

import (
	"fmt"
	"strings"

	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/ir"
)

// Module is a parsed query.
type Module struct {
	// Body is the query expression.
	Body expr.Expression

	// Externals maps every external variable, whether declared through
	// WithExternals or in the prolog, to its binding. The caller supplies
	// their values before evaluation.
	Externals map[string]*expr.Binding

	// Slots sized the frame for Body. The optimizer allocates further
	// slots from it.
	Slots *expr.SlotAllocator
}

// Option configures Parse.
type Option func(*parser)

// WithFunctions resolves function calls against lib instead of the
// default library.
func WithFunctions(lib *expr.Library) Option {
	return func(p *parser) {
		p.lib = lib
	}
}

// WithExternals declares external variables visible to the whole query.
func WithExternals(names ...string) Option {
	return func(p *parser) {
		p.externalNames = append(p.externalNames, names...)
	}
}

type parser struct {
	toks []token
	pos  int

	lib           *expr.Library
	vars          *SlotManager
	externalNames []string
	externals     map[string]*expr.Binding
}

// Parse parses a query. The optional prolog may declare external variables
// with "declare variable $name [as type] external;".
func Parse(query string, opts ...Option) (*Module, error) {
	toks, err := tokenize(query)
	if err != nil {
		return nil, err
	}
	p := &parser{
		toks:      toks,
		vars:      NewSlotManager(nil),
		externals: make(map[string]*expr.Binding),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.lib == nil {
		p.lib = expr.DefaultLibrary()
	}
	for _, name := range p.externalNames {
		p.externals[name] = p.vars.Declare(name, nil)
	}

	if err := p.parseProlog(); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.unexpected("end of query")
	}
	return &Module{Body: body, Externals: p.externals, Slots: p.vars.Slots()}, nil
}

// parseProlog parses the optional version declaration and external
// variable declarations.
func (p *parser) parseProlog() error {
	if p.peek().is("xquery") && p.peekAt(1).is("version") {
		p.advance()
		p.advance()
		if p.peek().kind != tokString {
			return p.unexpected("a version string")
		}
		p.advance()
		if err := p.expect(";"); err != nil {
			return err
		}
	}
	for p.peek().is("declare") && p.peekAt(1).is("variable") {
		p.advance()
		p.advance()
		v := p.peek()
		if v.kind != tokVariable {
			return p.unexpected("a variable name")
		}
		p.advance()
		typ, err := p.parseOptionalType()
		if err != nil {
			return err
		}
		if !p.peek().is("external") {
			return p.unexpected(`"external"`)
		}
		p.advance()
		if err := p.expect(";"); err != nil {
			return err
		}
		p.externals[v.text] = p.vars.Declare(v.text, typ)
	}
	return nil
}

func (p *parser) peek() token {
	return p.peekAt(0)
}

// peekAt returns the token n positions ahead; past the end it returns the
// final EOF token.
func (p *parser) peekAt(n int) token {
	if i := p.pos + n; i < len(p.toks) {
		return p.toks[i]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() token {
	t := p.peek()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// expect consumes the symbol or keyword s.
func (p *parser) expect(s string) error {
	if !p.peek().is(s) {
		return p.unexpected(fmt.Sprintf("%q", s))
	}
	p.advance()
	return nil
}

// expectVariable consumes a variable token.
func (p *parser) expectVariable() (token, error) {
	t := p.peek()
	if t.kind != tokVariable {
		return token{}, p.unexpected("a variable")
	}
	p.advance()
	return t, nil
}

func (p *parser) unexpected(want string) error {
	t := p.peek()
	return expr.StaticError(expr.ErrSyntax, t.loc, "expected %s, found %s", want, t)
}

// resolveVariable returns a reference to the visible binding of t.
func (p *parser) resolveVariable(t token) (expr.Expression, error) {
	b, ok := p.vars.Lookup(t.text)
	if !ok {
		return nil, expr.StaticError(expr.ErrUndefinedVariable, t.loc, "variable $%s is not declared", t.text)
	}
	return expr.NewVarRef(b, t.loc), nil
}

// resolveFunction finds the library function for a call of name with
// arity arguments.
func (p *parser) resolveFunction(t token, arity int) (*expr.Function, error) {
	name := strings.TrimPrefix(t.text, "fn:")
	if fn, ok := p.lib.Lookup(name, arity); ok {
		return fn, nil
	}
	for _, n := range p.lib.Names() {
		if n == name {
			return nil, expr.StaticError(expr.ErrUnknownFunction, t.loc,
				"function %s() does not accept %d argument%s", name, arity, plural(arity))
		}
	}
	if s := p.lib.Suggest(name); s != "" {
		return nil, expr.StaticError(expr.ErrUnknownFunction, t.loc,
			"unknown function %s(); did you mean %s()?", name, s)
	}
	return nil, expr.StaticError(expr.ErrUnknownFunction, t.loc, "unknown function %s()", name)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func stringLiteral(s string, loc expr.Location) expr.Expression {
	return expr.NewLiteral(ir.Sequence{ir.String(s)}, loc)
}
