package engine

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/flwor"
	"github.com/roach88/flwor/internal/ir"
	"github.com/roach88/flwor/internal/parser"
	"github.com/roach88/flwor/internal/store"
)

// DefaultCacheSize is the default number of compiled queries kept.
const DefaultCacheSize = 128

// Mode selects how the top-level result of a query is produced.
type Mode string

const (
	// ModePull drives the result through Iterate.
	ModePull Mode = "pull"

	// ModePush drives the result through Process.
	ModePush Mode = "push"
)

// ParseMode converts a mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePull, ModePush:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want pull or push)", s)
}

// Engine compiles and evaluates queries.
//
// Thread-safety model:
//   - Compile(): safe from any goroutine (the cache is synchronized)
//   - Query.Evaluate() / Query.Stream(): safe from any goroutine; each
//     evaluation owns its frame
//   - Options are applied once in New and never change afterwards
type Engine struct {
	store    *store.Store
	memory   map[string]ir.Sequence
	mode     Mode
	optimize bool
	trace    expr.TraceListener
	logger   *slog.Logger
	lib      *expr.Library
	ids      IDGenerator
	maxItems int

	cacheSize int
	cache     *lru.Cache[string, *Query]
	stats     counters
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithStore reads collections from a SQLite store and runs pushed-down
// collection queries there.
func WithStore(s *store.Store) EngineOption {
	return func(e *Engine) {
		e.store = s
	}
}

// WithCollections registers in-memory collections. They shadow stored
// collections of the same name. Calling it twice merges the maps.
func WithCollections(collections map[string]ir.Sequence) EngineOption {
	return func(e *Engine) {
		for name, docs := range collections {
			e.memory[name] = docs
		}
	}
}

// WithMode selects pull or push evaluation.
//
// Default: ModePull
func WithMode(m Mode) EngineOption {
	return func(e *Engine) {
		e.mode = m
	}
}

// WithOptimize enables or disables the optimizer.
//
// Default: enabled
func WithOptimize(enabled bool) EngineOption {
	return func(e *Engine) {
		e.optimize = enabled
	}
}

// WithTrace inserts trace clauses into every FLWOR expression and reports
// their calls to l.
func WithTrace(l expr.TraceListener) EngineOption {
	return func(e *Engine) {
		e.trace = l
	}
}

// WithLogger sets the engine logger.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithCacheSize sets the number of compiled queries kept. Zero disables
// the cache.
//
// Default: 128 (DefaultCacheSize)
func WithCacheSize(n int) EngineOption {
	return func(e *Engine) {
		e.cacheSize = n
	}
}

// WithFunctions replaces the function library.
//
// Default: expr.DefaultLibrary()
func WithFunctions(lib *expr.Library) EngineOption {
	return func(e *Engine) {
		e.lib = lib
	}
}

// WithIDGenerator sets the execution ID generator.
//
// Default: UUIDv7Generator
// Use WithIDGenerator(NewFixedGenerator(...)) for deterministic tests.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithMaxItems fails evaluations whose result exceeds n items. Zero means
// unlimited.
//
// Default: unlimited
func WithMaxItems(n int) EngineOption {
	return func(e *Engine) {
		e.maxItems = n
	}
}

// New creates an Engine.
//
// Returns a RuntimeError with ErrCodeInvalidOption for a negative cache
// size or item limit and for an unknown mode.
func New(opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		memory:    make(map[string]ir.Sequence),
		mode:      ModePull,
		optimize:  true,
		logger:    slog.Default(),
		lib:       expr.DefaultLibrary(),
		ids:       UUIDv7Generator{},
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(e)
	}

	if _, err := ParseMode(string(e.mode)); err != nil {
		return nil, invalidOption(err.Error())
	}
	if e.cacheSize < 0 {
		return nil, invalidOption(fmt.Sprintf("cache size must not be negative, got %d", e.cacheSize))
	}
	if e.maxItems < 0 {
		return nil, invalidOption(fmt.Sprintf("max items must not be negative, got %d", e.maxItems))
	}
	if e.cacheSize > 0 {
		cache, err := lru.New[string, *Query](e.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create query cache: %w", err)
		}
		e.cache = cache
	}
	return e, nil
}

func invalidOption(msg string) *RuntimeError {
	return &RuntimeError{Code: ErrCodeInvalidOption, Message: msg}
}

// Mode returns the evaluation mode.
func (e *Engine) Mode() Mode {
	return e.mode
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// Compile parses, checks and optimizes a query. vars names external
// variables the query may reference without declaring them.
//
// Compiled queries are cached by text, variable names and the engine
// settings that shape the plan. The returned Query is shared and must not
// be modified.
func (e *Engine) Compile(text string, vars ...string) (q *Query, err error) {
	names := slices.Clone(vars)
	slices.Sort(names)
	names = slices.Compact(names)

	key := ir.QueryKey(text,
		string(e.mode),
		strconv.FormatBool(e.optimize),
		strconv.FormatBool(e.trace != nil),
		strings.Join(names, ","),
	)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			e.stats.cacheHits.Add(1)
			return cached, nil
		}
	}

	defer recoverInternal("", &err)

	mod, err := parser.Parse(text, parser.WithFunctions(e.lib), parser.WithExternals(names...))
	if err != nil {
		return nil, err
	}

	sc := expr.NewStaticContext(e.lib, mod.Slots)
	sc.Logger = e.logger
	body, err := expr.TypeCheck(sc, mod.Body, ir.AnyItem)
	if err != nil {
		return nil, err
	}
	if e.optimize {
		body, err = expr.Optimize(sc, body, ir.AnyItem)
		if err != nil {
			return nil, err
		}
	}
	if e.trace != nil {
		expr.Walk(body, func(n expr.Expression) bool {
			if f, ok := n.(*flwor.Expression); ok {
				f.InsertTraceClauses()
			}
			return true
		})
	}

	q = &Query{
		Text:      text,
		engine:    e,
		body:      body,
		externals: mod.Externals,
		frameSize: mod.Slots.Size(),
	}
	e.stats.compiled.Add(1)
	if e.cache != nil {
		e.cache.Add(key, q)
	}
	e.logger.Debug("query compiled",
		"externals", len(mod.Externals),
		"frame_size", q.frameSize,
		"optimized", e.optimize,
	)
	return q, nil
}

func (e *Engine) resolver() *resolver {
	return &resolver{memory: e.memory, store: e.store}
}
