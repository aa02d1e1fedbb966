package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/flwor/internal/engine"
	"github.com/roach88/flwor/internal/ir"
	"github.com/roach88/flwor/internal/store"
	"github.com/roach88/flwor/internal/testutil"
)

// Combination is one evaluation setting a scenario runs under.
type Combination struct {
	Mode     engine.Mode
	Optimize bool
}

func (c Combination) String() string {
	if c.Optimize {
		return string(c.Mode) + "/optimized"
	}
	return string(c.Mode) + "/unoptimized"
}

// Combinations returns the four settings every scenario runs under.
func Combinations() []Combination {
	return []Combination{
		{Mode: engine.ModePull, Optimize: true},
		{Mode: engine.ModePull, Optimize: false},
		{Mode: engine.ModePush, Optimize: true},
		{Mode: engine.ModePush, Optimize: false},
	}
}

// Outcome is the result of one run.
type Outcome struct {
	Combination Combination
	Items       ir.Sequence
	Err         error

	// ErrorCode is the code of Err, empty on success.
	ErrorCode string

	// Trace holds the recorded trace events when a trace assertion asked
	// for them.
	Trace []testutil.TraceEvent
}

// Result is the outcome of a scenario across all combinations.
type Result struct {
	Scenario string
	Outcomes []Outcome

	// Pass indicates overall test success.
	Pass bool

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// input is a scenario converted to items.
type input struct {
	context     ir.Item
	collections map[string]ir.Sequence
	variables   map[string]ir.Sequence
	expect      ir.Sequence
}

// Run executes a scenario under every combination and checks each outcome.
//
// Returns an error only when the scenario cannot be set up (bad input
// values, store failures); query failures are outcomes.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	in, err := convertInput(scenario)
	if err != nil {
		return nil, err
	}

	var st *store.Store
	if scenario.Storage == StorageSQLite {
		st, err = openStore(ctx, in.collections)
		if err != nil {
			return nil, err
		}
		defer st.Close()
	}

	result := &Result{Scenario: scenario.Name, Pass: true}
	for _, combo := range Combinations() {
		outcome, err := runOnce(ctx, scenario, in, st, combo)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", combo, err)
		}
		result.Outcomes = append(result.Outcomes, outcome)
		checkOutcome(result, scenario, in, outcome)
	}
	checkAgreement(result)
	return result, nil
}

func runOnce(ctx context.Context, scenario *Scenario, in *input, st *store.Store, combo Combination) (Outcome, error) {
	recorder := testutil.NewTraceRecorder()
	opts := []engine.EngineOption{
		engine.WithMode(combo.Mode),
		engine.WithOptimize(combo.Optimize),
		engine.WithIDGenerator(engine.NewFixedGenerator("scenario-" + scenario.Name)),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithCacheSize(0),
	}
	if st != nil {
		opts = append(opts, engine.WithStore(st))
	} else {
		opts = append(opts, engine.WithCollections(in.collections))
	}
	if scenario.needsTrace() {
		opts = append(opts, engine.WithTrace(recorder))
	}
	eng, err := engine.New(opts...)
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{Combination: combo}
	q, err := eng.Compile(scenario.Query, variableNames(in.variables)...)
	if err == nil {
		outcome.Items, err = q.Evaluate(ctx, engine.Input{ContextItem: in.context, Variables: in.variables})
	}
	if err != nil {
		outcome.Items = nil
		outcome.Err = err
		outcome.ErrorCode = engine.ErrorCode(err)
	}
	if scenario.needsTrace() {
		outcome.Trace = recorder.Events()
	}
	return outcome, nil
}

func openStore(ctx context.Context, collections map[string]ir.Sequence) (*store.Store, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	for _, name := range sortedKeys(collections) {
		if err := st.CreateCollection(ctx, name, collections[name]); err != nil {
			st.Close()
			return nil, fmt.Errorf("load collection %q: %w", name, err)
		}
	}
	return st, nil
}

// checkOutcome compares one outcome with the expectation and runs the
// assertions that apply to it.
func checkOutcome(result *Result, scenario *Scenario, in *input, o Outcome) {
	combo := o.Combination
	switch {
	case scenario.ExpectError != "":
		if o.Err == nil {
			result.AddError("%s: expected error %s, got result %s", combo, scenario.ExpectError, o.Items)
		} else if o.ErrorCode != scenario.ExpectError {
			result.AddError("%s: expected error %s, got %v", combo, scenario.ExpectError, o.Err)
		}
	case o.Err != nil:
		result.AddError("%s: unexpected error: %v", combo, o.Err)
	case !ir.DeepEqual(in.expect, o.Items, ir.CodepointCollation):
		result.AddError("%s: expected %s, got %s", combo, in.expect, o.Items)
	}

	for _, msg := range EvaluateAssertions(o, scenario.Assertions) {
		result.AddError("%s: %s", combo, msg)
	}
}

// checkAgreement requires every combination to produce the outcome of the
// first one.
func checkAgreement(result *Result) {
	if len(result.Outcomes) == 0 {
		return
	}
	first := result.Outcomes[0]
	for _, o := range result.Outcomes[1:] {
		if o.ErrorCode != first.ErrorCode || !ir.DeepEqual(o.Items, first.Items, ir.CodepointCollation) {
			result.AddError("%s disagrees with %s", o.Combination, first.Combination)
		}
	}
}

func convertInput(s *Scenario) (*input, error) {
	in := &input{
		collections: make(map[string]ir.Sequence, len(s.Collections)),
		variables:   make(map[string]ir.Sequence, len(s.Variables)),
	}
	if s.Context != nil {
		item, err := ir.FromGo(s.Context)
		if err != nil {
			return nil, fmt.Errorf("context: %w", err)
		}
		in.context = item
	}
	for name, docs := range s.Collections {
		seq, err := ir.SequenceFromGo(docs)
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", name, err)
		}
		in.collections[name] = seq
	}
	for name, value := range s.Variables {
		seq, err := ir.SequenceFromGo(value)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		in.variables[name] = seq
	}
	if s.Expect.Set {
		seq, err := ir.SequenceFromGo(s.Expect.Items)
		if err != nil {
			return nil, fmt.Errorf("expect: %w", err)
		}
		in.expect = seq
	}
	return in, nil
}

func variableNames(vars map[string]ir.Sequence) []string {
	return sortedKeys(vars)
}

func sortedKeys(m map[string]ir.Sequence) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
