package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/flwor/internal/config"
	"github.com/roach88/flwor/internal/engine"
	"github.com/roach88/flwor/internal/ir"
	"github.com/roach88/flwor/internal/store"
)

// QueryOptions holds the flags shared by run and explain.
type QueryOptions struct {
	*RootOptions
	Input      string   // context item document, "-" for stdin
	Database   string   // SQLite collection store
	Mode       string   // "pull" | "push"
	NoOptimize bool     // skip the rewrite pass
	Trace      bool     // log clause enter/leave events
	Vars       []string // name=json external variables
	Config     string   // CUE configuration file
}

func (o *QueryOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Input, "input", "i", "", "context item document (JSON or YAML, - for stdin)")
	cmd.Flags().StringVar(&o.Database, "db", "", "path to SQLite collection store")
	cmd.Flags().StringVar(&o.Mode, "mode", string(engine.ModePull), "evaluation mode (pull|push)")
	cmd.Flags().BoolVar(&o.NoOptimize, "no-optimize", false, "disable query rewrites")
	cmd.Flags().BoolVar(&o.Trace, "trace", false, "log clause trace events")
	cmd.Flags().StringArrayVar(&o.Vars, "var", nil, "external variable as name=json (repeatable)")
	cmd.Flags().StringVarP(&o.Config, "config", "c", "", "CUE configuration file")
}

// session is an engine set up from the configuration file and flags.
type session struct {
	engine    *engine.Engine
	store     *store.Store
	context   ir.Item
	variables map[string]ir.Sequence
}

func (s *session) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// variableNames returns the external variable names in sorted order.
func (s *session) variableNames() []string {
	return slices.Sorted(maps.Keys(s.variables))
}

func (s *session) input() engine.Input {
	return engine.Input{ContextItem: s.context, Variables: s.variables}
}

// openSession builds the engine. Flags explicitly set on the command line
// override the configuration file. Errors are reported through f and
// returned as command errors.
func openSession(cmd *cobra.Command, o *QueryOptions, f *OutputFormatter) (*session, error) {
	cfg := config.Default()
	if o.Config != "" {
		loaded, err := config.Load(o.Config)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, commandError(f, ErrCodeNotFound, err)
			}
			return nil, commandError(f, ErrCodeConfig, err)
		}
		cfg = loaded
		f.VerboseLog("Loaded config %s", o.Config)
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Engine.Mode = o.Mode
	}
	if flags.Changed("no-optimize") {
		cfg.Engine.Optimize = !o.NoOptimize
	}
	if flags.Changed("trace") {
		cfg.Engine.Trace = o.Trace
	}
	if flags.Changed("db") {
		cfg.Engine.DB = o.Database
	}

	opts, err := cfg.EngineOptions()
	if err != nil {
		return nil, commandError(f, ErrCodeInvalidFlag, err)
	}

	collections, err := cfg.LoadCollections()
	if err != nil {
		return nil, commandError(f, ErrCodeBadInput, err)
	}

	s := &session{variables: maps.Clone(cfg.Variables)}
	if s.variables == nil {
		s.variables = make(map[string]ir.Sequence)
	}
	for _, v := range o.Vars {
		name, value, err := parseVar(v)
		if err != nil {
			return nil, commandError(f, ErrCodeBadInput, err)
		}
		s.variables[name] = value
	}

	if o.Input != "" {
		s.context, err = readInput(o.Input, cmd.InOrStdin())
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, commandError(f, ErrCodeNotFound, err)
			}
			return nil, commandError(f, ErrCodeBadInput, err)
		}
	}

	if cfg.Engine.DB != "" {
		if _, err := os.Stat(cfg.Engine.DB); err != nil {
			return nil, commandError(f, ErrCodeNotFound, fmt.Errorf("database not found: %s", cfg.Engine.DB))
		}
		s.store, err = store.Open(cfg.Engine.DB)
		if err != nil {
			return nil, commandError(f, ErrCodeDatabase, err)
		}
		opts = append(opts, engine.WithStore(s.store))
		f.VerboseLog("Opened database %s", cfg.Engine.DB)
	}

	opts = append(opts,
		engine.WithCollections(collections),
		engine.WithLogger(o.Logger),
	)
	if cfg.Engine.Trace {
		listener := engine.NewSlogListener(o.Logger)
		listener.Level = slog.LevelInfo
		opts = append(opts, engine.WithTrace(listener))
	}

	s.engine, err = engine.New(opts...)
	if err != nil {
		s.Close()
		return nil, commandError(f, ErrCodeInvalidFlag, err)
	}
	return s, nil
}

// readQuery returns arg, or the contents of the file it names when it
// starts with '@'.
func readQuery(arg string) (string, error) {
	path, ok := strings.CutPrefix(arg, "@")
	if !ok {
		return arg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read query: %w", err)
	}
	return string(data), nil
}

// parseVar parses a name=json flag value. A JSON array supplies a sequence
// of its members.
func parseVar(s string) (string, ir.Sequence, error) {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimPrefix(name, "$")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("invalid --var %q: want name=json", s)
	}
	item, err := ir.DecodeJSON([]byte(value))
	if err != nil {
		return "", nil, fmt.Errorf("invalid --var %s: %w", name, err)
	}
	if arr, ok := item.(ir.Array); ok {
		return name, ir.Sequence(arr), nil
	}
	return name, ir.Sequence{item}, nil
}

// readInput decodes the context item document. "-" reads JSON from stdin.
func readInput(path string, stdin io.Reader) (ir.Item, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return ir.DecodeJSON(data)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return config.DecodeDocument(path, data)
}
