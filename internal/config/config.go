package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/flwor/internal/engine"
	"github.com/roach88/flwor/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// Config is a decoded configuration file.
type Config struct {
	Engine EngineConfig

	// Collections maps collection names to document files. Paths are
	// absolute or relative to the working directory after Load.
	Collections map[string]string

	// Variables holds external variable values.
	Variables map[string]ir.Sequence
}

// EngineConfig holds the engine settings.
type EngineConfig struct {
	Mode     string `json:"mode"`
	Optimize bool   `json:"optimize"`
	Trace    bool   `json:"trace"`
	Cache    int    `json:"cache"`
	MaxItems int    `json:"max_items"`
	DB       string `json:"db,omitempty"`
}

// Default returns the configuration of an empty file.
func Default() *Config {
	cfg, err := Parse("default.cue", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema: %v", err))
	}
	return cfg
}

// Load reads and decodes a configuration file.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(path, src)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	for name, file := range cfg.Collections {
		if !filepath.IsAbs(file) {
			cfg.Collections[name] = filepath.Join(dir, file)
		}
	}
	if cfg.Engine.DB != "" && !filepath.IsAbs(cfg.Engine.DB) {
		cfg.Engine.DB = filepath.Join(dir, cfg.Engine.DB)
	}
	return cfg, nil
}

// Parse decodes configuration source. filename is used in error positions.
func Parse(filename string, src []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	cfg := &Config{
		Collections: make(map[string]string),
		Variables:   make(map[string]ir.Sequence),
	}
	if err := v.LookupPath(cue.ParsePath("engine")).Decode(&cfg.Engine); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.LookupPath(cue.ParsePath("collections")).Decode(&cfg.Collections); err != nil {
		return nil, formatCUEError(err)
	}

	iter, err := v.LookupPath(cue.ParsePath("variables")).Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		seq, err := decodeVariable(iter.Value())
		if err != nil {
			return nil, &ConfigError{
				Field:   "variables." + iter.Selector().String(),
				Message: err.Error(),
				Pos:     iter.Value().Pos(),
			}
		}
		cfg.Variables[iter.Selector().Unquoted()] = seq
	}
	return cfg, nil
}

// decodeVariable converts a CUE value to a sequence through its JSON form,
// so integers stay integers. A list becomes a sequence of its members.
func decodeVariable(v cue.Value) (ir.Sequence, error) {
	data, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	item, err := ir.DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	if arr, ok := item.(ir.Array); ok {
		return ir.Sequence(arr), nil
	}
	return ir.Sequence{item}, nil
}

// EngineOptions converts the engine settings to engine options. Trace is
// not included; the caller picks the listener.
func (c *Config) EngineOptions() ([]engine.EngineOption, error) {
	mode, err := engine.ParseMode(c.Engine.Mode)
	if err != nil {
		return nil, err
	}
	return []engine.EngineOption{
		engine.WithMode(mode),
		engine.WithOptimize(c.Engine.Optimize),
		engine.WithCacheSize(c.Engine.Cache),
		engine.WithMaxItems(c.Engine.MaxItems),
	}, nil
}

// LoadCollections reads every configured collection file.
func (c *Config) LoadCollections() (map[string]ir.Sequence, error) {
	names := make([]string, 0, len(c.Collections))
	for name := range c.Collections {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]ir.Sequence, len(names))
	for _, name := range names {
		docs, err := ReadDocuments(c.Collections[name])
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", name, err)
		}
		out[name] = docs
	}
	return out, nil
}
