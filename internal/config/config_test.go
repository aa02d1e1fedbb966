package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flwor/internal/engine"
	"github.com/roach88/flwor/internal/ir"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, EngineConfig{Mode: "pull", Optimize: true, Trace: false, Cache: 128}, cfg.Engine)
	assert.Empty(t, cfg.Collections)
	assert.Empty(t, cfg.Variables)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse("flwor.cue", []byte(`
engine: {
	mode:      "push"
	optimize:  false
	trace:     true
	cache:     0
	max_items: 50
	db:        "orders.db"
}
collections: orders: "orders.json"
variables: {
	min:   10
	ratio: 0.5
	tags: ["a", "b"]
	owner: {name: "ana", active: true}
}
`))
	require.NoError(t, err)

	assert.Equal(t, EngineConfig{Mode: "push", Trace: true, Cache: 0, MaxItems: 50, DB: "orders.db"}, cfg.Engine)
	assert.Equal(t, map[string]string{"orders": "orders.json"}, cfg.Collections)
	assert.Equal(t, ir.Ints(10), cfg.Variables["min"])
	assert.Equal(t, ir.Sequence{ir.Double(0.5)}, cfg.Variables["ratio"])
	assert.Equal(t, ir.Strings("a", "b"), cfg.Variables["tags"])
	assert.Equal(t, ir.Sequence{ir.NewObject(ir.O("name", ir.String("ana")), ir.O("active", ir.Bool(true)))}, cfg.Variables["owner"])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{"unknown mode", `engine: mode: "sideways"`, "engine.mode"},
		{"negative cache", `engine: cache: -1`, "engine.cache"},
		{"unknown field", `engine: mod: "push"`, "mod"},
		{"wrong type", `collections: orders: 3`, "collections.orders"},
		{"syntax", `engine: {`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("flwor.cue", []byte(tt.src))
			require.Error(t, err)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestParse_ErrorPosition(t *testing.T) {
	_, err := Parse("flwor.cue", []byte("engine: {\n\tmode: \"sideways\"\n}\n"))
	require.Error(t, err)

	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, ce.Error(), ".cue:")
}

func TestLoad_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flwor.cue")
	require.NoError(t, os.WriteFile(path, []byte(`
engine: db: "data/store.db"
collections: orders: "orders.json"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data", "store.db"), cfg.Engine.DB)
	assert.Equal(t, filepath.Join(dir, "orders.json"), cfg.Collections["orders"])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cue"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEngineOptions(t *testing.T) {
	cfg := Default()
	cfg.Engine.Mode = "push"
	cfg.Engine.MaxItems = 2

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	e, err := engine.New(opts...)
	require.NoError(t, err)
	assert.Equal(t, engine.ModePush, e.Mode())

	cfg.Engine.Mode = "sideways"
	_, err = cfg.EngineOptions()
	assert.Error(t, err)
}

func TestLoadCollections(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "orders.json")
	yamlPath := filepath.Join(dir, "users.yaml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"id": 1}, {"id": 2}]`), 0o644))
	require.NoError(t, os.WriteFile(yamlPath, []byte("name: ana\nage: 30\n"), 0o644))

	cfg := Default()
	cfg.Collections = map[string]string{"orders": jsonPath, "users": yamlPath}
	got, err := cfg.LoadCollections()
	require.NoError(t, err)

	assert.Equal(t, ir.Sequence{
		ir.NewObject(ir.O("id", ir.Int(1))),
		ir.NewObject(ir.O("id", ir.Int(2))),
	}, got["orders"])
	assert.Equal(t, ir.Sequence{
		ir.NewObject(ir.O("name", ir.String("ana")), ir.O("age", ir.Int(30))),
	}, got["users"])
}

func TestLoadCollections_BadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": `), 0o644))

	cfg := Default()
	cfg.Collections = map[string]string{"broken": path}
	_, err := cfg.LoadCollections()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `collection "broken"`)
}
