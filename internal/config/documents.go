package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/flwor/internal/ir"
)

// ReadDocuments reads a JSON or YAML file, chosen by extension. A top-level
// array holds one document per member; any other value is a single
// document.
func ReadDocuments(path string) (ir.Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	item, err := DecodeDocument(path, data)
	if err != nil {
		return nil, err
	}
	if arr, ok := item.(ir.Array); ok {
		return ir.Sequence(arr), nil
	}
	return ir.Sequence{item}, nil
}

// DecodeDocument decodes data as YAML when name ends in .yaml or .yml and as
// JSON otherwise.
func DecodeDocument(name string, data []byte) (ir.Item, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return ir.DecodeYAML(data)
	default:
		return ir.DecodeJSON(data)
	}
}
