package store

import (
	"fmt"

	"github.com/roach88/flwor/internal/ir"
)

// marshalDocument converts a document to canonical JSON TEXT for storage.
func marshalDocument(doc ir.Item) (string, error) {
	data, err := ir.MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	return string(data), nil
}

// unmarshalDocument parses a stored body. Integral numbers decode as
// integers, so large values keep full precision.
func unmarshalDocument(body string) (ir.Item, error) {
	doc, err := ir.DecodeJSON([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}
