package config

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// ConfigError is a configuration error at a position of the CUE source.
type ConfigError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &ConfigError{
			Field:   pathOf(first),
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}

func pathOf(err errors.Error) string {
	path := err.Path()
	if len(path) == 0 {
		return "cue"
	}
	out := path[0]
	for _, p := range path[1:] {
		out += "." + p
	}
	return out
}
