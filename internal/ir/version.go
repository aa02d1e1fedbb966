package ir

// Version constants for the result document format and engine.
const (
	// ResultFormatVersion is the version of the JSON result envelope written
	// by the CLI and the harness.
	ResultFormatVersion = "1"

	// EngineVersion is the flwor engine version.
	EngineVersion = "0.1.0"
)
