// Package langs declares the language backend contract shared by the TS/JS
// and Python extractors (spec §4.1): pure functions from file bytes to a
// raw import list, no I/O, no resolution.
package langs

import "github.com/RocketMan234/chainsaw/internal/model"

// Backend parses one file's bytes and yields every classifiable import.
// Implementations must recover from parse errors by returning whatever was
// extractable up to the error point; they never return an error for
// malformed-but-parseable source.
type Backend interface {
	// Extensions lists the file extensions this backend claims, including
	// the leading dot.
	Extensions() []string
	// Extract returns the raw, unresolved imports found in content.
	Extract(path string, content []byte) ([]model.RawImport, error)
}
