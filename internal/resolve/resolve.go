// Package resolve turns (containing file, specifier, kind) into a concrete
// path, an external classification, or a recorded miss (spec §4.2).
package resolve

import "github.com/RocketMan234/chainsaw/internal/model"

// Outcome is the tagged result of resolving one specifier.
type Outcome int

const (
	Resolved Outcome = iota
	External
	Missing
)

// Result carries a resolution outcome plus the detail relevant to it: the
// resolved path, or the reason/specifier for External/Missing.
type Result struct {
	Outcome Outcome
	Path    string // set when Outcome == Resolved
	Detail  string // external reason, or the unresolved specifier
}

// Resolver maps an import found in one file to a concrete target.
type Resolver interface {
	Resolve(containingFile, specifier string, kind model.EdgeKind) Result
	// Language reports which language family this resolver serves.
	Language() model.Language
	// PackageName returns the installed-dependency name a resolved path
	// belongs to, if any (spec §3: "Package attribution is deterministic").
	PackageName(resolvedPath string) (string, bool)
}
