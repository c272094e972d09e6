// Package report renders query results as either the terminal text format
// or the JSON schema from spec §6.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/RocketMan234/chainsaw/internal/graph"
	"github.com/RocketMan234/chainsaw/internal/model"
	"github.com/RocketMan234/chainsaw/internal/query"
)

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1_000_000:
		return fmt.Sprintf("%.1f MB", float64(bytes)/1_000_000.0)
	case bytes >= 1_000:
		return fmt.Sprintf("%.0f KB", float64(bytes)/1_000.0)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func relativePath(path, root string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// Trace is everything a `trace` invocation computes, independent of how
// it's rendered.
type Trace struct {
	Entry               model.ModuleID
	StaticBytes         int64
	StaticModules       int
	DynamicBytes        int64
	DynamicModules      int
	Heavy               []query.HeavyPackage
	ModulesByCost        []query.ModuleWeight
	Chains              []query.Chain // every distinct shortest chain, populated when --chain PKG was requested
	ChainPackage        string
	Cut                 *query.CutResult // populated when --cut PKG was requested
	CutPackage          string
	Diff                *query.DiffResult
	DiffEntryA          string
	DiffEntryB          string
}

// displayName renders a module for text chain output: its package name if
// attributed, else its root-relative path.
func displayName(g *graph.Graph, id model.ModuleID, root string) string {
	m := g.Module(id)
	if m.Package != "" {
		return m.Package
	}
	return relativePath(m.Path, root)
}

// jsonDisplayName renders a module for JSON chain output: its package name
// if attributed, else its absolute, forward-slash-normalized path (spec §6
// requires JSON paths to be absolute, unlike the root-relative text report).
func jsonDisplayName(g *graph.Graph, id model.ModuleID) string {
	m := g.Module(id)
	if m.Package != "" {
		return m.Package
	}
	return filepath.ToSlash(m.Path)
}

// PrintTrace writes the text-format trace report (spec §6).
func PrintTrace(w io.Writer, g *graph.Graph, t *Trace, root string) {
	fmt.Fprintln(w, relativePath(g.Module(t.Entry).Path, root))
	fmt.Fprintf(w, "Static transitive weight: %s (%d modules)\n", formatSize(t.StaticBytes), t.StaticModules)
	if t.DynamicModules > 0 {
		fmt.Fprintf(w, "Dynamic-only weight: %s (%d modules, not loaded at startup)\n",
			formatSize(t.DynamicBytes), t.DynamicModules)
	}
	fmt.Fprintln(w)

	if len(t.Heavy) > 0 {
		fmt.Fprintln(w, "Heavy dependencies (static):")
		for _, pkg := range t.Heavy {
			fmt.Fprintf(w, "  %-35s %s  %d files\n", pkg.Package, formatSize(pkg.Bytes), pkg.Files)
			if len(pkg.Chain) > 1 {
				names := make([]string, len(pkg.Chain))
				for i, id := range pkg.Chain {
					names[i] = displayName(g, id, root)
				}
				fmt.Fprintf(w, "    -> %s\n", strings.Join(names, " -> "))
			}
		}
		fmt.Fprintln(w)
	}

	if len(t.ModulesByCost) > 0 {
		fmt.Fprintln(w, "Modules (sorted by transitive cost):")
		display := t.ModulesByCost
		for _, mc := range display {
			fmt.Fprintf(w, "  %-55s %s\n", relativePath(mc.Path, root), formatSize(mc.TransitiveBytes))
		}
	}

	if len(t.Chains) > 0 {
		PrintChains(w, g, t.Chains, root)
	}
	if t.Cut != nil {
		printCut(w, g, t.Cut, t.CutPackage, root)
	}
	if t.Diff != nil {
		PrintDiff(w, *t.Diff, t.DiffEntryA, t.DiffEntryB)
	}
}

// PrintChain writes a single chain as "A -> B -> C".
func PrintChain(w io.Writer, g *graph.Graph, chain query.Chain, root string) {
	if len(chain) == 0 {
		fmt.Fprintln(w, "No chain found.")
		return
	}
	names := make([]string, len(chain))
	for i, id := range chain {
		names[i] = displayName(g, id, root)
	}
	fmt.Fprintln(w, strings.Join(names, " -> "))
}

// PrintChains writes every distinct shortest chain found, one per line,
// matching the original's print_why listing of every distinct path rather
// than just the first.
func PrintChains(w io.Writer, g *graph.Graph, chains []query.Chain, root string) {
	if len(chains) == 0 {
		fmt.Fprintln(w, "No chain found.")
		return
	}
	hops := len(chains[0]) - 1
	if len(chains) == 1 {
		fmt.Fprintf(w, "Chain (%d hops):\n  ", hops)
	} else {
		fmt.Fprintf(w, "Chains (%d distinct, %d hops):\n", len(chains), hops)
	}
	for _, chain := range chains {
		if len(chains) > 1 {
			fmt.Fprint(w, "  ")
		}
		PrintChain(w, g, chain, root)
	}
}

func printCut(w io.Writer, g *graph.Graph, cut *query.CutResult, pkg, root string) {
	if !cut.Found {
		fmt.Fprintf(w, "No single cut point for %q (%d chains).\n", pkg, cut.ChainCount)
		return
	}
	fmt.Fprintf(w, "Cut point for %q: %s (breaks %d/%d chains)\n",
		pkg, displayName(g, cut.Module, root), cut.BrokenCount, cut.ChainCount)
}

// PrintDiff writes the diff report.
func PrintDiff(w io.Writer, d query.DiffResult, entryA, entryB string) {
	fmt.Fprintf(w, "Diff: %s vs %s\n\n", entryA, entryB)
	sign := "+"
	if d.DeltaBytes < 0 {
		sign = ""
	}
	fmt.Fprintf(w, "  %-40s %s%s\n", "Delta", sign, formatSize(abs64(d.DeltaBytes)))
	fmt.Fprintln(w)

	if len(d.OnlyInA) > 0 {
		fmt.Fprintf(w, "Only in %s:\n", entryA)
		for _, p := range d.OnlyInA {
			fmt.Fprintf(w, "  - %s\n", p)
		}
	}
	if len(d.OnlyInB) > 0 {
		fmt.Fprintf(w, "Only in %s:\n", entryB)
		for _, p := range d.OnlyInB {
			fmt.Fprintf(w, "  + %s\n", p)
		}
	}
	if len(d.Shared) > 0 {
		fmt.Fprintln(w, "Shared:")
		for _, p := range d.Shared {
			fmt.Fprintf(w, "    %s\n", p)
		}
	}
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// JSON schema types, per spec §6.

type jsonHeavy struct {
	Package string   `json:"package"`
	Bytes   int64    `json:"bytes"`
	Files   int      `json:"files"`
	Chain   []string `json:"chain"`
}

type jsonModule struct {
	Path            string `json:"path"`
	TransitiveBytes int64  `json:"transitive_bytes"`
}

type jsonDiff struct {
	OnlyInA    []string `json:"only_in_a"`
	OnlyInB    []string `json:"only_in_b"`
	Shared     []string `json:"shared"`
	DeltaBytes int64    `json:"delta_bytes"`
}

type jsonTrace struct {
	Entry          string       `json:"entry"`
	StaticBytes    int64        `json:"static_bytes"`
	StaticModules  int          `json:"static_modules"`
	DynamicBytes   int64        `json:"dynamic_bytes"`
	DynamicModules int          `json:"dynamic_modules"`
	Heavy          []jsonHeavy  `json:"heavy"`
	Modules        []jsonModule `json:"modules"`
	Diff           *jsonDiff    `json:"diff,omitempty"`
}

// WriteJSON writes the JSON-schema trace report (spec §6).
func WriteJSON(w io.Writer, g *graph.Graph, t *Trace, root string) error {
	out := jsonTrace{
		Entry:          filepath.ToSlash(g.Module(t.Entry).Path),
		StaticBytes:    t.StaticBytes,
		StaticModules:  t.StaticModules,
		DynamicBytes:   t.DynamicBytes,
		DynamicModules: t.DynamicModules,
	}
	for _, h := range t.Heavy {
		names := make([]string, len(h.Chain))
		for i, id := range h.Chain {
			names[i] = jsonDisplayName(g, id)
		}
		out.Heavy = append(out.Heavy, jsonHeavy{Package: h.Package, Bytes: h.Bytes, Files: h.Files, Chain: names})
	}
	for _, m := range t.ModulesByCost {
		out.Modules = append(out.Modules, jsonModule{Path: filepath.ToSlash(m.Path), TransitiveBytes: m.TransitiveBytes})
	}
	if t.Diff != nil {
		out.Diff = &jsonDiff{
			OnlyInA: t.Diff.OnlyInA, OnlyInB: t.Diff.OnlyInB,
			Shared: t.Diff.Shared, DeltaBytes: t.Diff.DeltaBytes,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
