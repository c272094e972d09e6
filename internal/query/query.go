// Package query implements the read-only traversals over a finished graph:
// transitive weight, heavy dependencies, shortest chains, cut points, and
// diff (spec §4.6). None of these mutate the graph.
package query

import (
	"sort"

	"github.com/RocketMan234/chainsaw/internal/graph"
	"github.com/RocketMan234/chainsaw/internal/model"
)

// followable reports whether an edge kind counts toward a traversal, given
// whether dynamic opt-in is set. Type-only edges are never followed.
func followable(kind model.EdgeKind, includeDynamic bool) bool {
	switch kind {
	case model.Static:
		return true
	case model.Dynamic:
		return includeDynamic
	default:
		return false
	}
}

// Weight is the result of a transitive-weight traversal.
type Weight struct {
	Bytes   int64
	Visited []model.ModuleID // BFS visit order, entry first
}

// TransitiveWeight sums size_bytes over every module reachable from entry
// by Static edges (or Static+Dynamic under opt-in). Spec §4.6.
func TransitiveWeight(g *graph.Graph, entry model.ModuleID, includeDynamic bool) Weight {
	visited := map[model.ModuleID]bool{entry: true}
	queue := []model.ModuleID{entry}
	order := []model.ModuleID{entry}
	var total int64 = int64(g.Module(entry).Size)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range g.Outgoing(id) {
			if !followable(e.Kind, includeDynamic) || visited[e.To] {
				continue
			}
			visited[e.To] = true
			queue = append(queue, e.To)
			order = append(order, e.To)
			total += g.Module(e.To).Size
		}
	}
	return Weight{Bytes: total, Visited: order}
}

// HeavyPackage is one entry in the heavy-dependencies report.
type HeavyPackage struct {
	Package string
	Bytes   int64
	Files   int
	Chain   Chain // shortest chain from entry to this package
}

// HeavyDependencies returns the top-N packages by total transitive
// reachable bytes through Static edges from entry, tie-broken by name
// ascending (spec §4.6).
func HeavyDependencies(g *graph.Graph, entry model.ModuleID, includeDynamic bool, topN int) []HeavyPackage {
	weight := TransitiveWeight(g, entry, includeDynamic)
	visitedSet := make(map[model.ModuleID]bool, len(weight.Visited))
	for _, id := range weight.Visited {
		visitedSet[id] = true
	}

	totals := make(map[string]*HeavyPackage)
	for _, id := range weight.Visited {
		m := g.Module(id)
		if m.Package == "" {
			continue
		}
		hp, ok := totals[m.Package]
		if !ok {
			hp = &HeavyPackage{Package: m.Package}
			totals[m.Package] = hp
		}
		hp.Bytes += m.Size
		hp.Files++
	}

	out := make([]HeavyPackage, 0, len(totals))
	for _, hp := range totals {
		out = append(out, *hp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bytes != out[j].Bytes {
			return out[i].Bytes > out[j].Bytes
		}
		return out[i].Package < out[j].Package
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	for i := range out {
		if chains := ShortestChainsToPackage(g, entry, out[i].Package, includeDynamic, 1); len(chains) > 0 {
			out[i].Chain = chains[0]
		}
	}
	return out
}

// Chain is one shortest import path from entry to a module, expressed as a
// sequence of module ids, entry first.
type Chain []model.ModuleID

// ShortestChainsToPackage finds up to k distinct shortest chains from entry
// to any module attributed to pkg. Distinct means they don't share their
// penultimate (second-to-last) hop — "the chain enters the package only
// once per distinct penultimate module" (spec §4.6). Several first-party
// files converging on the very same downstream module at the same depth
// each count as a distinct penultimate, and so each contribute their own
// chain — only a genuinely shared penultimate collapses to one.
func ShortestChainsToPackage(g *graph.Graph, entry model.ModuleID, pkg string, includeDynamic bool, k int) []Chain {
	parent, predecessors, depth, targets := bfsToPackage(g, entry, pkg, includeDynamic)
	if len(targets) == 0 {
		return nil
	}

	// Group targets by their shortest depth; only the minimum depth matters.
	minDepth := -1
	for _, t := range targets {
		if minDepth == -1 || depth[t] < minDepth {
			minDepth = depth[t]
		}
	}
	sort.Slice(targets, func(i, j int) bool { return g.Module(targets[i]).Path < g.Module(targets[j]).Path })

	seenPenultimate := map[model.ModuleID]bool{}
	var chains []Chain
	for _, t := range targets {
		if depth[t] != minDepth {
			continue
		}
		if depth[t] == 0 {
			// entry itself is in pkg: no penultimate to dedupe on.
			chains = append(chains, Chain{t})
			continue
		}
		preds := append([]model.ModuleID(nil), predecessors[t]...)
		sort.Slice(preds, func(i, j int) bool { return g.Module(preds[i]).Path < g.Module(preds[j]).Path })
		for _, p := range preds {
			if seenPenultimate[p] {
				continue
			}
			seenPenultimate[p] = true
			chain := append(reconstruct(parent, entry, p), t)
			chains = append(chains, chain)
		}
	}

	sort.Slice(chains, func(i, j int) bool {
		return lexLess(g, chains[i], chains[j])
	})
	if k > 0 && len(chains) > k {
		chains = chains[:k]
	}
	return chains
}

func lexLess(g *graph.Graph, a, b Chain) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		pa, pb := g.Module(a[i]).Path, g.Module(b[i]).Path
		if pa != pb {
			return pa < pb
		}
	}
	return len(a) < len(b)
}

// bfsToPackage does a single BFS from entry and returns, alongside the usual
// single-parent spanning tree used to backtrack any module to entry, every
// distinct immediate predecessor of each node that arrives at that node's
// shortest depth (predecessors). A node can be discovered first via one
// edge but still have other edges reaching it at the very same depth from
// other nodes — those are legitimate alternate entry points into it, not
// duplicates, and ShortestChainsToPackage needs all of them to tell apart
// distinct chains that happen to converge on the same downstream module.
func bfsToPackage(g *graph.Graph, entry model.ModuleID, pkg string, includeDynamic bool) (
	parent map[model.ModuleID]model.ModuleID, predecessors map[model.ModuleID][]model.ModuleID,
	depth map[model.ModuleID]int, targets []model.ModuleID) {

	parent = map[model.ModuleID]model.ModuleID{}
	predecessors = map[model.ModuleID][]model.ModuleID{}
	depth = map[model.ModuleID]int{entry: 0}
	visited := map[model.ModuleID]bool{entry: true}
	queue := []model.ModuleID{entry}

	if g.Module(entry).Package == pkg {
		targets = append(targets, entry)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range g.Outgoing(id) {
			if !followable(e.Kind, includeDynamic) {
				continue
			}
			if !visited[e.To] {
				visited[e.To] = true
				parent[e.To] = id
				depth[e.To] = depth[id] + 1
				predecessors[e.To] = append(predecessors[e.To], id)
				queue = append(queue, e.To)
				if g.Module(e.To).Package == pkg {
					targets = append(targets, e.To)
				}
				continue
			}
			if depth[e.To] == depth[id]+1 && !containsID(predecessors[e.To], id) {
				predecessors[e.To] = append(predecessors[e.To], id)
			}
		}
	}
	return
}

func containsID(ids []model.ModuleID, id model.ModuleID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func reconstruct(parents map[model.ModuleID]model.ModuleID, entry, target model.ModuleID) Chain {
	var rev Chain
	cur := target
	for {
		rev = append(rev, cur)
		if cur == entry {
			break
		}
		p, ok := parents[cur]
		if !ok {
			break
		}
		cur = p
	}
	chain := make(Chain, len(rev))
	for i := range rev {
		chain[i] = rev[len(rev)-1-i]
	}
	return chain
}

// CutResult is the outcome of a cut-point query.
type CutResult struct {
	Module      model.ModuleID
	Found       bool
	ChainCount  int
	BrokenCount int
}

// CutPoints finds the minimum-indexed module (by first appearance from
// entry) that appears in every shortest chain to pkg. Ties among modules
// that break all chains are broken by proximity to the package, then by
// fewest other outgoing Static edges (spec §4.6).
func CutPoints(g *graph.Graph, entry model.ModuleID, pkg string, includeDynamic bool) CutResult {
	chains := ShortestChainsToPackage(g, entry, pkg, includeDynamic, 0)
	if len(chains) == 0 {
		return CutResult{}
	}

	// Candidate cut modules are the strictly interior hops of the first
	// chain: the entry itself is never a meaningful "cut" (it's the
	// subject of the trace), and the package-boundary module itself is
	// always trivially common to every chain to that package, which
	// would make every cut query answer "the package", never useful.
	// Preserve first-appearance order.
	if len(chains[0]) < 3 {
		return CutResult{ChainCount: len(chains)}
	}
	var candidates []model.ModuleID
	for _, id := range chains[0][1 : len(chains[0])-1] {
		candidates = append(candidates, id)
	}

	var best *model.ModuleID
	bestDepth := -1
	bestOutDegree := -1
	for _, cand := range candidates {
		if !appearsInAll(chains, cand) {
			continue
		}
		depthFromEntry := indexOf(chains[0], cand)
		distanceToPkg := len(chains[0]) - 1 - depthFromEntry
		outDeg := countOtherStaticEdges(g, cand)

		if best == nil || distanceToPkg < bestDepth ||
			(distanceToPkg == bestDepth && outDeg < bestOutDegree) {
			c := cand
			best = &c
			bestDepth = distanceToPkg
			bestOutDegree = outDeg
		}
	}

	if best == nil {
		return CutResult{ChainCount: len(chains)}
	}
	return CutResult{Module: *best, Found: true, ChainCount: len(chains), BrokenCount: len(chains)}
}

func appearsInAll(chains []Chain, id model.ModuleID) bool {
	for _, c := range chains {
		if indexOf(c, id) == -1 {
			return false
		}
	}
	return true
}

func indexOf(c Chain, id model.ModuleID) int {
	for i, x := range c {
		if x == id {
			return i
		}
	}
	return -1
}

func countOtherStaticEdges(g *graph.Graph, id model.ModuleID) int {
	n := 0
	for _, e := range g.Outgoing(id) {
		if e.Kind == model.Static {
			n++
		}
	}
	return n
}

// ModuleWeight is one row of the per-module transitive-cost listing.
type ModuleWeight struct {
	Path           string
	TransitiveBytes int64
}

// ModuleWeights computes, for every module reachable from entry, its own
// transitive weight (as if it were the entry point), ordered by descending
// cost then ascending path (spec §4.6's "determinism" ordering rule).
func ModuleWeights(g *graph.Graph, entry model.ModuleID, includeDynamic bool) []ModuleWeight {
	reachable := TransitiveWeight(g, entry, includeDynamic).Visited
	out := make([]ModuleWeight, len(reachable))
	for i, id := range reachable {
		w := TransitiveWeight(g, id, includeDynamic)
		out[i] = ModuleWeight{Path: g.Module(id).Path, TransitiveBytes: w.Bytes}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TransitiveBytes != out[j].TransitiveBytes {
			return out[i].TransitiveBytes > out[j].TransitiveBytes
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// DiffResult is the output of comparing two sides' package reachability.
type DiffResult struct {
	OnlyInA    []string
	OnlyInB    []string
	Shared     []string
	DeltaBytes int64 // B - A
}

// Side is one side of a diff: the set of packages reachable by Static
// edges and the total byte size.
type Side struct {
	Packages   map[string]int64 // name -> bytes
	TotalBytes int64
}

// SideFromGraph computes a Side from a live graph and entry point.
func SideFromGraph(g *graph.Graph, entry model.ModuleID, includeDynamic bool) Side {
	weight := TransitiveWeight(g, entry, includeDynamic)
	pkgs := make(map[string]int64)
	for _, id := range weight.Visited {
		m := g.Module(id)
		if m.Package == "" {
			continue
		}
		pkgs[m.Package] += m.Size
	}
	return Side{Packages: pkgs, TotalBytes: weight.Bytes}
}

// Diff computes only-in-A, only-in-B, shared, and delta bytes (spec §4.6).
// Package-level comparison is by name only.
func Diff(a, b Side) DiffResult {
	var onlyA, onlyB, shared []string
	for name := range a.Packages {
		if _, ok := b.Packages[name]; ok {
			shared = append(shared, name)
		} else {
			onlyA = append(onlyA, name)
		}
	}
	for name := range b.Packages {
		if _, ok := a.Packages[name]; !ok {
			onlyB = append(onlyB, name)
		}
	}
	sort.Strings(onlyA)
	sort.Strings(onlyB)
	sort.Strings(shared)

	return DiffResult{
		OnlyInA:    onlyA,
		OnlyInB:    onlyB,
		Shared:     shared,
		DeltaBytes: b.TotalBytes - a.TotalBytes,
	}
}
