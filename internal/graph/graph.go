// Package graph is the arena-based module graph: dense ids, forward
// adjacency, and lazily computed package aggregation (spec §4.5).
package graph

import (
	"sort"

	"github.com/RocketMan234/chainsaw/internal/model"
)

// Graph is append-only within a run. It is never mutated concurrently with
// query execution (spec §5).
type Graph struct {
	modules  []model.Module
	edges    []model.Edge
	forward  [][]model.EdgeID // per module, outgoing edge ids
	pathToID map[string]model.ModuleID
	pkgCache map[string]*model.PackageInfo
	pkgDirty bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		pathToID: make(map[string]model.ModuleID),
		pkgCache: make(map[string]*model.PackageInfo),
	}
}

// AddModule inserts a module if its path is not already present and returns
// its id either way.
func (g *Graph) AddModule(path string, mtime, size int64, pkg string, lang model.Language) model.ModuleID {
	if id, ok := g.pathToID[path]; ok {
		return id
	}
	id := model.ModuleID(len(g.modules))
	g.modules = append(g.modules, model.Module{
		Path: path, Mtime: mtime, Size: size, Package: pkg, Lang: lang,
	})
	g.forward = append(g.forward, nil)
	g.pathToID[path] = id
	g.pkgDirty = true
	return id
}

// AddMissingModule inserts a zero-byte module flagged as unreadable (spec §7).
func (g *Graph) AddMissingModule(path string) model.ModuleID {
	if id, ok := g.pathToID[path]; ok {
		return id
	}
	id := model.ModuleID(len(g.modules))
	g.modules = append(g.modules, model.Module{Path: path, Missing: true})
	g.forward = append(g.forward, nil)
	g.pathToID[path] = id
	return id
}

// AddEdge appends an edge, deduplicated per (from, to, kind).
func (g *Graph) AddEdge(from, to model.ModuleID, kind model.EdgeKind, specifier string) model.EdgeID {
	for _, eid := range g.forward[from] {
		e := g.edges[eid]
		if e.To == to && e.Kind == kind {
			return eid
		}
	}
	id := model.EdgeID(len(g.edges))
	g.edges = append(g.edges, model.Edge{From: from, To: to, Kind: kind, Specifier: specifier})
	g.forward[from] = append(g.forward[from], id)
	g.pkgDirty = true
	return id
}

// ModuleByPath returns a module's id if present.
func (g *Graph) ModuleByPath(path string) (model.ModuleID, bool) {
	id, ok := g.pathToID[path]
	return id, ok
}

// Module returns the module for an id.
func (g *Graph) Module(id model.ModuleID) model.Module {
	return g.modules[id]
}

// ModuleCount returns the number of modules in the arena.
func (g *Graph) ModuleCount() int {
	return len(g.modules)
}

// Outgoing returns the outgoing edges for a module id.
func (g *Graph) Outgoing(id model.ModuleID) []model.Edge {
	eids := g.forward[id]
	out := make([]model.Edge, len(eids))
	for i, eid := range eids {
		out[i] = g.edges[eid]
	}
	return out
}

// Edge returns the edge for an id.
func (g *Graph) Edge(id model.EdgeID) model.Edge {
	return g.edges[id]
}

// AllModules returns every module, in id order. Callers must not mutate.
func (g *Graph) AllModules() []model.Module {
	return g.modules
}

// Packages seeds the package aggregation table with every package name and
// a representative entry module, computed on first call after any mutation
// and cached until the next one. Reachability totals (spec §4.5's "total
// reachable bytes") are entry- and edge-kind-specific, so they're computed
// by the query engine per query (HeavyDependencies, SideFromGraph) rather
// than stored here.
func (g *Graph) Packages() map[string]*model.PackageInfo {
	if !g.pkgDirty && len(g.pkgCache) > 0 {
		return g.pkgCache
	}
	g.pkgCache = make(map[string]*model.PackageInfo)
	for id, m := range g.modules {
		if m.Package == "" {
			continue
		}
		if _, ok := g.pkgCache[m.Package]; !ok {
			g.pkgCache[m.Package] = &model.PackageInfo{Name: m.Package, EntryModule: model.ModuleID(id)}
		}
	}
	g.pkgDirty = false
	return g.pkgCache
}

// SortedPaths returns every module path in ascending order, useful for
// deterministic listings.
func (g *Graph) SortedPaths() []string {
	out := make([]string, len(g.modules))
	for i, m := range g.modules {
		out[i] = m.Path
	}
	sort.Strings(out)
	return out
}
