package cliutil

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"fortio.org/log"

	"github.com/RocketMan234/chainsaw/internal/cachefmt"
	"github.com/RocketMan234/chainsaw/internal/graph"
	"github.com/RocketMan234/chainsaw/internal/langs"
	"github.com/RocketMan234/chainsaw/internal/langs/python"
	"github.com/RocketMan234/chainsaw/internal/langs/tsjs"
	"github.com/RocketMan234/chainsaw/internal/model"
	"github.com/RocketMan234/chainsaw/internal/project"
	"github.com/RocketMan234/chainsaw/internal/query"
	"github.com/RocketMan234/chainsaw/internal/report"
	"github.com/RocketMan234/chainsaw/internal/resolve"
	resolvepython "github.com/RocketMan234/chainsaw/internal/resolve/python"
	resolvetsjs "github.com/RocketMan234/chainsaw/internal/resolve/tsjs"
	"github.com/RocketMan234/chainsaw/internal/snapshot"
	"github.com/RocketMan234/chainsaw/internal/walker"
)

// Options mirrors the `trace` command's flags (spec §6).
type Options struct {
	Entry          string
	Chain          string
	Cut            string
	Diff           string
	DiffFrom       string
	Save           string
	IncludeDynamic bool
	Top            int
	TopModules     int
	JSON           bool
	NoCache        bool
	Quiet          bool
	Verbose        bool
	Workers        int
	ToolVersion    string
}

// builtResolver bundles what one entry's language selects.
type builtResolver struct {
	lang     model.Language
	backend  langs.Backend
	resolver resolve.Resolver
	root     string
}

func build(entry string) (*builtResolver, error) {
	lang := project.DetectLanguage(entry)
	if lang == model.LangUnknown {
		return nil, invalidArgs("unrecognized source file extension for %s", entry)
	}
	root := project.FindRoot(entry, lang)

	switch lang {
	case model.LangTSJS:
		return &builtResolver{lang: lang, backend: tsjs.New(), resolver: resolvetsjs.New(root), root: root}, nil
	case model.LangPython:
		return &builtResolver{lang: lang, backend: python.New(), resolver: resolvepython.New(root), root: root}, nil
	default:
		return nil, invalidArgs("unsupported language for %s", entry)
	}
}

// buildGraph loads or walks a graph for one entry, honoring the two-tier
// cache (spec §4.4).
func buildGraph(ctx context.Context, entry string, opts Options) (*graph.Graph, model.ModuleID, error) {
	br, err := build(entry)
	if err != nil {
		return nil, 0, err
	}
	entryAbs, err := filepath.Abs(entry)
	if err != nil {
		return nil, 0, unresolvedEntry("resolving entry path %s: %v", entry, err)
	}
	if _, statErr := os.Stat(entryAbs); statErr != nil {
		return nil, 0, unresolvedEntry("entry file not found: %s", entryAbs)
	}

	cachePath := filepath.Join(br.root, cachefmt.FileName)
	fingerprint := cachefmt.Fingerprint(opts.ToolVersion, []string{br.root}, opts.IncludeDynamic)

	var priorParseCache map[string]cachefmt.CachedParse
	if !opts.NoCache {
		env, hit, err := cachefmt.Load(cachePath)
		if err != nil {
			log.Warnf("cache read failed, rebuilding: %v", err)
		}
		if hit && env.Fingerprint == fingerprint {
			if g, entryID, ok := tryTrustWholesale(env.Graph, entryAbs); ok {
				log.LogVf("tier-2 snapshot trusted wholesale for %s", entryAbs)
				return g, entryID, nil
			}
			log.LogVf("tier-2 snapshot stale or partial for %s, falling back to tier-1 parse cache", entryAbs)
			priorParseCache = env.ParseCache
		}
	}

	res, err := walker.Walk(ctx, entryAbs, br.lang, br.backend, br.resolver, priorParseCache, opts.Workers)
	if err != nil {
		return nil, 0, ioFailure("walking from %s: %v", entryAbs, err)
	}
	for _, w := range res.Warnings {
		log.Warnf("%s: %s", w.Path, w.Message)
	}

	if !opts.NoCache {
		if err := saveCache(cachePath, fingerprint, res, br.root); err != nil {
			log.Warnf("cache write failed: %v", err)
		}
	}

	return res.Graph, res.EntryID, nil
}

func tryTrustWholesale(cg *cachefmt.CachedGraph, entryAbs string) (*graph.Graph, model.ModuleID, bool) {
	if cg == nil || cg.Entry != entryAbs {
		return nil, 0, false
	}
	for path, cm := range cg.FileMtimes {
		info, err := os.Stat(path)
		if err != nil || info.ModTime().UnixNano() != cm.MtimeNanos || info.Size() != cm.Size {
			return nil, 0, false
		}
	}
	g := graph.New()
	for _, m := range cg.Modules {
		g.AddModule(m.Path, m.Mtime, m.Size, m.Package, m.Lang)
	}
	for _, e := range cg.Edges {
		g.AddEdge(e.From, e.To, e.Kind, e.Specifier)
	}
	entryID, ok := g.ModuleByPath(entryAbs)
	if !ok {
		return nil, 0, false
	}
	return g, entryID, true
}

func saveCache(path, fingerprint string, res *walker.Result, root string) error {
	fileMtimes := make(map[string]cachefmt.CachedMtime, len(res.ParseCache))
	for p, cp := range res.ParseCache {
		fileMtimes[p] = cachefmt.CachedMtime{MtimeNanos: cp.MtimeNanos, Size: cp.Size}
	}
	var unresolved []string
	for spec := range res.UnresolvedSpecifiers {
		unresolved = append(unresolved, spec)
	}
	env := &cachefmt.Envelope{
		Fingerprint: fingerprint,
		ParseCache:  res.ParseCache,
		Graph: &cachefmt.CachedGraph{
			Entry:                res.Graph.Module(res.EntryID).Path,
			Modules:              res.Graph.AllModules(),
			Edges:                allEdges(res.Graph),
			FileMtimes:           fileMtimes,
			UnresolvedSpecifiers: unresolved,
		},
	}
	return cachefmt.Save(path, env)
}

func allEdges(g *graph.Graph) []model.Edge {
	var out []model.Edge
	for id := 0; id < g.ModuleCount(); id++ {
		out = append(out, g.Outgoing(model.ModuleID(id))...)
	}
	return out
}

// RunTrace executes the `trace` command end to end and writes the report
// to w.
func RunTrace(ctx context.Context, w io.Writer, opts Options) error {
	switch {
	case opts.Verbose:
		log.SetLogLevel(log.Debug)
	case opts.Quiet:
		log.SetLogLevel(log.Error)
	}

	if opts.Diff != "" && opts.DiffFrom != "" {
		return invalidArgs("--diff and --diff-from are mutually exclusive")
	}
	if opts.Entry == "" {
		return invalidArgs("entry path is required")
	}

	g, entryID, err := buildGraph(ctx, opts.Entry, opts)
	if err != nil {
		return err
	}

	weight := query.TransitiveWeight(g, entryID, false)
	allWeight := query.TransitiveWeight(g, entryID, true)

	t := &report.Trace{
		Entry:          entryID,
		StaticBytes:    weight.Bytes,
		StaticModules:  len(weight.Visited),
		DynamicBytes:   allWeight.Bytes - weight.Bytes,
		DynamicModules: len(allWeight.Visited) - len(weight.Visited),
		Heavy:          query.HeavyDependencies(g, entryID, opts.IncludeDynamic, nonZero(opts.Top, 10)),
		ModulesByCost:  truncateModules(query.ModuleWeights(g, entryID, opts.IncludeDynamic), nonZero(opts.TopModules, 20)),
	}

	if opts.Chain != "" {
		t.Chains = query.ShortestChainsToPackage(g, entryID, opts.Chain, opts.IncludeDynamic, nonZero(opts.Top, 10))
		t.ChainPackage = opts.Chain
	}
	if opts.Cut != "" {
		cut := query.CutPoints(g, entryID, opts.Cut, opts.IncludeDynamic)
		t.Cut = &cut
		t.CutPackage = opts.Cut
	}

	if opts.Diff != "" || opts.DiffFrom != "" {
		if err := applyDiff(ctx, g, entryID, opts, t); err != nil {
			return err
		}
	}

	if opts.Save != "" {
		if err := saveSnapshot(g, entryID, opts); err != nil {
			return ioFailure("saving snapshot to %s: %v", opts.Save, err)
		}
	}

	root := rootOf(g, entryID, opts.Entry)
	if opts.JSON {
		return report.WriteJSON(w, g, t, root)
	}
	report.PrintTrace(w, g, t, root)
	return nil
}

func rootOf(g *graph.Graph, entryID model.ModuleID, entry string) string {
	lang := project.DetectLanguage(entry)
	if lang == model.LangUnknown {
		return filepath.Dir(g.Module(entryID).Path)
	}
	return project.FindRoot(entry, lang)
}

func applyDiff(ctx context.Context, gA *graph.Graph, entryA model.ModuleID, opts Options, t *report.Trace) error {
	sideA := query.SideFromGraph(gA, entryA, opts.IncludeDynamic)

	var sideB query.Side
	if opts.Diff != "" {
		gB, entryB, err := buildGraph(ctx, opts.Diff, opts)
		if err != nil {
			return err
		}
		sideB = query.SideFromGraph(gB, entryB, opts.IncludeDynamic)
		t.DiffEntryB = opts.Diff
	} else {
		snap, err := snapshot.Load(opts.DiffFrom)
		if err != nil {
			if errors.Is(err, snapshot.ErrVersionMismatch) {
				return invalidArgs("snapshot version mismatch: %s", opts.DiffFrom)
			}
			return ioFailure("loading snapshot %s: %v", opts.DiffFrom, err)
		}
		pkgs := make(map[string]int64, len(snap.Packages))
		var total int64
		for _, p := range snap.Packages {
			pkgs[p.Name] = p.Bytes
			total += p.Bytes
		}
		sideB = query.Side{Packages: pkgs, TotalBytes: total}
		t.DiffEntryB = snap.EntryLabel
	}

	t.DiffEntryA = opts.Entry
	d := query.Diff(sideA, sideB)
	t.Diff = &d
	return nil
}

func saveSnapshot(g *graph.Graph, entryID model.ModuleID, opts Options) error {
	weight := query.TransitiveWeight(g, entryID, opts.IncludeDynamic)
	pkgs := make(map[string]int64)
	for _, id := range weight.Visited {
		m := g.Module(id)
		if m.Package != "" {
			pkgs[m.Package] += m.Size
		}
	}
	var totals []snapshot.PackageTotal
	for name, bytes := range pkgs {
		totals = append(totals, snapshot.PackageTotal{Name: name, Bytes: bytes})
	}
	snap := &snapshot.Snapshot{
		EntryLabel:  opts.Entry,
		ToolVersion: opts.ToolVersion,
		Packages:    totals,
		TotalBytes:  weight.Bytes,
	}
	return snapshot.Save(opts.Save, snap)
}

func nonZero(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func truncateModules(mods []query.ModuleWeight, n int) []query.ModuleWeight {
	if n > 0 && len(mods) > n {
		return mods[:n]
	}
	return mods
}
