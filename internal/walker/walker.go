// Package walker drives incremental parallel discovery from an entry file:
// frontier-by-frontier BFS where parsing and resolution are fused into one
// bounded-parallel pass per level, and graph mutation happens through a
// single-writer coordinator (spec §4.3, §5).
package walker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/RocketMan234/chainsaw/internal/cachefmt"
	"github.com/RocketMan234/chainsaw/internal/graph"
	"github.com/RocketMan234/chainsaw/internal/langs"
	"github.com/RocketMan234/chainsaw/internal/model"
	"github.com/RocketMan234/chainsaw/internal/resolve"
	"golang.org/x/sync/errgroup"
)

// Warning is a non-fatal condition recorded during a walk (spec §7).
type Warning struct {
	Path    string
	Message string
}

// Result is everything a walk produces.
type Result struct {
	Graph                *graph.Graph
	EntryID               model.ModuleID
	Warnings              []Warning
	UnresolvedSpecifiers  map[string]bool
	ParseCache            map[string]cachefmt.CachedParse // updated/extended tier-1 entries
	ParseInvocations      int                              // for cache-identity tests
}

// frontierItem is what phase 3 (parallel parse+resolve) hands back to the
// single-writer coordinator.
type frontierItem struct {
	path      string
	imports   []resolvedImport
	cacheNow  *cachefmt.CachedParse // non-nil if this file was freshly parsed
	readFail  bool
}

type resolvedImport struct {
	raw    model.RawImport
	result resolve.Result
}

// Walk builds a graph from entry, reusing g if non-nil (so callers can seed
// a previously loaded tier-2 snapshot and let the walker validate/extend
// it). workers bounds CPU-heavy concurrency; 0 means GOMAXPROCS.
func Walk(ctx context.Context, entry string, lang model.Language, backend langs.Backend,
	resolver resolve.Resolver, priorCache map[string]cachefmt.CachedParse, workers int) (*Result, error) {

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if priorCache == nil {
		priorCache = make(map[string]cachefmt.CachedParse)
	}

	g := graph.New()
	res := &Result{
		Graph:                g,
		UnresolvedSpecifiers: make(map[string]bool),
		ParseCache:           priorCache,
	}

	entryAbs, err := filepath.Abs(entry)
	if err != nil {
		return nil, fmt.Errorf("resolve entry path: %w", err)
	}
	info, err := os.Stat(entryAbs)
	if err != nil {
		return nil, fmt.Errorf("unresolvable entry %s: %w", entryAbs, err)
	}

	res.EntryID = g.AddModule(entryAbs, info.ModTime().UnixNano(), info.Size(), "", lang)

	type pending struct {
		path    string
		imports []resolvedImport
	}
	var frontier []pending

	entryItem, readFail := parseAndResolve(entryAbs, backend, resolver, res, priorCache, lang)
	if !readFail {
		frontier = append(frontier, pending{path: entryAbs, imports: entryItem.imports})
	}

	visited := map[string]bool{entryAbs: true}

	for len(frontier) > 0 {
		current := frontier
		frontier = nil

		// Phase 1: serial graph mutation from pre-resolved imports.
		var newFiles []string
		for _, item := range current {
			sourceID, _ := g.ModuleByPath(item.path)
			for _, ri := range item.imports {
				switch ri.result.Outcome {
				case resolve.Missing:
					res.UnresolvedSpecifiers[ri.result.Detail] = true
					continue
				case resolve.External:
					continue
				}

				target := ri.result.Path
				if targetID, ok := g.ModuleByPath(target); ok {
					g.AddEdge(sourceID, targetID, ri.raw.Kind, ri.raw.Specifier)
					continue
				}

				pkg, _ := resolver.PackageName(target)
				size, mtime := statOrZero(target)
				targetID := g.AddModule(target, mtime, size, pkg, lang)
				g.AddEdge(sourceID, targetID, ri.raw.Kind, ri.raw.Specifier)

				if !visited[target] && isParseable(target, backend) {
					visited[target] = true
					newFiles = append(newFiles, target)
				}
			}
		}

		if len(newFiles) == 0 {
			continue
		}

		// Phase 2: serial cache split.
		var toParse []string
		cached := make(map[string]cachefmt.CachedParse)
		for _, path := range newFiles {
			if entry, ok := priorCache[path]; ok {
				if stillValid(path, entry) {
					cached[path] = entry
					continue
				}
			}
			toParse = append(toParse, path)
		}

		// Phase 3: bounded-parallel parse+resolve fusion.
		results := make([]frontierItem, len(newFiles))
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(workers)
		for i, path := range newFiles {
			i, path := i, path
			eg.Go(func() error {
				select {
				case <-egCtx.Done():
					return egCtx.Err()
				default:
				}
				if entry, ok := cached[path]; ok {
					results[i] = resolveOnly(path, entry.Imports, resolver)
					return nil
				}
				item, readFail := parseAndResolveWorker(path, backend, resolver)
				if readFail {
					results[i] = frontierItem{path: path, readFail: true}
					return nil
				}
				results[i] = item
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}

		for _, item := range results {
			if item.readFail {
				g.AddMissingModule(item.path)
				res.Warnings = append(res.Warnings, Warning{Path: item.path, Message: "failed to read file"})
				continue
			}
			if item.cacheNow != nil {
				priorCache[item.path] = *item.cacheNow
				res.ParseInvocations++
			}
			frontier = append(frontier, pending{path: item.path, imports: item.imports})
		}
	}

	return res, nil
}

func parseAndResolve(path string, backend langs.Backend, resolver resolve.Resolver,
	res *Result, priorCache map[string]cachefmt.CachedParse, lang model.Language) (frontierItem, bool) {

	if entry, ok := priorCache[path]; ok && stillValid(path, entry) {
		return resolveOnly(path, entry.Imports, resolver), false
	}
	item, readFail := parseAndResolveWorker(path, backend, resolver)
	if readFail {
		res.Warnings = append(res.Warnings, Warning{Path: path, Message: "failed to read file"})
		return item, true
	}
	if item.cacheNow != nil {
		priorCache[path] = *item.cacheNow
		res.ParseInvocations++
	}
	return item, false
}

func parseAndResolveWorker(path string, backend langs.Backend, resolver resolve.Resolver) (frontierItem, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return frontierItem{path: path, readFail: true}, true
	}
	imports, err := backend.Extract(path, content)
	if err != nil {
		// Parse error: partial result (nil imports) still used, never fatal.
		imports = nil
	}
	info, statErr := os.Stat(path)
	var cacheNow *cachefmt.CachedParse
	if statErr == nil {
		cacheNow = &cachefmt.CachedParse{
			MtimeNanos: info.ModTime().UnixNano(),
			Size:       info.Size(),
			Imports:    imports,
		}
	}
	resolved := make([]resolvedImport, len(imports))
	for i, imp := range imports {
		resolved[i] = resolvedImport{raw: imp, result: resolver.Resolve(path, imp.Specifier, imp.Kind)}
	}
	return frontierItem{path: path, imports: resolved, cacheNow: cacheNow}, false
}

func resolveOnly(path string, imports []model.RawImport, resolver resolve.Resolver) frontierItem {
	resolved := make([]resolvedImport, len(imports))
	for i, imp := range imports {
		resolved[i] = resolvedImport{raw: imp, result: resolver.Resolve(path, imp.Specifier, imp.Kind)}
	}
	return frontierItem{path: path, imports: resolved}
}

func stillValid(path string, cached cachefmt.CachedParse) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.ModTime().UnixNano() == cached.MtimeNanos && info.Size() == cached.Size
}

func statOrZero(path string) (size, mtime int64) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0
	}
	return info.Size(), info.ModTime().UnixNano()
}

func isParseable(path string, backend langs.Backend) bool {
	ext := filepath.Ext(path)
	for _, e := range backend.Extensions() {
		if e == ext {
			return true
		}
	}
	return false
}
