package graph

import (
	"testing"

	"github.com/RocketMan234/chainsaw/internal/model"
)

func TestAddEdgeDeduplicatesSameFromToKind(t *testing.T) {
	g := New()
	a := g.AddModule("/a.ts", 1, 10, "", model.LangTSJS)
	b := g.AddModule("/b.ts", 1, 10, "", model.LangTSJS)

	g.AddEdge(a, b, model.Static, "./b")
	g.AddEdge(a, b, model.Static, "./b")

	if got := len(g.Outgoing(a)); got != 1 {
		t.Fatalf("expected 1 deduplicated edge, got %d", got)
	}
}

func TestAddEdgeAllowsDifferentKinds(t *testing.T) {
	g := New()
	a := g.AddModule("/a.ts", 1, 10, "", model.LangTSJS)
	b := g.AddModule("/b.ts", 1, 10, "", model.LangTSJS)

	g.AddEdge(a, b, model.Static, "./b")
	g.AddEdge(a, b, model.Dynamic, "./b")

	if got := len(g.Outgoing(a)); got != 2 {
		t.Fatalf("expected 2 distinct-kind edges, got %d", got)
	}
}

func TestAddModuleIsIdempotentByPath(t *testing.T) {
	g := New()
	first := g.AddModule("/a.ts", 1, 10, "", model.LangTSJS)
	second := g.AddModule("/a.ts", 99, 99, "other", model.LangPython)

	if first != second {
		t.Fatalf("expected same id for repeated path, got %d and %d", first, second)
	}
	if g.ModuleCount() != 1 {
		t.Fatalf("expected 1 module, got %d", g.ModuleCount())
	}
}

func TestPackagesSeedsNamesFromModules(t *testing.T) {
	g := New()
	g.AddModule("/node_modules/pkg/index.js", 1, 10, "pkg", model.LangTSJS)
	g.AddModule("/a.ts", 1, 10, "", model.LangTSJS)

	pkgs := g.Packages()
	if _, ok := pkgs["pkg"]; !ok {
		t.Fatalf("expected pkg to be present in package table")
	}
	if len(pkgs) != 1 {
		t.Fatalf("expected exactly 1 package, got %d", len(pkgs))
	}
}
