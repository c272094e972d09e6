package query

import (
	"testing"

	"github.com/RocketMan234/chainsaw/internal/graph"
	"github.com/RocketMan234/chainsaw/internal/model"
	"github.com/stretchr/testify/require"
)

// buildLine builds A->B (Static), B->C (Dynamic), C->D (Static), matching
// spec §8 property #2.
func buildLine(t *testing.T) (*graph.Graph, model.ModuleID) {
	t.Helper()
	g := graph.New()
	a := g.AddModule("/a", 0, 10, "", model.LangTSJS)
	b := g.AddModule("/b", 0, 20, "", model.LangTSJS)
	c := g.AddModule("/c", 0, 40, "", model.LangTSJS)
	d := g.AddModule("/d", 0, 80, "", model.LangTSJS)
	g.AddEdge(a, b, model.Static, "./b")
	g.AddEdge(b, c, model.Dynamic, "./c")
	g.AddEdge(c, d, model.Static, "./d")
	return g, a
}

func TestStaticOnlyReachability(t *testing.T) {
	g, a := buildLine(t)
	w := TransitiveWeight(g, a, false)
	require.Equal(t, int64(30), w.Bytes) // size(A)+size(B)
	require.Len(t, w.Visited, 2)
}

func TestDynamicOptIn(t *testing.T) {
	g, a := buildLine(t)
	w := TransitiveWeight(g, a, true)
	require.Equal(t, int64(150), w.Bytes)
	require.Len(t, w.Visited, 4)
}

func TestChainDeduplicationOnSharedPenultimate(t *testing.T) {
	g := graph.New()
	entry := g.AddModule("/entry", 0, 1, "", model.LangTSJS)
	f1 := g.AddModule("/f1", 0, 1, "", model.LangTSJS)
	f2 := g.AddModule("/f2", 0, 1, "", model.LangTSJS)
	f3 := g.AddModule("/f3", 0, 1, "", model.LangTSJS)
	schema := g.AddModule("/node_modules/pkg/schema", 0, 1, "pkg/schema", model.LangTSJS)
	pkg := g.AddModule("/node_modules/pkg/index", 0, 1, "pkg", model.LangTSJS)

	for _, f := range []model.ModuleID{f1, f2, f3} {
		g.AddEdge(entry, f, model.Static, "./f")
		g.AddEdge(f, schema, model.Static, "pkg/schema")
	}
	g.AddEdge(schema, pkg, model.Static, "pkg")

	// Only schema itself feeds "pkg", so "pkg" has exactly one immediate
	// predecessor regardless of how many files feed schema: one chain.
	chains := ShortestChainsToPackage(g, entry, "pkg", false, 0)
	require.Len(t, chains, 1)
	require.Equal(t, schema, chains[0][len(chains[0])-2])
}

// TestDistinctFilesConvergingOnSameModuleYieldDistinctChains is spec §8
// Scenario S3: three first-party files all import the same downstream
// module directly. That module has three distinct immediate predecessors
// at the same depth, so it must produce three distinct chains, not one —
// a single-parent-per-node BFS would silently keep only the first.
func TestDistinctFilesConvergingOnSameModuleYieldDistinctChains(t *testing.T) {
	g := graph.New()
	entry := g.AddModule("/entry", 0, 1, "", model.LangTSJS)
	f1 := g.AddModule("/f1", 0, 1, "", model.LangTSJS)
	f2 := g.AddModule("/f2", 0, 1, "", model.LangTSJS)
	f3 := g.AddModule("/f3", 0, 1, "", model.LangTSJS)
	schema := g.AddModule("/node_modules/pkg/schema", 0, 1, "pkg/schema", model.LangTSJS)

	for _, f := range []model.ModuleID{f1, f2, f3} {
		g.AddEdge(entry, f, model.Static, "./f")
		g.AddEdge(f, schema, model.Static, "pkg/schema")
	}

	chains := ShortestChainsToPackage(g, entry, "pkg/schema", false, 0)
	require.Len(t, chains, 3)

	penultimates := map[model.ModuleID]bool{}
	for _, c := range chains {
		require.Len(t, c, 3) // entry -> f -> schema
		penultimates[c[1]] = true
	}
	require.Len(t, penultimates, 3)

	cut := CutPoints(g, entry, "pkg/schema", false)
	require.Equal(t, 3, cut.ChainCount)
}

// TestChainDedupeAcrossDistinctTargetsSharingPenultimate is the actual
// dedup rule the spec describes: two distinct modules in the same package,
// both reached only through one shared gateway file. The gateway is the
// penultimate hop for both, so only one of the two chains survives.
func TestChainDedupeAcrossDistinctTargetsSharingPenultimate(t *testing.T) {
	g := graph.New()
	entry := g.AddModule("/entry", 0, 1, "", model.LangTSJS)
	gateway := g.AddModule("/gateway", 0, 1, "", model.LangTSJS)
	t1 := g.AddModule("/node_modules/p/a", 0, 1, "p", model.LangTSJS)
	t2 := g.AddModule("/node_modules/p/b", 0, 1, "p", model.LangTSJS)

	g.AddEdge(entry, gateway, model.Static, "./gateway")
	g.AddEdge(gateway, t1, model.Static, "p/a")
	g.AddEdge(gateway, t2, model.Static, "p/b")

	chains := ShortestChainsToPackage(g, entry, "p", false, 0)
	require.Len(t, chains, 1)
	require.Equal(t, gateway, chains[0][len(chains[0])-2])
}

func TestCutPointDiamondNoSingleCut(t *testing.T) {
	g := graph.New()
	a := g.AddModule("/a", 0, 1, "", model.LangTSJS)
	x := g.AddModule("/x", 0, 1, "", model.LangTSJS)
	y := g.AddModule("/y", 0, 1, "", model.LangTSJS)
	z := g.AddModule("/z", 0, 1, "", model.LangTSJS)
	p := g.AddModule("/node_modules/p/index", 0, 1, "p", model.LangTSJS)

	g.AddEdge(a, x, model.Static, "./x")
	g.AddEdge(a, y, model.Static, "./y")
	g.AddEdge(a, z, model.Static, "./z")
	g.AddEdge(x, p, model.Static, "p")
	g.AddEdge(y, p, model.Static, "p")
	g.AddEdge(z, p, model.Static, "p")

	cut := CutPoints(g, a, "p", false)
	require.False(t, cut.Found)
	require.Equal(t, 3, cut.ChainCount)
}

func TestCutPointExistsWhenFunnelled(t *testing.T) {
	g := graph.New()
	a := g.AddModule("/a", 0, 1, "", model.LangTSJS)
	x := g.AddModule("/x", 0, 1, "", model.LangTSJS)
	p := g.AddModule("/node_modules/p/index", 0, 1, "p", model.LangTSJS)

	g.AddEdge(a, x, model.Static, "./x")
	g.AddEdge(x, p, model.Static, "p")

	cut := CutPoints(g, a, "p", false)
	require.True(t, cut.Found)
	require.Equal(t, x, cut.Module)
	require.Equal(t, 1, cut.ChainCount)
}

func TestDiffSymmetryAndSum(t *testing.T) {
	a := Side{Packages: map[string]int64{"pkgA": 100, "shared": 50}, TotalBytes: 150}
	b := Side{Packages: map[string]int64{"pkgB": 200, "shared": 50}, TotalBytes: 250}

	d := Diff(a, b)
	require.ElementsMatch(t, []string{"pkgA"}, d.OnlyInA)
	require.ElementsMatch(t, []string{"pkgB"}, d.OnlyInB)
	require.ElementsMatch(t, []string{"shared"}, d.Shared)
	require.Equal(t, int64(100), d.DeltaBytes)
	require.Equal(t, len(a.Packages), len(d.OnlyInA)+len(d.Shared))
}

func TestHeavyDependenciesTieBreakByName(t *testing.T) {
	g := graph.New()
	entry := g.AddModule("/entry", 0, 0, "", model.LangTSJS)
	bEntry := g.AddModule("/node_modules/b/index", 0, 100, "b", model.LangTSJS)
	aEntry := g.AddModule("/node_modules/a/index", 0, 100, "a", model.LangTSJS)
	g.AddEdge(entry, bEntry, model.Static, "b")
	g.AddEdge(entry, aEntry, model.Static, "a")

	heavy := HeavyDependencies(g, entry, false, 10)
	require.Len(t, heavy, 2)
	require.Equal(t, "a", heavy[0].Package)
	require.Equal(t, "b", heavy[1].Package)
}
