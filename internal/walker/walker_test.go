package walker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/RocketMan234/chainsaw/internal/cachefmt"
	"github.com/RocketMan234/chainsaw/internal/langs/tsjs"
	"github.com/RocketMan234/chainsaw/internal/model"
	resolvetsjs "github.com/RocketMan234/chainsaw/internal/resolve/tsjs"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// fanTree builds entry -> {a, b, c} -> shared, a small-but-branching graph
// whose parse order varies across worker counts.
func fanTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "entry.ts"), `
import "./a";
import "./b";
import "./c";
`)
	writeFile(t, filepath.Join(root, "a.ts"), `import "./shared";`)
	writeFile(t, filepath.Join(root, "b.ts"), `import "./shared";`)
	writeFile(t, filepath.Join(root, "c.ts"), `import "./shared";`)
	writeFile(t, filepath.Join(root, "shared.ts"), `export const x = 1;`)
	return root
}

func runWalk(t *testing.T, root string, priorCache map[string]cachefmt.CachedParse, workers int) *Result {
	t.Helper()
	backend := tsjs.New()
	resolver := resolvetsjs.New(root)
	res, err := Walk(context.Background(), filepath.Join(root, "entry.ts"), model.LangTSJS, backend, resolver, priorCache, workers)
	require.NoError(t, err)
	return res
}

func TestWalkDiscoversEveryFile(t *testing.T) {
	root := fanTree(t)
	res := runWalk(t, root, nil, 1)
	require.Equal(t, 5, res.Graph.ModuleCount())
	require.Equal(t, 5, res.ParseInvocations)
}

func TestCacheIdentityAvoidsReparsing(t *testing.T) {
	root := fanTree(t)
	first := runWalk(t, root, nil, 1)
	require.Equal(t, 5, first.ParseInvocations)

	second := runWalk(t, root, first.ParseCache, 1)
	require.Equal(t, 0, second.ParseInvocations)
	require.Equal(t, 5, second.Graph.ModuleCount())
}

func TestCacheInvalidationReparsesOnlyTouchedFile(t *testing.T) {
	root := fanTree(t)
	first := runWalk(t, root, nil, 1)
	require.Equal(t, 5, first.ParseInvocations)

	// Touch b.ts: change its content (and therefore mtime/size) so the
	// cached entry no longer matches.
	writeFile(t, filepath.Join(root, "b.ts"), `import "./shared";
export const y = 2;
`)

	second := runWalk(t, root, first.ParseCache, 1)
	require.Equal(t, 1, second.ParseInvocations)
	require.Equal(t, 5, second.Graph.ModuleCount())
}

func TestDeterminismAcrossRepeatedWalks(t *testing.T) {
	root := fanTree(t)
	a := runWalk(t, root, nil, 1)
	b := runWalk(t, root, nil, 1)

	require.Equal(t, a.Graph.SortedPaths(), b.Graph.SortedPaths())
	require.Equal(t, a.Graph.ModuleCount(), b.Graph.ModuleCount())
}

func TestWorkerCountDoesNotChangeOutcome(t *testing.T) {
	root := fanTree(t)
	single := runWalk(t, root, nil, 1)
	parallel := runWalk(t, root, nil, 4)

	require.Equal(t, single.Graph.SortedPaths(), parallel.Graph.SortedPaths())
	require.Equal(t, single.Graph.ModuleCount(), parallel.Graph.ModuleCount())
	require.Len(t, single.Warnings, 0)
	require.Len(t, parallel.Warnings, 0)
}

func TestMissingImportRecordsWarningNotFailure(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "entry.ts"), `import "./missing";`)

	res := runWalk(t, root, nil, 1)
	require.Contains(t, res.UnresolvedSpecifiers, "./missing")
	require.Equal(t, 1, res.Graph.ModuleCount())
}

func TestUnreadableFileBecomesMissingModule(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "entry.ts"), `import "./ghost";`)
	ghost := filepath.Join(root, "ghost.ts")
	writeFile(t, ghost, `export const x = 1;`)
	require.NoError(t, os.Chmod(ghost, 0o000))
	defer os.Chmod(ghost, 0o644)

	if os.Geteuid() == 0 {
		t.Skip("running as root: file permissions don't prevent reads")
	}

	res := runWalk(t, root, nil, 1)
	found := false
	for _, m := range res.Graph.AllModules() {
		if m.Path == ghost {
			found = true
			require.True(t, m.Missing)
		}
	}
	require.True(t, found)
	require.Len(t, res.Warnings, 1)
}
