package python

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RocketMan234/chainsaw/internal/model"
	"github.com/RocketMan234/chainsaw/internal/resolve"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolveTopLevelModule(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "util.py"), "x = 1\n")

	r := New(root)
	res := r.Resolve(filepath.Join(root, "main.py"), "util", model.Static)
	require.Equal(t, resolve.Resolved, res.Outcome)
	require.Equal(t, filepath.Join(root, "util.py"), res.Path)
}

func TestPackagePreferredOverModule(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pkg", "__init__.py"), "")
	writeFile(t, filepath.Join(root, "pkg.py"), "x = 1\n")

	r := New(root)
	res := r.Resolve(filepath.Join(root, "main.py"), "pkg", model.Static)
	require.Equal(t, resolve.Resolved, res.Outcome)
	require.Equal(t, filepath.Join(root, "pkg", "__init__.py"), res.Path)
}

func TestNamespacePackageFallback(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ns", "sub"), 0o755))
	writeFile(t, filepath.Join(root, "ns", "sub", "mod.py"), "x = 1\n")

	r := New(root)
	res := r.Resolve(filepath.Join(root, "main.py"), "ns", model.Static)
	require.Equal(t, resolve.Resolved, res.Outcome)
	require.Equal(t, filepath.Join(root, "ns"), res.Path)
}

func TestRelativeImportWalksParents(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pkg", "__init__.py"), "")
	writeFile(t, filepath.Join(root, "pkg", "sub", "__init__.py"), "")
	writeFile(t, filepath.Join(root, "pkg", "sibling.py"), "x = 1\n")

	r := New(root)
	res := r.Resolve(filepath.Join(root, "pkg", "sub", "__init__.py"), "..sibling", model.Static)
	require.Equal(t, resolve.Resolved, res.Outcome)
	require.Equal(t, filepath.Join(root, "pkg", "sibling.py"), res.Path)
}

func TestBareDotRelativeResolvesPackageInit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pkg", "__init__.py"), "")
	writeFile(t, filepath.Join(root, "pkg", "sub", "__init__.py"), "")

	r := New(root)
	res := r.Resolve(filepath.Join(root, "pkg", "sub", "__init__.py"), ".", model.Static)
	require.Equal(t, resolve.Resolved, res.Outcome)
	require.Equal(t, filepath.Join(root, "pkg", "__init__.py"), res.Path)
}

func TestStdlibSpecifierIsExternal(t *testing.T) {
	root := t.TempDir()
	r := New(root)
	res := r.Resolve(filepath.Join(root, "main.py"), "os.path", model.Static)
	require.Equal(t, resolve.External, res.Outcome)
}

func TestSrcLayoutSourceRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "pkg", "__init__.py"), "")

	r := New(root)
	res := r.Resolve(filepath.Join(root, "main.py"), "pkg", model.Static)
	require.Equal(t, resolve.Resolved, res.Outcome)
	require.Equal(t, filepath.Join(root, "src", "pkg", "__init__.py"), res.Path)
}

func TestMissingModuleIsReportedMissing(t *testing.T) {
	root := t.TempDir()
	r := New(root)
	res := r.Resolve(filepath.Join(root, "main.py"), "nope", model.Static)
	require.Equal(t, resolve.Missing, res.Outcome)
}

func TestPackageNameFromSitePackages(t *testing.T) {
	sp := t.TempDir()
	pkgInit := filepath.Join(sp, "requests", "__init__.py")
	writeFile(t, pkgInit, "")

	name, ok := PackageNameFromPath(pkgInit, []string{sp})
	require.True(t, ok)
	require.Equal(t, "requests", name)
}

func TestPackageNameSkipsDistInfo(t *testing.T) {
	sp := t.TempDir()
	path := filepath.Join(sp, "requests-2.0.dist-info", "METADATA")
	writeFile(t, path, "")

	_, ok := PackageNameFromPath(path, []string{sp})
	require.False(t, ok)
}
