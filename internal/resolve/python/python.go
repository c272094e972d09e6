// Package python is the Python resolver: absolute specifiers walk source
// roots then installed-dependency roots; relative specifiers count leading
// dots and walk up parent directories; packages (dir+__init__) are
// preferred over same-named modules; namespace packages are supported
// (spec §4.2).
package python

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/RocketMan234/chainsaw/internal/model"
	"github.com/RocketMan234/chainsaw/internal/resolve"
)

// Resolver implements resolve.Resolver for Python.
type Resolver struct {
	SourceRoots      []string
	SitePackagesDirs []string
}

// New seeds source roots (project root + root/src + root/lib, matching the
// original's `src`/`lib` layout convention) and discovers installed
// dependency roots via the project's virtualenv.
func New(root string) *Resolver {
	sourceRoots := []string{root}
	for _, subdir := range []string{"src", "lib"} {
		candidate := filepath.Join(root, subdir)
		if isDir(candidate) {
			sourceRoots = append(sourceRoots, candidate)
		}
	}
	return &Resolver{
		SourceRoots:      sourceRoots,
		SitePackagesDirs: discoverSitePackages(root),
	}
}

func (r *Resolver) Language() model.Language { return model.LangPython }

func (r *Resolver) PackageName(resolvedPath string) (string, bool) {
	return PackageNameFromPath(resolvedPath, r.SitePackagesDirs)
}

func (r *Resolver) Resolve(containingFile, specifier string, kind model.EdgeKind) resolve.Result {
	if isStdlib(strings.TrimLeft(specifier, ".")) {
		return resolve.Result{Outcome: resolve.External, Detail: "stdlib"}
	}

	fromDir := filepath.Dir(containingFile)
	var path string
	var ok bool
	if strings.HasPrefix(specifier, ".") {
		path, ok = r.resolveRelative(fromDir, specifier)
	} else {
		path, ok = r.resolveAbsolute(specifier)
	}
	if !ok {
		return resolve.Result{Outcome: resolve.Missing, Detail: specifier}
	}
	return resolve.Result{Outcome: resolve.Resolved, Path: path}
}

func (r *Resolver) resolveRelative(fromDir, specifier string) (string, bool) {
	dots := 0
	for dots < len(specifier) && specifier[dots] == '.' {
		dots++
	}
	module := specifier[dots:]

	base := fromDir
	for i := 1; i < dots; i++ {
		parent := filepath.Dir(base)
		if parent == base {
			return "", false
		}
		base = parent
	}
	return tryResolveModule(base, module)
}

func (r *Resolver) resolveAbsolute(specifier string) (string, bool) {
	for _, root := range r.SourceRoots {
		if path, ok := tryResolveModule(root, specifier); ok {
			return path, true
		}
	}
	for _, sp := range r.SitePackagesDirs {
		if path, ok := tryResolveModule(sp, specifier); ok {
			return path, true
		}
	}
	return "", false
}

// tryResolveModule prefers a package (dir + __init__.py) over a same-named
// module file, and falls back to a namespace package (a dir without
// __init__ but that exists) when neither is found — spec §4.2.
func tryResolveModule(base, dottedName string) (string, bool) {
	if dottedName == "" {
		init := filepath.Join(base, "__init__.py")
		if fileExists(init) {
			return init, true
		}
		return "", false
	}

	relPath := strings.ReplaceAll(dottedName, ".", string(filepath.Separator))

	pkgDir := filepath.Join(base, relPath)
	pkgInit := filepath.Join(pkgDir, "__init__.py")
	if fileExists(pkgInit) {
		return pkgInit, true
	}

	moduleFile := filepath.Join(base, relPath+".py")
	if fileExists(moduleFile) {
		return moduleFile, true
	}

	if isDir(pkgDir) {
		// Namespace package: modeled as the directory itself, size 0,
		// no implicit outgoing edges (spec §4.2).
		return pkgDir, true
	}

	return "", false
}

// PackageNameFromPath returns the installed-dependency name for a resolved
// path, if it sits under one of the known site-packages roots.
func PackageNameFromPath(path string, sitePackages []string) (string, bool) {
	for _, sp := range sitePackages {
		rel, err := filepath.Rel(sp, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		top := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
		if strings.HasSuffix(top, ".dist-info") || strings.HasSuffix(top, ".egg-info") {
			continue
		}
		return top, true
	}
	return "", false
}

var venvNames = []string{".venv", "venv", ".env", "env"}

func discoverSitePackages(root string) []string {
	if dirs, ok := discoverSitePackagesFromCfg(root); ok {
		return dirs
	}
	return discoverSitePackagesViaSubprocess(root)
}

func discoverSitePackagesFromCfg(root string) ([]string, bool) {
	for _, name := range venvNames {
		venvDir := filepath.Join(root, name)
		cfgPath := filepath.Join(venvDir, "pyvenv.cfg")
		contents, err := os.ReadFile(cfgPath)
		if err != nil {
			continue
		}
		version, ok := parsePythonVersion(string(contents))
		if !ok {
			continue
		}
		sp := filepath.Join(venvDir, "lib", "python"+version, "site-packages")
		if isDir(sp) {
			return []string{sp}, true
		}
	}
	return nil, false
}

func parsePythonVersion(cfg string) (string, bool) {
	for _, line := range strings.Split(cfg, "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key != "version" && key != "version_info" {
			continue
		}
		parts := strings.SplitN(strings.TrimSpace(value), ".", 3)
		if len(parts) < 2 {
			return "", false
		}
		return parts[0] + "." + parts[1], true
	}
	return "", false
}

func discoverSitePackagesViaSubprocess(root string) []string {
	python := findPython(root)
	out, err := exec.Command(python, "-c", "import site; print('\\n'.join(site.getsitepackages()))").Output()
	if err != nil {
		return nil
	}
	var dirs []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && isDir(line) {
			dirs = append(dirs, line)
		}
	}
	return dirs
}

func findPython(root string) string {
	venvPython := filepath.Join(root, ".venv", "bin", "python")
	if fileExists(venvPython) {
		return venvPython
	}
	return "python3"
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// isStdlib reports whether a dotted top-level name is a CPython standard
// library module. Non-exhaustive but covers the modules that would
// otherwise spuriously show up as "missing" (spec §4.2's "known
// standard-library set").
func isStdlib(specifier string) bool {
	top := strings.SplitN(specifier, ".", 2)[0]
	_, ok := stdlibModules[top]
	return ok
}

var stdlibModules = buildStdlibSet()

func buildStdlibSet() map[string]struct{} {
	names := []string{
		"abc", "argparse", "array", "ast", "asyncio", "base64", "bisect",
		"builtins", "calendar", "collections", "configparser", "contextlib",
		"copy", "csv", "ctypes", "dataclasses", "datetime", "decimal",
		"difflib", "dis", "email", "enum", "errno", "functools", "gc",
		"getpass", "glob", "gzip", "hashlib", "heapq", "hmac", "html",
		"http", "importlib", "inspect", "io", "ipaddress", "itertools",
		"json", "logging", "math", "mimetypes", "multiprocessing", "numbers",
		"operator", "os", "pathlib", "pickle", "platform", "pprint",
		"queue", "random", "re", "sched", "secrets", "select", "shelve",
		"shlex", "shutil", "signal", "site", "socket", "sqlite3", "ssl",
		"stat", "string", "struct", "subprocess", "sys", "sysconfig",
		"tempfile", "textwrap", "threading", "time", "timeit", "token",
		"tokenize", "traceback", "types", "typing", "unittest", "urllib",
		"uuid", "venv", "warnings", "weakref", "xml", "zipfile", "zlib",
		"__future__",
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
