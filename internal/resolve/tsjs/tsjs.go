// Package tsjs is the TS/JS resolver: extensionless imports, the .js->.ts
// rewrite, bare-specifier package resolution via conditional export maps,
// main-style fields, subpath patterns, self-references, and workspace
// links (spec §4.2).
package tsjs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/RocketMan234/chainsaw/internal/model"
	"github.com/RocketMan234/chainsaw/internal/resolve"
)

// candidateExtensions is the order extensionless imports are tried in,
// per spec §4.2.
var candidateExtensions = []string{".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs"}

// Resolver implements resolve.Resolver for TypeScript/JavaScript.
type Resolver struct {
	ProjectRoot string
	manifests   map[string]*manifest // dir -> parsed package.json, memoized
}

type manifest struct {
	Name    string                     `json:"name"`
	Main    string                     `json:"main"`
	Module  string                     `json:"module"`
	Exports json.RawMessage            `json:"exports"`
	dir     string
}

// New builds a Resolver rooted at a project directory (the directory
// containing the top-level package.json, per internal/project discovery).
func New(projectRoot string) *Resolver {
	return &Resolver{ProjectRoot: projectRoot, manifests: make(map[string]*manifest)}
}

func (r *Resolver) Language() model.Language { return model.LangTSJS }

// PackageName returns the node_modules package a resolved path belongs to,
// honoring scoped packages (@scope/name).
func (r *Resolver) PackageName(resolvedPath string) (string, bool) {
	marker := string(filepath.Separator) + "node_modules" + string(filepath.Separator)
	idx := strings.LastIndex(resolvedPath, marker)
	if idx == -1 {
		return "", false
	}
	rest := resolvedPath[idx+len(marker):]
	parts := strings.SplitN(rest, string(filepath.Separator), 3)
	if len(parts) == 0 {
		return "", false
	}
	if strings.HasPrefix(parts[0], "@") && len(parts) > 1 {
		return parts[0] + "/" + parts[1], true
	}
	return parts[0], true
}

func (r *Resolver) Resolve(containingFile, specifier string, kind model.EdgeKind) resolve.Result {
	if isBuiltin(specifier) {
		return resolve.Result{Outcome: resolve.External, Detail: "builtin"}
	}
	if isIgnoredAsset(specifier) {
		return resolve.Result{Outcome: resolve.External, Detail: "non-code asset"}
	}

	fromDir := filepath.Dir(containingFile)
	if strings.HasPrefix(specifier, ".") || strings.HasPrefix(specifier, "/") {
		if path, ok := r.resolveFileOrDir(filepath.Join(fromDir, specifier)); ok {
			return resolve.Result{Outcome: resolve.Resolved, Path: path}
		}
		return resolve.Result{Outcome: resolve.Missing, Detail: specifier}
	}

	if path, ok := r.resolveBare(fromDir, specifier); ok {
		return resolve.Result{Outcome: resolve.Resolved, Path: path}
	}
	return resolve.Result{Outcome: resolve.Missing, Detail: specifier}
}

// resolveFileOrDir implements the extensionless-import + .js->.ts rewrite +
// directory-index fallback chain for relative/absolute paths.
func (r *Resolver) resolveFileOrDir(path string) (string, bool) {
	if strings.HasSuffix(path, ".js") {
		tsCandidate := strings.TrimSuffix(path, ".js") + ".ts"
		if fileExists(tsCandidate) && !fileExists(path) {
			return tsCandidate, true
		}
	}
	if fileExists(path) {
		return path, true
	}
	for _, ext := range candidateExtensions {
		if c := path + ext; fileExists(c) {
			return c, true
		}
	}
	if isDir(path) {
		for _, ext := range candidateExtensions {
			if c := filepath.Join(path, "index"+ext); fileExists(c) {
				return c, true
			}
		}
	}
	return "", false
}

// resolveBare walks parent directories looking for a node_modules subtree
// containing the package, then drives entry selection from its manifest.
func (r *Resolver) resolveBare(fromDir, specifier string) (string, bool) {
	pkgName, subpath := splitPackageSpecifier(specifier)

	dir := fromDir
	for {
		nm := filepath.Join(dir, "node_modules", pkgName)
		if isDir(nm) {
			if path, ok := r.resolveFromPackage(nm, subpath); ok {
				return path, true
			}
		}
		// Workspace link: node_modules/<pkg> may be a symlink into the
		// monorepo; filepath.EvalSymlinks follows it transparently so the
		// above isDir/resolveFromPackage path already covers it as long as
		// the OS resolves the symlink, which fileExists/isDir do implicitly
		// via os.Stat.
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	// Self-reference: a package importing its own name via its own
	// exports map.
	if m := r.manifestFor(fromDir); m != nil && m.Name == pkgName {
		if path, ok := r.resolveFromPackage(m.dir, subpath); ok {
			return path, true
		}
	}

	return "", false
}

func splitPackageSpecifier(specifier string) (pkgName, subpath string) {
	parts := strings.SplitN(specifier, "/", 2)
	if strings.HasPrefix(specifier, "@") && len(parts) > 1 {
		scopedParts := strings.SplitN(parts[1], "/", 2)
		pkgName = parts[0] + "/" + scopedParts[0]
		if len(scopedParts) > 1 {
			subpath = scopedParts[1]
		}
		return
	}
	pkgName = parts[0]
	if len(parts) > 1 {
		subpath = parts[1]
	}
	return
}

// resolveFromPackage selects an entry file within a package directory:
// conditional export map first, then main/module-style fields, then
// index.* (spec §4.2).
func (r *Resolver) resolveFromPackage(pkgDir, subpath string) (string, bool) {
	m := r.manifestFor(pkgDir)
	if m != nil && len(m.Exports) > 0 {
		if path, ok := resolveExportsField(m.Exports, pkgDir, subpath); ok {
			return path, true
		}
	}
	if subpath != "" {
		return r.resolveFileOrDir(filepath.Join(pkgDir, subpath))
	}
	if m != nil {
		for _, field := range []string{m.Module, m.Main} {
			if field == "" {
				continue
			}
			if path, ok := r.resolveFileOrDir(filepath.Join(pkgDir, field)); ok {
				return path, true
			}
		}
	}
	return r.resolveFileOrDir(filepath.Join(pkgDir, "index"))
}

// resolveExportsField handles the three shapes package.json "exports" can
// take: a bare string (the package root), a map of condition names to a
// target, or a map of subpaths (possibly containing a "*" pattern) each
// resolving to either shape recursively.
func resolveExportsField(raw json.RawMessage, pkgDir, subpath string) (string, bool) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if subpath != "" {
			return "", false
		}
		return resolveIfExists(pkgDir, asString)
	}

	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return "", false
	}

	target := "."
	if subpath != "" {
		target = "./" + subpath
	}
	if entry, ok := asMap[target]; ok {
		return resolveExportsTarget(entry, pkgDir)
	}

	// Subpath pattern exports, e.g. "./utils/*": "./dist/utils/*.js".
	for key, entry := range asMap {
		prefix, ok := strings.CutSuffix(key, "*")
		if !ok {
			continue
		}
		if rest, ok := strings.CutPrefix(target, prefix); ok {
			if resolvedTarget, ok := expandPattern(entry, rest); ok {
				return resolveExportsTarget(resolvedTarget, pkgDir)
			}
		}
	}

	// Condition-keyed map at the top level (no subpaths at all): treat the
	// whole exports value as the root target's conditions.
	if target == "." {
		return resolveConditions(asMap, pkgDir)
	}
	return "", false
}

func resolveExportsTarget(raw json.RawMessage, pkgDir string) (string, bool) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return resolveIfExists(pkgDir, asString)
	}
	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asMap); err == nil {
		return resolveConditions(asMap, pkgDir)
	}
	return "", false
}

func expandPattern(raw json.RawMessage, rest string) (json.RawMessage, bool) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return json.RawMessage(`"` + strings.Replace(asString, "*", rest, 1) + `"`), true
	}
	return raw, true
}

func resolveConditions(m map[string]json.RawMessage, pkgDir string) (string, bool) {
	for _, cond := range []string{"import", "require", "node", "default"} {
		if entry, ok := m[cond]; ok {
			if path, ok := resolveExportsTarget(entry, pkgDir); ok {
				return path, true
			}
		}
	}
	return "", false
}

func resolveIfExists(pkgDir, rel string) (string, bool) {
	path := filepath.Join(pkgDir, rel)
	if fileExists(path) {
		return path, true
	}
	return "", false
}

func (r *Resolver) manifestFor(dir string) *manifest {
	if m, ok := r.manifests[dir]; ok {
		return m
	}
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		r.manifests[dir] = nil
		return nil
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		r.manifests[dir] = nil
		return nil
	}
	m.dir = dir
	r.manifests[dir] = &m
	return &m
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func isBuiltin(specifier string) bool {
	if strings.HasPrefix(specifier, "node:") {
		return true
	}
	_, ok := nodeBuiltins[specifier]
	return ok
}

func isIgnoredAsset(specifier string) bool {
	for _, ext := range []string{".css", ".scss", ".less", ".json", ".png", ".jpg", ".jpeg",
		".gif", ".svg", ".woff", ".woff2", ".ttf", ".eot", ".ico", ".webp"} {
		if strings.HasSuffix(specifier, ext) {
			return true
		}
	}
	return false
}

var nodeBuiltins = buildNodeBuiltins()

func buildNodeBuiltins() map[string]struct{} {
	names := []string{
		"assert", "async_hooks", "buffer", "child_process", "cluster",
		"console", "constants", "crypto", "dgram", "diagnostics_channel",
		"dns", "domain", "events", "fs", "http", "http2", "https", "inspector",
		"module", "net", "os", "path", "perf_hooks", "process", "punycode",
		"querystring", "readline", "repl", "stream", "string_decoder", "sys",
		"timers", "tls", "trace_events", "tty", "url", "util", "v8", "vm",
		"wasi", "worker_threads", "zlib",
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
