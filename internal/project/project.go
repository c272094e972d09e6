// Package project discovers the resolver roots for an entry file: the
// TS/JS project root (nearest ancestor package.json) or the Python source
// root (topmost ancestor still containing __init__.py). This is the
// supplemented "auto-detection" feature, grounded in
// original_source/src/main.rs's find_project_root and
// original_source/src/lang/mod.rs's find_root_with_marker.
package project

import (
	"os"
	"path/filepath"

	"github.com/RocketMan234/chainsaw/internal/model"
)

// DetectLanguage infers the language family from an entry file's extension.
func DetectLanguage(entry string) model.Language {
	switch filepath.Ext(entry) {
	case ".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs":
		return model.LangTSJS
	case ".py", ".pyw", ".pyi":
		return model.LangPython
	default:
		return model.LangUnknown
	}
}

// FindRoot walks up from the entry file looking for the marker that
// identifies a project root: package.json for TS/JS, or the topmost
// directory still containing __init__.py for Python (the package's
// top-level import root).
func FindRoot(entry string, lang model.Language) string {
	switch lang {
	case model.LangTSJS:
		if root, ok := findRootWithMarker(filepath.Dir(entry), "package.json"); ok {
			return root
		}
	case model.LangPython:
		return findPythonRoot(filepath.Dir(entry))
	}
	return filepath.Dir(entry)
}

func findRootWithMarker(start, marker string) (string, bool) {
	dir := start
	for {
		if fileExists(filepath.Join(dir, marker)) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// findPythonRoot climbs past every ancestor directory that still has an
// __init__.py, so the root lands one level above the outermost package —
// the directory that belongs on sys.path.
func findPythonRoot(start string) string {
	dir := start
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		if !fileExists(filepath.Join(dir, "__init__.py")) {
			return dir
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
