// Package tsjs is the TS/JS language backend: it classifies every import in
// a file as Static, Dynamic, or TypeOnly per spec §4.1, using tree-sitter to
// walk the syntax tree rather than regex matching on source text.
package tsjs

import (
	"context"
	"strings"

	"github.com/RocketMan234/chainsaw/internal/model"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
)

// Backend implements langs.Backend for the TypeScript/JavaScript family.
type Backend struct {
	ts  *sitter.Parser
	tsx *sitter.Parser
	js  *sitter.Parser
}

// New builds a Backend with one parser per grammar variant, matching the
// teacher's per-variant-parser-instance pattern (internal/languages/typescript.go).
func New() *Backend {
	ts := sitter.NewParser()
	ts.SetLanguage(typescript.GetLanguage())

	tx := sitter.NewParser()
	tx.SetLanguage(tsx.GetLanguage())

	js := sitter.NewParser()
	js.SetLanguage(javascript.GetLanguage())

	return &Backend{ts: ts, tsx: tx, js: js}
}

func (b *Backend) Extensions() []string {
	return []string{".ts", ".mts", ".cts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}
}

func (b *Backend) parserFor(path string) *sitter.Parser {
	switch {
	case strings.HasSuffix(path, ".tsx"):
		return b.tsx
	case strings.HasSuffix(path, ".ts"), strings.HasSuffix(path, ".mts"), strings.HasSuffix(path, ".cts"):
		return b.ts
	default:
		return b.js
	}
}

// Extract walks the parse tree and collects every raw import. Parse errors
// from tree-sitter never abort extraction: the tree is still usable, error
// nodes are simply skipped during the walk (tree-sitter's error recovery
// already gives the best-effort tree the spec asks for).
func (b *Backend) Extract(path string, content []byte) ([]model.RawImport, error) {
	p := b.parserFor(path)
	tree, err := p.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var out []model.RawImport
	walk(tree.RootNode(), content, &out)
	return out, nil
}

func walk(n *sitter.Node, src []byte, out *[]model.RawImport) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "import_statement":
		if ri, ok := staticImportStatement(n, src); ok {
			*out = append(*out, ri)
		}
	case "export_statement":
		if ri, ok := reExportStatement(n, src); ok {
			*out = append(*out, ri)
		}
	case "call_expression":
		if ri, ok := callExpressionImport(n, src); ok {
			*out = append(*out, ri)
		}
	case "import_alias":
		if ri, ok := importAliasStatement(n, src); ok {
			*out = append(*out, ri)
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), src, out)
	}
}

// staticImportStatement handles `import ... from "x"`. Classification:
// TypeOnly if the statement is `import type ...` or every
// named specifier is individually marked `type`; otherwise Static. A
// statement with at least one value binding is Static even when other
// specifiers are type-marked (spec §4.1).
func staticImportStatement(n *sitter.Node, src []byte) (model.RawImport, bool) {
	spec, line, col, ok := firstStringLiteral(n, src)
	if !ok {
		return model.RawImport{}, false
	}

	kind := model.Static
	if isTypeOnlyImport(n, src) {
		kind = model.TypeOnly
	}
	return model.RawImport{Specifier: spec, Kind: kind, Line: line, Col: col}, true
}

func isTypeOnlyImport(n *sitter.Node, src []byte) bool {
	// `import type ... from "x"`: the "type" keyword sits immediately after
	// "import" and before the clause/namespace/named-imports node.
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "import" {
			continue
		}
		if c.Type() == "string" {
			break
		}
		if strings.TrimSpace(c.Content(src)) == "type" {
			return true
		}
		break
	}

	// Otherwise: a value import is Static even if individual specifiers are
	// type-marked, so TypeOnly only holds if a named_imports clause exists
	// and every specifier inside is type-marked, and there is no default or
	// namespace import (which are never type-markable per-specifier).
	clause := findChildOfType(n, "import_clause")
	if clause == nil {
		return false
	}
	sawNamed := false
	allTyped := true
	for i := 0; i < int(clause.ChildCount()); i++ {
		c := clause.Child(i)
		switch c.Type() {
		case "identifier", "namespace_import":
			return false // default or `* as ns` binding: always a value
		case "named_imports":
			sawNamed = true
			for j := 0; j < int(c.ChildCount()); j++ {
				spec := c.Child(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				if !specifierIsTypeOnly(spec, src) {
					allTyped = false
				}
			}
		}
	}
	return sawNamed && allTyped
}

func specifierIsTypeOnly(spec *sitter.Node, src []byte) bool {
	for i := 0; i < int(spec.ChildCount()); i++ {
		c := spec.Child(i)
		if strings.TrimSpace(c.Content(src)) == "type" {
			return true
		}
	}
	return false
}

// reExportStatement handles `export {...} from "x"` and `export * from "x"`.
func reExportStatement(n *sitter.Node, src []byte) (model.RawImport, bool) {
	spec, line, col, ok := firstStringLiteral(n, src)
	if !ok {
		return model.RawImport{}, false
	}

	kind := model.Static
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "export" {
			continue
		}
		if c.Type() == "string" {
			break
		}
		if strings.TrimSpace(c.Content(src)) == "type" {
			kind = model.TypeOnly
		}
		break
	}
	if kind == model.Static {
		if named := findChildOfType(n, "export_clause"); named != nil {
			sawAny, allTyped := false, true
			for i := 0; i < int(named.ChildCount()); i++ {
				spec := named.Child(i)
				if spec.Type() != "export_specifier" {
					continue
				}
				sawAny = true
				if !specifierIsTypeOnly(spec, src) {
					allTyped = false
				}
			}
			if sawAny && allTyped {
				kind = model.TypeOnly
			}
		}
	}
	return model.RawImport{Specifier: spec, Kind: kind, Line: line, Col: col}, true
}

// callExpressionImport handles `require("x")` (Static, any nesting depth,
// including inside control flow) and `import("x")` (Dynamic, any position).
// Non-literal arguments (`require(expr)`, `import(variable)`) are discarded.
func callExpressionImport(n *sitter.Node, src []byte) (model.RawImport, bool) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return model.RawImport{}, false
	}

	var kind model.EdgeKind
	switch fn.Type() {
	case "import":
		kind = model.Dynamic
	case "identifier":
		if fn.Content(src) != "require" {
			return model.RawImport{}, false
		}
		kind = model.Static
	default:
		return model.RawImport{}, false
	}

	args := n.ChildByFieldName("arguments")
	if args == nil {
		return model.RawImport{}, false
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg.Type() == "string" {
			spec := unquote(arg.Content(src))
			return model.RawImport{
				Specifier: spec,
				Kind:      kind,
				Line:      int(n.StartPoint().Row) + 1,
				Col:       int(n.StartPoint().Column),
			}, true
		}
		break
	}
	return model.RawImport{}, false
}

// importAliasStatement handles TypeScript's import-equals form,
// `import X = require("mod")`, which tree-sitter-typescript parses as a
// distinct `import_alias` node rather than a call_expression: its `value`
// field is an `external_module_reference` wrapping the required string.
// Always Static (spec §4.1).
func importAliasStatement(n *sitter.Node, src []byte) (model.RawImport, bool) {
	value := n.ChildByFieldName("value")
	if value == nil || value.Type() != "external_module_reference" {
		return model.RawImport{}, false
	}
	spec, line, col, ok := firstStringLiteral(value, src)
	if !ok {
		return model.RawImport{}, false
	}
	return model.RawImport{Specifier: spec, Kind: model.Static, Line: line, Col: col}, true
}

func firstStringLiteral(n *sitter.Node, src []byte) (spec string, line, col int, ok bool) {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "string" {
			return unquote(c.Content(src)), int(c.StartPoint().Row) + 1, int(c.StartPoint().Column), true
		}
	}
	return "", 0, 0, false
}

func findChildOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func unquote(raw string) string {
	if len(raw) >= 2 {
		return raw[1 : len(raw)-1]
	}
	return raw
}
