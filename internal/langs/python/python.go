// Package python is the Python language backend: classifies imports as
// Static, Dynamic, or TypeOnly per spec §4.1.
package python

import (
	"context"
	"strings"

	"github.com/RocketMan234/chainsaw/internal/model"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Backend implements langs.Backend for Python.
type Backend struct {
	parser *sitter.Parser
}

// New builds a Backend.
func New() *Backend {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Backend{parser: p}
}

func (b *Backend) Extensions() []string {
	return []string{".py", ".pyw", ".pyi"}
}

// ctx tracks the nesting a node is found under: whether it sits inside a
// function/method or conditional block (makes it Dynamic, spec §4.1's
// "physically executes only when that block runs") and whether it sits
// inside a `if TYPE_CHECKING:` guard (makes it TypeOnly, taking priority).
type ctx struct {
	dynamic      bool
	typeChecking bool
}

func (b *Backend) Extract(path string, content []byte) ([]model.RawImport, error) {
	tree, err := b.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var out []model.RawImport
	walk(tree.RootNode(), content, ctx{}, &out)
	return out, nil
}

func walk(n *sitter.Node, src []byte, c ctx, out *[]model.RawImport) {
	if n == nil {
		return
	}

	switch n.Type() {
	case "import_statement":
		*out = append(*out, importStatement(n, src, c)...)
		return
	case "import_from_statement":
		*out = append(*out, fromImportStatement(n, src, c)...)
		return
	case "function_definition":
		if body := n.ChildByFieldName("body"); body != nil {
			walk(body, src, ctx{dynamic: true, typeChecking: c.typeChecking}, out)
		}
		return
	case "if_statement":
		walkIfStatement(n, src, c, out)
		return
	case "while_statement":
		if body := n.ChildByFieldName("body"); body != nil {
			walk(body, src, ctx{dynamic: true, typeChecking: c.typeChecking}, out)
		}
		walkRemainingChildren(n, src, c, out, "body")
		return
	case "for_statement":
		if body := n.ChildByFieldName("body"); body != nil {
			walk(body, src, ctx{dynamic: true, typeChecking: c.typeChecking}, out)
		}
		walkRemainingChildren(n, src, c, out, "body")
		return
	case "try_statement":
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i), src, ctx{dynamic: true, typeChecking: c.typeChecking}, out)
		}
		return
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), src, c, out)
	}
}

// walkIfStatement special-cases `if TYPE_CHECKING:` (or `if typing.TYPE_CHECKING:`):
// its consequence block is TypeOnly, not Dynamic. Any other if/elif/else
// block is an ordinary conditional (Dynamic).
func walkIfStatement(n *sitter.Node, src []byte, c ctx, out *[]model.RawImport) {
	cond := n.ChildByFieldName("condition")
	guardsTypeChecking := cond != nil && isTypeCheckingSentinel(cond, src)

	if body := n.ChildByFieldName("consequence"); body != nil {
		walk(body, src, ctx{dynamic: true, typeChecking: c.typeChecking || guardsTypeChecking}, out)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "elif_clause", "else_clause":
			walk(child, src, ctx{dynamic: true, typeChecking: c.typeChecking}, out)
		}
	}
}

func isTypeCheckingSentinel(n *sitter.Node, src []byte) bool {
	text := strings.TrimSpace(n.Content(src))
	return text == "TYPE_CHECKING" || strings.HasSuffix(text, ".TYPE_CHECKING")
}

func walkRemainingChildren(n *sitter.Node, src []byte, c ctx, out *[]model.RawImport, skipField string) {
	body := n.ChildByFieldName(skipField)
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if body != nil && child == body {
			continue
		}
		if child.Type() == "else_clause" {
			walk(child, src, ctx{dynamic: true, typeChecking: c.typeChecking}, out)
		}
	}
}

func kindFor(c ctx) model.EdgeKind {
	switch {
	case c.typeChecking:
		return model.TypeOnly
	case c.dynamic:
		return model.Dynamic
	default:
		return model.Static
	}
}

// importStatement handles `import x`, `import x as y`, `import x, y.z`.
func importStatement(n *sitter.Node, src []byte, c ctx) []model.RawImport {
	var out []model.RawImport
	kind := kindFor(c)
	line := int(n.StartPoint().Row) + 1
	col := int(n.StartPoint().Column)

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			out = append(out, model.RawImport{Specifier: child.Content(src), Kind: kind, Line: line, Col: col})
		case "aliased_import":
			name := child.ChildByFieldName("name")
			if name != nil {
				out = append(out, model.RawImport{Specifier: name.Content(src), Kind: kind, Line: line, Col: col})
			}
		}
	}
	return out
}

// fromImportStatement handles `from x import ...`, `from . import ...`,
// `from ..pkg import ...`. The module_name field carries the non-dot part
// of the specifier for relative imports; leading dots are separate tokens
// before it, and the resolver counts them.
//
// When module_name is present, the whole statement resolves to that one
// module or package — the imported names are members of it, not separate
// files, so it yields a single RawImport. When module_name is absent (a
// bare-dot import: `from . import sub`, `from .. import a, b`), there is
// no module to be a member of, so each imported name is itself a submodule
// of the package the dots point at, and each gets its own RawImport.
func fromImportStatement(n *sitter.Node, src []byte, c ctx) []model.RawImport {
	moduleNode := n.ChildByFieldName("module_name")
	var spec string
	if moduleNode != nil {
		spec = moduleNode.Content(src)
	}

	// Leading dots live as separate tokens before module_name for
	// relative imports (`from . import x`, `from .. import y`).
	dots := 0
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == "import" {
			break
		}
		if child.Type() == "." || child.Type() == "relative_import" {
			dots += strings.Count(child.Content(src), ".")
		}
	}
	prefix := strings.Repeat(".", dots)

	kind := kindFor(c)
	line := int(n.StartPoint().Row) + 1
	col := int(n.StartPoint().Column)

	if moduleNode != nil {
		spec = prefix + spec
		if spec == "" {
			return nil
		}
		return []model.RawImport{{Specifier: spec, Kind: kind, Line: line, Col: col}}
	}

	if prefix == "" {
		return nil
	}

	var out []model.RawImport
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			out = append(out, model.RawImport{Specifier: prefix + child.Content(src), Kind: kind, Line: line, Col: col})
		case "aliased_import":
			name := child.ChildByFieldName("name")
			if name != nil {
				out = append(out, model.RawImport{Specifier: prefix + name.Content(src), Kind: kind, Line: line, Col: col})
			}
		}
	}
	return out
}
