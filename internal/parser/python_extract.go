package parser

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/crateindex/crateindex/internal/types"
)

// pythonExtractor is deliberately reduced-scope: symbols (functions,
// classes) and imports only — no call graph, safety, async, or lifetime
// passes, since those are Rust-specific concepts. Uses the same
// recursive node.Kind() dispatch as the Rust extractor, trimmed to the
// subset Python needs.
type pythonExtractor struct {
	content []byte
	pf      types.ParsedFile
}

func extractPython(tree *tree_sitter.Tree, content []byte) types.ParsedFile {
	x := &pythonExtractor{content: content}
	x.pf.Complexity = make(map[string]types.ComplexityMetrics)
	x.visit(tree.RootNode())
	return x.pf
}

func (x *pythonExtractor) text(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(x.content[n.StartByte():n.EndByte()])
}

func (x *pythonExtractor) line(n *tree_sitter.Node) int {
	return int(n.StartPosition().Row) + 1
}

func (x *pythonExtractor) visit(n *tree_sitter.Node) {
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		child := n.Child(i)
		switch child.Kind() {
		case "function_definition":
			x.extractFunction(child)
		case "class_definition":
			x.extractClass(child)
		case "import_statement", "import_from_statement":
			x.extractImport(child)
		default:
			x.visit(child)
		}
	}
}

func (x *pythonExtractor) extractFunction(n *tree_sitter.Node) {
	name := x.text(n.ChildByFieldName("name"))
	vis := types.Visibility{Kind: types.Public}
	if strings.HasPrefix(name, "_") {
		vis = types.Visibility{Kind: types.Private}
	}
	body := n.ChildByFieldName("body")
	var bodyText *string
	if body != nil {
		text := x.text(body)
		if len(text) <= snippetByteBudget {
			bodyText = &text
		}
	}
	isTest := strings.HasPrefix(name, "test_")
	metrics := types.ComplexityMetrics{Function: name, Public: vis.Kind == types.Public, IsTest: isTest}
	if body != nil {
		metrics.Lines = int(body.EndPosition().Row-body.StartPosition().Row) + 1
	}
	metrics.Importance = metrics.Score()
	metrics.Level = types.LevelFor(metrics.Importance)
	x.pf.Complexity[name] = metrics
	if isTest {
		x.pf.TestFunctions = append(x.pf.TestFunctions, name)
	}

	x.pf.FileSymbols.Symbols = append(x.pf.FileSymbols.Symbols, types.Symbol{
		Name: name, Kind: types.SymbolFunction, Visibility: vis, Line: x.line(n),
		Function: &types.FunctionPayload{Signature: x.functionSignature(n), Body: bodyText},
	})
}

func (x *pythonExtractor) functionSignature(n *tree_sitter.Node) string {
	body := n.ChildByFieldName("body")
	if body == nil {
		return strings.TrimSpace(x.text(n))
	}
	return strings.TrimSpace(string(x.content[n.StartByte():body.StartByte()]))
}

func (x *pythonExtractor) extractClass(n *tree_sitter.Node) {
	name := x.text(n.ChildByFieldName("name"))
	var fields []types.Field
	body := n.ChildByFieldName("body")
	x.pf.FileSymbols.Symbols = append(x.pf.FileSymbols.Symbols, types.Symbol{
		Name: name, Kind: types.SymbolStruct, Visibility: types.Visibility{Kind: types.Public}, Line: x.line(n),
		Struct: &types.StructPayload{Fields: fields, BaseClasses: x.baseClasses(n)},
	})
	if body != nil {
		x.visit(body)
	}
}

// baseClasses reads the class's `(Base1, Base2)` superclass list, if any.
func (x *pythonExtractor) baseClasses(n *tree_sitter.Node) []string {
	args := n.ChildByFieldName("superclasses")
	if args == nil {
		return nil
	}
	var bases []string
	count := args.ChildCount()
	for i := uint(0); i < count; i++ {
		switch c := args.Child(i); c.Kind() {
		case "identifier", "attribute":
			bases = append(bases, x.text(c))
		}
	}
	return bases
}

func (x *pythonExtractor) extractImport(n *tree_sitter.Node) {
	x.pf.Imports = append(x.pf.Imports, types.Import{Path: strings.TrimSpace(x.text(n)), Line: x.line(n)})
}
