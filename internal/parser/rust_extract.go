package parser

import (
	"strings"
	"unicode"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/crateindex/crateindex/internal/types"
)

// snippetByteBudget caps how much of a function body the Python
// extractor captures verbatim before leaving the body uncaptured; Rust
// uses the score-gated, shared-budget policy below instead.
const snippetByteBudget = 4096

// sharedSnippetBudget is the total body bytes one file may capture
// across all of its High-importance functions; perFunctionSnippetCap is
// its starting per-function share.
const sharedSnippetBudget = 50000
const perFunctionSnippetCap = sharedSnippetBudget / 20

// rustExtractor walks one parsed Rust file exactly once: a single
// recursive descent that dispatches on node.Kind() and accumulates
// every fact family in place, rather than running a separate tree walk
// per concern.
type rustExtractor struct {
	content []byte
	pf      types.ParsedFile

	currentFn     []string // stack of enclosing function names, for call/complexity attribution
	currentImpl   *types.InherentImpl
	currentTrait  string
	snippetBudget int // bytes remaining in this file's shared body-capture budget
}

func extractRust(tree *tree_sitter.Tree, content []byte) types.ParsedFile {
	x := &rustExtractor{content: content, snippetBudget: sharedSnippetBudget}
	x.pf.Complexity = make(map[string]types.ComplexityMetrics)
	root := tree.RootNode()
	x.collectModuleDoc(root)
	x.visitTopLevel(root)
	return x.pf
}

func (x *rustExtractor) text(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(x.content[n.StartByte():n.EndByte()])
}

func (x *rustExtractor) line(n *tree_sitter.Node) int {
	return int(n.StartPosition().Row) + 1
}

// collectModuleDoc gathers leading //! lines into a single ModuleDoc.
func (x *rustExtractor) collectModuleDoc(root *tree_sitter.Node) {
	var lines []string
	count := root.ChildCount()
	for i := uint(0); i < count; i++ {
		child := root.Child(i)
		if child.Kind() != "line_comment" && child.Kind() != "block_comment" {
			if len(lines) > 0 {
				break
			}
			continue
		}
		text := x.text(child)
		if strings.HasPrefix(text, "//!") {
			lines = append(lines, strings.TrimSpace(strings.TrimPrefix(text, "//!")))
		} else if len(lines) > 0 {
			break
		}
	}
	if len(lines) > 0 {
		doc := strings.Join(lines, "\n")
		x.pf.ModuleDoc = &doc
	}
}

// precedingDoc collects the /// (or #[doc]) lines immediately above n.
func (x *rustExtractor) precedingDoc(n *tree_sitter.Node) string {
	var lines []string
	prev := n.PrevSibling()
	for prev != nil && (prev.Kind() == "line_comment" || prev.Kind() == "attribute_item") {
		if prev.Kind() == "line_comment" {
			text := x.text(prev)
			if strings.HasPrefix(text, "///") {
				lines = append([]string{strings.TrimSpace(strings.TrimPrefix(text, "///"))}, lines...)
			} else {
				break
			}
		}
		prev = prev.PrevSibling()
	}
	return strings.Join(lines, "\n")
}

// attributes returns every #[...] attribute attached immediately above n.
func (x *rustExtractor) attributes(n *tree_sitter.Node) []*tree_sitter.Node {
	var attrs []*tree_sitter.Node
	prev := n.PrevSibling()
	for prev != nil && (prev.Kind() == "attribute_item" || prev.Kind() == "line_comment") {
		if prev.Kind() == "attribute_item" {
			attrs = append([]*tree_sitter.Node{prev}, attrs...)
		}
		prev = prev.PrevSibling()
	}
	return attrs
}

func (x *rustExtractor) visibility(n *tree_sitter.Node) types.Visibility {
	vis := n.ChildByFieldName("visibility")
	if vis == nil {
		return types.Visibility{Kind: types.Private}
	}
	text := x.text(vis)
	switch {
	case text == "pub":
		return types.Visibility{Kind: types.Public}
	case text == "pub(crate)":
		return types.Visibility{Kind: types.CratePublic}
	case text == "pub(super)":
		return types.Visibility{Kind: types.ParentPublic}
	case strings.HasPrefix(text, "pub(in "):
		path := strings.TrimSuffix(strings.TrimPrefix(text, "pub(in "), ")")
		return types.Visibility{Kind: types.ScopedPublic, Path: strings.TrimSpace(path)}
	case strings.HasPrefix(text, "pub("):
		return types.Visibility{Kind: types.ScopedPublic, Path: strings.Trim(text, "pub()")}
	default:
		return types.Visibility{Kind: types.Public}
	}
}

func isPublic(v types.Visibility) bool {
	return v.Kind != types.Private
}

// visitTopLevel walks item_declaration_list-style siblings, dispatching
// each top-level (and, for impl/trait/mod bodies, nested) item.
func (x *rustExtractor) visitTopLevel(node *tree_sitter.Node) {
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		x.visitItem(node.Child(i))
	}
}

func (x *rustExtractor) visitItem(n *tree_sitter.Node) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "struct_item":
		x.extractStruct(n)
	case "enum_item":
		x.extractEnum(n)
	case "trait_item":
		x.extractTrait(n)
	case "impl_item":
		x.extractImpl(n)
	case "function_item":
		x.extractFreeFunction(n)
	case "const_item":
		x.extractConst(n)
	case "static_item":
		x.extractStatic(n)
	case "type_item":
		x.extractTypeAlias(n)
	case "mod_item":
		x.extractMod(n)
	case "use_declaration":
		x.extractUse(n)
	case "macro_definition":
		x.extractMacro(n)
	case "attribute_item":
		x.extractCfgOrDerive(n)
	default:
		// Recurse into unnamed/grouping constructs (e.g. declaration_list)
		// so items nested one level deeper than expected still get seen.
		if n.Kind() == "declaration_list" || n.Kind() == "source_file" {
			x.visitTopLevel(n)
		}
	}
}

func (x *rustExtractor) extractCfgOrDerive(n *tree_sitter.Node) {
	text := x.text(n)
	target := x.nextItemName(n)
	if strings.Contains(text, "cfg_attr(") {
		x.pf.FeatureGates = append(x.pf.FeatureGates, types.FeatureGate{Target: target, Predicate: text, Line: x.line(n)})
	} else if strings.Contains(text, "cfg(") {
		x.pf.Cfgs = append(x.pf.Cfgs, types.CfgPredicate{Target: target, Predicate: text, Line: x.line(n)})
		if strings.Contains(text, "feature") {
			x.pf.FeatureGates = append(x.pf.FeatureGates, types.FeatureGate{Target: target, Predicate: text, Line: x.line(n)})
		}
	}
	if strings.HasPrefix(strings.TrimPrefix(text, "#["), "derive") {
		traits := extractDeriveTraits(text)
		if len(traits) > 0 {
			x.pf.Derives = append(x.pf.Derives, types.DeriveAnnotation{Target: target, Traits: traits, Line: x.line(n)})
		}
	}
}

func (x *rustExtractor) nextItemName(n *tree_sitter.Node) string {
	next := n.NextSibling()
	for next != nil && (next.Kind() == "attribute_item" || next.Kind() == "line_comment") {
		next = next.NextSibling()
	}
	if next == nil {
		return ""
	}
	if name := next.ChildByFieldName("name"); name != nil {
		return x.text(name)
	}
	return ""
}

func extractDeriveTraits(attrText string) []string {
	start := strings.Index(attrText, "(")
	end := strings.LastIndex(attrText, ")")
	if start < 0 || end < 0 || end <= start {
		return nil
	}
	inner := attrText[start+1 : end]
	parts := strings.Split(inner, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func (x *rustExtractor) extractStruct(n *tree_sitter.Node) {
	name := x.text(n.ChildByFieldName("name"))
	vis := x.visibility(n)
	var fields []types.Field
	body := n.ChildByFieldName("body")
	if body != nil {
		count := body.ChildCount()
		for i := uint(0); i < count; i++ {
			fieldNode := body.Child(i)
			if fieldNode.Kind() != "field_declaration" {
				continue
			}
			fields = append(fields, types.Field{
				Name:       x.text(fieldNode.ChildByFieldName("name")),
				Type:       x.text(fieldNode.ChildByFieldName("type")),
				Visibility: x.visibility(fieldNode),
			})
		}
	}
	x.pf.FileSymbols.Symbols = append(x.pf.FileSymbols.Symbols, types.Symbol{
		Name: name, Kind: types.SymbolStruct, Visibility: vis, Line: x.line(n),
		Generics: x.text(n.ChildByFieldName("type_parameters")),
		Struct:   &types.StructPayload{Fields: fields},
	})
	x.recordDoc(n, name)
	x.recordLifetimes(n, name)
	x.scanIdentifiers(n)
}

func (x *rustExtractor) extractEnum(n *tree_sitter.Node) {
	name := x.text(n.ChildByFieldName("name"))
	vis := x.visibility(n)
	var variants []types.Variant
	body := n.ChildByFieldName("body")
	if body != nil {
		count := body.ChildCount()
		for i := uint(0); i < count; i++ {
			v := body.Child(i)
			if v.Kind() != "enum_variant" {
				continue
			}
			variant := types.Variant{Name: x.text(v.ChildByFieldName("name"))}
			if fieldsNode := v.ChildByFieldName("body"); fieldsNode != nil {
				switch fieldsNode.Kind() {
				case "field_declaration_list":
					variant.PayloadKind = types.VariantRecord
					fc := fieldsNode.ChildCount()
					for j := uint(0); j < fc; j++ {
						fn := fieldsNode.Child(j)
						if fn.Kind() != "field_declaration" {
							continue
						}
						variant.RecordFields = append(variant.RecordFields, types.Field{
							Name: x.text(fn.ChildByFieldName("name")),
							Type: x.text(fn.ChildByFieldName("type")),
						})
					}
				case "ordered_field_declaration_list":
					variant.PayloadKind = types.VariantTuple
					fc := fieldsNode.ChildCount()
					for j := uint(0); j < fc; j++ {
						fn := fieldsNode.Child(j)
						if fn.Kind() == "type_identifier" || strings.Contains(fn.Kind(), "type") {
							variant.TupleTypes = append(variant.TupleTypes, x.text(fn))
						}
					}
				}
			}
			variants = append(variants, variant)
		}
	}
	x.pf.FileSymbols.Symbols = append(x.pf.FileSymbols.Symbols, types.Symbol{
		Name: name, Kind: types.SymbolEnum, Visibility: vis, Line: x.line(n),
		Generics: x.text(n.ChildByFieldName("type_parameters")),
		Enum:     &types.EnumPayload{Variants: variants},
	})
	x.recordDoc(n, name)
	x.recordLifetimes(n, name)
	x.scanIdentifiers(n)
}

func (x *rustExtractor) extractTrait(n *tree_sitter.Node) {
	name := x.text(n.ChildByFieldName("name"))
	vis := x.visibility(n)
	var methods []types.MethodSig
	var assoc []types.AssocType
	body := n.ChildByFieldName("body")
	if body != nil {
		count := body.ChildCount()
		for i := uint(0); i < count; i++ {
			item := body.Child(i)
			switch item.Kind() {
			case "function_signature_item", "function_item":
				methods = append(methods, types.MethodSig{
					Name:       x.text(item.ChildByFieldName("name")),
					Signature:  x.functionSignature(item),
					HasDefault: item.Kind() == "function_item",
				})
			case "associated_type":
				assoc = append(assoc, types.AssocType{
					Name:   x.text(item.ChildByFieldName("name")),
					Bounds: x.boundsList(item.ChildByFieldName("bounds")),
				})
			}
		}
	}
	supertraits := x.boundsList(n.ChildByFieldName("bounds"))
	prevTrait := x.currentTrait
	x.currentTrait = name
	x.pf.FileSymbols.Symbols = append(x.pf.FileSymbols.Symbols, types.Symbol{
		Name: name, Kind: types.SymbolTrait, Visibility: vis, Line: x.line(n),
		Generics: x.text(n.ChildByFieldName("type_parameters")),
		Trait:    &types.TraitPayload{Supertraits: supertraits, Methods: methods, AssocTypes: assoc},
	})
	x.recordDoc(n, name)
	x.recordLifetimes(n, name)
	if body != nil {
		x.visitFunctionsForBodies(body)
	}
	x.currentTrait = prevTrait
}

// boundsList reads the individual bound names out of a `: Bound + Bound`
// trait_bounds node, used for supertraits and associated-type bounds alike.
func (x *rustExtractor) boundsList(n *tree_sitter.Node) []string {
	if n == nil {
		return nil
	}
	var bounds []string
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		switch c := n.Child(i); c.Kind() {
		case "type_identifier", "scoped_type_identifier", "generic_type", "lifetime":
			bounds = append(bounds, x.text(c))
		}
	}
	return bounds
}

// visitFunctionsForBodies descends into default trait-method bodies so
// call/complexity/safety facts are still collected for them.
func (x *rustExtractor) visitFunctionsForBodies(body *tree_sitter.Node) {
	count := body.ChildCount()
	for i := uint(0); i < count; i++ {
		item := body.Child(i)
		if item.Kind() == "function_item" {
			x.extractMethodOrFreeFunction(item, true)
		}
	}
}

func (x *rustExtractor) extractImpl(n *tree_sitter.Node) {
	traitNode := n.ChildByFieldName("trait")
	typeNode := n.ChildByFieldName("type")
	typeName := x.text(typeNode)
	body := n.ChildByFieldName("body")

	var methods []types.Method
	if body != nil {
		count := body.ChildCount()
		for i := uint(0); i < count; i++ {
			item := body.Child(i)
			if item.Kind() != "function_item" {
				continue
			}
			m := x.extractMethodOrFreeFunction(item, false)
			methods = append(methods, m)
		}
	}

	if traitNode != nil {
		x.pf.FileSymbols.ImplMap = append(x.pf.FileSymbols.ImplMap, types.ImplEntry{
			Trait: x.text(traitNode), Type: typeName, Line: x.line(n),
		})
		if x.text(traitNode) == "unsafe" || hasUnsafeKeyword(n) {
			x.pf.Safety.UnsafeImpls = append(x.pf.Safety.UnsafeImpls, types.UnsafeImpl{
				Trait: x.text(traitNode), Type: typeName, Line: x.line(n),
			})
		}
	} else {
		x.pf.FileSymbols.InherentImpls = append(x.pf.FileSymbols.InherentImpls, types.InherentImpl{
			Type: typeName, Generics: x.text(n.ChildByFieldName("type_parameters")),
			WhereClause: x.text(n.ChildByFieldName("where_clause")), Methods: methods,
		})
	}
	x.scanIdentifiers(n)
}

func hasUnsafeKeyword(n *tree_sitter.Node) bool {
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		if n.Child(i).Kind() == "unsafe" {
			return true
		}
	}
	return false
}

func (x *rustExtractor) extractMethodOrFreeFunction(n *tree_sitter.Node, isTraitDefault bool) types.Method {
	name := x.text(n.ChildByFieldName("name"))
	vis := x.visibility(n)
	async := hasChildOfKind(n, "async") || strings.HasPrefix(x.text(n), "async ")
	unsafeFn := hasChildOfKind(n, "unsafe")
	constFn := hasChildOfKind(n, "const")

	x.currentFn = append(x.currentFn, name)
	body := n.ChildByFieldName("body")
	metrics := types.ComplexityMetrics{Function: name, Public: isPublic(vis), IsTest: x.hasTestAttribute(n)}
	if body != nil {
		metrics.Cyclomatic = 1 + cyclomaticCount(body)
		metrics.NestingDepth = maxNestingDepth(body, 0)
		metrics.Lines = int(body.EndPosition().Row-body.StartPosition().Row) + 1
		metrics.CallSites = countCallSites(body)
	}
	metrics.Importance = metrics.Score()
	metrics.Level = types.LevelFor(metrics.Importance)

	var bodyText *string
	var summary *types.SnippetSummary
	if body != nil {
		switch metrics.Level {
		case types.ImportanceHigh:
			raw := x.text(body)
			allot := perFunctionSnippetCap
			if allot > x.snippetBudget {
				allot = x.snippetBudget
			}
			if len(raw) <= allot {
				bodyText = &raw
				x.snippetBudget -= len(raw)
			} else {
				summary = x.buildSnippetSummary(body)
			}
		case types.ImportanceMedium:
			summary = x.buildSnippetSummary(body)
		}
		x.walkBody(body, name)
	}
	x.pf.Complexity[name] = metrics

	if async {
		x.pf.Async.Functions = append(x.pf.Async.Functions, types.AsyncFunction{
			Name: name, AwaitPoints: collectAwaitPoints(body), SpawnPoints: collectSpawnPoints(body, x),
		})
	}

	if retType := x.functionReturnType(n); retType.Fallible() {
		x.pf.ErrorFacts = append(x.pf.ErrorFacts, types.ErrorPropagation{
			Function: name, ReturnType: retType,
			PropagationPoints: collectPropagationPoints(body),
			OriginPoints:      collectOriginPoints(body, x),
		})
	}

	if metrics.IsTest {
		x.pf.TestFunctions = append(x.pf.TestFunctions, name)
		x.pf.TestInfo = append(x.pf.TestInfo, types.TestInfoRecord{Name: name, Line: x.line(n)})
	}

	x.currentFn = x.currentFn[:len(x.currentFn)-1]

	_ = isTraitDefault
	_ = summary
	sig := x.functionSignature(n)
	x.recordDoc(n, name)
	x.recordLifetimes(n, name)
	x.recordBorrows(n, name)
	return types.Method{
		Name: name, Visibility: vis, Signature: sig, Async: async, Unsafe: unsafeFn, Const: constFn,
		Line: x.line(n), Body: bodyText,
	}
}

func (x *rustExtractor) extractFreeFunction(n *tree_sitter.Node) {
	m := x.extractMethodOrFreeFunction(n, false)
	vis := m.Visibility
	var bodyPayload *types.FunctionPayload
	body := n.ChildByFieldName("body")
	var summary *types.SnippetSummary
	if body != nil && m.Body == nil && x.pf.Complexity[m.Name].Level != types.ImportanceLow {
		summary = x.buildSnippetSummary(body)
	}
	bodyPayload = &types.FunctionPayload{Signature: m.Signature, Body: m.Body, Summary: summary}
	x.pf.FileSymbols.Symbols = append(x.pf.FileSymbols.Symbols, types.Symbol{
		Name: m.Name, Kind: types.SymbolFunction, Visibility: vis, Line: m.Line,
		Generics: x.text(n.ChildByFieldName("type_parameters")), Async: m.Async, Unsafe: m.Unsafe, Const: m.Const,
		Function: bodyPayload,
	})
}

func (x *rustExtractor) hasTestAttribute(n *tree_sitter.Node) bool {
	for _, attr := range x.attributes(n) {
		text := x.text(attr)
		if strings.Contains(text, "#[test]") || strings.Contains(text, "#[tokio::test]") {
			return true
		}
	}
	return false
}

func (x *rustExtractor) functionSignature(n *tree_sitter.Node) string {
	body := n.ChildByFieldName("body")
	if body == nil {
		return strings.TrimSpace(x.text(n))
	}
	return strings.TrimSpace(string(x.content[n.StartByte():body.StartByte()]))
}

func (x *rustExtractor) functionReturnType(n *tree_sitter.Node) types.ErrorReturnType {
	ret := n.ChildByFieldName("return_type")
	if ret == nil {
		return types.ErrorReturnType{Kind: types.ErrorReturnNeither}
	}
	text := x.text(ret)
	switch {
	case strings.HasPrefix(text, "Result<") || strings.HasPrefix(text, "Result ") || strings.Contains(text, "Result<"):
		ok, errT := splitGeneric2(text, "Result")
		return types.ErrorReturnType{Kind: types.ErrorReturnResult, OkType: ok, ErrType: errT}
	case strings.HasPrefix(text, "Option<"):
		return types.ErrorReturnType{Kind: types.ErrorReturnOption, InnerType: splitGeneric1(text, "Option")}
	default:
		return types.ErrorReturnType{Kind: types.ErrorReturnNeither}
	}
}

func splitGeneric1(text, name string) string {
	start := strings.Index(text, name+"<")
	if start < 0 {
		return ""
	}
	inner := text[start+len(name)+1:]
	end := strings.LastIndex(inner, ">")
	if end < 0 {
		return strings.TrimSpace(inner)
	}
	return strings.TrimSpace(inner[:end])
}

func splitGeneric2(text, name string) (string, string) {
	inner := splitGeneric1(text, name)
	depth := 0
	for i, r := range inner {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				return strings.TrimSpace(inner[:i]), strings.TrimSpace(inner[i+1:])
			}
		}
	}
	return strings.TrimSpace(inner), ""
}

func (x *rustExtractor) extractConst(n *tree_sitter.Node) {
	name := x.text(n.ChildByFieldName("name"))
	var val *string
	if v := n.ChildByFieldName("value"); v != nil {
		text := x.text(v)
		val = &text
	}
	x.pf.FileSymbols.Symbols = append(x.pf.FileSymbols.Symbols, types.Symbol{
		Name: name, Kind: types.SymbolConst, Visibility: x.visibility(n), Line: x.line(n),
		ConstValue: &types.ConstPayload{Type: x.text(n.ChildByFieldName("type")), Value: val},
	})
	x.recordDoc(n, name)
}

func (x *rustExtractor) extractStatic(n *tree_sitter.Node) {
	name := x.text(n.ChildByFieldName("name"))
	mutable := hasChildOfKind(n, "mutable_specifier")
	var val *string
	if v := n.ChildByFieldName("value"); v != nil {
		text := x.text(v)
		val = &text
	}
	x.pf.FileSymbols.Symbols = append(x.pf.FileSymbols.Symbols, types.Symbol{
		Name: name, Kind: types.SymbolStatic, Visibility: x.visibility(n), Line: x.line(n),
		Static: &types.StaticPayload{Type: x.text(n.ChildByFieldName("type")), Mutable: mutable, Value: val},
	})
	if mutable {
		x.pf.Safety.UnsafeBlocks = append(x.pf.Safety.UnsafeBlocks, types.UnsafeBlock{
			Function: currentFn(x.currentFn), Line: x.line(n), Operations: []types.UnsafeOperation{types.OpMutableStaticAccess},
		})
	}
	x.recordDoc(n, name)
}

func (x *rustExtractor) extractTypeAlias(n *tree_sitter.Node) {
	name := x.text(n.ChildByFieldName("name"))
	x.pf.FileSymbols.Symbols = append(x.pf.FileSymbols.Symbols, types.Symbol{
		Name: name, Kind: types.SymbolTypeAlias, Visibility: x.visibility(n), Line: x.line(n),
		TypeAlias: &types.TypeAliasPayload{Aliased: x.text(n.ChildByFieldName("type"))},
	})
	x.recordDoc(n, name)
}

func (x *rustExtractor) extractMod(n *tree_sitter.Node) {
	name := x.text(n.ChildByFieldName("name"))
	vis := x.visibility(n)
	x.pf.FileSymbols.Symbols = append(x.pf.FileSymbols.Symbols, types.Symbol{
		Name: name, Kind: types.SymbolModule, Visibility: vis, Line: x.line(n),
	})
	if name == "tests" || name == "test" {
		x.pf.HasTestModule = true
	}
	if body := n.ChildByFieldName("body"); body != nil {
		x.visitTopLevel(body)
	}
}

func (x *rustExtractor) extractUse(n *tree_sitter.Node) {
	vis := x.visibility(n)
	tree := n.ChildByFieldName("argument")
	path := x.text(tree)
	if isPublic(vis) {
		x.pf.ReExports = append(x.pf.ReExports, types.ReExport{Path: path, Visibility: vis, Line: x.line(n)})
	} else {
		x.pf.Imports = append(x.pf.Imports, types.Import{Path: path, Line: x.line(n)})
	}
}

func (x *rustExtractor) extractMacro(n *tree_sitter.Node) {
	name := x.text(n.ChildByFieldName("name"))
	exported := false
	for _, attr := range x.attributes(n) {
		if strings.Contains(x.text(attr), "macro_export") {
			exported = true
		}
	}
	x.pf.FileSymbols.Macros = append(x.pf.FileSymbols.Macros, types.MacroDecl{Name: name, Exported: exported, Line: x.line(n)})
}

func (x *rustExtractor) recordDoc(n *tree_sitter.Node, target string) {
	doc := x.precedingDoc(n)
	if doc != "" {
		x.pf.Docs = append(x.pf.Docs, types.DocComment{Target: target, Text: doc, Line: x.line(n)})
	}
	if where := n.ChildByFieldName("where_clause"); where != nil {
		whereText := x.text(where)
		x.pf.GenericConstraints = append(x.pf.GenericConstraints, types.GenericConstraint{
			Item: target, Constraint: whereText,
		})
		x.pf.Lifetimes.ComplexBounds = append(x.pf.Lifetimes.ComplexBounds, types.ComplexBound{
			Item: target, WhereClause: whereText,
		})
	}
}

// lifetimeParams returns the explicit lifetime parameters declared in
// n's type_parameters list, in source order.
func (x *rustExtractor) lifetimeParams(n *tree_sitter.Node) []string {
	tp := n.ChildByFieldName("type_parameters")
	if tp == nil {
		return nil
	}
	var out []string
	count := tp.ChildCount()
	for i := uint(0); i < count; i++ {
		if c := tp.Child(i); c.Kind() == "lifetime" {
			out = append(out, x.text(c))
		}
	}
	return out
}

// recordLifetimes appends a LifetimeItem for target when it declares
// any explicit lifetime parameters, noting whether 'static appears.
func (x *rustExtractor) recordLifetimes(n *tree_sitter.Node, target string) {
	lts := x.lifetimeParams(n)
	if len(lts) == 0 {
		return
	}
	hasStatic := false
	for _, lt := range lts {
		if lt == "'static" {
			hasStatic = true
		}
	}
	x.pf.Lifetimes.Items = append(x.pf.Lifetimes.Items, types.LifetimeItem{
		Name: target, Lifetimes: lts, HasStatic: hasStatic,
	})
}

// recordBorrows records, for each reference-typed parameter of a
// function, its mutability and explicit lifetime (if any).
func (x *rustExtractor) recordBorrows(n *tree_sitter.Node, fnName string) {
	params := n.ChildByFieldName("parameters")
	if params == nil {
		return
	}
	count := params.ChildCount()
	for i := uint(0); i < count; i++ {
		p := params.Child(i)
		if p.Kind() != "parameter" {
			continue
		}
		typeNode := p.ChildByFieldName("type")
		if typeNode == nil || typeNode.Kind() != "reference_type" {
			continue
		}
		var lifetime string
		if lt := firstChildOfKind(typeNode, "lifetime"); lt != nil {
			lifetime = x.text(lt)
		}
		x.pf.Lifetimes.Borrows = append(x.pf.Lifetimes.Borrows, types.BorrowInfo{
			Function: fnName, Param: x.text(p.ChildByFieldName("pattern")),
			Mutable: hasChildOfKind(typeNode, "mutable_specifier"), Lifetime: lifetime,
		})
	}
}

func firstChildOfKind(n *tree_sitter.Node, kind string) *tree_sitter.Node {
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		if c := n.Child(i); c.Kind() == kind {
			return c
		}
	}
	return nil
}

// scanIdentifiers walks n looking for PascalCase type-identifier
// occurrences, feeding the relation builder's reference map. The item's
// own name node (its definition site) is not recorded.
func (x *rustExtractor) scanIdentifiers(n *tree_sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	var walk func(node *tree_sitter.Node)
	walk = func(node *tree_sitter.Node) {
		isDefSite := nameNode != nil && node.StartByte() == nameNode.StartByte() && node.EndByte() == nameNode.EndByte()
		if node.Kind() == "type_identifier" && !isDefSite {
			text := x.text(node)
			if isPascalCase(text) {
				x.pf.IdentifierLocations = append(x.pf.IdentifierLocations, types.IdentOccurrence{Name: text, Line: x.line(node)})
			}
		}
		count := node.ChildCount()
		for i := uint(0); i < count; i++ {
			walk(node.Child(i))
		}
	}
	walk(n)
}

func isPascalCase(s string) bool {
	if s == "" || s[0] > unicode.MaxASCII || !unicode.IsUpper(rune(s[0])) {
		return false
	}
	hasLower := false
	for _, r := range s {
		if r > unicode.MaxASCII || (!unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_') {
			return false
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	return hasLower
}

func hasChildOfKind(n *tree_sitter.Node, kind string) bool {
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		if n.Child(i).Kind() == kind {
			return true
		}
	}
	return false
}

func currentFn(stack []string) string {
	if len(stack) == 0 {
		return ""
	}
	return stack[len(stack)-1]
}

// cyclomaticCount counts decision points under n (if/match arms/loops/&&/||).
func cyclomaticCount(n *tree_sitter.Node) int {
	count := 0
	var walk func(*tree_sitter.Node)
	walk = func(node *tree_sitter.Node) {
		switch node.Kind() {
		case "if_expression", "while_expression", "for_expression", "loop_expression", "match_arm", "&&", "||":
			count++
		}
		c := node.ChildCount()
		for i := uint(0); i < c; i++ {
			walk(node.Child(i))
		}
	}
	walk(n)
	return count
}

func maxNestingDepth(n *tree_sitter.Node, depth int) int {
	best := depth
	isNesting := n.Kind() == "if_expression" || n.Kind() == "while_expression" ||
		n.Kind() == "for_expression" || n.Kind() == "loop_expression" || n.Kind() == "match_expression" || n.Kind() == "block"
	next := depth
	if isNesting {
		next = depth + 1
		if next > best {
			best = next
		}
	}
	c := n.ChildCount()
	for i := uint(0); i < c; i++ {
		if d := maxNestingDepth(n.Child(i), next); d > best {
			best = d
		}
	}
	return best
}

func countCallSites(n *tree_sitter.Node) int {
	count := 0
	var walk func(*tree_sitter.Node)
	walk = func(node *tree_sitter.Node) {
		if node.Kind() == "call_expression" || node.Kind() == "macro_invocation" {
			count++
		}
		c := node.ChildCount()
		for i := uint(0); i < c; i++ {
			walk(node.Child(i))
		}
	}
	walk(n)
	return count
}

// walkBody performs the safety/panic/call-edge sub-pass over one
// function body, attributing everything to fnName.
func (x *rustExtractor) walkBody(n *tree_sitter.Node, fnName string) {
	var edges []types.CallEdge
	var walk func(node *tree_sitter.Node, inUnsafe bool)
	walk = func(node *tree_sitter.Node, inUnsafe bool) {
		switch node.Kind() {
		case "unsafe_block":
			ops := x.classifyUnsafeOps(node)
			x.pf.Safety.UnsafeBlocks = append(x.pf.Safety.UnsafeBlocks, types.UnsafeBlock{
				Function: fnName, Line: x.line(node), Operations: ops,
			})
			inUnsafe = true
		case "call_expression":
			target, receiver := x.callTarget(node)
			isAwait := node.Parent() != nil && node.Parent().Kind() == "await_expression"
			isPropagation := node.Parent() != nil && node.Parent().Kind() == "try_expression"
			edges = append(edges, types.CallEdge{
				Target: target, ReceiverHint: receiver, Line: x.line(node),
				IsAwaitCall: isAwait, IsPropagation: isPropagation,
			})
			x.classifyPanicCall(node, fnName, target)
		case "macro_invocation":
			name := x.text(node.ChildByFieldName("macro"))
			x.classifyPanicMacro(node, fnName, name)
			edges = append(edges, types.CallEdge{Target: name, Line: x.line(node)})
		case "try_expression":
			// the `?` operator is attached as a postfix; recorded by the caller via PropagationPoints
		case "unary_expression":
			if strings.HasPrefix(x.text(node), "*") && inUnsafe {
				x.pf.Safety.UnsafeBlocks = appendOp(x.pf.Safety.UnsafeBlocks, fnName, x.line(node), types.OpRawPointerDeref)
			}
		}
		c := node.ChildCount()
		for i := uint(0); i < c; i++ {
			walk(node.Child(i), inUnsafe)
		}
	}
	walk(n, false)
	if len(edges) > 0 {
		x.pf.CallGraph = append(x.pf.CallGraph, types.FunctionCalls{Caller: fnName, Edges: edges})
	}
}

func appendOp(blocks []types.UnsafeBlock, fn string, line int, op types.UnsafeOperation) []types.UnsafeBlock {
	for i := range blocks {
		if blocks[i].Function == fn && blocks[i].Line == line {
			blocks[i].Operations = append(blocks[i].Operations, op)
			return blocks
		}
	}
	return append(blocks, types.UnsafeBlock{Function: fn, Line: line, Operations: []types.UnsafeOperation{op}})
}

func (x *rustExtractor) classifyUnsafeOps(n *tree_sitter.Node) []types.UnsafeOperation {
	var ops []types.UnsafeOperation
	text := x.text(n)
	if strings.Contains(text, "extern") {
		ops = append(ops, types.OpExternCall)
	}
	if strings.Contains(text, "asm!") {
		ops = append(ops, types.OpInlineAsm)
	}
	if len(ops) == 0 {
		ops = append(ops, types.OpUnsafeCall)
	}
	return ops
}

func (x *rustExtractor) callTarget(n *tree_sitter.Node) (target, receiver string) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return x.text(n), ""
	}
	switch fn.Kind() {
	case "field_expression":
		recv := fn.ChildByFieldName("value")
		name := fn.ChildByFieldName("field")
		return x.text(name), x.text(recv)
	case "scoped_identifier":
		return x.text(fn), ""
	default:
		return x.text(fn), ""
	}
}

func (x *rustExtractor) classifyPanicCall(n *tree_sitter.Node, fnName, target string) {
	switch target {
	case "unwrap":
		x.pf.Safety.PanicPoints = append(x.pf.Safety.PanicPoints, types.PanicPoint{Function: fnName, Line: x.line(n), Kind: types.PanicUnwrap})
	case "expect":
		msg := ""
		if args := n.ChildByFieldName("arguments"); args != nil && args.ChildCount() > 0 {
			msg = x.text(args.Child(1))
		}
		x.pf.Safety.PanicPoints = append(x.pf.Safety.PanicPoints, types.PanicPoint{Function: fnName, Line: x.line(n), Kind: types.PanicExpect, Message: msg})
	}
}

func (x *rustExtractor) classifyPanicMacro(n *tree_sitter.Node, fnName, macroName string) {
	switch macroName {
	case "panic!":
		x.pf.Safety.PanicPoints = append(x.pf.Safety.PanicPoints, types.PanicPoint{Function: fnName, Line: x.line(n), Kind: types.PanicMacro})
	case "assert!", "assert_eq!", "assert_ne!", "debug_assert!":
		x.pf.Safety.PanicPoints = append(x.pf.Safety.PanicPoints, types.PanicPoint{Function: fnName, Line: x.line(n), Kind: types.PanicAssertion})
	}
}

func collectAwaitPoints(body *tree_sitter.Node) []int {
	if body == nil {
		return nil
	}
	var points []int
	var walk func(*tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if n.Kind() == "await_expression" {
			points = append(points, int(n.StartPosition().Row)+1)
		}
		c := n.ChildCount()
		for i := uint(0); i < c; i++ {
			walk(n.Child(i))
		}
	}
	walk(body)
	return points
}

func collectSpawnPoints(body *tree_sitter.Node, x *rustExtractor) []types.SpawnPoint {
	if body == nil {
		return nil
	}
	var points []types.SpawnPoint
	var walk func(*tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if n.Kind() == "call_expression" {
			target, _ := x.callTarget(n)
			line := int(n.StartPosition().Row) + 1
			switch {
			case strings.Contains(x.text(n), "tokio::spawn"):
				points = append(points, types.SpawnPoint{Line: line, API: types.SpawnTokio})
			case strings.Contains(x.text(n), "spawn_blocking"):
				points = append(points, types.SpawnPoint{Line: line, API: types.SpawnBlockingPool})
			case target == "spawn" && strings.Contains(x.text(n), "thread::"):
				points = append(points, types.SpawnPoint{Line: line, API: types.SpawnStd})
			}
		}
		c := n.ChildCount()
		for i := uint(0); i < c; i++ {
			walk(n.Child(i))
		}
	}
	walk(body)
	return points
}

func collectPropagationPoints(body *tree_sitter.Node) []int {
	if body == nil {
		return nil
	}
	var points []int
	var walk func(*tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if n.Kind() == "try_expression" {
			points = append(points, int(n.StartPosition().Row)+1)
		}
		c := n.ChildCount()
		for i := uint(0); i < c; i++ {
			walk(n.Child(i))
		}
	}
	walk(body)
	return points
}

func collectOriginPoints(body *tree_sitter.Node, x *rustExtractor) []types.ErrorOrigin {
	if body == nil {
		return nil
	}
	var origins []types.ErrorOrigin
	var walk func(*tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		line := int(n.StartPosition().Row) + 1
		switch n.Kind() {
		case "call_expression":
			target, _ := x.callTarget(n)
			if target == "Err" {
				origins = append(origins, types.ErrorOrigin{Line: line, Kind: types.OriginErrConstruct})
			}
			if target == "None" {
				origins = append(origins, types.ErrorOrigin{Line: line, Kind: types.OriginNoneReturn})
			}
		case "macro_invocation":
			name := x.text(n.ChildByFieldName("macro"))
			if name == "bail!" || name == "anyhow!" {
				origins = append(origins, types.ErrorOrigin{Line: line, Kind: types.OriginFailMacro})
			}
		}
		c := n.ChildCount()
		for i := uint(0); i < c; i++ {
			walk(n.Child(i))
		}
	}
	walk(body)
	return origins
}

func (x *rustExtractor) buildSnippetSummary(body *tree_sitter.Node) *types.SnippetSummary {
	lines := int(body.EndPosition().Row-body.StartPosition().Row) + 1
	stmts := 0
	var earlyReturns, callTargets []string
	var walk func(*tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		switch n.Kind() {
		case "expression_statement", "let_declaration":
			stmts++
		case "return_expression":
			earlyReturns = append(earlyReturns, strings.TrimSpace(x.text(n)))
		case "call_expression":
			target, _ := x.callTarget(n)
			callTargets = append(callTargets, target)
		}
		c := n.ChildCount()
		for i := uint(0); i < c; i++ {
			walk(n.Child(i))
		}
	}
	walk(body)
	return &types.SnippetSummary{Lines: lines, Statements: stmts, EarlyReturns: earlyReturns, CallTargets: callTargets}
}
