package relation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crateindex/crateindex/internal/types"
)

func sig(s string) *string { return &s }

func buildSampleResult(root string) *types.PipelineResult {
	body := "fn add(a: i32, b: i32) -> i32 {\n    a + b\n}\n"
	return &types.PipelineResult{
		Files: []types.FileResult{
			{
				RelPath: "src/lib.rs",
				Parsed: types.ParsedFile{
					FileSymbols: types.FileSymbols{
						Symbols: []types.Symbol{
							{
								Name: "add", Kind: types.SymbolFunction, Line: 1, Visibility: types.Visibility{Kind: types.Public},
								Function: &types.FunctionPayload{Signature: "fn add(a: i32, b: i32) -> i32", Body: sig(body)},
							},
							{
								Name: "Widget", Kind: types.SymbolStruct, Line: 5, Visibility: types.Visibility{Kind: types.Public},
								Struct: &types.StructPayload{Fields: []types.Field{{Name: "id", Type: "u64", Visibility: types.Visibility{Kind: types.Public}}}},
							},
							{
								Name: "Drawable", Kind: types.SymbolTrait, Line: 10, Visibility: types.Visibility{Kind: types.Public},
								Trait: &types.TraitPayload{Supertraits: []string{"Debug"}},
							},
						},
						ImplMap: []types.ImplEntry{
							{Trait: "Drawable", Type: "Widget", Line: 15},
						},
						InherentImpls: []types.InherentImpl{
							{
								Type: "Widget",
								Methods: []types.Method{
									{Name: "new", Signature: "fn new() -> Widget", Line: 20, Visibility: types.Visibility{Kind: types.Public}, Body: sig("fn new() -> Widget {\n    Widget { id: 0 }\n}\n")},
								},
							},
						},
					},
					Derives: []types.DeriveAnnotation{{Target: "Widget", Traits: []string{"Debug", "Clone"}}},
					CallGraph: []types.FunctionCalls{
						{Caller: "main", Edges: []types.CallEdge{{Target: "add", Line: 2}}},
					},
					Complexity: map[string]types.ComplexityMetrics{
						"add": {Function: "add", Cyclomatic: 1, Lines: 3, Public: true},
					},
				},
			},
		},
	}
}

func newSampleIndex(t *testing.T) (*Index, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "lib.rs"), []byte("fn add(a: i32, b: i32) -> i32 {\n    a + b\n}\n\nstruct Widget { id: u64 }\n"), 0o644))
	return Build(root, buildSampleResult(root)), root
}

func TestFindSymbolExactMatch(t *testing.T) {
	idx, _ := newSampleIndex(t)
	recs := idx.FindSymbol("add", nil)
	require.Len(t, recs, 1)
	assert.Equal(t, "src/lib.rs", recs[0].File)
}

func TestFindSymbolQualifiedSuffixFallback(t *testing.T) {
	idx, _ := newSampleIndex(t)
	recs := idx.FindSymbol("new", nil)
	require.Len(t, recs, 1)
	assert.Equal(t, "Widget::new", recs[0].Name)
}

func TestFindSymbolFuzzyFallback(t *testing.T) {
	idx, _ := newSampleIndex(t)
	recs := idx.FindSymbol("Wdiget", nil)
	require.NotEmpty(t, recs)
}

func TestFindImplementationsReportsBothDirections(t *testing.T) {
	idx, _ := newSampleIndex(t)
	impls := idx.FindImplementations("Drawable")
	require.Len(t, impls.TraitToImpls, 1)
	assert.Equal(t, "Widget", impls.TraitToImpls[0].Type)

	rev := idx.FindImplementations("Widget")
	assert.Contains(t, rev.ImplsToTraits, "Drawable")
	assert.ElementsMatch(t, []string{"Clone", "Debug"}, rev.DerivedTraits)
	require.Len(t, rev.Methods, 1)
	assert.Equal(t, "Widget::new", rev.Methods[0].Name)
}

func TestFindCallersMatchesBareAndQualified(t *testing.T) {
	idx, _ := newSampleIndex(t)
	callers := idx.FindCallers("add")
	assert.Equal(t, []string{"main"}, callers.Callers)

	qualified := Build(t.TempDir(), &types.PipelineResult{Files: []types.FileResult{{
		RelPath: "src/run.rs",
		Parsed: types.ParsedFile{CallGraph: []types.FunctionCalls{
			{Caller: "run", Edges: []types.CallEdge{{Target: "math::add", Line: 1}}},
		}},
	}}})
	assert.Equal(t, []string{"run"}, qualified.FindCallers("add").Callers)
}

func TestGetTypeHierarchySupertraits(t *testing.T) {
	idx, _ := newSampleIndex(t)
	h := idx.GetTypeHierarchy("Drawable")
	assert.Equal(t, []string{"Debug"}, h.Supertraits)
}

func TestGetSnippetOrderedByImportance(t *testing.T) {
	idx, _ := newSampleIndex(t)
	snippets := idx.GetSnippet("add")
	require.Len(t, snippets, 1)
	assert.Contains(t, snippets[0].Body, "a + b")

	dupFile := func(path, body string, cyclomatic int) types.FileResult {
		return types.FileResult{RelPath: path, Parsed: types.ParsedFile{
			FileSymbols: types.FileSymbols{Symbols: []types.Symbol{{
				Name: "dup", Kind: types.SymbolFunction, Line: 1,
				Function: &types.FunctionPayload{Signature: "fn dup()", Body: sig(body)},
			}}},
			Complexity: map[string]types.ComplexityMetrics{"dup": {Function: "dup", Cyclomatic: cyclomatic}},
		}}
	}
	ordered := Build(t.TempDir(), &types.PipelineResult{Files: []types.FileResult{
		dupFile("src/a.rs", "fn dup() {}", 1),
		dupFile("src/b.rs", "fn dup() { busy }", 10),
	}})
	dups := ordered.GetSnippet("dup")
	require.Len(t, dups, 2)
	assert.Equal(t, "src/b.rs", dups[0].File)
}

func TestReadSourceRejectsUnregisteredFile(t *testing.T) {
	idx, _ := newSampleIndex(t)
	_, err := idx.ReadSource("src/missing.rs", 1, 2)
	assert.Error(t, err)
}

func TestReadSourceReturnsLineRange(t *testing.T) {
	idx, _ := newSampleIndex(t)
	slice, err := idx.ReadSource("src/lib.rs", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, slice.StartLine)
	assert.Equal(t, 2, slice.EndLine)
	assert.Equal(t, "rust", slice.Language)
	assert.Contains(t, slice.Content, "fn add")
}

func TestSearchTextFindsMatchesWithContext(t *testing.T) {
	idx, _ := newSampleIndex(t)
	result, err := idx.SearchText("struct", SearchOptions{Context: 1})
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "src/lib.rs", result.Matches[0].File)
	assert.False(t, result.Truncated)
}

func TestSearchTextGlobFilterExcludesNonMatching(t *testing.T) {
	idx, _ := newSampleIndex(t)
	result, err := idx.SearchText("fn", SearchOptions{Glob: "*.py"})
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
}
