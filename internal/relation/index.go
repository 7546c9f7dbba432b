// Package relation turns a PipelineResult into a set of in-memory
// indices and answers structural questions against them without
// re-reading the cache.
package relation

import (
	"sort"
	"sync"

	"github.com/crateindex/crateindex/internal/types"
)

// SymbolRecord is one entry in symbols_by_name: a symbol plus the file
// location it was found at.
type SymbolRecord struct {
	Name       string
	Kind       types.SymbolKind
	File       string
	Line       int
	Signature  string
	Visibility types.Visibility
}

// CallTarget is one edge in the call graph, qualified by the file it
// was observed in.
type CallTarget struct {
	Caller string
	Callee string
	File   string
	Line   int
}

// Snippet is a captured function body (or its summary sentinel), kept
// for get_snippet ordered by descending importance.
type Snippet struct {
	Name       string
	File       string
	Body       string
	Importance int
}

// Index holds every derived structure the query layer reads. All
// fields are built once by Build or replaced wholesale by Rescan; reads
// run under RLock so concurrent queries never block each other.
type Index struct {
	mu sync.RWMutex

	root string

	symbolsByName map[string][]SymbolRecord
	implMap       map[string][]ImplTarget      // trait -> (type, file, line)
	reverseImpl   map[string][]string          // type -> traits
	callGraph     map[string][]CallTarget      // caller -> targets
	reverseCalls  map[string][]string          // callee -> callers
	deriveMap     map[string][]string          // type -> sorted derived traits
	snippets      map[string][]Snippet         // name -> snippets (bare and qualified keys collide additively)
	fileSymbols   map[string][]types.Symbol    // file -> symbols declared in it, for read_source/search bookkeeping
	registered    map[string]bool              // files registered in the index, for read_source's membership check
	supertraits   map[string][]string          // trait name -> supertrait names
	baseClasses   map[string][]string          // Python class name -> base class names
	refMap        map[string][]IdentRef        // identifier name -> sighting locations
}

// ImplTarget is one (type, file, line) pair a trait is implemented at.
type ImplTarget struct {
	Type string
	File string
	Line int
}

// Build constructs a fresh Index from a PipelineResult. Files is
// already sorted by RelPath, so iterating it in order and appending to
// index slices produces byte-identical derived outputs across runs over
// the same filesystem state.
func Build(root string, result *types.PipelineResult) *Index {
	idx := &Index{
		root:          root,
		symbolsByName: make(map[string][]SymbolRecord),
		implMap:       make(map[string][]ImplTarget),
		reverseImpl:   make(map[string][]string),
		callGraph:     make(map[string][]CallTarget),
		reverseCalls:  make(map[string][]string),
		deriveMap:     make(map[string][]string),
		snippets:      make(map[string][]Snippet),
		fileSymbols:   make(map[string][]types.Symbol),
		registered:    make(map[string]bool),
		supertraits:   make(map[string][]string),
		baseClasses:   make(map[string][]string),
		refMap:        make(map[string][]IdentRef),
	}
	for _, f := range result.Files {
		idx.indexFile(f)
	}
	idx.sortAndDedup()
	return idx
}

// Rescan atomically replaces the index's contents, so concurrent
// readers either see the whole old index or the whole new one.
func (idx *Index) Rescan(result *types.PipelineResult) {
	fresh := Build(idx.root, result)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.symbolsByName = fresh.symbolsByName
	idx.implMap = fresh.implMap
	idx.reverseImpl = fresh.reverseImpl
	idx.callGraph = fresh.callGraph
	idx.reverseCalls = fresh.reverseCalls
	idx.deriveMap = fresh.deriveMap
	idx.snippets = fresh.snippets
	idx.fileSymbols = fresh.fileSymbols
	idx.registered = fresh.registered
	idx.supertraits = fresh.supertraits
	idx.baseClasses = fresh.baseClasses
	idx.refMap = fresh.refMap
}

func (idx *Index) indexFile(f types.FileResult) {
	idx.registered[f.RelPath] = true
	idx.fileSymbols[f.RelPath] = f.Parsed.FileSymbols.Symbols

	for _, sym := range f.Parsed.FileSymbols.Symbols {
		rec := SymbolRecord{
			Name: sym.Name, Kind: sym.Kind, File: f.RelPath, Line: sym.Line,
			Visibility: sym.Visibility,
		}
		if sym.Function != nil {
			rec.Signature = sym.Function.Signature
		}
		idx.symbolsByName[sym.Name] = append(idx.symbolsByName[sym.Name], rec)

		if sym.Function != nil {
			idx.indexSnippet(sym.Name, f.RelPath, sym.Function, f.Parsed.Complexity[sym.Name])
		}
		if sym.Trait != nil {
			idx.supertraits[sym.Name] = append(idx.supertraits[sym.Name], sym.Trait.Supertraits...)
		}
		if sym.Struct != nil && len(sym.Struct.BaseClasses) > 0 {
			idx.baseClasses[sym.Name] = append(idx.baseClasses[sym.Name], sym.Struct.BaseClasses...)
		}
	}

	for _, impl := range f.Parsed.FileSymbols.ImplMap {
		if impl.Trait == "" {
			continue
		}
		idx.implMap[impl.Trait] = append(idx.implMap[impl.Trait], ImplTarget{Type: impl.Type, File: f.RelPath, Line: impl.Line})
		idx.reverseImpl[impl.Type] = append(idx.reverseImpl[impl.Type], impl.Trait)
	}

	for _, inh := range f.Parsed.FileSymbols.InherentImpls {
		for _, m := range inh.Methods {
			qualified := inh.Type + "::" + m.Name
			rec := SymbolRecord{
				Name: qualified, Kind: types.SymbolFunction, File: f.RelPath, Line: m.Line,
				Signature: m.Signature, Visibility: m.Visibility,
			}
			idx.symbolsByName[qualified] = append(idx.symbolsByName[qualified], rec)
			if m.Body != nil {
				idx.snippets[qualified] = append(idx.snippets[qualified], Snippet{
					Name: qualified, File: f.RelPath, Body: *m.Body,
					Importance: f.Parsed.Complexity[m.Name].Score(),
				})
			}
		}
	}

	for _, d := range f.Parsed.Derives {
		idx.deriveMap[d.Target] = append(idx.deriveMap[d.Target], d.Traits...)
	}

	for _, occ := range f.Parsed.IdentifierLocations {
		idx.refMap[occ.Name] = append(idx.refMap[occ.Name], IdentRef{File: f.RelPath, Line: occ.Line})
	}

	for _, fc := range f.Parsed.CallGraph {
		for _, edge := range fc.Edges {
			idx.callGraph[fc.Caller] = append(idx.callGraph[fc.Caller], CallTarget{
				Caller: fc.Caller, Callee: edge.Target, File: f.RelPath, Line: edge.Line,
			})
			idx.reverseCalls[edge.Target] = append(idx.reverseCalls[edge.Target], fc.Caller)
		}
	}
}

func (idx *Index) indexSnippet(name, file string, fn *types.FunctionPayload, metrics types.ComplexityMetrics) {
	var body string
	switch {
	case fn.Body != nil:
		body = *fn.Body
	default:
		body = "[body not captured]"
	}
	idx.snippets[name] = append(idx.snippets[name], Snippet{
		Name: name, File: file, Body: body, Importance: metrics.Score(),
	})
}

func (idx *Index) sortAndDedup() {
	for k := range idx.deriveMap {
		idx.deriveMap[k] = sortedUnique(idx.deriveMap[k])
	}
	for k := range idx.reverseImpl {
		idx.reverseImpl[k] = sortedUnique(idx.reverseImpl[k])
	}
	for k, snippets := range idx.snippets {
		sort.SliceStable(snippets, func(i, j int) bool { return snippets[i].Importance > snippets[j].Importance })
		idx.snippets[k] = snippets
	}
	for k := range idx.supertraits {
		idx.supertraits[k] = sortedUnique(idx.supertraits[k])
	}
	for k := range idx.baseClasses {
		idx.baseClasses[k] = sortedUnique(idx.baseClasses[k])
	}
}

func sortedUnique(vals []string) []string {
	seen := make(map[string]bool, len(vals))
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
