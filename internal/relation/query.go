package relation

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"

	"github.com/crateindex/crateindex/internal/types"
)

// maxFuzzyResults caps find_symbol's fallback tiers.
const maxFuzzyResults = 20

// fuzzyThreshold is the Jaro-Winkler similarity cutoff for find_symbol's
// fourth tier.
const fuzzyThreshold = 0.82

// FindSymbol returns symbol records for name, optionally filtered to
// one kind. Tiers, in order, the first non-empty one wins: (1) exact
// name match, (2) suffix `::name` match, (3) case-insensitive
// substring/subsequence, (4) Jaro-Winkler similarity >= 0.82, (5)
// Porter2-stem equality. Tiers never combine; each is tried only if the
// previous produced nothing.
func (idx *Index) FindSymbol(name string, kind *types.SymbolKind) []SymbolRecord {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if recs, ok := idx.symbolsByName[name]; ok {
		return filterKind(recs, kind)
	}

	var suffixHits []SymbolRecord
	suffix := "::" + name
	for key, recs := range idx.symbolsByName {
		if strings.HasSuffix(key, suffix) {
			suffixHits = append(suffixHits, recs...)
		}
	}
	if len(suffixHits) > 0 {
		return capResults(filterKind(suffixHits, kind), maxFuzzyResults)
	}

	lowerName := strings.ToLower(name)
	var substrHits []SymbolRecord
	for key, recs := range idx.symbolsByName {
		lowerKey := strings.ToLower(key)
		if strings.Contains(lowerKey, lowerName) || isSubsequence(lowerName, lowerKey) {
			substrHits = append(substrHits, recs...)
		}
	}
	if len(substrHits) > 0 {
		return capResults(filterKind(substrHits, kind), maxFuzzyResults)
	}

	var fuzzyHits []SymbolRecord
	for key, recs := range idx.symbolsByName {
		score, err := edlib.StringsSimilarity(lowerName, strings.ToLower(key), edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if float64(score) >= fuzzyThreshold {
			fuzzyHits = append(fuzzyHits, recs...)
		}
	}
	if len(fuzzyHits) > 0 {
		return capResults(filterKind(fuzzyHits, kind), maxFuzzyResults)
	}

	stemmed := porter2.Stem(lowerName)
	var stemHits []SymbolRecord
	for key, recs := range idx.symbolsByName {
		if porter2.Stem(strings.ToLower(key)) == stemmed {
			stemHits = append(stemHits, recs...)
		}
	}
	return capResults(filterKind(stemHits, kind), maxFuzzyResults)
}

func filterKind(recs []SymbolRecord, kind *types.SymbolKind) []SymbolRecord {
	if kind == nil {
		return recs
	}
	out := make([]SymbolRecord, 0, len(recs))
	for _, r := range recs {
		if r.Kind == *kind {
			out = append(out, r)
		}
	}
	return out
}

func capResults(recs []SymbolRecord, max int) []SymbolRecord {
	if len(recs) <= max {
		return recs
	}
	return recs[:max]
}

func isSubsequence(needle, haystack string) bool {
	i := 0
	for _, r := range haystack {
		if i >= len(needle) {
			return true
		}
		if rune(needle[i]) == r {
			i++
		}
	}
	return i >= len(needle)
}

// Implementations is find_implementations' result shape.
type Implementations struct {
	Symbol         string
	TraitToImpls   []ImplTarget // when symbol names a trait
	ImplsToTraits  []string     // when symbol names a type
	Methods        []SymbolRecord
	DerivedTraits  []string
}

func (idx *Index) FindImplementations(symbol string) Implementations {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	result := Implementations{Symbol: symbol}
	if impls, ok := idx.implMap[symbol]; ok {
		result.TraitToImpls = impls
	}
	if traits, ok := idx.reverseImpl[symbol]; ok {
		result.ImplsToTraits = traits
	}
	prefix := symbol + "::"
	var methods []SymbolRecord
	for key, recs := range idx.symbolsByName {
		if strings.HasPrefix(key, prefix) {
			methods = append(methods, recs...)
		}
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i].Name < methods[j].Name })
	result.Methods = methods
	result.DerivedTraits = idx.deriveMap[symbol]
	return result
}

// Callers is find_callers' result shape.
type Callers struct {
	Symbol  string
	Callers []string
}

func (idx *Index) FindCallers(symbol string) Callers {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for key, callers := range idx.reverseCalls {
		if key == symbol || strings.HasSuffix(key, "::"+symbol) {
			for _, c := range callers {
				if !seen[c] {
					seen[c] = true
					out = append(out, c)
				}
			}
		}
	}
	sort.Strings(out)
	return Callers{Symbol: symbol, Callers: out}
}

// Direction selects which edges find_dependencies follows.
type Direction uint8

const (
	DirectionUpstream Direction = iota
	DirectionDownstream
	DirectionBoth
)

// Dependencies is find_dependencies' result shape.
type Dependencies struct {
	Symbol      string
	CallsOut    []CallTarget // downstream: what symbol calls
	CallsIn     []string     // upstream: who calls symbol
	References  []IdentRef   // top-50 identifier references
}

type IdentRef struct {
	File string
	Line int
}

const maxReferences = 50

func (idx *Index) FindDependencies(symbol string, dir Direction) Dependencies {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	result := Dependencies{Symbol: symbol}
	if dir == DirectionDownstream || dir == DirectionBoth {
		result.CallsOut = idx.callGraph[symbol]
	}
	if dir == DirectionUpstream || dir == DirectionBoth {
		result.CallsIn = idx.reverseCalls[symbol]
	}
	refs := idx.refMap[symbol]
	if len(refs) > maxReferences {
		refs = refs[:maxReferences]
	}
	result.References = refs
	return result
}

// TypeHierarchy is get_type_hierarchy's result shape.
type TypeHierarchy struct {
	Symbol       string
	Implementors []ImplTarget // when symbol is a trait
	Implements   []string     // when symbol is a type
	Derived      []string
	Supertraits  []string
	BaseClasses  []string // Python-style base classes, populated only for Python symbols
}

func (idx *Index) GetTypeHierarchy(symbol string) TypeHierarchy {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	h := TypeHierarchy{Symbol: symbol}
	h.Implementors = idx.implMap[symbol]
	h.Implements = idx.reverseImpl[symbol]
	h.Derived = idx.deriveMap[symbol]
	h.Supertraits = idx.supertraits[symbol]
	h.BaseClasses = idx.baseClasses[symbol]
	return h
}

// GetSnippet returns the snippets registered for name, ordered by
// descending importance (already sorted at build time).
func (idx *Index) GetSnippet(name string) []Snippet {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.snippets[name]
}

// IsRegistered reports whether path is a file the index knows about,
// the membership check read_source performs before touching disk.
func (idx *Index) IsRegistered(relPath string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.registered[relPath]
}
