package pipeline

import (
	"fmt"
	"sort"

	"github.com/crateindex/crateindex/internal/cache"
	"github.com/crateindex/crateindex/internal/types"
)

// computeDiff compares the previous run's cache entries against the new
// ones to build the DiffSummary. Detection is symbol-set and
// signature based, not line-based: a file only
// appears as "modified" when its parsed symbol table actually changed.
func computeDiff(oldCache, newCache *cache.Cache) types.DiffSummary {
	oldEntries := oldCache.Snapshot()
	newEntries := newCache.Snapshot()

	var summary types.DiffSummary

	for path, newEntry := range newEntries {
		oldEntry, existed := oldEntries[path]
		if !existed {
			summary.Added = append(summary.Added, types.DiffAdded{
				Path: path, Symbols: len(newEntry.Data.Parsed.FileSymbols.Symbols),
			})
			continue
		}
		if oldEntry.Hash == newEntry.Hash {
			continue
		}
		added, removed, sigChanges, fieldChanges := diffSymbols(oldEntry.Data.Parsed, newEntry.Data.Parsed)
		if added == 0 && removed == 0 && len(sigChanges) == 0 && len(fieldChanges) == 0 {
			continue
		}
		summary.Modified = append(summary.Modified, types.DiffModified{
			Path: path, SymbolsAdded: added, SymbolsRemoved: removed,
			SignatureChanges: sigChanges, FieldChanges: fieldChanges,
		})
	}

	for path, oldEntry := range oldEntries {
		if _, stillPresent := newEntries[path]; !stillPresent {
			summary.Removed = append(summary.Removed, types.DiffRemoved{
				Path: path, Symbols: len(oldEntry.Data.Parsed.FileSymbols.Symbols),
			})
		}
	}

	sort.Slice(summary.Added, func(i, j int) bool { return summary.Added[i].Path < summary.Added[j].Path })
	sort.Slice(summary.Removed, func(i, j int) bool { return summary.Removed[i].Path < summary.Removed[j].Path })
	sort.Slice(summary.Modified, func(i, j int) bool { return summary.Modified[i].Path < summary.Modified[j].Path })

	return summary
}

func diffSymbols(oldPF, newPF types.ParsedFile) (added, removed int, sigChanges, fieldChanges []string) {
	oldByName := make(map[string]types.Symbol, len(oldPF.FileSymbols.Symbols))
	for _, s := range oldPF.FileSymbols.Symbols {
		oldByName[s.Name] = s
	}
	newByName := make(map[string]types.Symbol, len(newPF.FileSymbols.Symbols))
	for _, s := range newPF.FileSymbols.Symbols {
		newByName[s.Name] = s
	}

	for name, newSym := range newByName {
		oldSym, existed := oldByName[name]
		if !existed {
			added++
			continue
		}
		if oldSym.Function != nil && newSym.Function != nil && sigOf(oldSym) != sigOf(newSym) {
			sigChanges = append(sigChanges, fmt.Sprintf("fn %s", name))
		}
		if fieldsChanged(oldSym, newSym) {
			fieldChanges = append(fieldChanges, name)
		}
	}
	for name := range oldByName {
		if _, stillPresent := newByName[name]; !stillPresent {
			removed++
		}
	}
	return
}

func sigOf(s types.Symbol) string {
	if s.Function != nil {
		return s.Function.Signature
	}
	return ""
}

func fieldsChanged(oldSym, newSym types.Symbol) bool {
	if oldSym.Struct == nil || newSym.Struct == nil {
		return false
	}
	if len(oldSym.Struct.Fields) != len(newSym.Struct.Fields) {
		return true
	}
	for i := range oldSym.Struct.Fields {
		if oldSym.Struct.Fields[i] != newSym.Struct.Fields[i] {
			return true
		}
	}
	return false
}
