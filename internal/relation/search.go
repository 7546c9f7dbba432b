package relation

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// SearchMatch is one search_text hit with surrounding context lines.
type SearchMatch struct {
	File          string
	Line          int
	Text          string
	ContextBefore []string
	ContextAfter  []string
}

// SearchResult is search_text's wire shape:
// {matches, files_searched, truncated}.
type SearchResult struct {
	Matches       []SearchMatch
	FilesSearched int
	Truncated     bool
}

// SearchOptions configures one search_text call. Zero values mean "use
// the default": Context defaults to 0, Max defaults to 50.
type SearchOptions struct {
	Glob          string
	CaseSensitive bool
	Context       int
	Max           int
}

const defaultSearchMax = 50

// SearchText scans every file registered in the index for lines
// matching pattern, honoring an optional glob filter. glob supports
// either a doublestar pattern or a plain `*suffix`/substring shorthand.
func (idx *Index) SearchText(pattern string, opts SearchOptions) (SearchResult, error) {
	idx.mu.RLock()
	files := make([]string, 0, len(idx.registered))
	for f := range idx.registered {
		files = append(files, f)
	}
	idx.mu.RUnlock()

	reSource := pattern
	if !opts.CaseSensitive {
		reSource = "(?i)" + pattern
	}
	re, err := regexp.Compile(reSource)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search_text: invalid pattern: %w", err)
	}

	max := opts.Max
	if max <= 0 {
		max = defaultSearchMax
	}

	var result SearchResult
	for _, rel := range sortedStrings(files) {
		if opts.Glob != "" && !matchesGlob(opts.Glob, rel) {
			continue
		}
		result.FilesSearched++

		lines, err := readLines(filepath.Join(idx.root, rel))
		if err != nil {
			continue
		}
		for i, line := range lines {
			if !re.MatchString(line) {
				continue
			}
			if len(result.Matches) >= max {
				result.Truncated = true
				break
			}
			result.Matches = append(result.Matches, SearchMatch{
				File: rel, Line: i + 1, Text: line,
				ContextBefore: contextSlice(lines, i-opts.Context, i),
				ContextAfter:  contextSlice(lines, i+1, i+1+opts.Context),
			})
		}
		if result.Truncated {
			break
		}
	}
	return result, nil
}

func matchesGlob(pattern, path string) bool {
	if strings.HasPrefix(pattern, "*") && !strings.ContainsAny(pattern, "?[]{}") {
		return strings.HasSuffix(path, strings.TrimPrefix(pattern, "*"))
	}
	if ok, err := doublestar.Match(pattern, path); err == nil && ok {
		return true
	}
	return strings.Contains(path, pattern)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func contextSlice(lines []string, from, to int) []string {
	if from < 0 {
		from = 0
	}
	if to > len(lines) {
		to = len(lines)
	}
	if from >= to {
		return nil
	}
	return append([]string(nil), lines[from:to]...)
}

func sortedStrings(vals []string) []string {
	out := append([]string(nil), vals...)
	sort.Strings(out)
	return out
}
