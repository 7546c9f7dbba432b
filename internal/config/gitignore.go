package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnorePattern is one parsed line of a .gitignore-equivalent file.
type IgnorePattern struct {
	Pattern   string
	Negate    bool
	Directory bool
	Anchored  bool // pattern started with "/" or contains a "/" before the last segment
	Dir       string // directory the pattern was loaded from, repo-relative
}

// IgnoreMatcher is a hierarchical, .gitignore-compatible matcher: each
// directory's patterns apply to itself and its descendants, later
// (deeper, or later-declared) patterns override earlier ones, and a
// leading "!" negates a prior match. Uses doublestar (already wired for
// the walker's include/exclude globs) as the wildcard engine instead of
// a hand-rolled glob-to-regexp compiler — gitignore's exact escaping
// rules are not fully replicated, a known simplification.
type IgnoreMatcher struct {
	patterns []IgnorePattern
}

// NewIgnoreMatcher builds a matcher by walking root for .gitignore
// files; an absent file anywhere in the tree is not an error.
func NewIgnoreMatcher(root string) (*IgnoreMatcher, error) {
	m := &IgnoreMatcher{}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if d.IsDir() {
			return nil
		}
		if d.Name() != ".gitignore" {
			return nil
		}
		dir, _ := filepath.Rel(root, filepath.Dir(path))
		dir = filepath.ToSlash(dir)
		if dir == "." {
			dir = ""
		}
		pats, rErr := loadGitignoreFile(path, dir)
		if rErr != nil {
			return nil
		}
		m.patterns = append(m.patterns, pats...)
		return nil
	})
	return m, err
}

func loadGitignoreFile(path, dir string) ([]IgnorePattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pats []IgnorePattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pats = append(pats, parsePattern(line, dir))
	}
	return pats, scanner.Err()
}

func parsePattern(line, dir string) IgnorePattern {
	p := IgnorePattern{Dir: dir}
	if strings.HasPrefix(line, "!") {
		p.Negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.Directory = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.Anchored = true
		line = strings.TrimPrefix(line, "/")
	} else if strings.Contains(line, "/") {
		p.Anchored = true
	}
	p.Pattern = line
	return p
}

// Match reports whether relPath (forward-slash, repo-relative) is
// ignored. Patterns are evaluated in declaration order; the last
// matching pattern (honoring negation) wins, as in real gitignore
// semantics.
func (m *IgnoreMatcher) Match(relPath string, isDir bool) bool {
	ignored := false
	for _, p := range m.patterns {
		if p.Directory && !isDir {
			continue
		}
		if !withinDir(relPath, p.Dir) {
			continue
		}
		rel := stripDir(relPath, p.Dir)
		if matchesPattern(p, rel) {
			ignored = !p.Negate
		}
	}
	return ignored
}

func withinDir(relPath, dir string) bool {
	if dir == "" {
		return true
	}
	return relPath == dir || strings.HasPrefix(relPath, dir+"/")
}

func stripDir(relPath, dir string) string {
	if dir == "" {
		return relPath
	}
	return strings.TrimPrefix(strings.TrimPrefix(relPath, dir), "/")
}

func matchesPattern(p IgnorePattern, rel string) bool {
	if p.Anchored {
		ok, _ := doublestar.Match(p.Pattern, rel)
		return ok
	}
	// Unanchored: pattern matches any path segment, at any depth.
	if ok, _ := doublestar.Match(p.Pattern, rel); ok {
		return true
	}
	if ok, _ := doublestar.Match("**/"+p.Pattern, rel); ok {
		return true
	}
	segments := strings.Split(rel, "/")
	last := segments[len(segments)-1]
	ok, _ := doublestar.Match(p.Pattern, last)
	return ok
}
