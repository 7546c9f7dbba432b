// Package walker yields candidate source paths honoring ignore rules,
// the hard-coded cache-directory exclusion, and build-artifact
// directories, using doublestar for include/exclude glob matching.
package walker

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/crateindex/crateindex/internal/config"
)

// CacheDirName is the hard-coded, always-excluded output directory.
const CacheDirName = ".crateindex"

// Walk returns the unordered set of absolute paths to regular files
// under root, after applying gitignore rules (when enabled), the
// cache-directory exclusion, build-artifact directories, and the
// config's explicit include/exclude glob lists.
func Walk(root string, cfg *config.Config) ([]string, error) {
	var ignore *config.IgnoreMatcher
	if cfg.Index.RespectGitignore {
		m, err := config.NewIgnoreMatcher(root)
		if err != nil {
			return nil, err
		}
		ignore = m
	}

	excludeDirs := config.NewBuildArtifactDetector(root).ExcludeDirs()

	var (
		mu    sync.Mutex
		paths []string
	)

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal (walker has no "skipped" list of its own)
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if d.Name() == CacheDirName || d.Name() == ".git" {
				return filepath.SkipDir
			}
			if matchesAny(excludeDirs, rel) {
				return filepath.SkipDir
			}
			if ignore != nil && ignore.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if ignore != nil && ignore.Match(rel, false) {
			return nil
		}
		if len(cfg.Exclude) > 0 && matchesAny(cfg.Exclude, rel) {
			return nil
		}
		if len(cfg.Include) > 0 && !matchesAny(cfg.Include, rel) {
			return nil
		}

		mu.Lock()
		paths = append(paths, path)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

func matchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
