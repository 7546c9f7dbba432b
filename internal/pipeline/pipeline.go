// Package pipeline turns a WorkspaceInfo and a file list into a
// PipelineResult, using bounded concurrency (a semaphore.Weighted-gated
// errgroup.Group) to fan file processing out across goroutines, each
// doing its own stat/hash/parse sequencing.
package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/crateindex/crateindex/internal/cache"
	"github.com/crateindex/crateindex/internal/config"
	cerrors "github.com/crateindex/crateindex/internal/errors"
	"github.com/crateindex/crateindex/internal/gitinfo"
	"github.com/crateindex/crateindex/internal/metrics"
	"github.com/crateindex/crateindex/internal/parser"
	"github.com/crateindex/crateindex/internal/types"
	"github.com/crateindex/crateindex/internal/walker"
	"github.com/crateindex/crateindex/internal/workspace"
)

// Driver runs one indexing pass over a project root.
type Driver struct {
	Config  *config.Config
	Cache   *cache.Cache // previous run's cache; nil means "cold start"
	Metrics *metrics.Pipeline

	// Progress, if set, is called after each file finishes (success or
	// skip) so a CLI progress bar can advance without the driver
	// depending on any particular rendering library.
	Progress func(done, total int)
}

// Run executes the full pipeline: detect workspace, walk files, process
// each file under bounded concurrency, build the diff against the
// previous cache, and return both the result and the cache to persist.
func (d *Driver) Run(ctx context.Context) (*types.PipelineResult, *cache.Cache, error) {
	paths, err := walker.Walk(d.Config.Project.Root, d.Config)
	if err != nil {
		return nil, nil, err
	}

	// Only files the parser has a grammar for take part in the run; the
	// rest (manifests, docs, .gitignore) are neither cached nor skipped.
	sources := paths[:0]
	for _, p := range paths {
		if parser.LanguageForPath(p) != parser.LanguageUnknown {
			sources = append(sources, p)
		}
	}
	paths = sources

	if result, cch, ok := d.quickChangeCheck(paths); ok {
		return result, cch, nil
	}

	ws, err := workspace.Detect(d.Config.Project.Root)
	if err != nil {
		return nil, nil, err
	}

	oldCache := d.Cache
	if oldCache == nil {
		oldCache = cache.New()
	}
	newCache := cache.New()

	results := make([]types.FileResult, len(paths))
	skipped := make([]types.SkippedFile, 0)
	var skipMu sync.Mutex
	var totalLines int64

	sem := semaphore.NewWeighted(int64(config.DefaultSemaphorePermits))
	group, gctx := errgroup.WithContext(ctx)

	total := len(paths)
	var doneCount int64
	var doneMu sync.Mutex

	for i, absPath := range paths {
		i, absPath := i, absPath
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		group.Go(func() error {
			defer sem.Release(1)
			relPath := toRelSlash(d.Config.Project.Root, absPath)

			fr, skip, err := d.processFile(gctx, absPath, relPath, oldCache, newCache)
			if err != nil {
				if ce, ok := err.(*cerrors.Error); ok && ce.Kind.Fatal() {
					return err
				}
				skip = &types.SkippedFile{Path: relPath, Reason: err.Error()}
			}
			if skip != nil {
				skipMu.Lock()
				skipped = append(skipped, *skip)
				skipMu.Unlock()
			} else {
				results[i] = *fr
			}

			if d.Progress != nil {
				doneMu.Lock()
				doneCount++
				n := doneCount
				doneMu.Unlock()
				d.Progress(int(n), total)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	final := compactResults(results)
	for _, fr := range final {
		totalLines += int64(fr.Lines)
	}
	sort.Slice(final, func(i, j int) bool { return final[i].RelPath < final[j].RelPath })

	git := gitinfo.Collect(ctx, d.Config.Project.Root, d.Config.Index.ChurnWindowDays)

	diff := computeDiff(oldCache, newCache)
	if git != nil {
		diff.NewCommit = git.CommitHash
	}

	result := &types.PipelineResult{
		Files:      final,
		Workspace:  ws,
		Git:        git,
		TotalLines: int(totalLines),
		Skipped:    skipped,
		Diff:       diff,
	}
	return result, newCache, nil
}

// quickChangeCheck is the whole-run short-circuit: when the walker
// found exactly as many files as the cache has entries and every one of
// them still matches its cached (mtime, size), nothing on disk has
// changed since the last run and workspace detection, git collection,
// and parsing can all be skipped. The second return value reports
// whether the short-circuit applies; on false the caller must run the
// full pipeline.
func (d *Driver) quickChangeCheck(paths []string) (*types.PipelineResult, *cache.Cache, bool) {
	if d.Cache == nil || d.Cache.Len() == 0 || d.Cache.Len() != len(paths) {
		return nil, nil, false
	}

	entries := make(map[string]types.CacheEntry, len(paths))
	for _, absPath := range paths {
		relPath := toRelSlash(d.Config.Project.Root, absPath)
		entry, ok := d.Cache.Get(relPath)
		if !ok {
			return nil, nil, false
		}
		info, err := os.Stat(absPath)
		if err != nil || info.ModTime().Unix() != entry.Mtime || info.Size() != entry.Size {
			return nil, nil, false
		}
		entries[absPath] = entry
	}

	files := make([]types.FileResult, 0, len(paths))
	var totalLines int64
	for absPath, entry := range entries {
		relPath := toRelSlash(d.Config.Project.Root, absPath)
		files = append(files, types.FileResult{
			AbsPath: absPath, RelPath: relPath, Hash: entry.Hash, Size: entry.Size,
			Lines: entry.Lines, Parsed: entry.Data.Parsed, FromCache: true,
		})
		totalLines += int64(entry.Lines)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })

	return &types.PipelineResult{Files: files, TotalLines: int(totalLines), UpToDate: true}, d.Cache, true
}

// processFile implements the per-file fast path and fallback full
// parse: when the file's mtime and size match the cached entry, the
// cached hash and parse are trusted without
// re-reading content; otherwise it is fully re-hashed and, if the
// content hash differs from cache, re-parsed.
func (d *Driver) processFile(ctx context.Context, absPath, relPath string, oldCache, newCache *cache.Cache) (*types.FileResult, *types.SkippedFile, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, nil, cerrors.NewFileIOError("stat", err).WithPath(relPath)
	}
	if info.Size() > d.Config.Index.MaxFileSize {
		return nil, &types.SkippedFile{Path: relPath, Reason: "file_too_big"}, nil
	}

	mtime := info.ModTime().Unix()
	if prev, ok := oldCache.Get(relPath); ok && prev.Mtime == mtime && prev.Size == info.Size() {
		newCache.Set(relPath, prev)
		if d.Metrics != nil {
			d.Metrics.FilesCached.Inc()
		}
		return &types.FileResult{
			AbsPath: absPath, RelPath: relPath, Hash: prev.Hash, Size: prev.Size,
			Lines: prev.Lines, Parsed: prev.Data.Parsed, FromCache: true,
		}, nil, nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, nil, cerrors.NewFileIOError("read", err).WithPath(relPath)
	}
	if looksBinary(content) {
		return nil, &types.SkippedFile{Path: relPath, Reason: "file_binary"}, nil
	}

	hash := cache.ContentHash(content)
	lines := countLines(content)

	if prev, ok := oldCache.Get(relPath); ok && prev.Hash == hash {
		entry := prev
		entry.Mtime = mtime
		entry.Size = info.Size()
		newCache.Set(relPath, entry)
		return &types.FileResult{
			AbsPath: absPath, RelPath: relPath, Hash: hash, Size: info.Size(),
			Lines: lines, Parsed: entry.Data.Parsed, FromCache: true,
		}, nil, nil
	}

	start := time.Now()
	parsed, perr := parser.Parse(ctx, absPath, content)
	if d.Metrics != nil {
		d.Metrics.ParseDuration.Observe(time.Since(start).Seconds())
		d.Metrics.FilesProcessed.Inc()
		if perr != nil || parsed.ParseFailed {
			d.Metrics.ParseErrors.Inc()
		}
	}
	if perr != nil {
		return nil, &types.SkippedFile{Path: relPath, Reason: perr.Error()}, nil
	}

	entry := types.CacheEntry{
		Hash: hash, FastHash: cache.FastHash(content), Mtime: mtime, Size: info.Size(),
		Lines: lines, Data: types.FileData{Parsed: parsed},
	}
	newCache.Set(relPath, entry)

	return &types.FileResult{
		AbsPath: absPath, RelPath: relPath, Hash: hash, Size: info.Size(),
		Lines: lines, Parsed: parsed, FromCache: false,
	}, nil, nil
}

func looksBinary(content []byte) bool {
	n := config.DefaultBinaryPrefix
	if len(content) < n {
		n = len(content)
	}
	return bytes.IndexByte(content[:n], 0) != -1
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	return bytes.Count(content, []byte("\n")) + 1
}

func toRelSlash(root, absPath string) string {
	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		return filepath.ToSlash(absPath)
	}
	return filepath.ToSlash(rel)
}

// compactResults drops the zero-value slots left by skipped files
// (results is pre-sized to len(paths) so goroutines can write without a
// mutex on the slice itself).
func compactResults(results []types.FileResult) []types.FileResult {
	out := make([]types.FileResult, 0, len(results))
	for _, r := range results {
		if r.RelPath != "" {
			out = append(out, r)
		}
	}
	return out
}
