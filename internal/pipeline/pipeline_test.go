package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crateindex/crateindex/internal/config"
	"github.com/crateindex/crateindex/internal/types"
)

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[package]\nname = \"demo\"\nversion = \"0.1.0\"\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "lib.rs"), []byte("pub fn add(a: i32, b: i32) -> i32 {\n    a + b\n}\n"), 0o644))
	return dir
}

func TestRunIndexesProjectFromCold(t *testing.T) {
	dir := writeProject(t)
	cfg := config.Default(dir)

	d := &Driver{Config: cfg}
	result, newCache, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "src/lib.rs", result.Files[0].RelPath)
	assert.False(t, result.Files[0].FromCache)
	assert.Equal(t, 1, newCache.Len())
	assert.Len(t, result.Diff.Added, 1)
}

func TestRunReusesUnchangedCacheEntries(t *testing.T) {
	dir := writeProject(t)
	cfg := config.Default(dir)

	d := &Driver{Config: cfg}
	_, firstCache, err := d.Run(context.Background())
	require.NoError(t, err)

	d2 := &Driver{Config: cfg, Cache: firstCache}
	result, _, err := d2.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.True(t, result.Files[0].FromCache)
	assert.Equal(t, 0, result.Diff.TotalChanges())
}

// TestRunShortCircuitsWhenNothingChanged exercises the whole-run
// quick-change check: a second run with no filesystem changes at all
// must skip workspace detection and git collection entirely, reporting
// UpToDate with a zero-value Workspace/Git/Diff rather than recomputing
// them from a reused per-file cache hit.
func TestRunShortCircuitsWhenNothingChanged(t *testing.T) {
	dir := writeProject(t)
	cfg := config.Default(dir)

	d := &Driver{Config: cfg}
	_, firstCache, err := d.Run(context.Background())
	require.NoError(t, err)

	d2 := &Driver{Config: cfg, Cache: firstCache}
	result, newCache, err := d2.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.UpToDate)
	require.Len(t, result.Files, 1)
	assert.True(t, result.Files[0].FromCache)
	assert.Equal(t, types.WorkspaceInfo{}, result.Workspace)
	assert.Nil(t, result.Git)
	assert.Equal(t, 0, result.Diff.TotalChanges())
	assert.Same(t, firstCache, newCache)
}

func TestRunSkipsOversizedFiles(t *testing.T) {
	dir := writeProject(t)
	big := make([]byte, config.DefaultMaxFileSize+1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "huge.rs"), big, 0o644))

	cfg := config.Default(dir)
	d := &Driver{Config: cfg}
	result, _, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "file_too_big", result.Skipped[0].Reason)
}

func TestRunSkipsBinaryFiles(t *testing.T) {
	dir := writeProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "blob.rs"), []byte{0, 1, 2, 3, 0}, 0o644))

	cfg := config.Default(dir)
	d := &Driver{Config: cfg}
	result, _, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "file_binary", result.Skipped[0].Reason)
}

// TestRunReportsModifiedFileAsSingleSwap exercises S3: a single changed
// file's one-symbol-out/one-symbol-in edit should surface as exactly
// one DiffModified entry with SymbolsAdded=1 and SymbolsRemoved=1, not
// as a removal plus an addition of the whole file.
func TestRunReportsModifiedFileAsSingleSwap(t *testing.T) {
	dir := writeProject(t)
	cfg := config.Default(dir)

	d := &Driver{Config: cfg}
	_, firstCache, err := d.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "lib.rs"),
		[]byte("pub fn subtract(a: i32, b: i32) -> i32 {\n    a - b\n}\n"), 0o644))

	d2 := &Driver{Config: cfg, Cache: firstCache}
	result, _, err := d2.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Diff.Modified, 1)
	mod := result.Diff.Modified[0]
	assert.Equal(t, "src/lib.rs", mod.Path)
	assert.Equal(t, 1, mod.SymbolsAdded)
	assert.Equal(t, 1, mod.SymbolsRemoved)
	assert.Empty(t, result.Diff.Added)
	assert.Empty(t, result.Diff.Removed)
}

// TestRunRecordsSignatureChangeInFnFormat exercises the diff summary's
// wire format for signature_changes: a function kept under the same
// name but with a changed parameter list must appear as "fn <name>",
// not the bare name.
func TestRunRecordsSignatureChangeInFnFormat(t *testing.T) {
	dir := writeProject(t)
	cfg := config.Default(dir)

	d := &Driver{Config: cfg}
	_, firstCache, err := d.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "lib.rs"),
		[]byte("pub fn add(a: i32, b: i32, c: i32) -> i32 {\n    a + b + c\n}\n"), 0o644))

	d2 := &Driver{Config: cfg, Cache: firstCache}
	result, _, err := d2.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Diff.Modified, 1)
	assert.Contains(t, result.Diff.Modified[0].SignatureChanges, "fn add")
}

// TestRunReportsDeletedFileAsRemoval exercises S4: deleting a
// previously indexed file produces exactly one DiffRemoved entry
// carrying its prior symbol count, and the file drops out of the new
// cache entirely.
func TestRunReportsDeletedFileAsRemoval(t *testing.T) {
	dir := writeProject(t)
	cfg := config.Default(dir)

	d := &Driver{Config: cfg}
	_, firstCache, err := d.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "src", "lib.rs")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "other.rs"), []byte("pub fn noop() {}\n"), 0o644))

	d2 := &Driver{Config: cfg, Cache: firstCache}
	result, newCache, err := d2.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Diff.Removed, 1)
	assert.Equal(t, "src/lib.rs", result.Diff.Removed[0].Path)
	assert.Equal(t, 1, result.Diff.Removed[0].Symbols)
	require.Len(t, result.Diff.Added, 1)
	assert.Equal(t, "src/other.rs", result.Diff.Added[0].Path)
	assert.Equal(t, 2, newCache.Len())
}

// TestRunToleratesMalformedSourceAlongsideValidFile exercises S5: a
// file the grammar can't parse still counts in the run (as a ParseFailed
// ParsedFile holding whatever the extractor recovered) and never aborts indexing of the rest of the
// project; a sibling valid file's symbols remain present.
func TestRunToleratesMalformedSourceAlongsideValidFile(t *testing.T) {
	dir := writeProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "broken.rs"), []byte("pub fn ( { ] } this is not rust"), 0o644))

	cfg := config.Default(dir)
	d := &Driver{Config: cfg}
	result, _, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Files, 2)

	var good, broken *types.FileResult
	for i := range result.Files {
		switch result.Files[i].RelPath {
		case "src/lib.rs":
			good = &result.Files[i]
		case "src/broken.rs":
			broken = &result.Files[i]
		}
	}
	require.NotNil(t, good)
	require.NotNil(t, broken)
	assert.NotEmpty(t, good.Parsed.FileSymbols.Symbols)
	assert.Equal(t, "add", good.Parsed.FileSymbols.Symbols[0].Name)
}
