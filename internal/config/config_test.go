package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFallsBackToDefaultWhenNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(dir), cfg)
}

func TestLoadReadsCrateindexKDL(t *testing.T) {
	dir := t.TempDir()
	kdl := "index {\n    max_file_size 2097152\n    watch_debounce_ms 750\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".crateindex.kdl"), []byte(kdl), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.EqualValues(t, 2097152, cfg.Index.MaxFileSize)
	assert.Equal(t, 750, cfg.Index.WatchDebounceMs)
}

func TestIgnoreMatcherHonoursNegation(t *testing.T) {
	dir := t.TempDir()
	gi := "*.log\n!keep.log\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gi), 0o644))

	m, err := NewIgnoreMatcher(dir)
	require.NoError(t, err)

	assert.True(t, m.Match("debug.log", false))
	assert.False(t, m.Match("keep.log", false))
	assert.False(t, m.Match("src/main.rs", false))
}

func TestIgnoreMatcherScopesPatternsToTheirDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor", ".gitignore"), []byte("*.tmp\n"), 0o644))

	m, err := NewIgnoreMatcher(dir)
	require.NoError(t, err)

	assert.True(t, m.Match("vendor/build.tmp", false))
	assert.False(t, m.Match("src/build.tmp", false))
}
