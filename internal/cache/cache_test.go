package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crateindex/crateindex/internal/types"
)

func sampleEntry() types.CacheEntry {
	body := "pub fn hello() {}"
	sig := "fn hello()"
	return types.CacheEntry{
		Hash:     ContentHash([]byte(body)),
		FastHash: FastHash([]byte(body)),
		Mtime:    1700000000,
		Size:     int64(len(body)),
		Lines:    1,
		Data: types.FileData{
			Parsed: types.ParsedFile{
				FileSymbols: types.FileSymbols{
					Symbols: []types.Symbol{
						{
							Name: "hello",
							Kind: types.SymbolFunction,
							Line: 1,
							Function: &types.FunctionPayload{
								Signature: sig,
							},
						},
					},
				},
			},
		},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.bin")

	c := New()
	c.Set("src/lib.rs", sampleEntry())

	require.NoError(t, Save(path, c))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c.Len(), loaded.Len())

	entry, ok := loaded.Get("src/lib.rs")
	require.True(t, ok)
	assert.Equal(t, sampleEntry().Hash, entry.Hash)
	require.Len(t, entry.Data.Parsed.FileSymbols.Symbols, 1)
	assert.Equal(t, "hello", entry.Data.Parsed.FileSymbols.Symbols[0].Name)
	require.NotNil(t, entry.Data.Parsed.FileSymbols.Symbols[0].Function)
	assert.Equal(t, "fn hello()", entry.Data.Parsed.FileSymbols.Symbols[0].Function.Signature)
}

func TestCacheLoadMissingFileReturnsEmpty(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.bin"))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestCacheLoadCorruptFileIsNonFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.bin")
	require.NoError(t, os.WriteFile(path, []byte("not a cache file"), 0o644))

	c, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestCacheIdempotentSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.bin")

	c := New()
	c.Set("a.rs", sampleEntry())
	require.NoError(t, Save(path, c))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, Save(path, c))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
