// Package cache implements a content-addressed file cache: a map from
// repo-relative path to a cached, hash-verified parse, persisted in a
// versioned binary format.
//
// The outer framing (magic, version, length-prefixed body, trailing
// checksum) is hand-rolled in the style of an index-file
// encoder/decoder — explicit binary.Write/Read calls, a version field
// that is the first thing on the wire, no reflection. The body itself
// is encoding/gob: Symbol's payload is a set of concrete optional
// pointer fields (not an interface{}), so gob round-trips the whole
// ParsedFile graph without any Register calls or hand-written
// per-variant cases.
package cache

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	cerrors "github.com/crateindex/crateindex/internal/errors"
	"github.com/crateindex/crateindex/internal/types"
)

var magic = [4]byte{'C', 'R', 'T', 'I'}

// FormatVersion is bumped whenever the on-disk schema changes in a way
// that breaks round-tripping. A mismatch means "treat as empty and
// warn", never "fail".
const FormatVersion uint32 = 1

// Cache is the in-memory, mutex-guarded map of repo-relative path to
// cache entry. The zero value is a valid empty cache.
type Cache struct {
	mu      sync.RWMutex
	Entries map[string]types.CacheEntry
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{Entries: make(map[string]types.CacheEntry)}
}

// Get is a pure lookup.
func (c *Cache) Get(path string) (types.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.Entries[path]
	return e, ok
}

// Set inserts or replaces one entry.
func (c *Cache) Set(path string, entry types.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Entries == nil {
		c.Entries = make(map[string]types.CacheEntry)
	}
	c.Entries[path] = entry
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.Entries)
}

// Snapshot returns a shallow copy of the entry map for read-only
// iteration (e.g. the pipeline driver's diff against the previous run).
func (c *Cache) Snapshot() map[string]types.CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]types.CacheEntry, len(c.Entries))
	for k, v := range c.Entries {
		out[k] = v
	}
	return out
}

// Replace atomically swaps the entire entry map, used by the pipeline
// driver when rebuilding the cache from one run's FileResults.
func (c *Cache) Replace(entries map[string]types.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Entries = entries
}

type onDiskEntries struct {
	Entries map[string]types.CacheEntry
}

// Load reads the binary cache blob at path. A missing file returns an
// empty cache, not an error. A corrupt file is CacheCorrupt: non-fatal,
// treated as empty, logged once by the caller.
func Load(path string) (*Cache, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, cerrors.NewFileIOError("open cache", err).WithPath(path)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return New(), cerrors.NewCacheCorrupt("read magic", err)
	}
	if gotMagic != magic {
		return New(), cerrors.NewCacheCorrupt("bad magic", fmt.Errorf("got %v", gotMagic))
	}

	var version uint32
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return New(), cerrors.NewCacheCorrupt("read version", err)
	}
	if version != FormatVersion {
		return New(), cerrors.NewCacheCorrupt("version mismatch", fmt.Errorf("got %d want %d", version, FormatVersion))
	}

	var bodyLen uint64
	if err := binary.Read(r, binary.BigEndian, &bodyLen); err != nil {
		return New(), cerrors.NewCacheCorrupt("read body length", err)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return New(), cerrors.NewCacheCorrupt("read body", err)
	}

	var wantChecksum [sha256.Size]byte
	if _, err := io.ReadFull(r, wantChecksum[:]); err != nil {
		return New(), cerrors.NewCacheCorrupt("read checksum", err)
	}
	if gotChecksum := sha256.Sum256(body); gotChecksum != wantChecksum {
		return New(), cerrors.NewCacheCorrupt("checksum mismatch", fmt.Errorf("body corrupted"))
	}

	var onDisk onDiskEntries
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&onDisk); err != nil {
		return New(), cerrors.NewCacheCorrupt("decode body", err)
	}
	if onDisk.Entries == nil {
		onDisk.Entries = make(map[string]types.CacheEntry)
	}
	return &Cache{Entries: onDisk.Entries}, nil
}

// Save serializes c and atomically replaces the blob at path: it is
// written to a temp file in the same directory, then renamed over the
// destination, so a crash mid-write never leaves a partial cache.
func Save(path string, c *Cache) error {
	c.mu.RLock()
	entries := make(map[string]types.CacheEntry, len(c.Entries))
	for k, v := range c.Entries {
		entries[k] = v
	}
	c.mu.RUnlock()

	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(onDiskEntries{Entries: entries}); err != nil {
		return cerrors.NewCacheWriteError("encode", err)
	}
	checksum := sha256.Sum256(body.Bytes())

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return cerrors.NewCacheWriteError("create temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	w := bufio.NewWriter(tmp)
	writeErr := func() error {
		if _, err := w.Write(magic[:]); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, FormatVersion); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint64(body.Len())); err != nil {
			return err
		}
		if _, err := w.Write(body.Bytes()); err != nil {
			return err
		}
		if _, err := w.Write(checksum[:]); err != nil {
			return err
		}
		return w.Flush()
	}()
	if writeErr != nil {
		tmp.Close()
		return cerrors.NewCacheWriteError("write", writeErr)
	}
	if err := tmp.Close(); err != nil {
		return cerrors.NewCacheWriteError("close temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return cerrors.NewCacheWriteError("rename", err)
	}
	return nil
}
