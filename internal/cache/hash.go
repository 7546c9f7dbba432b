package cache

import (
	"crypto/sha256"

	"github.com/cespare/xxhash/v2"

	"github.com/crateindex/crateindex/internal/types"
)

// ContentHash computes the cache's authoritative content-identity key.
func ContentHash(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// FastHash computes a cheap, non-cryptographic identity hash that is
// stored in each cache entry. Nothing reads it back, and it is never
// consulted for cache validity.
func FastHash(data []byte) uint64 {
	return xxhash.Sum64(data)
}
