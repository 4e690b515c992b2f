// Package blob provides content-addressable binary storage in two
// flavors: an internal store whose bytes this service owns (and counts
// against the global quota), and a reference-only view of external
// backends whose lifecycle belongs to a third party.
package blob

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Ref is a handle into internal blob storage.
type Ref struct {
	BlobID      string `json:"blob_id"`
	Size        int64  `json:"size"`
	ContentHash string `json:"content_hash"`
}

// Store is the internal blob storage contract. Implementations own the
// bytes: Put charges the quota gate, Delete reclaims it.
type Store interface {
	// Put stores data and returns its ref. Storing bytes already present
	// returns the existing ref without charging quota again.
	Put(data []byte) (Ref, error)

	// Get returns the stored bytes, or ok=false if the ref is unknown.
	Get(ref Ref) (data []byte, ok bool, err error)

	// Delete removes the blob, reporting whether it existed.
	Delete(ref Ref) (bool, error)
}

// QuotaGate is the single accounting entry point for writes that grow
// stored bytes. Positive deltas may be rejected; negative deltas always
// succeed.
type QuotaGate interface {
	AddStoredBytes(delta int64) error
}

// HashBytes computes the BLAKE3 content hash of data, hex-encoded.
// This is the hash recorded in refs and checked by the upload pipeline's
// integrity gate.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
