// Package store defines the persistence capability the core runs
// against. Hosts back it with whatever durable medium they have; the
// core only sees the logical shape. Mutation granularity is the whole
// capsule: read, modify, upsert. Callers re-fetch before retrying on
// conflict.
package store

import "github.com/hpungsan/vessel/internal/vault"

// Page is one page of a capsule scan.
type Page struct {
	Capsules []*vault.Capsule `json:"capsules"`

	// NextCursor is the cursor for the following page; empty when the
	// scan is exhausted.
	NextCursor string `json:"next_cursor,omitempty"`
}

// Store is the persistence capability.
type Store interface {
	// GetCapsule returns the capsule or a NOT_FOUND error.
	GetCapsule(id string) (*vault.Capsule, error)

	// UpsertCapsule writes the whole aggregate.
	UpsertCapsule(c *vault.Capsule) error

	// DeleteCapsule removes the capsule, reporting whether it existed.
	DeleteCapsule(id string) (bool, error)

	// ListCapsules scans capsules in id order from cursor (exclusive).
	ListCapsules(cursor string, limit int) (*Page, error)

	// AccessibleCapsules returns ids of capsules where identity is the
	// subject, an owner, or a controller, in id order.
	AccessibleCapsules(identity vault.Identity) ([]string, error)

	// AddStoredBytes moves the global stored-bytes counter by delta.
	// Positive deltas fail with RESOURCE_EXHAUSTED when they would push
	// the counter past the quota; the write being accounted for must not
	// be applied in that case. Negative deltas always succeed and floor
	// at zero. This is the single accounting gate for every byte-growing
	// write in the system.
	AddStoredBytes(delta int64) error

	// StoredBytes returns the counter's current value.
	StoredBytes() (int64, error)
}
