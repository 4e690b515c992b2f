package ops

import (
	"github.com/hpungsan/vessel/internal/blob"
	"github.com/hpungsan/vessel/internal/env"
	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/vault"
)

// DeleteCapsuleInput contains parameters for the DeleteCapsule operation.
type DeleteCapsuleInput struct {
	ID string

	// Force deletes even when memories still reference internal blobs,
	// reclaiming them first.
	Force bool
}

// DeleteCapsuleOutput contains the result of the DeleteCapsule operation.
type DeleteCapsuleOutput struct {
	Deleted       bool `json:"deleted"`
	MemoriesFreed int  `json:"memories_freed"`
}

// DeleteCapsule removes a capsule and reclaims its stored bytes.
// Owners only. Without Force, a capsule whose memories still hold
// internal blob assets is refused so storage cannot be leaked by
// accident.
func DeleteCapsule(e env.Env, st store.Store, blobs blob.Store, input DeleteCapsuleInput) (*DeleteCapsuleOutput, error) {
	c, err := loadVisibleCapsule(e, st, input.ID)
	if err != nil {
		return nil, err
	}
	if !c.IsOwner(e.Caller()) {
		return nil, errors.NewUnauthorized("only owners may delete a capsule")
	}

	internalRefs := collectInternalRefs(c)
	if len(internalRefs) > 0 && !input.Force {
		return nil, errors.NewConflict("capsule still holds internal blob assets; pass force to reclaim them")
	}

	// Irreversible reclaim first, record removal second: a crash in
	// between leaves an empty capsule row, never orphaned blobs.
	for _, ref := range internalRefs {
		if _, err := blobs.Delete(ref); err != nil {
			return nil, err
		}
	}
	if c.InlineBytesUsed > 0 {
		if err := st.AddStoredBytes(-c.InlineBytesUsed); err != nil {
			return nil, err
		}
	}

	deleted, err := st.DeleteCapsule(c.ID)
	if err != nil {
		return nil, err
	}
	return &DeleteCapsuleOutput{Deleted: deleted, MemoriesFreed: len(c.Memories)}, nil
}

// collectInternalRefs gathers every internal blob reference held by the
// capsule's memories.
func collectInternalRefs(c *vault.Capsule) []blob.Ref {
	var refs []blob.Ref
	for _, m := range c.Memories {
		for i := range m.Assets {
			if m.Assets[i].Blob != nil {
				refs = append(refs, *m.Assets[i].Blob)
			}
		}
	}
	return refs
}
