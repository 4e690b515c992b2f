package ops

import (
	"github.com/hpungsan/vessel/internal/blob"
	"github.com/hpungsan/vessel/internal/env"
	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/vault"
)

// DeleteMemoryInput contains parameters for the DeleteMemory operation.
type DeleteMemoryInput struct {
	CapsuleID string
	MemoryID  string

	// DeleteAssets reclaims internal blob assets along with the record.
	// Inline bytes are always reclaimed (they leave with the record);
	// external assets are bookkeeping only and always report deleted.
	DeleteAssets bool
}

// DeleteMemoryOutput contains the result of the DeleteMemory operation.
type DeleteMemoryOutput struct {
	ID            string `json:"id"`
	Deleted       bool   `json:"deleted"`
	AssetsDeleted int    `json:"assets_deleted"`
}

// DeleteMemory removes a memory from its capsule. Deleting a
// nonexistent memory is NOT_FOUND, not a silent success, so callers can
// tell "nothing to do" from "it worked".
func DeleteMemory(e env.Env, st store.Store, blobs blob.Store, input DeleteMemoryInput) (*DeleteMemoryOutput, error) {
	c, err := loadControlledCapsule(e, st, input.CapsuleID)
	if err != nil {
		return nil, err
	}

	m, ok := c.Memories[input.MemoryID]
	if !ok {
		return nil, errors.NewNotFound("memory", input.MemoryID)
	}

	// Internal blobs go first: storage reclaim is irreversible, so a
	// failure aborts before the record disappears.
	assetsDeleted := 0
	if input.DeleteAssets {
		for i := range m.Assets {
			a := &m.Assets[i]
			switch {
			case a.Blob != nil:
				if _, err := blobs.Delete(*a.Blob); err != nil {
					return nil, err
				}
				assetsDeleted++
			case a.External != nil:
				// Reference-only: reported deleted without any
				// storage action.
				assetsDeleted++
			}
		}
	}

	inline := m.InlineBytes()
	now := e.Now().Unix()

	delete(c.Memories, m.ID)
	c.InlineBytesUsed -= inline
	if c.InlineBytesUsed < 0 {
		c.InlineBytesUsed = 0
	}
	removeFromGalleries(c, m.ID)
	c.RecordActivity(e.Caller(), now)
	c.Touch(now)

	if err := st.UpsertCapsule(c); err != nil {
		return nil, err
	}
	if inline > 0 {
		_ = st.AddStoredBytes(-inline)
	}

	return &DeleteMemoryOutput{ID: m.ID, Deleted: true, AssetsDeleted: assetsDeleted}, nil
}

// removeFromGalleries drops references to a deleted memory from every
// gallery so galleries never point at missing content.
func removeFromGalleries(c *vault.Capsule, memoryID string) {
	for _, g := range c.Galleries {
		kept := g.MemoryIDs[:0]
		for _, id := range g.MemoryIDs {
			if id != memoryID {
				kept = append(kept, id)
			}
		}
		g.MemoryIDs = kept
	}
}
