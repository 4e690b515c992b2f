package ops

import (
	"github.com/hpungsan/vessel/internal/blob"
	"github.com/hpungsan/vessel/internal/env"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/vault"
)

// DeleteAllInput contains parameters for the DeleteAll operation.
type DeleteAllInput struct {
	CapsuleID string
}

// DeleteAllOutput contains the result of the DeleteAll operation.
// A count, not a list: nothing is selectively retried after a wipe.
type DeleteAllOutput struct {
	Deleted int `json:"deleted"`
}

// DeleteAll atomically wipes every memory in the capsule, preserving the
// capsule record itself. This is deliberately not a loop of individual
// deletes: the wipe is one aggregate mutation that always clears all K
// memories, and internal blob reclaim happens afterwards as best-effort
// cleanup that cannot fail the wipe.
func DeleteAll(e env.Env, st store.Store, blobs blob.Store, input DeleteAllInput) (*DeleteAllOutput, error) {
	c, err := loadControlledCapsule(e, st, input.CapsuleID)
	if err != nil {
		return nil, err
	}

	count := len(c.Memories)
	if count == 0 {
		return &DeleteAllOutput{Deleted: 0}, nil
	}

	var refs []blob.Ref
	for _, m := range c.Memories {
		refs = append(refs, m.InternalRefs()...)
	}
	inlineFreed := c.InlineBytesUsed

	now := e.Now().Unix()
	c.Memories = make(map[string]*vault.Memory)
	for _, g := range c.Galleries {
		g.MemoryIDs = nil
	}
	c.InlineBytesUsed = 0
	c.RecordActivity(e.Caller(), now)
	c.Touch(now)

	if err := st.UpsertCapsule(c); err != nil {
		return nil, err
	}

	// Bookkeeping is already committed; storage reclaim follows and a
	// stray failure here leaves an unreferenced blob, not a broken wipe.
	for _, ref := range refs {
		_, _ = blobs.Delete(ref)
	}
	if inlineFreed > 0 {
		_ = st.AddStoredBytes(-inlineFreed)
	}

	return &DeleteAllOutput{Deleted: count}, nil
}
