package ops

import (
	"github.com/hpungsan/vessel/internal/blob"
	"github.com/hpungsan/vessel/internal/env"
	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/vault"
)

// BulkDeleteInput contains parameters for the BulkDelete operation.
type BulkDeleteInput struct {
	CapsuleID    string
	MemoryIDs    []string
	DeleteAssets bool
}

// BulkFailure reports one memory that could not be deleted.
type BulkFailure struct {
	ID   string           `json:"id"`
	Code errors.ErrorCode `json:"code"`
}

// BulkDeleteOutput contains the result of the BulkDelete operation.
// A partial failure is not an overall failure: the caller retries only
// the failed subset.
type BulkDeleteOutput struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// BulkDelete removes the named memories best-effort, per item. The
// capsule mutation still commits once at the end of the call, so a host
// crash mid-operation never leaves a half-deleted aggregate.
func BulkDelete(e env.Env, st store.Store, blobs blob.Store, input BulkDeleteInput) (*BulkDeleteOutput, error) {
	if len(input.MemoryIDs) == 0 {
		return nil, errors.NewInvalidArgument("at least one memory id is required")
	}

	c, err := loadControlledCapsule(e, st, input.CapsuleID)
	if err != nil {
		return nil, err
	}

	out := &BulkDeleteOutput{
		Succeeded: make([]string, 0, len(input.MemoryIDs)),
		Failed:    make([]BulkFailure, 0),
	}

	var inlineFreed int64
	seen := make(map[string]bool, len(input.MemoryIDs))

	for _, id := range input.MemoryIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		m, ok := c.Memories[id]
		if !ok {
			out.Failed = append(out.Failed, BulkFailure{ID: id, Code: errors.ErrNotFound})
			continue
		}

		if input.DeleteAssets {
			if !deleteInternalAssets(m, blobs) {
				out.Failed = append(out.Failed, BulkFailure{ID: id, Code: errors.ErrInternal})
				continue
			}
		}

		inlineFreed += m.InlineBytes()
		delete(c.Memories, id)
		removeFromGalleries(c, id)
		out.Succeeded = append(out.Succeeded, id)
	}

	if len(out.Succeeded) > 0 {
		now := e.Now().Unix()
		c.InlineBytesUsed -= inlineFreed
		if c.InlineBytesUsed < 0 {
			c.InlineBytesUsed = 0
		}
		c.RecordActivity(e.Caller(), now)
		c.Touch(now)
		if err := st.UpsertCapsule(c); err != nil {
			return nil, err
		}
		if inlineFreed > 0 {
			_ = st.AddStoredBytes(-inlineFreed)
		}
	}

	return out, nil
}

// deleteInternalAssets reclaims a memory's internal blobs, reporting
// whether every reclaim succeeded. External assets need no action.
func deleteInternalAssets(m *vault.Memory, blobs blob.Store) bool {
	for _, ref := range m.InternalRefs() {
		if _, err := blobs.Delete(ref); err != nil {
			return false
		}
	}
	return true
}
