package ops

import (
	"sort"

	"github.com/hpungsan/vessel/internal/env"
	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/vault"
)

// ListCapsulesInput contains parameters for the ListCapsules operation.
type ListCapsulesInput struct {
	Cursor string
	Limit  int
}

// CapsuleSummary is one row of a capsule listing.
type CapsuleSummary struct {
	ID              string         `json:"id"`
	Subject         vault.Identity `json:"subject"`
	MemoryCount     int            `json:"memory_count"`
	InlineBytesUsed int64          `json:"inline_bytes_used"`
	UpdatedAt       int64          `json:"updated_at"`
}

// ListCapsulesOutput contains the result of the ListCapsules operation.
type ListCapsulesOutput struct {
	Items      []CapsuleSummary `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// ListCapsules pages through the capsules the caller can see (subject,
// owner, or controller), in id order.
func ListCapsules(e env.Env, st store.Store, input ListCapsulesInput) (*ListCapsulesOutput, error) {
	limit := clampLimit(input.Limit)

	ids, err := st.AccessibleCapsules(e.Caller())
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	out := &ListCapsulesOutput{Items: make([]CapsuleSummary, 0, limit)}
	for _, id := range ids {
		if id <= input.Cursor {
			continue
		}
		if len(out.Items) == limit {
			out.NextCursor = out.Items[limit-1].ID
			break
		}
		c, err := st.GetCapsule(id)
		if err != nil {
			// The capsule may have been deleted between the index scan
			// and the fetch; skip it rather than failing the page.
			if errors.Is(err, errors.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out.Items = append(out.Items, CapsuleSummary{
			ID:              c.ID,
			Subject:         c.Subject,
			MemoryCount:     len(c.Memories),
			InlineBytesUsed: c.InlineBytesUsed,
			UpdatedAt:       c.UpdatedAt,
		})
	}
	return out, nil
}
