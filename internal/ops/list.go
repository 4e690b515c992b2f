package ops

import (
	"sort"

	"github.com/hpungsan/vessel/internal/env"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/vault"
)

// ListMemoriesInput contains parameters for the ListMemories operation.
type ListMemoriesInput struct {
	CapsuleID string
	Cursor    string
	Limit     int

	// Kind filters the listing to one memory kind when set.
	Kind vault.MemoryKind
}

// MemorySummary is one row of a memory listing.
type MemorySummary struct {
	ID        string           `json:"id"`
	Kind      vault.MemoryKind `json:"kind"`
	Name      string           `json:"name"`
	Bytes     int64            `json:"bytes"`
	PublicNow bool             `json:"public_now"`
	Shared    bool             `json:"shared"`
	UpdatedAt int64            `json:"updated_at"`
}

// ListMemoriesOutput contains the result of the ListMemories operation.
type ListMemoriesOutput struct {
	Items      []MemorySummary `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// ListMemories pages through a capsule's memories in id order, showing
// only those the caller may access. Ids are ULIDs, so id order is
// creation order.
func ListMemories(e env.Env, st store.Store, input ListMemoriesInput) (*ListMemoriesOutput, error) {
	c, err := st.GetCapsule(input.CapsuleID)
	if err != nil {
		return nil, err
	}

	limit := clampLimit(input.Limit)
	asOf := e.Now().Unix()
	fired := c.FiredEventSet()
	caller := e.Caller()

	ids := make([]string, 0, len(c.Memories))
	for id := range c.Memories {
		if id > input.Cursor {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := &ListMemoriesOutput{Items: make([]MemorySummary, 0, limit)}
	for _, id := range ids {
		m := c.Memories[id]
		if input.Kind != "" && m.Info.Kind != input.Kind {
			continue
		}
		resolved := vault.ResolveAccess(m.Access, asOf, fired)
		if !vault.CanAccess(resolved, caller, c) {
			continue
		}
		if len(out.Items) == limit {
			out.NextCursor = out.Items[limit-1].ID
			break
		}
		out.Items = append(out.Items, MemorySummary{
			ID:        m.ID,
			Kind:      m.Info.Kind,
			Name:      m.Info.Name,
			Bytes:     m.Metadata.Bytes,
			PublicNow: m.PublicNow,
			Shared:    m.Shared,
			UpdatedAt: m.Info.UpdatedAt,
		})
	}
	return out, nil
}
