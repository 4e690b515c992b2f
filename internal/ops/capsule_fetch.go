package ops

import (
	"github.com/hpungsan/vessel/internal/env"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/vault"
)

// FetchCapsuleInput contains parameters for the FetchCapsule operation.
type FetchCapsuleInput struct {
	ID string
}

// FetchCapsuleOutput contains the result of the FetchCapsule operation.
type FetchCapsuleOutput struct {
	vault.Capsule // embedded (copy, not pointer)

	MemoryCount int `json:"memory_count"`
}

// FetchCapsule retrieves a capsule visible to the caller.
func FetchCapsule(e env.Env, st store.Store, input FetchCapsuleInput) (*FetchCapsuleOutput, error) {
	c, err := loadVisibleCapsule(e, st, input.ID)
	if err != nil {
		return nil, err
	}

	return &FetchCapsuleOutput{
		Capsule:     *c,
		MemoryCount: len(c.Memories),
	}, nil
}
