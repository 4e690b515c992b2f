package ops

import (
	"github.com/hpungsan/vessel/internal/env"
	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/vault"
)

// CreateCapsuleInput contains parameters for the CreateCapsule operation.
type CreateCapsuleInput struct {
	// Subject is the identity the capsule is about. Empty means the
	// caller is creating their own (self) capsule.
	Subject vault.Identity
}

// CreateCapsuleOutput contains the result of the CreateCapsule operation.
type CreateCapsuleOutput struct {
	ID string `json:"id"`

	// Created is false when the call resolved to an existing self
	// capsule instead of making a new one.
	Created bool `json:"created"`
}

// CreateCapsule creates a capsule owned by the caller. At most one self
// capsule exists per subject: creating your own capsule again returns
// the existing one.
func CreateCapsule(e env.Env, st store.Store, input CreateCapsuleInput) (*CreateCapsuleOutput, error) {
	caller := e.Caller()
	if caller == "" {
		return nil, errors.NewUnauthorized("caller identity is required")
	}

	subject := input.Subject
	if subject == "" {
		subject = caller
	}

	if subject == caller {
		existing, err := findSelfCapsule(st, caller)
		if err != nil {
			return nil, err
		}
		if existing != "" {
			return &CreateCapsuleOutput{ID: existing, Created: false}, nil
		}
	}

	id, err := vault.NewID(e.Now(), e.Entropy())
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := e.Now().Unix()

	c := &vault.Capsule{
		ID:      id,
		Subject: subject,
		Owners: map[vault.Identity]vault.MemberInfo{
			caller: {Since: now, LastActivity: now},
		},
		Memories:  make(map[string]*vault.Memory),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := st.UpsertCapsule(c); err != nil {
		return nil, err
	}

	return &CreateCapsuleOutput{ID: id, Created: true}, nil
}

// findSelfCapsule returns the id of the caller's self capsule, if any.
func findSelfCapsule(st store.Store, caller vault.Identity) (string, error) {
	ids, err := st.AccessibleCapsules(caller)
	if err != nil {
		return "", err
	}
	for _, id := range ids {
		c, err := st.GetCapsule(id)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				continue
			}
			return "", err
		}
		if c.Subject == caller && c.IsOwner(caller) {
			return c.ID, nil
		}
	}
	return "", nil
}
