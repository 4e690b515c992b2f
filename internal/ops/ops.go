// Package ops implements the capsule-scoped operations the hosts expose.
// Every operation is a function of the injected Env and Store
// capabilities plus a typed input, returning a typed output or a
// structured error. Store mutation happens once, at the end of a call,
// so a failure partway through never leaves a half-mutated capsule.
package ops

import (
	"strings"

	"github.com/hpungsan/vessel/internal/env"
	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/vault"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// clampLimit normalizes a caller-supplied page limit.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// loadVisibleCapsule fetches a capsule the caller may know exists.
// Invisible and missing capsules are indistinguishable to the caller.
func loadVisibleCapsule(e env.Env, st store.Store, id string) (*vault.Capsule, error) {
	c, err := st.GetCapsule(id)
	if err != nil {
		return nil, err
	}
	if !c.CanSee(e.Caller()) {
		return nil, errors.NewNotFound("capsule", id)
	}
	return c, nil
}

// loadControlledCapsule fetches a capsule the caller may mutate.
// Callers who can see the capsule but not control it get UNAUTHORIZED;
// everyone else gets NOT_FOUND.
func loadControlledCapsule(e env.Env, st store.Store, id string) (*vault.Capsule, error) {
	c, err := loadVisibleCapsule(e, st, id)
	if err != nil {
		return nil, err
	}
	if !c.CanControl(e.Caller()) {
		return nil, errors.NewUnauthorized("caller is not an owner or controller of this capsule")
	}
	return c, nil
}

// newMemoryID generates a memory id unique within the capsule. ULIDs
// from one entropy source do not realistically collide, but uniqueness
// within the aggregate is an invariant, not a probability.
func newMemoryID(e env.Env, c *vault.Capsule) (string, error) {
	for {
		id, err := vault.NewID(e.Now(), e.Entropy())
		if err != nil {
			return "", errors.NewInternal(err)
		}
		if _, exists := c.Memories[id]; !exists {
			return id, nil
		}
	}
}

// cleanTags trims and drops empty tags.
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
