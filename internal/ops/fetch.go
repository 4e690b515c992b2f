package ops

import (
	"github.com/hpungsan/vessel/internal/env"
	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/vault"
)

// FetchMemoryInput contains parameters for the FetchMemory operation.
type FetchMemoryInput struct {
	CapsuleID string
	MemoryID  string

	// SecureCode is the owner's bypass, valid regardless of which
	// branch of the access tree resolves.
	SecureCode string

	// IncludeInline controls whether inline asset bytes are returned
	// (default true; nil means default).
	IncludeInline *bool
}

// FetchMemoryOutput contains the result of the FetchMemory operation.
type FetchMemoryOutput struct {
	vault.Memory // embedded (copy, not pointer)
}

// FetchMemory retrieves a memory the caller may access. Denied reads
// return NOT_FOUND, never UNAUTHORIZED, so probing cannot confirm that a
// memory exists.
func FetchMemory(e env.Env, st store.Store, input FetchMemoryInput) (*FetchMemoryOutput, error) {
	c, err := st.GetCapsule(input.CapsuleID)
	if err != nil {
		return nil, err
	}

	m, ok := c.Memories[input.MemoryID]
	if !ok {
		return nil, errors.NewNotFound("memory", input.MemoryID)
	}

	resolved := vault.ResolveAccess(m.Access, e.Now().Unix(), c.FiredEventSet())
	if !vault.CanAccess(resolved, e.Caller(), c) && !vault.VerifySecureCode(resolved, input.SecureCode) {
		return nil, errors.NewNotFound("memory", input.MemoryID)
	}

	out := &FetchMemoryOutput{Memory: *m}

	includeInline := true
	if input.IncludeInline != nil {
		includeInline = *input.IncludeInline
	}
	if !includeInline {
		assets := make([]vault.Asset, len(m.Assets))
		copy(assets, m.Assets)
		for i := range assets {
			assets[i].Inline = nil
		}
		out.Assets = assets
	}

	// Non-controlling readers see only the resolved level; the access
	// tree and its secure codes stay server-side.
	if !c.CanControl(e.Caller()) {
		out.Access = vault.MemoryAccess{Kind: resolved.Kind}
	}

	return out, nil
}
