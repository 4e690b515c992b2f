package ops

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/hpungsan/vessel/internal/blob"
	"github.com/hpungsan/vessel/internal/config"
	"github.com/hpungsan/vessel/internal/env"
	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/vault"
)

// CreateMemoryInput contains parameters for the CreateMemory operation.
// Exactly one of Inline, BlobRef, or External supplies the original
// asset's content.
type CreateMemoryInput struct {
	CapsuleID string

	Kind         vault.MemoryKind
	Name         string
	ContentType  string
	DateOfMemory *int64
	Tags         []string

	// Inline embeds the bytes directly, counted against the quota.
	Inline []byte

	// BlobRef references bytes already committed to the internal blob
	// store, typically by the upload pipeline.
	BlobRef *blob.Ref

	// External references bytes owned by a third-party backend.
	External *vault.ExternalRef

	// ExternalSize, when set, must agree with the external ref's size.
	ExternalSize int64

	// Access defaults to private when nil.
	Access *vault.MemoryAccess

	// IdempotencyKey makes repeated creates return the original id.
	IdempotencyKey string

	ParentFolderID string
}

// CreateMemoryOutput contains the result of the CreateMemory operation.
type CreateMemoryOutput struct {
	ID string `json:"id"`

	// Existing is true when an idempotency key matched a prior create.
	Existing bool `json:"existing"`
}

// CreateMemory adds a memory to a capsule. Idempotent by key, not by
// content: the same key returns the original id; the same key with a
// different payload is a CONFLICT.
func CreateMemory(e env.Env, st store.Store, cfg *config.Config, input CreateMemoryInput) (*CreateMemoryOutput, error) {
	if !vault.ValidKind(input.Kind) {
		return nil, errors.NewInvalidArgument(fmt.Sprintf("unknown memory kind %q", input.Kind))
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.NewInvalidArgument("memory name is required")
	}

	sources := 0
	if len(input.Inline) > 0 {
		sources++
	}
	if input.BlobRef != nil {
		sources++
	}
	if input.External != nil {
		sources++
	}
	if sources != 1 {
		return nil, errors.NewInvalidArgument("exactly one of inline bytes, internal blob ref, or external ref is required")
	}

	if input.External != nil {
		if input.External.Location == "" {
			return nil, errors.NewInvalidArgument("external ref requires a location")
		}
		if input.ExternalSize > 0 && input.External.Size > 0 && input.ExternalSize != input.External.Size {
			return nil, errors.NewInvalidArgument("external_size does not match the external ref's size")
		}
		if input.ExternalSize > 0 && input.External.Size == 0 {
			input.External.Size = input.ExternalSize
		}
	}

	if int64(len(input.Inline)) > cfg.MaxInlineAssetBytes {
		return nil, errors.NewInvalidArgument(fmt.Sprintf("inline asset exceeds %d bytes; use the upload pipeline", cfg.MaxInlineAssetBytes))
	}

	c, err := loadControlledCapsule(e, st, input.CapsuleID)
	if err != nil {
		return nil, err
	}

	if input.IdempotencyKey != "" {
		if prior := findByIdemKey(c, input.IdempotencyKey); prior != nil {
			if !sameCreatePayload(prior, input) {
				return nil, errors.NewConflict("idempotency key was already used with a different payload")
			}
			return &CreateMemoryOutput{ID: prior.ID, Existing: true}, nil
		}
	}

	access, err := resolveCreateAccess(e, input.Access, cfg.MaxAccessDepth)
	if err != nil {
		return nil, err
	}

	id, err := newMemoryID(e, c)
	if err != nil {
		return nil, err
	}
	now := e.Now().Unix()

	m := &vault.Memory{
		ID:        id,
		CapsuleID: c.ID,
		Info: vault.MemoryInfo{
			Kind:         input.Kind,
			Name:         input.Name,
			ContentType:  input.ContentType,
			CreatedAt:    now,
			UpdatedAt:    now,
			UploadedAt:   now,
			DateOfMemory: input.DateOfMemory,
		},
		Metadata: vault.MemoryMetadata{
			MimeType:     input.ContentType,
			OriginalName: input.Name,
			Tags:         cleanTags(input.Tags),
			Processing:   vault.ProcessingPending,
		},
		Access:         *access,
		IdempotencyKey: input.IdempotencyKey,
		ParentFolderID: input.ParentFolderID,
	}

	asset := vault.Asset{Purpose: vault.AssetOriginal}
	switch {
	case len(input.Inline) > 0:
		asset.Inline = append([]byte(nil), input.Inline...)
		m.Metadata.Bytes = int64(len(input.Inline))
	case input.BlobRef != nil:
		ref := *input.BlobRef
		asset.Blob = &ref
		m.Metadata.Bytes = ref.Size
	case input.External != nil:
		ref := *input.External
		asset.External = &ref
		m.Metadata.Bytes = ref.Size
	}
	if err := asset.Validate(); err != nil {
		return nil, err
	}
	m.Assets = []vault.Asset{asset}
	m.RecomputeSummary(now, c.FiredEventSet())

	// Inline bytes grow stored state: pass the accounting gate before
	// the write, and roll the delta back if the write fails.
	inline := m.InlineBytes()
	if inline > 0 {
		if err := st.AddStoredBytes(inline); err != nil {
			return nil, err
		}
	}

	c.Memories[m.ID] = m
	c.InlineBytesUsed += inline
	c.RecordActivity(e.Caller(), now)
	c.Touch(now)

	if err := st.UpsertCapsule(c); err != nil {
		if inline > 0 {
			_ = st.AddStoredBytes(-inline)
		}
		return nil, err
	}

	return &CreateMemoryOutput{ID: m.ID}, nil
}

// findByIdemKey scans the capsule for a memory created with the key.
func findByIdemKey(c *vault.Capsule, key string) *vault.Memory {
	for _, m := range c.Memories {
		if m.IdempotencyKey == key {
			return m
		}
	}
	return nil
}

// sameCreatePayload reports whether a keyed repeat carries the payload
// the key was first used with. The descriptive fields and the content
// source must both match; a matching name over different bytes is a
// reused key, not a retry.
func sameCreatePayload(prior *vault.Memory, input CreateMemoryInput) bool {
	if prior.Info.Name != input.Name || prior.Info.Kind != input.Kind || prior.Info.ContentType != input.ContentType {
		return false
	}
	if input.Access != nil && input.Access.Kind != prior.Access.Kind {
		return false
	}
	original := prior.Asset(vault.AssetOriginal)
	if original == nil {
		return false
	}
	switch {
	case len(input.Inline) > 0:
		return bytes.Equal(original.Inline, input.Inline)
	case input.BlobRef != nil:
		return original.Blob != nil && *original.Blob == *input.BlobRef
	case input.External != nil:
		return original.External != nil && *original.External == *input.External
	}
	return false
}

// resolveCreateAccess validates the supplied access tree, or builds the
// default private access with a generated owner code.
func resolveCreateAccess(e env.Env, access *vault.MemoryAccess, maxDepth int) (*vault.MemoryAccess, error) {
	if access == nil {
		code, err := vault.NewSecureCode(e.Entropy())
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		return &vault.MemoryAccess{Kind: vault.AccessPrivate, OwnerSecureCode: code}, nil
	}
	if err := vault.ValidateAccess(access, maxDepth); err != nil {
		return nil, err
	}
	access = access.Clone()
	if access.OwnerSecureCode == "" {
		code, err := vault.NewSecureCode(e.Entropy())
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		access.OwnerSecureCode = code
	}
	return access, nil
}
