package ops

import (
	"github.com/hpungsan/vessel/internal/config"
	"github.com/hpungsan/vessel/internal/env"
	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/vault"
)

// UpdateMemoryInput contains parameters for the UpdateMemory operation.
// Nil fields are left unchanged.
type UpdateMemoryInput struct {
	CapsuleID string
	MemoryID  string

	Name           *string
	ContentType    *string
	DateOfMemory   *int64
	Tags           *[]string
	Access         *vault.MemoryAccess
	ParentFolderID *string

	Processing      *vault.ProcessingStatus
	ProcessingError *string
}

// UpdateMemoryOutput contains the result of the UpdateMemory operation.
type UpdateMemoryOutput struct {
	ID        string `json:"id"`
	UpdatedAt int64  `json:"updated_at"`
}

// UpdateMemory modifies a memory's mutable fields. Derived listing flags
// are recomputed in the same write, so they never go stale relative to
// the authoritative access value.
func UpdateMemory(e env.Env, st store.Store, cfg *config.Config, input UpdateMemoryInput) (*UpdateMemoryOutput, error) {
	c, err := loadControlledCapsule(e, st, input.CapsuleID)
	if err != nil {
		return nil, err
	}

	m, ok := c.Memories[input.MemoryID]
	if !ok {
		return nil, errors.NewNotFound("memory", input.MemoryID)
	}

	if input.Name == nil && input.ContentType == nil && input.DateOfMemory == nil &&
		input.Tags == nil && input.Access == nil && input.ParentFolderID == nil &&
		input.Processing == nil && input.ProcessingError == nil {
		return nil, errors.NewInvalidArgument("at least one editable field must be provided")
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, errors.NewInvalidArgument("memory name must not be empty")
		}
		m.Info.Name = *input.Name
	}
	if input.ContentType != nil {
		m.Info.ContentType = *input.ContentType
		m.Metadata.MimeType = *input.ContentType
	}
	if input.DateOfMemory != nil {
		m.Info.DateOfMemory = input.DateOfMemory
	}
	if input.Tags != nil {
		m.Metadata.Tags = cleanTags(*input.Tags)
	}
	if input.Access != nil {
		if err := vault.ValidateAccess(input.Access, cfg.MaxAccessDepth); err != nil {
			return nil, err
		}
		access := input.Access.Clone()
		// The owner code survives a policy change unless a new one is
		// supplied, so an access edit cannot lock the owner out.
		if access.OwnerSecureCode == "" {
			access.OwnerSecureCode = m.Access.OwnerSecureCode
		}
		m.Access = *access
	}
	if input.ParentFolderID != nil {
		m.ParentFolderID = *input.ParentFolderID
	}
	if input.Processing != nil {
		m.Metadata.Processing = *input.Processing
	}
	if input.ProcessingError != nil {
		m.Metadata.ProcessingError = *input.ProcessingError
	}

	now := e.Now().Unix()
	m.Info.UpdatedAt = now
	m.RecomputeSummary(now, c.FiredEventSet())

	c.RecordActivity(e.Caller(), now)
	c.Touch(now)
	if err := st.UpsertCapsule(c); err != nil {
		return nil, err
	}

	return &UpdateMemoryOutput{ID: m.ID, UpdatedAt: m.Info.UpdatedAt}, nil
}
