package ops

import (
	"github.com/hpungsan/vessel/internal/env"
	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/vault"
)

// UpdateCapsuleInput contains parameters for the UpdateCapsule operation.
// Nil fields are left unchanged.
type UpdateCapsuleInput struct {
	ID string

	// Controllers replaces the controller set; owners only.
	Controllers *[]vault.Identity

	// Connections replaces the social graph.
	Connections *[]vault.Connection

	// ConnectionGroups replaces the named access-control groups.
	ConnectionGroups *[]vault.ConnectionGroup
}

// UpdateCapsuleOutput contains the result of the UpdateCapsule operation.
type UpdateCapsuleOutput struct {
	ID        string `json:"id"`
	UpdatedAt int64  `json:"updated_at"`
}

// UpdateCapsule modifies a capsule's social-graph and administration
// metadata. Controllers may edit connections and groups; only owners may
// change the controller set.
func UpdateCapsule(e env.Env, st store.Store, input UpdateCapsuleInput) (*UpdateCapsuleOutput, error) {
	c, err := loadControlledCapsule(e, st, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Controllers == nil && input.Connections == nil && input.ConnectionGroups == nil {
		return nil, errors.NewInvalidArgument("at least one editable field must be provided")
	}

	now := e.Now().Unix()

	if input.Controllers != nil {
		if !c.IsOwner(e.Caller()) {
			return nil, errors.NewUnauthorized("only owners may change controllers")
		}
		controllers := make(map[vault.Identity]vault.MemberInfo, len(*input.Controllers))
		for _, id := range *input.Controllers {
			if id == "" {
				return nil, errors.NewInvalidArgument("controller identity must not be empty")
			}
			// Keep existing activity metadata for controllers that stay.
			if info, ok := c.Controllers[id]; ok {
				controllers[id] = info
			} else {
				controllers[id] = vault.MemberInfo{Since: now, LastActivity: now}
			}
		}
		c.Controllers = controllers
	}

	if input.Connections != nil {
		connections := make(map[vault.Identity]vault.Connection, len(*input.Connections))
		for _, conn := range *input.Connections {
			if conn.Peer == "" {
				return nil, errors.NewInvalidArgument("connection peer must not be empty")
			}
			if conn.CreatedAt == 0 {
				conn.CreatedAt = now
			}
			connections[conn.Peer] = conn
		}
		c.Connections = connections
	}

	if input.ConnectionGroups != nil {
		groups := make(map[string]vault.ConnectionGroup, len(*input.ConnectionGroups))
		for _, g := range *input.ConnectionGroups {
			if g.Name == "" {
				return nil, errors.NewInvalidArgument("connection group name must not be empty")
			}
			if g.CreatedAt == 0 {
				g.CreatedAt = now
			}
			groups[g.Name] = g
		}
		c.ConnectionGroups = groups
	}

	c.RecordActivity(e.Caller(), now)
	c.Touch(now)
	if err := st.UpsertCapsule(c); err != nil {
		return nil, err
	}

	return &UpdateCapsuleOutput{ID: c.ID, UpdatedAt: c.UpdatedAt}, nil
}
