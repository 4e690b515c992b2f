package vault

// Identity is an opaque principal handed to the core by the host's
// identity subsystem. The core never interprets it beyond equality.
type Identity string

// MemberInfo carries activity metadata for an owner or controller.
type MemberInfo struct {
	// Since is the Unix timestamp when the identity gained the role
	Since int64 `json:"since"`

	// LastActivity is the Unix timestamp of the identity's last write
	LastActivity int64 `json:"last_activity"`
}

// Connection is a social-graph edge from the capsule to a peer identity.
type Connection struct {
	Peer      Identity `json:"peer"`
	Confirmed bool     `json:"confirmed"`
	CreatedAt int64    `json:"created_at"`
}

// ConnectionGroup is a named set of connections usable as an access target
// ("family", "childhood friends").
type ConnectionGroup struct {
	Name      string     `json:"name"`
	Members   []Identity `json:"members"`
	CreatedAt int64      `json:"created_at"`
}

// Gallery is an ordered collection of memory references.
type Gallery struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	MemoryIDs []string `json:"memory_ids"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
}

// Capsule is the durable per-subject container of memories and the
// social-graph/access metadata used to evaluate who may see them.
// The capsule is the unit of mutation: stores persist and replace it
// whole (no sub-document transactions).
type Capsule struct {
	// ID is a ULID that uniquely identifies this capsule
	ID string `json:"id"`

	// Subject is the identity this capsule is about. It may differ from
	// the owners, e.g. a capsule curated on behalf of someone else.
	Subject Identity `json:"subject"`

	// Owners have full rights, including deletion
	Owners map[Identity]MemberInfo `json:"owners"`

	// Controllers have administrative rights short of ownership
	Controllers map[Identity]MemberInfo `json:"controllers,omitempty"`

	// Connections is the capsule's social graph
	Connections map[Identity]Connection `json:"connections,omitempty"`

	// ConnectionGroups are named access-control targets over Connections
	ConnectionGroups map[string]ConnectionGroup `json:"connection_groups,omitempty"`

	// Memories is the aggregate's content, keyed by memory id
	Memories map[string]*Memory `json:"memories"`

	// Galleries are ordered collections of memory references
	Galleries map[string]*Gallery `json:"galleries,omitempty"`

	// FiredEvents lists events known to have fired for this capsule,
	// consulted when resolving event-triggered access
	FiredEvents []string `json:"fired_events,omitempty"`

	// InlineBytesUsed is the running total of bytes stored inline in
	// memory assets, counted against the global quota
	InlineBytesUsed int64 `json:"inline_bytes_used"`

	// CreatedAt is the Unix timestamp when the capsule was created
	CreatedAt int64 `json:"created_at"`

	// UpdatedAt is the Unix timestamp of the last write; never decreases
	UpdatedAt int64 `json:"updated_at"`
}

// IsOwner reports whether id is an owner of the capsule.
func (c *Capsule) IsOwner(id Identity) bool {
	_, ok := c.Owners[id]
	return ok
}

// IsController reports whether id is a controller of the capsule.
func (c *Capsule) IsController(id Identity) bool {
	_, ok := c.Controllers[id]
	return ok
}

// CanControl reports whether id may mutate the capsule's contents.
func (c *Capsule) CanControl(id Identity) bool {
	return c.IsOwner(id) || c.IsController(id)
}

// CanSee reports whether id may observe that the capsule exists at all:
// subject, owners, and controllers.
func (c *Capsule) CanSee(id Identity) bool {
	return c.Subject == id || c.CanControl(id)
}

// InGroup reports whether id is a member of the named connection group.
func (c *Capsule) InGroup(group string, id Identity) bool {
	g, ok := c.ConnectionGroups[group]
	if !ok {
		return false
	}
	for _, m := range g.Members {
		if m == id {
			return true
		}
	}
	return false
}

// EventFired reports whether the named event has fired for this capsule.
func (c *Capsule) EventFired(event string) bool {
	for _, e := range c.FiredEvents {
		if e == event {
			return true
		}
	}
	return false
}

// FiredEventSet returns the fired events as a set for access resolution.
func (c *Capsule) FiredEventSet() EventSet {
	if len(c.FiredEvents) == 0 {
		return nil
	}
	set := make(EventSet, len(c.FiredEvents))
	for _, e := range c.FiredEvents {
		set[e] = true
	}
	return set
}

// Touch advances UpdatedAt to now, keeping it monotonically non-decreasing
// even if the host clock stepped backwards between calls.
func (c *Capsule) Touch(now int64) {
	if now > c.UpdatedAt {
		c.UpdatedAt = now
	}
}

// RecordActivity updates the requester's activity metadata, if the
// requester is an owner or controller.
func (c *Capsule) RecordActivity(id Identity, now int64) {
	if info, ok := c.Owners[id]; ok {
		info.LastActivity = now
		c.Owners[id] = info
	}
	if info, ok := c.Controllers[id]; ok {
		info.LastActivity = now
		c.Controllers[id] = info
	}
}
