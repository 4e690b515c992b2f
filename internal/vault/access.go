package vault

import (
	"crypto/subtle"
	"fmt"

	"github.com/hpungsan/vessel/internal/errors"
)

// AccessKind tags a MemoryAccess variant.
type AccessKind string

const (
	AccessPublic         AccessKind = "public"
	AccessPrivate        AccessKind = "private"
	AccessCustom         AccessKind = "custom"
	AccessScheduled      AccessKind = "scheduled"
	AccessEventTriggered AccessKind = "event_triggered"
)

// DefaultMaxAccessDepth bounds MemoryAccess nesting. Exceeding it is an
// INVALID_ARGUMENT at write time, never a runtime surprise at read time.
const DefaultMaxAccessDepth = 8

// EventSet is the set of events known to have fired, keyed by event name.
type EventSet map[string]bool

// MemoryAccess is a recursive access-control value. Public, Private, and
// Custom are base variants; Scheduled and EventTriggered wrap a future
// access level in Then. OwnerSecureCode is present at every level so the
// owning identity always has a private escape hatch regardless of which
// branch resolves.
type MemoryAccess struct {
	Kind AccessKind `json:"kind"`

	// OwnerSecureCode validates the owner's bypass; compared in constant time
	OwnerSecureCode string `json:"owner_secure_code,omitempty"`

	// Custom
	Individuals []Identity `json:"individuals,omitempty"`
	Groups      []string   `json:"groups,omitempty"`

	// Scheduled: Unix timestamp after which Then applies (inclusive)
	AccessibleAfter int64 `json:"accessible_after,omitempty"`

	// EventTriggered: event name that reveals Then
	Trigger string `json:"trigger,omitempty"`

	// Then is the wrapped future access level for conditional variants
	Then *MemoryAccess `json:"then,omitempty"`
}

// ResolvedAccess is the concrete access level obtained by evaluating a
// possibly-nested MemoryAccess against a point in time and an event set.
// Kind is always a base variant.
type ResolvedAccess struct {
	Kind            AccessKind
	OwnerSecureCode string
	Individuals     []Identity
	Groups          []string
}

// Conditional reports whether the variant wraps a future access level.
func (a *MemoryAccess) Conditional() bool {
	return a.Kind == AccessScheduled || a.Kind == AccessEventTriggered
}

// Clone deep-copies the access tree. Callers that backfill generated
// fields work on the copy, never on the value they were handed.
func (a *MemoryAccess) Clone() *MemoryAccess {
	if a == nil {
		return nil
	}
	out := *a
	out.Individuals = append([]Identity(nil), a.Individuals...)
	out.Groups = append([]string(nil), a.Groups...)
	out.Then = a.Then.Clone()
	return &out
}

// ValidateAccess checks a MemoryAccess tree at write time: known variant
// kinds, conditional variants carrying their condition and a Then,
// base variants carrying no Then, and nesting bounded by maxDepth with a
// base variant at the end of every chain.
func ValidateAccess(a *MemoryAccess, maxDepth int) error {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxAccessDepth
	}
	depth := 0
	for node := a; ; node = node.Then {
		depth++
		if depth > maxDepth {
			return errors.NewInvalidArgument(fmt.Sprintf("access nesting exceeds max depth %d", maxDepth))
		}
		switch node.Kind {
		case AccessPublic, AccessPrivate:
			if node.Then != nil {
				return errors.NewInvalidArgument(fmt.Sprintf("%s access must not wrap another level", node.Kind))
			}
			return nil
		case AccessCustom:
			if node.Then != nil {
				return errors.NewInvalidArgument("custom access must not wrap another level")
			}
			if len(node.Individuals) == 0 && len(node.Groups) == 0 {
				return errors.NewInvalidArgument("custom access requires at least one individual or group")
			}
			return nil
		case AccessScheduled:
			if node.AccessibleAfter <= 0 {
				return errors.NewInvalidArgument("scheduled access requires accessible_after")
			}
			if node.Then == nil {
				return errors.NewInvalidArgument("scheduled access requires a wrapped access level")
			}
		case AccessEventTriggered:
			if node.Trigger == "" {
				return errors.NewInvalidArgument("event-triggered access requires a trigger")
			}
			if node.Then == nil {
				return errors.NewInvalidArgument("event-triggered access requires a wrapped access level")
			}
		default:
			return errors.NewInvalidArgument(fmt.Sprintf("unknown access kind %q", node.Kind))
		}
	}
}

// ResolveAccess evaluates access against asOf and the fired events,
// unwrapping conditional variants until a base variant is reached. A
// pending condition resolves to Private regardless of the wrapped level's
// eventual shape. Pure: identical inputs always yield identical output.
//
// Malformed trees (unterminated chains, which ValidateAccess rejects at
// write time) resolve to Private rather than looping.
func ResolveAccess(a MemoryAccess, asOf int64, fired EventSet) ResolvedAccess {
	node := &a
	for depth := 0; depth <= DefaultMaxAccessDepth; depth++ {
		switch node.Kind {
		case AccessPublic, AccessPrivate, AccessCustom:
			return ResolvedAccess{
				Kind:            node.Kind,
				OwnerSecureCode: node.OwnerSecureCode,
				Individuals:     node.Individuals,
				Groups:          node.Groups,
			}
		case AccessScheduled:
			if asOf < node.AccessibleAfter {
				return privateResolution(node)
			}
		case AccessEventTriggered:
			if !fired[node.Trigger] {
				return privateResolution(node)
			}
		default:
			return privateResolution(node)
		}
		if node.Then == nil {
			return privateResolution(node)
		}
		node = node.Then
	}
	return privateResolution(node)
}

// privateResolution is the pre-reveal state: private, keeping the secure
// code so the owner's escape hatch still works.
func privateResolution(node *MemoryAccess) ResolvedAccess {
	return ResolvedAccess{Kind: AccessPrivate, OwnerSecureCode: node.OwnerSecureCode}
}

// CanAccess decides whether requester may read a memory with the given
// resolved access. Owners and controllers of the capsule always pass.
func CanAccess(resolved ResolvedAccess, requester Identity, c *Capsule) bool {
	if c.CanControl(requester) {
		return true
	}
	switch resolved.Kind {
	case AccessPublic:
		return true
	case AccessCustom:
		for _, ind := range resolved.Individuals {
			if ind == requester {
				return true
			}
		}
		for _, g := range resolved.Groups {
			if c.InGroup(g, requester) {
				return true
			}
		}
	}
	return false
}

// VerifySecureCode compares a presented code to the resolved access's
// owner code in constant time. An empty stored code never matches.
func VerifySecureCode(resolved ResolvedAccess, presented string) bool {
	if resolved.OwnerSecureCode == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(resolved.OwnerSecureCode), []byte(presented)) == 1
}
