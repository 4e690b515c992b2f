// Package env provides the host capability the core runs against: caller
// identity, current time, and entropy. The core never reads a system
// clock or ambient identity directly, so the same logic runs under the
// production host and the deterministic test harness without change.
package env

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/hpungsan/vessel/internal/vault"
)

// Env is the host-provided execution environment.
type Env interface {
	// Caller returns the authenticated principal issuing the call.
	Caller() vault.Identity

	// Now returns the current time.
	Now() time.Time

	// Entropy returns the random source for id and code generation.
	Entropy() io.Reader
}

// System is the production environment: real clock, crypto randomness,
// and a caller fixed by the transport at construction.
type System struct {
	caller vault.Identity
}

// NewSystem creates a production environment for the given caller.
func NewSystem(caller vault.Identity) *System {
	return &System{caller: caller}
}

func (s *System) Caller() vault.Identity { return s.caller }
func (s *System) Now() time.Time         { return time.Now() }
func (s *System) Entropy() io.Reader     { return rand.Reader }

// Fixed is a deterministic environment for tests: a fixed caller, a
// settable clock, and a caller-supplied entropy source.
type Fixed struct {
	CallerID vault.Identity
	Time     time.Time
	Rand     io.Reader
}

func (f *Fixed) Caller() vault.Identity { return f.CallerID }
func (f *Fixed) Now() time.Time         { return f.Time }

func (f *Fixed) Entropy() io.Reader {
	if f.Rand != nil {
		return f.Rand
	}
	return rand.Reader
}

// Advance moves the fixed clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.Time = f.Time.Add(d)
}
