// Package upload implements the chunked-upload session state machine.
// A session is Active from Begin until Finish or Abort consumes it; no
// other transitions exist. Sessions are ephemeral: they live in the
// manager, not in the capsule aggregate.
package upload

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hpungsan/vessel/internal/blob"
	"github.com/hpungsan/vessel/internal/env"
	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/vault"
)

// AssetMeta is the client's declaration of the asset a session will
// become. It rides along on the session verbatim; the memory created
// from the finished upload is where declared fields get enforced.
type AssetMeta struct {
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// Session tracks one chunked upload in progress.
type Session struct {
	ID             string
	CapsuleID      string
	Caller         vault.Identity
	Meta           AssetMeta
	ExpectedChunks int
	BytesReceived  int64
	IdemKey        string
	CreatedAt      time.Time

	// chunks holds received chunk bytes by index; received is the
	// chunk-index bitset.
	chunks   [][]byte
	received []uint64
}

func (s *Session) markReceived(index int) {
	s.received[index/64] |= 1 << (uint(index) % 64)
}

func (s *Session) isReceived(index int) bool {
	return s.received[index/64]&(1<<(uint(index)%64)) != 0
}

func (s *Session) allReceived() bool {
	for i := 0; i < s.ExpectedChunks; i++ {
		if !s.isReceived(i) {
			return false
		}
	}
	return true
}

// missingChunks returns the indices not yet received.
func (s *Session) missingChunks() []int {
	var missing []int
	for i := 0; i < s.ExpectedChunks; i++ {
		if !s.isReceived(i) {
			missing = append(missing, i)
		}
	}
	return missing
}

// Result is the outcome of a finished upload.
type Result struct {
	Ref  blob.Ref `json:"ref"`
	Size int64    `json:"size"`
}

// Limits are the manager's fixed ceilings.
type Limits struct {
	// MaxSessionsPerCaller caps concurrently active sessions per
	// caller/capsule pair. Back-pressure, not auto-tuned.
	MaxSessionsPerCaller int

	// MaxChunkCount caps expected_chunk_count at Begin.
	MaxChunkCount int

	// MaxChunkBytes caps the size of a single chunk.
	MaxChunkBytes int64
}

// Manager owns the active session table. All state transitions happen
// under one mutex, so the "count active sessions, then insert" sequence
// at Begin is a single critical section.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	blobs  blob.Store
	limits Limits
}

// NewManager creates a session manager committing finished uploads to blobs.
func NewManager(blobs blob.Store, limits Limits) *Manager {
	if limits.MaxSessionsPerCaller <= 0 {
		limits.MaxSessionsPerCaller = 4
	}
	if limits.MaxChunkCount <= 0 {
		limits.MaxChunkCount = 1024
	}
	if limits.MaxChunkBytes <= 0 {
		limits.MaxChunkBytes = 2 << 20
	}
	return &Manager{
		sessions: make(map[string]*Session),
		blobs:    blobs,
		limits:   limits,
	}
}

// Begin opens a session for a chunked upload into the given capsule.
// A matching idem key for the same caller/capsule returns the pending
// session's id instead of opening a duplicate.
func (m *Manager) Begin(e env.Env, st store.Store, capsuleID string, meta AssetMeta, expectedChunks int, idemKey string) (string, error) {
	if expectedChunks <= 0 {
		return "", errors.NewInvalidArgument("expected_chunk_count must be positive")
	}
	if expectedChunks > m.limits.MaxChunkCount {
		return "", errors.NewInvalidArgument(fmt.Sprintf("expected_chunk_count exceeds ceiling of %d", m.limits.MaxChunkCount))
	}

	// The capsule must exist before a slot is taken for it.
	if _, err := st.GetCapsule(capsuleID); err != nil {
		return "", err
	}

	caller := e.Caller()

	m.mu.Lock()
	defer m.mu.Unlock()

	active := 0
	for _, s := range m.sessions {
		if s.Caller != caller || s.CapsuleID != capsuleID {
			continue
		}
		if idemKey != "" && s.IdemKey == idemKey {
			return s.ID, nil
		}
		active++
	}
	if active >= m.limits.MaxSessionsPerCaller {
		return "", errors.NewResourceExhausted(fmt.Sprintf("caller has %d active upload sessions for this capsule (max %d)", active, m.limits.MaxSessionsPerCaller))
	}

	id, err := uuid.NewRandomFromReader(e.Entropy())
	if err != nil {
		return "", errors.NewInternal(err)
	}

	s := &Session{
		ID:             id.String(),
		CapsuleID:      capsuleID,
		Caller:         caller,
		Meta:           meta,
		ExpectedChunks: expectedChunks,
		IdemKey:        idemKey,
		CreatedAt:      e.Now(),
		chunks:         make([][]byte, expectedChunks),
		received:       make([]uint64, (expectedChunks+63)/64),
	}
	m.sessions[s.ID] = s
	return s.ID, nil
}

// PutChunk records one chunk. Writing the same index twice overwrites
// idempotently, so client retries are safe.
func (m *Manager) PutChunk(sessionID string, index int, data []byte) error {
	if len(data) == 0 {
		return errors.NewInvalidArgument("chunk must not be empty")
	}
	if int64(len(data)) > m.limits.MaxChunkBytes {
		return errors.NewInvalidArgument(fmt.Sprintf("chunk exceeds max size of %d bytes", m.limits.MaxChunkBytes))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return errors.NewNotFound("upload session", sessionID)
	}
	if index < 0 || index >= s.ExpectedChunks {
		return errors.NewInvalidArgument(fmt.Sprintf("chunk index %d out of range [0, %d)", index, s.ExpectedChunks))
	}

	if s.isReceived(index) {
		s.BytesReceived -= int64(len(s.chunks[index]))
	}
	s.chunks[index] = append([]byte(nil), data...)
	s.markReceived(index)
	s.BytesReceived += int64(len(data))
	return nil
}

// Finish verifies completeness and content integrity, commits the
// assembled bytes to the blob store, and consumes the session. On an
// integrity mismatch the session stays active and the blob store is
// untouched; the client can re-send chunks or abort.
func (m *Manager) Finish(sessionID string, expectedHash string, expectedSize int64) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, errors.NewNotFound("upload session", sessionID)
	}

	if missing := s.missingChunks(); len(missing) > 0 {
		return nil, errors.NewInvalidArgument(fmt.Sprintf("upload incomplete: %d of %d chunks missing", len(missing), s.ExpectedChunks))
	}

	assembled := make([]byte, 0, s.BytesReceived)
	for _, chunk := range s.chunks {
		assembled = append(assembled, chunk...)
	}

	if expectedSize > 0 && int64(len(assembled)) != expectedSize {
		return nil, errors.NewInvalidArgument(fmt.Sprintf("assembled size %d does not match expected size %d", len(assembled), expectedSize))
	}

	// Integrity gate: the recomputed hash must match before any bytes
	// are committed.
	hash := blob.HashBytes(assembled)
	if expectedHash == "" || hash != expectedHash {
		return nil, errors.NewInvalidArgument("content hash mismatch")
	}

	ref, err := m.blobs.Put(assembled)
	if err != nil {
		return nil, err
	}

	delete(m.sessions, sessionID)
	return &Result{Ref: ref, Size: ref.Size}, nil
}

// Abort discards any partially received bytes and frees the caller's
// concurrency slot. Aborting an unknown (already finished or aborted)
// session is a no-op.
func (m *Manager) Abort(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// ActiveCount returns the caller's active session count for a capsule.
func (m *Manager) ActiveCount(caller vault.Identity, capsuleID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, s := range m.sessions {
		if s.Caller == caller && s.CapsuleID == capsuleID {
			count++
		}
	}
	return count
}

// Get returns a snapshot of the session's public fields, if active.
func (m *Manager) Get(sessionID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	snapshot := *s
	snapshot.chunks = nil
	snapshot.received = nil
	return snapshot, true
}

// Sweep aborts sessions created before the cutoff and returns how many
// were removed. Session expiry is host policy, not a core invariant;
// hosts that want a timeout call this on their own schedule.
func (m *Manager) Sweep(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.CreatedAt.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}
