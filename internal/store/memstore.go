package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/vault"
)

// Mem is an in-memory Store for the deterministic test harness. It
// round-trips capsules through JSON so callers get the same isolation a
// durable medium gives: mutating a returned capsule changes nothing
// until it is upserted.
type Mem struct {
	mu          sync.Mutex
	capsules    map[string]string // id -> JSON doc
	storedBytes int64
	quota       int64
}

// NewMem creates an in-memory store with the given quota.
func NewMem(quotaBytes int64) *Mem {
	return &Mem{
		capsules: make(map[string]string),
		quota:    quotaBytes,
	}
}

// GetCapsule retrieves a capsule by id.
func (m *Mem) GetCapsule(id string) (*vault.Capsule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.capsules[id]
	if !ok {
		return nil, errors.NewNotFound("capsule", id)
	}
	var c vault.Capsule
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &c, nil
}

// UpsertCapsule writes the whole aggregate.
func (m *Mem) UpsertCapsule(c *vault.Capsule) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return errors.NewInternal(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.capsules[c.ID] = string(doc)
	return nil
}

// DeleteCapsule removes the capsule, reporting whether it existed.
func (m *Mem) DeleteCapsule(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.capsules[id]
	delete(m.capsules, id)
	return ok, nil
}

// ListCapsules scans capsules in id order from cursor (exclusive).
func (m *Mem) ListCapsules(cursor string, limit int) (*Page, error) {
	if limit <= 0 {
		limit = 20
	}

	m.mu.Lock()
	ids := make([]string, 0, len(m.capsules))
	for id := range m.capsules {
		if id > cursor {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()
	sort.Strings(ids)

	page := &Page{}
	for _, id := range ids {
		if len(page.Capsules) == limit {
			page.NextCursor = page.Capsules[limit-1].ID
			break
		}
		c, err := m.GetCapsule(id)
		if err != nil {
			return nil, err
		}
		page.Capsules = append(page.Capsules, c)
	}
	return page, nil
}

// AccessibleCapsules returns ids of capsules visible to identity.
func (m *Mem) AccessibleCapsules(identity vault.Identity) ([]string, error) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.capsules))
	for id := range m.capsules {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)

	var visible []string
	for _, id := range ids {
		c, err := m.GetCapsule(id)
		if err != nil {
			return nil, err
		}
		if c.CanSee(identity) {
			visible = append(visible, id)
		}
	}
	return visible, nil
}

// AddStoredBytes moves the global counter by delta under the store lock,
// so the check and the commit are a single critical section.
func (m *Mem) AddStoredBytes(delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if delta >= 0 {
		if m.storedBytes+delta > m.quota {
			return errors.NewResourceExhausted(fmt.Sprintf("storage quota of %d bytes exceeded", m.quota))
		}
		m.storedBytes += delta
		return nil
	}

	m.storedBytes += delta
	if m.storedBytes < 0 {
		m.storedBytes = 0
	}
	return nil
}

// StoredBytes returns the counter's current value.
func (m *Mem) StoredBytes() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.storedBytes, nil
}
