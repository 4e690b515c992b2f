package store

import (
	"testing"

	"github.com/hpungsan/vessel/internal/errors"
)

func TestMem_Isolation(t *testing.T) {
	m := NewMem(1 << 20)

	c := testCapsule("01GGGGGGGGGGGGGGGGGGGGGGGG", "alice")
	if err := m.UpsertCapsule(c); err != nil {
		t.Fatalf("UpsertCapsule failed: %v", err)
	}

	// Mutating a fetched capsule must not change stored state until it is
	// upserted again.
	got, err := m.GetCapsule(c.ID)
	if err != nil {
		t.Fatalf("GetCapsule failed: %v", err)
	}
	got.Subject = "mallory"

	fresh, err := m.GetCapsule(c.ID)
	if err != nil {
		t.Fatalf("GetCapsule failed: %v", err)
	}
	if fresh.Subject != "alice" {
		t.Errorf("stored subject = %q after caller-side mutation, want %q", fresh.Subject, "alice")
	}
}

func TestMem_GetMissing(t *testing.T) {
	m := NewMem(1 << 20)
	if _, err := m.GetCapsule("nope"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetCapsule(missing) error = %v, want NOT_FOUND", err)
	}
}

func TestMem_QuotaGate(t *testing.T) {
	m := NewMem(100)

	if err := m.AddStoredBytes(80); err != nil {
		t.Fatalf("AddStoredBytes(80) failed: %v", err)
	}
	if err := m.AddStoredBytes(30); !errors.Is(err, errors.ErrResourceExhausted) {
		t.Errorf("over-quota add error = %v, want RESOURCE_EXHAUSTED", err)
	}
	used, _ := m.StoredBytes()
	if used != 80 {
		t.Errorf("StoredBytes after rejected add = %d, want 80", used)
	}
	if err := m.AddStoredBytes(20); err != nil {
		t.Errorf("AddStoredBytes(20) failed: %v", err)
	}
	if err := m.AddStoredBytes(-500); err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	used, _ = m.StoredBytes()
	if used != 0 {
		t.Errorf("StoredBytes after over-credit = %d, want 0", used)
	}
}

func TestMem_ListAndAccessible(t *testing.T) {
	m := NewMem(1 << 20)

	a := testCapsule("01H00000000000000000000001", "alice")
	b := testCapsule("01H00000000000000000000002", "bob")
	if err := m.UpsertCapsule(a); err != nil {
		t.Fatalf("UpsertCapsule failed: %v", err)
	}
	if err := m.UpsertCapsule(b); err != nil {
		t.Fatalf("UpsertCapsule failed: %v", err)
	}

	page, err := m.ListCapsules("", 1)
	if err != nil {
		t.Fatalf("ListCapsules failed: %v", err)
	}
	if len(page.Capsules) != 1 || page.NextCursor != a.ID {
		t.Errorf("page = %d items, cursor %q; want 1 item, cursor %q", len(page.Capsules), page.NextCursor, a.ID)
	}

	ids, err := m.AccessibleCapsules("alice")
	if err != nil {
		t.Fatalf("AccessibleCapsules failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != a.ID {
		t.Errorf("AccessibleCapsules(alice) = %v, want [%s]", ids, a.ID)
	}
}
