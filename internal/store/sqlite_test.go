package store

import (
	"fmt"
	"testing"

	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/vault"
)

func testCapsule(id string, subject vault.Identity) *vault.Capsule {
	return &vault.Capsule{
		ID:      id,
		Subject: subject,
		Owners: map[vault.Identity]vault.MemberInfo{
			subject: {Since: 100, LastActivity: 100},
		},
		Memories:  make(map[string]*vault.Memory),
		CreatedAt: 100,
		UpdatedAt: 100,
	}
}

func TestOpen_CreatesSchema(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open(tmpDir, 1<<20)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	var version int
	if err := s.DB().QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		t.Fatalf("failed to read user_version: %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, CurrentSchemaVersion)
	}

	used, err := s.StoredBytes()
	if err != nil {
		t.Fatalf("StoredBytes failed: %v", err)
	}
	if used != 0 {
		t.Errorf("fresh store StoredBytes = %d, want 0", used)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	tmpDir := t.TempDir()

	s1, err := Open(tmpDir, 1<<20)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if err := s1.UpsertCapsule(testCapsule("01AAAAAAAAAAAAAAAAAAAAAAAA", "alice")); err != nil {
		t.Fatalf("UpsertCapsule failed: %v", err)
	}
	s1.Close()

	// Reopening an existing database must not re-run migrations or lose data.
	s2, err := Open(tmpDir, 1<<20)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	c, err := s2.GetCapsule("01AAAAAAAAAAAAAAAAAAAAAAAA")
	if err != nil {
		t.Fatalf("GetCapsule after reopen failed: %v", err)
	}
	if c.Subject != "alice" {
		t.Errorf("Subject = %q, want %q", c.Subject, "alice")
	}
}

func TestSQLite_UpsertRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	c := testCapsule("01BBBBBBBBBBBBBBBBBBBBBBBB", "alice")
	c.Memories["m1"] = &vault.Memory{
		ID:        "m1",
		CapsuleID: c.ID,
		Info:      vault.MemoryInfo{Kind: vault.KindNote, Name: "first"},
		Access:    vault.MemoryAccess{Kind: vault.AccessPrivate, OwnerSecureCode: "c0de"},
	}
	if err := s.UpsertCapsule(c); err != nil {
		t.Fatalf("UpsertCapsule failed: %v", err)
	}

	got, err := s.GetCapsule(c.ID)
	if err != nil {
		t.Fatalf("GetCapsule failed: %v", err)
	}
	m, ok := got.Memories["m1"]
	if !ok {
		t.Fatal("memory m1 missing after round trip")
	}
	if m.Info.Name != "first" || m.Access.OwnerSecureCode != "c0de" {
		t.Errorf("memory round trip lost fields: %+v", m)
	}

	// Update in place replaces the document.
	got.Memories["m1"].Info.Name = "renamed"
	if err := s.UpsertCapsule(got); err != nil {
		t.Fatalf("second UpsertCapsule failed: %v", err)
	}
	again, err := s.GetCapsule(c.ID)
	if err != nil {
		t.Fatalf("GetCapsule failed: %v", err)
	}
	if again.Memories["m1"].Info.Name != "renamed" {
		t.Error("update did not persist")
	}
}

func TestSQLite_GetMissing(t *testing.T) {
	s, err := Open(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if _, err := s.GetCapsule("nope"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetCapsule(missing) error = %v, want NOT_FOUND", err)
	}
}

func TestSQLite_DeleteCapsule(t *testing.T) {
	s, err := Open(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	c := testCapsule("01CCCCCCCCCCCCCCCCCCCCCCCC", "alice")
	if err := s.UpsertCapsule(c); err != nil {
		t.Fatalf("UpsertCapsule failed: %v", err)
	}

	deleted, err := s.DeleteCapsule(c.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteCapsule = (%v, %v), want (true, nil)", deleted, err)
	}
	if deleted, _ := s.DeleteCapsule(c.ID); deleted {
		t.Error("second delete should report false")
	}

	// Access rows go with the capsule.
	ids, err := s.AccessibleCapsules("alice")
	if err != nil {
		t.Fatalf("AccessibleCapsules failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("AccessibleCapsules after delete = %v, want empty", ids)
	}
}

func TestSQLite_ListPagination(t *testing.T) {
	s, err := Open(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("01D%023d", i)
		if err := s.UpsertCapsule(testCapsule(id, "alice")); err != nil {
			t.Fatalf("UpsertCapsule failed: %v", err)
		}
	}

	page1, err := s.ListCapsules("", 2)
	if err != nil {
		t.Fatalf("ListCapsules failed: %v", err)
	}
	if len(page1.Capsules) != 2 {
		t.Fatalf("page 1 size = %d, want 2", len(page1.Capsules))
	}
	if page1.NextCursor == "" {
		t.Fatal("page 1 should carry a next cursor")
	}

	page2, err := s.ListCapsules(page1.NextCursor, 2)
	if err != nil {
		t.Fatalf("ListCapsules page 2 failed: %v", err)
	}
	if len(page2.Capsules) != 2 {
		t.Fatalf("page 2 size = %d, want 2", len(page2.Capsules))
	}
	if page2.Capsules[0].ID <= page1.Capsules[1].ID {
		t.Error("pages overlap or are out of order")
	}

	page3, err := s.ListCapsules(page2.NextCursor, 2)
	if err != nil {
		t.Fatalf("ListCapsules page 3 failed: %v", err)
	}
	if len(page3.Capsules) != 1 || page3.NextCursor != "" {
		t.Errorf("final page = %d items, cursor %q; want 1 item, empty cursor", len(page3.Capsules), page3.NextCursor)
	}
}

func TestSQLite_AccessibleCapsules(t *testing.T) {
	s, err := Open(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	c := testCapsule("01EEEEEEEEEEEEEEEEEEEEEEEE", "alice")
	c.Controllers = map[vault.Identity]vault.MemberInfo{"carol": {Since: 100}}
	if err := s.UpsertCapsule(c); err != nil {
		t.Fatalf("UpsertCapsule failed: %v", err)
	}

	other := testCapsule("01FFFFFFFFFFFFFFFFFFFFFFFF", "bob")
	if err := s.UpsertCapsule(other); err != nil {
		t.Fatalf("UpsertCapsule failed: %v", err)
	}

	for _, tc := range []struct {
		identity vault.Identity
		want     int
	}{
		{"alice", 1},
		{"carol", 1},
		{"bob", 1},
		{"stranger", 0},
	} {
		ids, err := s.AccessibleCapsules(tc.identity)
		if err != nil {
			t.Fatalf("AccessibleCapsules(%s) failed: %v", tc.identity, err)
		}
		if len(ids) != tc.want {
			t.Errorf("AccessibleCapsules(%s) = %v, want %d ids", tc.identity, ids, tc.want)
		}
	}
}

func TestSQLite_QuotaGate(t *testing.T) {
	s, err := Open(t.TempDir(), 1000)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	// 800 used, 300 more requested: rejected without moving the counter.
	if err := s.AddStoredBytes(800); err != nil {
		t.Fatalf("AddStoredBytes(800) failed: %v", err)
	}
	if err := s.AddStoredBytes(300); !errors.Is(err, errors.ErrResourceExhausted) {
		t.Errorf("AddStoredBytes(300) error = %v, want RESOURCE_EXHAUSTED", err)
	}
	used, err := s.StoredBytes()
	if err != nil {
		t.Fatalf("StoredBytes failed: %v", err)
	}
	if used != 800 {
		t.Errorf("StoredBytes after rejected add = %d, want 800", used)
	}

	// Exactly filling the remainder succeeds.
	if err := s.AddStoredBytes(200); err != nil {
		t.Errorf("AddStoredBytes(200) failed: %v", err)
	}

	// Credits floor at zero.
	if err := s.AddStoredBytes(-5000); err != nil {
		t.Fatalf("negative AddStoredBytes failed: %v", err)
	}
	used, _ = s.StoredBytes()
	if used != 0 {
		t.Errorf("StoredBytes after over-credit = %d, want 0", used)
	}
}
