package ops

import (
	"testing"

	"github.com/hpungsan/vessel/internal/config"
	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/vault"
)

func stringPtr(s string) *string { return &s }

func TestUpdateMemory_FieldsAndRecompute(t *testing.T) {
	alice := testEnv("alice")
	st := store.NewMem(1 << 20)
	cfg := config.DefaultConfig()
	capsuleID := newCapsule(t, alice, st, "")
	memoryID := createNote(t, alice, st, capsuleID, "draft", nil)

	// Flip the policy to public; the derived listing flag follows in the
	// same write.
	access := &vault.MemoryAccess{Kind: vault.AccessPublic}
	if _, err := UpdateMemory(alice, st, cfg, UpdateMemoryInput{
		CapsuleID: capsuleID,
		MemoryID:  memoryID,
		Name:      stringPtr("published"),
		Access:    access,
	}); err != nil {
		t.Fatalf("UpdateMemory failed: %v", err)
	}

	c, _ := st.GetCapsule(capsuleID)
	m := c.Memories[memoryID]
	if m.Info.Name != "published" {
		t.Errorf("Name = %q, want published", m.Info.Name)
	}
	if !m.PublicNow {
		t.Error("PublicNow should be recomputed to true")
	}
}

func TestUpdateMemory_SecureCodeSurvivesPolicyChange(t *testing.T) {
	alice := testEnv("alice")
	st := store.NewMem(1 << 20)
	cfg := config.DefaultConfig()
	capsuleID := newCapsule(t, alice, st, "")
	memoryID := createNote(t, alice, st, capsuleID, "diary", nil)

	c, _ := st.GetCapsule(capsuleID)
	original := c.Memories[memoryID].Access.OwnerSecureCode

	access := &vault.MemoryAccess{Kind: vault.AccessCustom, Individuals: []vault.Identity{"bob"}}
	if _, err := UpdateMemory(alice, st, cfg, UpdateMemoryInput{
		CapsuleID: capsuleID, MemoryID: memoryID, Access: access,
	}); err != nil {
		t.Fatalf("UpdateMemory failed: %v", err)
	}

	c, _ = st.GetCapsule(capsuleID)
	if got := c.Memories[memoryID].Access.OwnerSecureCode; got != original {
		t.Errorf("secure code changed across policy update: %q vs %q", got, original)
	}
	// The preserved code lands on the stored copy, not the caller's value.
	if access.OwnerSecureCode != "" {
		t.Errorf("caller's access value gained a code: %q", access.OwnerSecureCode)
	}
}

func TestUpdateMemory_Validation(t *testing.T) {
	alice := testEnv("alice")
	st := store.NewMem(1 << 20)
	cfg := config.DefaultConfig()
	capsuleID := newCapsule(t, alice, st, "")
	memoryID := createNote(t, alice, st, capsuleID, "note", nil)

	if _, err := UpdateMemory(alice, st, cfg, UpdateMemoryInput{
		CapsuleID: capsuleID, MemoryID: memoryID,
	}); !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("empty update error = %v, want INVALID_ARGUMENT", err)
	}

	if _, err := UpdateMemory(alice, st, cfg, UpdateMemoryInput{
		CapsuleID: capsuleID, MemoryID: memoryID, Name: stringPtr(""),
	}); !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("empty name error = %v, want INVALID_ARGUMENT", err)
	}

	if _, err := UpdateMemory(alice, st, cfg, UpdateMemoryInput{
		CapsuleID: capsuleID, MemoryID: "missing", Name: stringPtr("x"),
	}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing memory error = %v, want NOT_FOUND", err)
	}

	bad := &vault.MemoryAccess{Kind: vault.AccessEventTriggered, Trigger: ""}
	if _, err := UpdateMemory(alice, st, cfg, UpdateMemoryInput{
		CapsuleID: capsuleID, MemoryID: memoryID, Access: bad,
	}); !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("malformed access error = %v, want INVALID_ARGUMENT", err)
	}
}

func TestUpdateMemory_ProcessingStatus(t *testing.T) {
	alice := testEnv("alice")
	st := store.NewMem(1 << 20)
	cfg := config.DefaultConfig()
	capsuleID := newCapsule(t, alice, st, "")
	memoryID := createNote(t, alice, st, capsuleID, "scan", nil)

	status := vault.ProcessingFailed
	if _, err := UpdateMemory(alice, st, cfg, UpdateMemoryInput{
		CapsuleID:       capsuleID,
		MemoryID:        memoryID,
		Processing:      &status,
		ProcessingError: stringPtr("unsupported codec"),
	}); err != nil {
		t.Fatalf("UpdateMemory failed: %v", err)
	}

	c, _ := st.GetCapsule(capsuleID)
	m := c.Memories[memoryID]
	if m.Metadata.Processing != vault.ProcessingFailed || m.Metadata.ProcessingError != "unsupported codec" {
		t.Errorf("processing = %q / %q", m.Metadata.Processing, m.Metadata.ProcessingError)
	}
}
