package ops

import (
	"testing"

	"github.com/hpungsan/vessel/internal/blob"
	"github.com/hpungsan/vessel/internal/config"
	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/vault"
)

func TestCreateMemory_InlineHappyPath(t *testing.T) {
	e := testEnv("alice")
	st := store.NewMem(1 << 20)
	cfg := config.DefaultConfig()
	capsuleID := newCapsule(t, e, st, "")

	out, err := CreateMemory(e, st, cfg, CreateMemoryInput{
		CapsuleID:   capsuleID,
		Kind:        vault.KindNote,
		Name:        "recipe",
		ContentType: "text/markdown",
		Inline:      []byte("# Grandma's bread\n"),
		Tags:        []string{" baking ", "", "family"},
	})
	if err != nil {
		t.Fatalf("CreateMemory failed: %v", err)
	}
	if len(out.ID) != 26 {
		t.Errorf("ID length = %d, want 26 (ULID)", len(out.ID))
	}

	c, err := st.GetCapsule(capsuleID)
	if err != nil {
		t.Fatalf("GetCapsule failed: %v", err)
	}
	m := c.Memories[out.ID]
	if m == nil {
		t.Fatal("memory missing from capsule")
	}
	if m.Access.Kind != vault.AccessPrivate {
		t.Errorf("default access kind = %q, want private", m.Access.Kind)
	}
	if m.Access.OwnerSecureCode == "" {
		t.Error("default access should carry a generated secure code")
	}
	if len(m.Metadata.Tags) != 2 {
		t.Errorf("tags = %v, want cleaned pair", m.Metadata.Tags)
	}
	if m.Metadata.Processing != vault.ProcessingPending {
		t.Errorf("processing = %q, want pending", m.Metadata.Processing)
	}
	if c.InlineBytesUsed != int64(len("# Grandma's bread\n")) {
		t.Errorf("InlineBytesUsed = %d", c.InlineBytesUsed)
	}
	used, _ := st.StoredBytes()
	if used != c.InlineBytesUsed {
		t.Errorf("StoredBytes = %d, want %d", used, c.InlineBytesUsed)
	}
}

func TestCreateMemory_SourceExclusivity(t *testing.T) {
	e := testEnv("alice")
	st := store.NewMem(1 << 20)
	cfg := config.DefaultConfig()
	capsuleID := newCapsule(t, e, st, "")

	base := CreateMemoryInput{CapsuleID: capsuleID, Kind: vault.KindImage, Name: "photo"}

	// Zero sources.
	if _, err := CreateMemory(e, st, cfg, base); !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("no source error = %v, want INVALID_ARGUMENT", err)
	}

	// Two sources.
	two := base
	two.Inline = []byte("x")
	two.External = &vault.ExternalRef{Backend: "s3", Location: "s3://b/k", Size: 1}
	if _, err := CreateMemory(e, st, cfg, two); !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("two sources error = %v, want INVALID_ARGUMENT", err)
	}
}

func TestCreateMemory_ExternalSizeMismatch(t *testing.T) {
	e := testEnv("alice")
	st := store.NewMem(1 << 20)
	cfg := config.DefaultConfig()
	capsuleID := newCapsule(t, e, st, "")

	input := CreateMemoryInput{
		CapsuleID:    capsuleID,
		Kind:         vault.KindVideo,
		Name:         "interview",
		External:     &vault.ExternalRef{Backend: "arweave", Location: "ar://tx", Size: 100},
		ExternalSize: 200,
	}
	if _, err := CreateMemory(e, st, cfg, input); !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("size mismatch error = %v, want INVALID_ARGUMENT", err)
	}

	// External bytes are never charged against the quota.
	input.ExternalSize = 100
	out, err := CreateMemory(e, st, cfg, input)
	if err != nil {
		t.Fatalf("CreateMemory failed: %v", err)
	}
	used, _ := st.StoredBytes()
	if used != 0 {
		t.Errorf("StoredBytes = %d for external memory, want 0", used)
	}
	c, _ := st.GetCapsule(capsuleID)
	if c.Memories[out.ID].Metadata.Bytes != 100 {
		t.Errorf("Metadata.Bytes = %d, want 100", c.Memories[out.ID].Metadata.Bytes)
	}
}

func TestCreateMemory_InlineCeiling(t *testing.T) {
	e := testEnv("alice")
	st := store.NewMem(1 << 20)
	cfg := config.DefaultConfig()
	cfg.MaxInlineAssetBytes = 16
	capsuleID := newCapsule(t, e, st, "")

	if _, err := CreateMemory(e, st, cfg, CreateMemoryInput{
		CapsuleID: capsuleID, Kind: vault.KindNote, Name: "big", Inline: make([]byte, 17),
	}); !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("over-ceiling inline error = %v, want INVALID_ARGUMENT", err)
	}
}

func TestCreateMemory_QuotaScenario(t *testing.T) {
	e := testEnv("alice")
	st := store.NewMem(1000)
	cfg := config.DefaultConfig()
	capsuleID := newCapsule(t, e, st, "")

	if _, err := CreateMemory(e, st, cfg, CreateMemoryInput{
		CapsuleID: capsuleID, Kind: vault.KindNote, Name: "a", Inline: make([]byte, 800),
	}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	// 800 of 1000 used; 300 more must be rejected without moving the counter.
	if _, err := CreateMemory(e, st, cfg, CreateMemoryInput{
		CapsuleID: capsuleID, Kind: vault.KindNote, Name: "b", Inline: make([]byte, 300),
	}); !errors.Is(err, errors.ErrResourceExhausted) {
		t.Errorf("over-quota create error = %v, want RESOURCE_EXHAUSTED", err)
	}
	used, _ := st.StoredBytes()
	if used != 800 {
		t.Errorf("StoredBytes after rejection = %d, want 800", used)
	}

	if _, err := CreateMemory(e, st, cfg, CreateMemoryInput{
		CapsuleID: capsuleID, Kind: vault.KindNote, Name: "c", Inline: make([]byte, 200),
	}); err != nil {
		t.Errorf("create filling the remainder failed: %v", err)
	}
}

func TestCreateMemory_IdempotencyKey(t *testing.T) {
	e := testEnv("alice")
	st := store.NewMem(1 << 20)
	cfg := config.DefaultConfig()
	capsuleID := newCapsule(t, e, st, "")

	input := CreateMemoryInput{
		CapsuleID:      capsuleID,
		Kind:           vault.KindNote,
		Name:           "letter",
		Inline:         []byte("dear future"),
		IdempotencyKey: "create-letter-1",
	}

	first, err := CreateMemory(e, st, cfg, input)
	if err != nil {
		t.Fatalf("CreateMemory failed: %v", err)
	}
	second, err := CreateMemory(e, st, cfg, input)
	if err != nil {
		t.Fatalf("repeat CreateMemory failed: %v", err)
	}
	if !second.Existing || second.ID != first.ID {
		t.Errorf("repeat = (%s, existing=%v), want original id", second.ID, second.Existing)
	}

	// Only one memory, charged once.
	c, _ := st.GetCapsule(capsuleID)
	if len(c.Memories) != 1 {
		t.Errorf("memory count = %d, want 1", len(c.Memories))
	}
	used, _ := st.StoredBytes()
	if used != int64(len("dear future")) {
		t.Errorf("StoredBytes = %d, want charged once", used)
	}

	// Same key, different payload: conflict.
	changed := input
	changed.Name = "different"
	if _, err := CreateMemory(e, st, cfg, changed); !errors.Is(err, errors.ErrConflict) {
		t.Errorf("key reuse error = %v, want CONFLICT", err)
	}

	// Same key and descriptive fields over different content is a reused
	// key too, not a replay.
	reworded := input
	reworded.Inline = []byte("entirely different content")
	if _, err := CreateMemory(e, st, cfg, reworded); !errors.Is(err, errors.ErrConflict) {
		t.Errorf("content change error = %v, want CONFLICT", err)
	}

	// Swapping the source shape under the same key conflicts as well.
	swapped := input
	swapped.Inline = nil
	swapped.External = &vault.ExternalRef{Backend: "s3", Location: "s3://b/k", Size: 11}
	if _, err := CreateMemory(e, st, cfg, swapped); !errors.Is(err, errors.ErrConflict) {
		t.Errorf("source swap error = %v, want CONFLICT", err)
	}
}

func TestCreateMemory_AccessValidatedAtWrite(t *testing.T) {
	e := testEnv("alice")
	st := store.NewMem(1 << 20)
	cfg := config.DefaultConfig()
	capsuleID := newCapsule(t, e, st, "")

	bad := &vault.MemoryAccess{Kind: vault.AccessScheduled, AccessibleAfter: 1000}
	if _, err := CreateMemory(e, st, cfg, CreateMemoryInput{
		CapsuleID: capsuleID, Kind: vault.KindNote, Name: "x", Inline: []byte("y"), Access: bad,
	}); !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("malformed access error = %v, want INVALID_ARGUMENT", err)
	}

	// A supplied access without a code gets one generated.
	custom := &vault.MemoryAccess{Kind: vault.AccessCustom, Individuals: []vault.Identity{"bob"}}
	out, err := CreateMemory(e, st, cfg, CreateMemoryInput{
		CapsuleID: capsuleID, Kind: vault.KindNote, Name: "shared", Inline: []byte("hi"), Access: custom,
	})
	if err != nil {
		t.Fatalf("CreateMemory failed: %v", err)
	}
	c, _ := st.GetCapsule(capsuleID)
	if c.Memories[out.ID].Access.OwnerSecureCode == "" {
		t.Error("owner secure code should be backfilled")
	}
	// The backfill lands on the stored copy, not the caller's value.
	if custom.OwnerSecureCode != "" {
		t.Errorf("caller's access value gained a code: %q", custom.OwnerSecureCode)
	}
}

func TestCreateMemory_StrangerCannotWrite(t *testing.T) {
	alice := testEnv("alice")
	st := store.NewMem(1 << 20)
	cfg := config.DefaultConfig()
	capsuleID := newCapsule(t, alice, st, "")

	if _, err := CreateMemory(testEnv("mallory"), st, cfg, CreateMemoryInput{
		CapsuleID: capsuleID, Kind: vault.KindNote, Name: "x", Inline: []byte("y"),
	}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("stranger create error = %v, want NOT_FOUND", err)
	}
}

func TestCreateMemory_BlobRefSource(t *testing.T) {
	e := testEnv("alice")
	st := store.NewMem(1 << 20)
	cfg := config.DefaultConfig()
	blobs := newBlobStore(t, st)
	capsuleID := newCapsule(t, e, st, "")

	ref, err := blobs.Put([]byte("scanned photo"))
	if err != nil {
		t.Fatalf("blob Put failed: %v", err)
	}

	out, err := CreateMemory(e, st, cfg, CreateMemoryInput{
		CapsuleID: capsuleID, Kind: vault.KindImage, Name: "1974", BlobRef: &ref,
	})
	if err != nil {
		t.Fatalf("CreateMemory failed: %v", err)
	}

	c, _ := st.GetCapsule(capsuleID)
	m := c.Memories[out.ID]
	if m.Metadata.Bytes != ref.Size {
		t.Errorf("Metadata.Bytes = %d, want %d", m.Metadata.Bytes, ref.Size)
	}
	refs := m.InternalRefs()
	if len(refs) != 1 || refs[0] != (blob.Ref{BlobID: ref.BlobID, Size: ref.Size, ContentHash: ref.ContentHash}) {
		t.Errorf("InternalRefs = %v", refs)
	}
	// Blob bytes were charged at Put time; the record itself adds nothing.
	if c.InlineBytesUsed != 0 {
		t.Errorf("InlineBytesUsed = %d for blob-backed memory, want 0", c.InlineBytesUsed)
	}
}
