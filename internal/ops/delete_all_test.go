package ops

import (
	"fmt"
	"testing"

	"github.com/hpungsan/vessel/internal/blob"
	"github.com/hpungsan/vessel/internal/config"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/vault"
)

// reclaimFailStore delegates to a real blob store but fails every Delete.
type reclaimFailStore struct {
	blob.Store
}

func (reclaimFailStore) Delete(blob.Ref) (bool, error) {
	return false, fmt.Errorf("blob backend unavailable")
}

func TestDeleteAll_WipesEverything(t *testing.T) {
	alice := testEnv("alice")
	st := store.NewMem(1 << 20)
	blobs := newBlobStore(t, st)
	cfg := config.DefaultConfig()
	capsuleID := newCapsule(t, alice, st, "")

	for i := 0; i < 4; i++ {
		createNote(t, alice, st, capsuleID, fmt.Sprintf("note-%d", i), nil)
	}
	ref, err := blobs.Put([]byte("blob content"))
	if err != nil {
		t.Fatalf("blob Put failed: %v", err)
	}
	if _, err := CreateMemory(alice, st, cfg, CreateMemoryInput{
		CapsuleID: capsuleID, Kind: vault.KindVideo, Name: "clip", BlobRef: &ref,
	}); err != nil {
		t.Fatalf("CreateMemory failed: %v", err)
	}

	out, err := DeleteAll(alice, st, blobs, DeleteAllInput{CapsuleID: capsuleID})
	if err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	// The count is always the prior total: the wipe is all-or-nothing.
	if out.Deleted != 5 {
		t.Errorf("Deleted = %d, want 5", out.Deleted)
	}

	c, _ := st.GetCapsule(capsuleID)
	if len(c.Memories) != 0 || c.InlineBytesUsed != 0 {
		t.Errorf("capsule after wipe: %d memories, %d inline bytes", len(c.Memories), c.InlineBytesUsed)
	}
	if _, ok, _ := blobs.Get(ref); ok {
		t.Error("internal blob should be reclaimed by the wipe")
	}
	used, _ := st.StoredBytes()
	if used != 0 {
		t.Errorf("StoredBytes after wipe = %d, want 0", used)
	}
}

func TestDeleteAll_BlobReclaimFailureCannotBreakWipe(t *testing.T) {
	alice := testEnv("alice")
	st := store.NewMem(1 << 20)
	blobs := newBlobStore(t, st)
	cfg := config.DefaultConfig()
	capsuleID := newCapsule(t, alice, st, "")

	createNote(t, alice, st, capsuleID, "note-a", nil)
	createNote(t, alice, st, capsuleID, "note-b", nil)
	ref, err := blobs.Put([]byte("blob content"))
	if err != nil {
		t.Fatalf("blob Put failed: %v", err)
	}
	if _, err := CreateMemory(alice, st, cfg, CreateMemoryInput{
		CapsuleID: capsuleID, Kind: vault.KindVideo, Name: "clip", BlobRef: &ref,
	}); err != nil {
		t.Fatalf("CreateMemory failed: %v", err)
	}

	// Reclaim fails for every ref; the wipe must not notice.
	out, err := DeleteAll(alice, st, reclaimFailStore{blobs}, DeleteAllInput{CapsuleID: capsuleID})
	if err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if out.Deleted != 3 {
		t.Errorf("Deleted = %d, want 3", out.Deleted)
	}

	c, _ := st.GetCapsule(capsuleID)
	if len(c.Memories) != 0 || c.InlineBytesUsed != 0 {
		t.Errorf("capsule after wipe: %d memories, %d inline bytes", len(c.Memories), c.InlineBytesUsed)
	}

	// The stranded blob is the only residue: still present, still charged.
	if _, ok, _ := blobs.Get(ref); !ok {
		t.Error("blob should remain when reclaim fails")
	}
	used, _ := st.StoredBytes()
	if used != ref.Size {
		t.Errorf("StoredBytes = %d, want %d (stranded blob only)", used, ref.Size)
	}
}

func TestDeleteAll_EmptyCapsule(t *testing.T) {
	alice := testEnv("alice")
	st := store.NewMem(1 << 20)
	blobs := newBlobStore(t, st)
	capsuleID := newCapsule(t, alice, st, "")

	out, err := DeleteAll(alice, st, blobs, DeleteAllInput{CapsuleID: capsuleID})
	if err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if out.Deleted != 0 {
		t.Errorf("Deleted = %d, want 0", out.Deleted)
	}
}

func TestDeleteAll_ClearsGalleryRefs(t *testing.T) {
	alice := testEnv("alice")
	st := store.NewMem(1 << 20)
	blobs := newBlobStore(t, st)
	capsuleID := newCapsule(t, alice, st, "")
	memoryID := createNote(t, alice, st, capsuleID, "note", nil)

	c, _ := st.GetCapsule(capsuleID)
	c.Galleries = map[string]*vault.Gallery{
		"g1": {ID: "g1", Title: "album", MemoryIDs: []string{memoryID}},
	}
	if err := st.UpsertCapsule(c); err != nil {
		t.Fatalf("UpsertCapsule failed: %v", err)
	}

	if _, err := DeleteAll(alice, st, blobs, DeleteAllInput{CapsuleID: capsuleID}); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}

	c, _ = st.GetCapsule(capsuleID)
	if g := c.Galleries["g1"]; g == nil || len(g.MemoryIDs) != 0 {
		t.Errorf("gallery should survive empty, got %+v", c.Galleries["g1"])
	}
}
