package ops

import (
	"testing"

	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/vault"
)

func TestMarkEvent_RevealsEventTriggeredMemories(t *testing.T) {
	alice := testEnv("alice")
	st := store.NewMem(1 << 20)
	capsuleID := newCapsule(t, alice, st, "")

	access := &vault.MemoryAccess{
		Kind:    vault.AccessEventTriggered,
		Trigger: "eighteenth-birthday",
		Then:    &vault.MemoryAccess{Kind: vault.AccessPublic},
	}
	memoryID := createNote(t, alice, st, capsuleID, "letter", access)

	reader := testEnv("bob")
	if _, err := FetchMemory(reader, st, FetchMemoryInput{CapsuleID: capsuleID, MemoryID: memoryID}); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("pre-event fetch error = %v, want NOT_FOUND", err)
	}

	out, err := MarkEvent(alice, st, MarkEventInput{CapsuleID: capsuleID, Event: "eighteenth-birthday"})
	if err != nil {
		t.Fatalf("MarkEvent failed: %v", err)
	}
	if !out.Fired {
		t.Error("first mark should report Fired")
	}

	if _, err := FetchMemory(reader, st, FetchMemoryInput{CapsuleID: capsuleID, MemoryID: memoryID}); err != nil {
		t.Errorf("post-event fetch failed: %v", err)
	}

	// Listing flags were recomputed in the same write.
	c, _ := st.GetCapsule(capsuleID)
	if !c.Memories[memoryID].PublicNow {
		t.Error("PublicNow should be true after the event fires")
	}
}

func TestMarkEvent_Idempotent(t *testing.T) {
	alice := testEnv("alice")
	st := store.NewMem(1 << 20)
	capsuleID := newCapsule(t, alice, st, "")

	if _, err := MarkEvent(alice, st, MarkEventInput{CapsuleID: capsuleID, Event: "death"}); err != nil {
		t.Fatalf("MarkEvent failed: %v", err)
	}
	out, err := MarkEvent(alice, st, MarkEventInput{CapsuleID: capsuleID, Event: "death"})
	if err != nil {
		t.Fatalf("repeat MarkEvent failed: %v", err)
	}
	if out.Fired {
		t.Error("repeat mark should not report Fired")
	}

	c, _ := st.GetCapsule(capsuleID)
	if len(c.FiredEvents) != 1 {
		t.Errorf("FiredEvents = %v, want one entry", c.FiredEvents)
	}
}

func TestMarkEvent_Validation(t *testing.T) {
	alice := testEnv("alice")
	st := store.NewMem(1 << 20)
	capsuleID := newCapsule(t, alice, st, "")

	if _, err := MarkEvent(alice, st, MarkEventInput{CapsuleID: capsuleID, Event: "  "}); !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("blank event error = %v, want INVALID_ARGUMENT", err)
	}
	if _, err := MarkEvent(testEnv("mallory"), st, MarkEventInput{CapsuleID: capsuleID, Event: "death"}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("stranger mark error = %v, want NOT_FOUND", err)
	}
}
