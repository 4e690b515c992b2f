package vault

import (
	"bytes"
	"testing"
	"time"

	"github.com/hpungsan/vessel/internal/blob"
)

func testTime() time.Time {
	return time.Unix(1700000000, 0)
}

func TestCapsule_TouchMonotonic(t *testing.T) {
	c := &Capsule{UpdatedAt: 500}

	c.Touch(600)
	if c.UpdatedAt != 600 {
		t.Errorf("UpdatedAt = %d, want 600", c.UpdatedAt)
	}

	// A stepped-back clock must not move UpdatedAt backwards.
	c.Touch(400)
	if c.UpdatedAt != 600 {
		t.Errorf("UpdatedAt = %d after backwards touch, want 600", c.UpdatedAt)
	}
}

func TestCapsule_RecordActivity(t *testing.T) {
	c := baseCapsule()
	c.RecordActivity("alice", 777)
	if got := c.Owners["alice"].LastActivity; got != 777 {
		t.Errorf("owner LastActivity = %d, want 777", got)
	}

	// Strangers leave no trace.
	c.RecordActivity("mallory", 888)
	if _, ok := c.Owners["mallory"]; ok {
		t.Error("RecordActivity must not add identities")
	}
}

func TestCapsule_EventFired(t *testing.T) {
	c := baseCapsule()
	c.FiredEvents = []string{"death"}

	if !c.EventFired("death") {
		t.Error("recorded event should report fired")
	}
	if c.EventFired("graduation") {
		t.Error("unrecorded event should not report fired")
	}
	set := c.FiredEventSet()
	if !set["death"] || set["graduation"] {
		t.Errorf("FiredEventSet = %v", set)
	}
}

func TestAsset_ValidateExactlyOneSource(t *testing.T) {
	cases := []struct {
		name    string
		asset   Asset
		wantErr bool
	}{
		{"inline", Asset{Purpose: AssetOriginal, Inline: []byte("x")}, false},
		{"blob", Asset{Purpose: AssetOriginal, Blob: &blob.Ref{BlobID: "ab", Size: 1}}, false},
		{"external", Asset{Purpose: AssetOriginal, External: &ExternalRef{Backend: "s3", Location: "s3://b/k"}}, false},
		{"no source", Asset{Purpose: AssetOriginal}, true},
		{"two sources", Asset{Purpose: AssetOriginal, Inline: []byte("x"), External: &ExternalRef{Location: "l"}}, true},
		{"external without location", Asset{Purpose: AssetOriginal, External: &ExternalRef{Backend: "s3"}}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.asset.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestMemory_InlineBytesAndRefs(t *testing.T) {
	m := &Memory{
		Assets: []Asset{
			{Purpose: AssetOriginal, Inline: []byte("hello")},
			{Purpose: AssetThumbnail, Blob: &blob.Ref{BlobID: "abcd", Size: 42}},
		},
	}

	if got := m.InlineBytes(); got != 5 {
		t.Errorf("InlineBytes = %d, want 5", got)
	}
	refs := m.InternalRefs()
	if len(refs) != 1 || refs[0].BlobID != "abcd" {
		t.Errorf("InternalRefs = %v", refs)
	}
}

func TestMemory_RecomputeSummary(t *testing.T) {
	m := &Memory{
		Access: MemoryAccess{
			Kind:    AccessEventTriggered,
			Trigger: "death",
			Then:    &MemoryAccess{Kind: AccessPublic},
		},
	}

	m.RecomputeSummary(100, nil)
	if m.PublicNow {
		t.Error("PublicNow should be false before the event fires")
	}

	m.RecomputeSummary(100, EventSet{"death": true})
	if !m.PublicNow {
		t.Error("PublicNow should be true after the event fires")
	}
}

func TestNewID_ULIDShape(t *testing.T) {
	id, err := NewID(testTime(), bytes.NewReader(make([]byte, 64)))
	if err != nil {
		t.Fatalf("NewID failed: %v", err)
	}
	if len(id) != 26 {
		t.Errorf("id length = %d, want 26 (ULID)", len(id))
	}
}

func TestNewSecureCode_Hex(t *testing.T) {
	code, err := NewSecureCode(bytes.NewReader(make([]byte, 16)))
	if err != nil {
		t.Fatalf("NewSecureCode failed: %v", err)
	}
	if len(code) != 32 {
		t.Errorf("code length = %d, want 32 hex chars", len(code))
	}
}
