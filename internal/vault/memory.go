package vault

import (
	"github.com/hpungsan/vessel/internal/blob"
	"github.com/hpungsan/vessel/internal/errors"
)

// MemoryKind is the content type tag of a memory.
type MemoryKind string

const (
	KindImage    MemoryKind = "image"
	KindVideo    MemoryKind = "video"
	KindAudio    MemoryKind = "audio"
	KindDocument MemoryKind = "document"
	KindNote     MemoryKind = "note"
)

// KnownKinds lists all valid memory kinds.
var KnownKinds = []MemoryKind{KindImage, KindVideo, KindAudio, KindDocument, KindNote}

// ValidKind reports whether k is a known memory kind.
func ValidKind(k MemoryKind) bool {
	for _, known := range KnownKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ProcessingStatus tracks derivative generation for a memory's assets.
type ProcessingStatus string

const (
	ProcessingPending  ProcessingStatus = "pending"
	ProcessingComplete ProcessingStatus = "complete"
	ProcessingFailed   ProcessingStatus = "failed"
)

// MemoryInfo carries the display-facing fields of a memory.
type MemoryInfo struct {
	Kind        MemoryKind `json:"kind"`
	Name        string     `json:"name"`
	ContentType string     `json:"content_type"`

	// CreatedAt/UpdatedAt track the record; UploadedAt tracks when the
	// content landed in storage
	CreatedAt  int64 `json:"created_at"`
	UpdatedAt  int64 `json:"updated_at"`
	UploadedAt int64 `json:"uploaded_at"`

	// DateOfMemory is when the depicted event occurred, distinct from
	// upload time (a 1974 photo scanned in 2026)
	DateOfMemory *int64 `json:"date_of_memory,omitempty"`
}

// MemoryMetadata carries type-specific fields over a common base.
type MemoryMetadata struct {
	// Base fields, present for every kind
	Bytes           int64            `json:"bytes"`
	MimeType        string           `json:"mime_type"`
	OriginalName    string           `json:"original_name,omitempty"`
	Tags            []string         `json:"tags,omitempty"`
	Processing      ProcessingStatus `json:"processing,omitempty"`
	ProcessingError string           `json:"processing_error,omitempty"`

	// Type-specific fields
	Width      int   `json:"width,omitempty"`       // image, video
	Height     int   `json:"height,omitempty"`      // image, video
	DurationMS int64 `json:"duration_ms,omitempty"` // audio, video
	PageCount  int   `json:"page_count,omitempty"`  // document
}

// AssetPurpose distinguishes the stored artifacts of one memory.
type AssetPurpose string

const (
	AssetOriginal  AssetPurpose = "original"
	AssetDisplay   AssetPurpose = "display"
	AssetThumbnail AssetPurpose = "thumbnail"
)

// ExternalRef points at bytes owned by a third party (S3, Arweave, IPFS).
// The core stores the reference but never fetches or deletes the bytes.
type ExternalRef struct {
	Backend  string `json:"backend"`
	Location string `json:"location"`
	Size     int64  `json:"size,omitempty"`
	Hash     string `json:"hash,omitempty"`
}

// Asset is one stored artifact of a memory. Exactly one of Inline, Blob,
// or External is set; which one is recorded in the asset's shape, checked
// by Validate.
type Asset struct {
	Purpose AssetPurpose `json:"purpose"`

	// Inline holds bytes embedded directly in the capsule, counted
	// against InlineBytesUsed
	Inline []byte `json:"inline,omitempty"`

	// Blob references bytes in the internal blob store
	Blob *blob.Ref `json:"blob,omitempty"`

	// External references bytes this service does not own
	External *ExternalRef `json:"external,omitempty"`
}

// Validate checks the one-of-three shape invariant.
func (a *Asset) Validate() error {
	sources := 0
	if len(a.Inline) > 0 {
		sources++
	}
	if a.Blob != nil {
		sources++
	}
	if a.External != nil {
		sources++
	}
	if sources != 1 {
		return errors.NewInvalidArgument("asset must have exactly one source: inline bytes, internal blob ref, or external ref")
	}
	if a.External != nil && a.External.Location == "" {
		return errors.NewInvalidArgument("external asset requires a location")
	}
	return nil
}

// Size returns the asset's byte size as far as the core knows it.
func (a *Asset) Size() int64 {
	switch {
	case len(a.Inline) > 0:
		return int64(len(a.Inline))
	case a.Blob != nil:
		return a.Blob.Size
	case a.External != nil:
		return a.External.Size
	}
	return 0
}

// Memory is one piece of content plus its metadata and access policy.
type Memory struct {
	// ID is a ULID, unique within the capsule, always server-generated
	ID string `json:"id"`

	// CapsuleID back-references the owning capsule; a memory never
	// exists outside exactly one capsule
	CapsuleID string `json:"capsule_id"`

	Info     MemoryInfo     `json:"info"`
	Metadata MemoryMetadata `json:"metadata"`

	// Access is the single source of truth for who may read this memory
	Access MemoryAccess `json:"access"`

	// Assets holds the stored artifacts (original plus derivatives)
	Assets []Asset `json:"assets"`

	// IdempotencyKey is the client token that created this memory, kept
	// so repeated creates return the original id
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// ParentFolderID is an opaque organizational reference; folders are
	// not owned by the core
	ParentFolderID string `json:"parent_folder_id,omitempty"`

	// Derived summary flags for listing, recomputed synchronously on
	// every write so they never go stale relative to Access
	PublicNow bool `json:"public_now"`
	Shared    bool `json:"shared"`
}

// Asset returns the asset with the given purpose, or nil.
func (m *Memory) Asset(purpose AssetPurpose) *Asset {
	for i := range m.Assets {
		if m.Assets[i].Purpose == purpose {
			return &m.Assets[i]
		}
	}
	return nil
}

// InlineBytes returns the total inline bytes across the memory's assets.
func (m *Memory) InlineBytes() int64 {
	var total int64
	for i := range m.Assets {
		total += int64(len(m.Assets[i].Inline))
	}
	return total
}

// InternalRefs returns the memory's internal blob references.
func (m *Memory) InternalRefs() []blob.Ref {
	var refs []blob.Ref
	for i := range m.Assets {
		if m.Assets[i].Blob != nil {
			refs = append(refs, *m.Assets[i].Blob)
		}
	}
	return refs
}

// RecomputeSummary refreshes the derived listing flags from the
// authoritative access value.
func (m *Memory) RecomputeSummary(asOf int64, fired EventSet) {
	resolved := ResolveAccess(m.Access, asOf, fired)
	m.PublicNow = resolved.Kind == AccessPublic
	m.Shared = resolved.Kind == AccessCustom && (len(resolved.Individuals) > 0 || len(resolved.Groups) > 0)
}
