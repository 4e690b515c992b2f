package blob

import "github.com/hpungsan/vessel/internal/errors"

// External is the reference-only view of third-party storage backends.
// The core's responsibility ends at bookkeeping: it records locations and
// hashes supplied by the caller but never fetches or deletes the bytes.
// Deleting a memory whose only assets are external therefore still
// reports success.
type External struct{}

// Put rejects: bytes cannot be committed to a backend this service does
// not own. Callers record an ExternalRef on the memory instead.
func (External) Put(data []byte) (Ref, error) {
	return Ref{}, errors.NewInvalidArgument("external storage is reference-only; supply an external ref instead of bytes")
}

// Get reports the bytes as absent; external content is fetched by the
// caller from the owning backend, not through this core.
func (External) Get(ref Ref) ([]byte, bool, error) {
	return nil, false, nil
}

// Delete is a bookkeeping no-op that always reports success.
func (External) Delete(ref Ref) (bool, error) {
	return true, nil
}
