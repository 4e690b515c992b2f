package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hpungsan/vessel/internal/errors"
)

// FSStore is the internal blob store: content-addressed files under a
// base directory, fanned out by hash prefix. All growth passes through
// the quota gate before bytes touch disk.
type FSStore struct {
	dir   string
	quota QuotaGate

	mu sync.Mutex
}

// NewFSStore creates the store directory (0700) and returns the store.
func NewFSStore(dir string, quota QuotaGate) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	_ = os.Chmod(dir, 0700)
	return &FSStore{dir: dir, quota: quota}, nil
}

// path fans blobs out by the first two hex characters of the hash.
func (s *FSStore) path(hash string) string {
	return filepath.Join(s.dir, hash[:2], hash)
}

// Put stores data content-addressed by its BLAKE3 hash. Identical bytes
// deduplicate to the existing blob and are not charged against quota.
func (s *FSStore) Put(data []byte) (Ref, error) {
	if len(data) == 0 {
		return Ref{}, errors.NewInvalidArgument("blob must not be empty")
	}

	hash := HashBytes(data)
	ref := Ref{BlobID: hash, Size: int64(len(data)), ContentHash: hash}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(hash)
	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}

	// Quota is checked before the write commits; the delta is rolled
	// back if the write fails so accounting never drifts from disk.
	if err := s.quota.AddStoredBytes(int64(len(data))); err != nil {
		return Ref{}, err
	}
	if err := s.write(path, data); err != nil {
		_ = s.quota.AddStoredBytes(-int64(len(data)))
		return Ref{}, errors.NewInternal(err)
	}
	return ref, nil
}

// write lands data via temp file + rename so a crash never leaves a
// half-written blob at the content address.
func (s *FSStore) write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Get returns the stored bytes for ref, or ok=false if absent.
func (s *FSStore) Get(ref Ref) ([]byte, bool, error) {
	if len(ref.BlobID) < 2 {
		return nil, false, nil
	}
	data, err := os.ReadFile(s.path(ref.BlobID))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewInternal(err)
	}
	return data, true, nil
}

// Delete removes the blob and credits its size back to the quota.
func (s *FSStore) Delete(ref Ref) (bool, error) {
	if len(ref.BlobID) < 2 {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(ref.BlobID)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	if err := os.Remove(path); err != nil {
		return false, errors.NewInternal(err)
	}
	_ = s.quota.AddStoredBytes(-info.Size())
	return true, nil
}
