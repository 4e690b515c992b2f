package vault

import (
	"encoding/hex"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID generates a ULID from the injected clock and entropy source.
// Ids are always server-generated; clients never choose them.
func NewID(now time.Time, entropy io.Reader) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewSecureCode generates an owner secure code from the entropy source:
// 16 random bytes, hex-encoded.
func NewSecureCode(entropy io.Reader) (string, error) {
	buf := make([]byte, 16)
	if _, err := io.ReadFull(entropy, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
