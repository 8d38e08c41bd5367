// Package fingerprint computes change-detection signatures for stored files.
//
// The structural fingerprint is a cheap digest of id, mtime and size and
// costs no byte access; it is the only trigger for recomputing derived
// metadata. The content hash reads the full bytes and supports cross-id
// deduplication.
package fingerprint

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/drivehit/gallery-sync/internal/port"
)

// Structural returns the structural fingerprint for a descriptor
func Structural(desc port.FileDescriptor) string {
	base := fmt.Sprintf("%s-%d-%d", desc.ID, desc.ModifiedAt.UnixMilli(), desc.Size)
	sum := md5.Sum([]byte(base))
	return hex.EncodeToString(sum[:])
}

// Content returns the hex sha256 digest of the full content
func Content(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ContentBytes hashes an in-memory buffer
func ContentBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
