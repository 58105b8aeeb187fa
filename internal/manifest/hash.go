// Package manifest implements canonical content hashing and the creation,
// signing, recovery, and resolution of provenance manifests.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/originmark/provenance/internal/models"
)

// HashPrefix is the canonical fingerprint prefix.
const HashPrefix = "0x"

const hashHexLen = 64

// HashReader computes the canonical fingerprint of content by streaming it
// through SHA-256. Large inputs are never buffered fully in memory.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return HashPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile computes the canonical fingerprint of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open content file: %w", err)
	}
	defer f.Close()
	return HashReader(f)
}

// DecodeHash parses a canonical fingerprint into its 32 raw bytes. The
// all-zero hash is valid and distinct; only width and encoding are checked.
func DecodeHash(s string) ([32]byte, error) {
	var out [32]byte

	trimmed := strings.TrimPrefix(s, HashPrefix)
	if len(trimmed) != hashHexLen {
		return out, models.ErrInvalidContentHash
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, models.ErrInvalidContentHash
	}
	copy(out[:], raw)
	return out, nil
}
