package snapshot

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gowebpki/jcs"
)

// Canonicalize returns the RFC 8785 (JCS) canonical form of a JSON document.
func Canonicalize(input []byte) ([]byte, error) {
	return jcs.Transform(input)
}

// Digest returns the sha256 hex digest of the canonical form of input, so
// that payloads differing only in member order or whitespace share a digest.
func Digest(input []byte) (string, error) {
	canonical, err := Canonicalize(input)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
