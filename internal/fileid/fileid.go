// Package fileid fingerprints file content so the same PDF is not submitted twice.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
)

const prefix = "sha256:"

// Fingerprint returns a stable identifier for content. Identical bytes always yield the same
// fingerprint regardless of file name or location.
func Fingerprint(content []byte) string {
	hash := sha256.Sum256(content)
	return prefix + hex.EncodeToString(hash[:])
}
