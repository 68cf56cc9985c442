// Package sha256 provides SHA-256 hashing utilities.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher computes hex SHA-256 digests for snapshot content and job
// fingerprints.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Fingerprint derives the job uniqueness key from a company ID and the
// posting's source URL.
func (h *Hasher) Fingerprint(companyID, sourceURL string) string {
	sum := sha256.Sum256([]byte(companyID + "|" + sourceURL))
	return hex.EncodeToString(sum[:])
}
