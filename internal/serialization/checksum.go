package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// ChecksumKey is the metadata key holding the hex SHA-256 digest of the data section.
const ChecksumKey = "data_sha256"

func newChecksum() hash.Hash {
	return sha256.New()
}

func hexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeChecksum returns the hex SHA-256 digest of data.
func ComputeChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidateChecksum compares a computed digest against a stored one.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(computed, stored string) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}
