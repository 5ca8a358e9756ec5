package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"heartx/internal/domain"
)

// Fingerprint returns the lowercase hex SHA-256 of a shared secret.
func Fingerprint(secret string) domain.Fingerprint {
	sum := sha256.Sum256([]byte(secret))
	return domain.Fingerprint(hex.EncodeToString(sum[:]))
}

// ShortDigest returns a 10-byte hex digest of b, for logs and display.
func ShortDigest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:10])
}
