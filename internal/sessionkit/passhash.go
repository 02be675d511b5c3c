package sessionkit

import (
	"crypto/sha256"
	"encoding/hex"
)

// FrontendPasswordSalt is the static salt mixed into the client-side
// password pre-hash. It must match the value the backend verifies against.
const FrontendPasswordSalt = "frontend-static-salt-v1"

// HashPassword pre-hashes a password before it leaves the client, so the
// plaintext never travels over the wire or lands in request logs.
func HashPassword(password string) string {
	return HashPasswordWithSalt(FrontendPasswordSalt, password)
}

// HashPasswordWithSalt computes the hex SHA-256 digest of "salt:password".
func HashPasswordWithSalt(salt string, password string) string {
	digest := sha256.Sum256([]byte(salt + ":" + password))
	return hex.EncodeToString(digest[:])
}
