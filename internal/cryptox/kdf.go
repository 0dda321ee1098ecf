package cryptox

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the derived key length (AES-256)
	KeySize = 32
	// SaltSize is the length of the salt taken from the secret hash
	SaltSize = 16
	// Iterations is the fixed PBKDF2 work factor
	Iterations = 100_000
)

// ErrConfiguration is returned for a missing or malformed key or secret
var ErrConfiguration = errors.New("invalid encryption configuration")

// DeriveSalt returns a deterministic salt for the given secret: sha256(secret)[:16].
func DeriveSalt(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	salt := make([]byte, SaltSize)
	copy(salt, sum[:SaltSize])
	return salt
}

// DeriveKey stretches the deployment secret into a 32-byte key with
// PBKDF2-HMAC-SHA256. The same secret always yields the same key, so envelopes
// written before a restart stay readable.
func DeriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: encryption secret is empty", ErrConfiguration)
	}
	return pbkdf2.Key([]byte(secret), DeriveSalt(secret), Iterations, KeySize, sha256.New), nil
}
