package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// ShareTokenBytes is the entropy of a share token (256 bits)
const ShareTokenBytes = 32

// NewShareToken returns a random URL-safe token for anonymous share links.
// The 32 random bytes encode to 43 characters of [A-Za-z0-9_-].
func NewShareToken() (string, error) {
	b := make([]byte, ShareTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
