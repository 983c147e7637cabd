package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// New generates a 32-byte cryptographically random token encoded as unpadded
// URL-safe base64 (43 characters). Usable as a query parameter or an OAuth
// state value; carries no payload, it is purely a lookup key.
func New() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
