package challenge

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// MethodS256 is the only PKCE challenge method this service emits.
const MethodS256 = "S256"

// PKCEPair binds an authorization request to the client that later exchanges
// the resulting code. The verifier stays server-side; the challenge goes into
// the authorization URL.
type PKCEPair struct {
	Verifier  string
	Challenge string
}

// NewPKCEPair generates a fresh verifier (32 random bytes, base64url, 43
// characters) and its S256 challenge: base64url(SHA-256(verifier)), no padding.
func NewPKCEPair() (PKCEPair, error) {
	verifier, err := randomString()
	if err != nil {
		return PKCEPair{}, fmt.Errorf("generate pkce verifier: %w", err)
	}
	return PKCEPair{Verifier: verifier, Challenge: Derive(verifier)}, nil
}

// NewNonce generates an opaque high-entropy nonce for id-token binding.
func NewNonce() (string, error) {
	n, err := randomString()
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return n, nil
}

// Derive computes the S256 challenge for a verifier.
func Derive(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyPKCE reports whether challenge is the S256 derivation of verifier.
// Constant-time compare.
func VerifyPKCE(challenge, verifier string) bool {
	if challenge == "" || verifier == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(challenge), []byte(Derive(verifier))) == 1
}

func randomString() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
