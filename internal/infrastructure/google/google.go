package google

import (
	"context"
	"fmt"

	"github.com/go-auth-broker/internal/config"
	"github.com/go-auth-broker/internal/domain"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

// Payload holds the verified claims extracted from a Google ID token.
type Payload struct {
	Sub           string
	Email         string
	EmailVerified bool
	FullName      string
}

// Verifier verifies Google ID tokens against a specific client ID.
type Verifier struct {
	clientID string
}

func NewVerifier(clientID string) *Verifier {
	return &Verifier{clientID: clientID}
}

// Verify validates the Google ID token and returns the extracted payload.
// Returns a domain.ErrUnauthorized-wrapped error if the token is invalid.
func (v *Verifier) Verify(ctx context.Context, token string) (*Payload, error) {
	p, err := idtoken.Validate(ctx, token, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("invalid google token: %w", domain.ErrUnauthorized)
	}
	email, _ := p.Claims["email"].(string)
	emailVerified, _ := p.Claims["email_verified"].(bool)
	name, _ := p.Claims["name"].(string)
	return &Payload{
		Sub:           p.Subject,
		Email:         email,
		EmailVerified: emailVerified,
		FullName:      name,
	}, nil
}

// Exchanger redeems an authorization code, presenting the stored PKCE verifier.
type Exchanger struct {
	oauth *oauth2.Config
}

func NewExchanger(cfg *config.Config) *Exchanger {
	return &Exchanger{
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Endpoint:     googleoauth.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
	}
}

// Exchange swaps code for tokens and returns the raw ID token from the
// response. The verifier must match the code_challenge sent on the
// authorization request or Google rejects the exchange.
func (e *Exchanger) Exchange(ctx context.Context, code, verifier string) (string, error) {
	tok, err := e.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", fmt.Errorf("code exchange failed: %w", domain.ErrUnauthorized)
	}
	idTok, ok := tok.Extra("id_token").(string)
	if !ok || idTok == "" {
		return "", fmt.Errorf("no id_token in exchange response: %w", domain.ErrUnauthorized)
	}
	return idTok, nil
}
