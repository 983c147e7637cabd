package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-auth-broker/internal/application/oauthresult"
	"github.com/go-auth-broker/internal/domain"
	"github.com/go-auth-broker/internal/infrastructure/apple"
	"github.com/go-auth-broker/internal/infrastructure/google"
	"github.com/go-auth-broker/internal/pkg/id"
	"github.com/go-auth-broker/internal/pkg/tokenstore"
)

// GoogleExchanger redeems an authorization code with the stored PKCE verifier.
type GoogleExchanger interface {
	Exchange(ctx context.Context, code, verifier string) (string, error)
}

// GoogleVerifier validates a Google ID token and extracts its identity claims.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*google.Payload, error)
}

// AppleParser extracts identity claims from an Apple identity token.
type AppleParser interface {
	Parse(ctx context.Context, idToken string) (*apple.Payload, error)
}

// AccountStore is the minimal account persistence the callback needs.
type AccountStore interface {
	GetBySubject(ctx context.Context, provider domain.Provider, sub string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Put(ctx context.Context, a *domain.Account) error
	Update(ctx context.Context, accountID string, updates map[string]interface{}) error
}

// TokenSigner issues the session bearer placed in a success outcome.
type TokenSigner interface {
	Sign(accountID, deviceID, provider string) (string, error)
}

// Service completes provider redirects: it redeems the correlation state,
// validates the provider response against the stored challenge material, and
// publishes the outcome to the result relay under a fresh delivery token. The
// browser only ever sees that delivery token.
type Service interface {
	CompleteGoogle(ctx context.Context, state, code string) (string, error)
	CompleteApple(ctx context.Context, state, idToken string) (string, error)
}

// ServiceDeps bundles the collaborators for NewService.
type ServiceDeps struct {
	States        *tokenstore.Store[domain.FlowContext]
	Results       oauthresult.Service
	Accounts      AccountStore
	Exchanger     GoogleExchanger
	Verifier      GoogleVerifier
	AppleParser   AppleParser
	Signer        TokenSigner
	ClientBaseURL string
}

type service struct {
	states        *tokenstore.Store[domain.FlowContext]
	results       oauthresult.Service
	accounts      AccountStore
	exchanger     GoogleExchanger
	verifier      GoogleVerifier
	appleParser   AppleParser
	signer        TokenSigner
	clientBaseURL string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		states:        deps.States,
		results:       deps.Results,
		accounts:      deps.Accounts,
		exchanger:     deps.Exchanger,
		verifier:      deps.Verifier,
		appleParser:   deps.AppleParser,
		signer:        deps.Signer,
		clientBaseURL: deps.ClientBaseURL,
	}
}

// identity is the provider-agnostic view of a verified callback.
type identity struct {
	sub           string
	email         string
	emailVerified bool
	fullName      string
}

func (s *service) CompleteGoogle(ctx context.Context, state, code string) (string, error) {
	fc, err := s.consumeState(state)
	if err != nil {
		return "", err
	}
	binding, ok := fc.Binding.(domain.PKCEBinding)
	if !ok {
		return s.failure(ctx, fc, "flow was not started with PKCE")
	}
	idTok, err := s.exchanger.Exchange(ctx, code, binding.Verifier)
	if err != nil {
		slog.Warn("google code exchange failed", "err", err)
		return s.failure(ctx, fc, "authorization code exchange failed")
	}
	payload, err := s.verifier.Verify(ctx, idTok)
	if err != nil {
		slog.Warn("google id token rejected", "err", err)
		return s.failure(ctx, fc, "identity token rejected")
	}
	return s.complete(ctx, fc, identity{
		sub:           payload.Sub,
		email:         payload.Email,
		emailVerified: payload.EmailVerified,
		fullName:      payload.FullName,
	})
}

func (s *service) CompleteApple(ctx context.Context, state, idToken string) (string, error) {
	fc, err := s.consumeState(state)
	if err != nil {
		return "", err
	}
	binding, ok := fc.Binding.(domain.NonceBinding)
	if !ok {
		return s.failure(ctx, fc, "flow was not started with a nonce")
	}
	payload, err := s.appleParser.Parse(ctx, idToken)
	if err != nil {
		slog.Warn("apple identity token rejected", "err", err)
		return s.failure(ctx, fc, "identity token rejected")
	}
	// The echoed nonce must match the stored one byte-for-byte, otherwise the
	// token was minted for some other request.
	if payload.Nonce != binding.Nonce {
		slog.Warn("apple nonce mismatch")
		return s.failure(ctx, fc, "nonce mismatch")
	}
	return s.complete(ctx, fc, identity{
		sub:           payload.Sub,
		email:         payload.Email,
		emailVerified: payload.EmailVerified,
	})
}

// consumeState redeems the correlation token. NotFound, Expired and
// AlreadyUsed are indistinguishable here: the state value arrived from the
// browser, so nothing about its history may leak back out.
func (s *service) consumeState(state string) (domain.FlowContext, error) {
	fc, err := s.states.Consume(state)
	if err != nil {
		return domain.FlowContext{}, fmt.Errorf("oauth state: %w", domain.OpaqueTokenError(err))
	}
	return fc, nil
}

func (s *service) complete(ctx context.Context, fc domain.FlowContext, ident identity) (string, error) {
	account, err := s.resolveAccount(ctx, fc, ident)
	if err != nil {
		slog.Warn("account resolution failed", "provider", fc.Provider, "err", err)
		return s.failure(ctx, fc, "account resolution failed")
	}
	bearer, err := s.signer.Sign(account.AccountID, fc.DeviceID, string(fc.Provider))
	if err != nil {
		slog.Error("session token signing failed", "err", err)
		return s.failure(ctx, fc, "session issuance failed")
	}
	return s.publish(ctx, domain.FlowOutcome{
		Status:     domain.OutcomeSuccess,
		Provider:   fc.Provider,
		Mode:       fc.Mode,
		Bearer:     bearer,
		Account:    account,
		DeviceID:   fc.DeviceID,
		RedirectTo: fc.RedirectTo,
	})
}

// resolveAccount finds the account for a verified identity, creating it for
// signup flows. Login against an unknown identity fails rather than silently
// provisioning an account.
func (s *service) resolveAccount(ctx context.Context, fc domain.FlowContext, ident identity) (*domain.Account, error) {
	account, err := s.accounts.GetBySubject(ctx, fc.Provider, ident.sub)
	if err == nil {
		// The provider may have verified the email since the account was
		// created; persist the upgrade. Losing it is not fatal.
		if ident.emailVerified && !account.EmailVerified {
			if uerr := s.accounts.Update(ctx, account.AccountID, map[string]interface{}{"email_verified": true}); uerr != nil {
				slog.Warn("email_verified refresh failed", "account", account.AccountID, "err", uerr)
			} else {
				account.EmailVerified = true
			}
		}
		return account, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if fc.Mode == domain.ModeLogin {
		return nil, fmt.Errorf("no account for %s identity: %w", fc.Provider, domain.ErrNotFound)
	}

	signup := fc.Signup
	if signup == nil {
		return nil, fmt.Errorf("signup flow missing signup context: %w", domain.ErrBadRequest)
	}
	email := signup.Email
	if ident.email != "" {
		email = ident.email
	}
	if existing, gerr := s.accounts.GetByEmail(ctx, email); gerr == nil && existing != nil {
		return nil, fmt.Errorf("email %s already registered: %w", email, domain.ErrConflict)
	} else if gerr != nil && !errors.Is(gerr, domain.ErrNotFound) {
		return nil, gerr
	}
	fullName := signup.FullName
	if fullName == "" {
		fullName = ident.fullName
	}
	now := time.Now().UTC()
	account = &domain.Account{
		AccountID:       id.New(),
		Provider:        fc.Provider,
		ProviderSubject: domain.SubjectKey(fc.Provider, ident.sub),
		Email:           email,
		EmailVerified:   ident.emailVerified,
		FullName:        fullName,
		UserType:        signup.UserType,
		Plan:            signup.Plan,
		PlanType:        signup.PlanType,
		Business:        signup.Business,
		Employer:        signup.Employer,
		Niche:           signup.Niche,
		Enable:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.accounts.Put(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *service) failure(ctx context.Context, fc domain.FlowContext, reason string) (string, error) {
	return s.publish(ctx, domain.FlowOutcome{
		Status:   domain.OutcomeFailure,
		Provider: fc.Provider,
		Mode:     fc.Mode,
		DeviceID: fc.DeviceID,
		Error:    reason,
	})
}

// publish writes the outcome to the relay and returns the client redirect URL
// carrying only the one-time delivery token.
func (s *service) publish(ctx context.Context, outcome domain.FlowOutcome) (string, error) {
	deliveryToken, err := s.results.Publish(ctx, outcome)
	if err != nil {
		return "", err
	}
	return s.clientBaseURL + "/auth/result?token=" + deliveryToken, nil
}
