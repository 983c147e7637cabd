package signup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-auth-broker/internal/domain"
	"github.com/go-auth-broker/internal/infrastructure/smtp"
	"github.com/go-auth-broker/internal/pkg/ratelimit"
	"github.com/go-auth-broker/internal/pkg/tokenstore"
	"github.com/go-auth-broker/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// Email-verification abuse bounds, keyed by normalized email.
const (
	createMaxRequests = 3
	createWindow      = 10 * time.Minute
)

// CreateRequest is the unverified signup submission. Password is required only
// when provider is password; OAuth-backed signups arrive without one.
type CreateRequest struct {
	FullName    string     `json:"full_name" validate:"required"`
	Email       string     `json:"email" validate:"required,email"`
	UserType    string     `json:"user_type" validate:"required"`
	Plan        string     `json:"plan" validate:"required"`
	PlanType    string     `json:"plan_type" validate:"required"`
	Business    string     `json:"business"`
	Employer    string     `json:"employer"`
	Niche       string     `json:"niche"`
	Provider    string     `json:"provider" validate:"required,oneof=password google apple"`
	Password    string     `json:"password" validate:"omitempty,min=8,max=72"`
	DeviceID    string     `json:"device_id"`
	RequestedAt *time.Time `json:"requested_at"`
}

type CreateResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*CreateResult, error)
	Consume(ctx context.Context, token string) (*domain.PendingSignup, error)
}

// ServiceDeps bundles the collaborators for NewService.
type ServiceDeps struct {
	Pending          *tokenstore.Store[domain.PendingSignup]
	Mailer           smtp.Mailer
	Limiter          *ratelimit.Limiter
	TokenTTL         time.Duration
	VerificationURL  string // emailed link prefix; token appended as ?token=
	DistinguishState bool   // report "already used" distinctly from "invalid or expired"
}

type service struct {
	pending          *tokenstore.Store[domain.PendingSignup]
	mailer           smtp.Mailer
	limiter          *ratelimit.Limiter
	tokenTTL         time.Duration
	verificationURL  string
	distinguishState bool
}

func NewService(deps ServiceDeps) Service {
	return &service{
		pending:          deps.Pending,
		mailer:           deps.Mailer,
		limiter:          deps.Limiter,
		tokenTTL:         deps.TokenTTL,
		verificationURL:  deps.VerificationURL,
		distinguishState: deps.DistinguishState,
	}
}

// Create validates and normalizes the pending signup, issues a 30-minute
// verification token, and emails the redemption link. Email delivery failure
// does not roll back the token; the user can request a resend.
func (s *service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	provider := domain.Provider(req.Provider)
	if provider == domain.ProviderPassword && req.Password == "" {
		return nil, fmt.Errorf("password is required for password signup: %w", domain.ErrBadRequest)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if res := s.limiter.Check("signup-verify:"+email, createMaxRequests, createWindow); !res.Allowed {
		return nil, fmt.Errorf("verification requests throttled until %s: %w", res.ResetAt.Format(time.RFC3339), domain.ErrRateLimited)
	}

	pending := domain.PendingSignup{
		FullName:    strings.TrimSpace(req.FullName),
		Email:       email,
		UserType:    req.UserType,
		Plan:        req.Plan,
		PlanType:    req.PlanType,
		Business:    req.Business,
		Employer:    req.Employer,
		Niche:       req.Niche,
		Provider:    provider,
		DeviceID:    req.DeviceID,
		RequestedAt: time.Now().UTC(),
	}
	if req.RequestedAt != nil {
		pending.RequestedAt = req.RequestedAt.UTC()
	}
	if provider == domain.ProviderPassword {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		pending.PasswordHash = string(hash)
	}

	tok, expiresAt, err := s.pending.Create(pending, s.tokenTTL)
	if err != nil {
		return nil, err
	}

	link := s.verificationURL + "?token=" + tok
	text := fmt.Sprintf("Hi %s,\n\nConfirm your signup within 30 minutes:\n%s\n", pending.FullName, link)
	html := fmt.Sprintf(`<p>Hi %s,</p><p>Confirm your signup within 30 minutes:</p><p><a href="%s">Verify email</a></p>`, pending.FullName, link)
	if err := s.mailer.Send(pending.Email, "Confirm your signup", text, html); err != nil {
		slog.Warn("failed to send verification email", "email", pending.Email, "err", err)
	}

	return &CreateResult{Token: tok, ExpiresAt: expiresAt}, nil
}

// Consume redeems a verification token exactly once. Redemption is single-shot:
// no retry ever succeeds, the user must restart signup after any failure.
func (s *service) Consume(_ context.Context, token string) (*domain.PendingSignup, error) {
	pending, err := s.pending.Consume(token)
	if err != nil {
		if s.distinguishState && errors.Is(err, domain.ErrAlreadyUsed) {
			return nil, fmt.Errorf("verification link already used: %w", domain.ErrAlreadyUsed)
		}
		return nil, fmt.Errorf("invalid or expired verification link: %w", domain.OpaqueTokenError(err))
	}
	return &pending, nil
}
