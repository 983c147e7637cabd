package oauthflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-auth-broker/internal/config"
	"github.com/go-auth-broker/internal/domain"
	"github.com/go-auth-broker/internal/pkg/challenge"
	"github.com/go-auth-broker/internal/pkg/id"
	"github.com/go-auth-broker/internal/pkg/ratelimit"
	"github.com/go-auth-broker/internal/pkg/tokenstore"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

// Flow-start abuse bounds, per rate-limiter key (email for signup, device for
// login).
const (
	startMaxRequests = 10
	startWindow      = time.Minute
)

var appleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://appleid.apple.com/auth/authorize",
	TokenURL: "https://appleid.apple.com/auth/token",
}

// StartRequest is the client's flow-start call. Signup fields are required
// only when mode is signup.
type StartRequest struct {
	Provider       string `json:"provider"`
	Mode           string `json:"mode"`
	DeviceID       string `json:"device_id"`
	RememberDevice bool   `json:"remember_device"`
	RedirectTo     string `json:"redirect_to"`

	FullName    string     `json:"full_name"`
	Email       string     `json:"email"`
	UserType    string     `json:"user_type"`
	Plan        string     `json:"plan"`
	PlanType    string     `json:"plan_type"`
	Business    string     `json:"business"`
	Employer    string     `json:"employer"`
	Niche       string     `json:"niche"`
	RequestedAt *time.Time `json:"requested_at"`
}

type StartResponse struct {
	AuthorizationURL string `json:"authorization_url"`
}

type Service interface {
	Start(ctx context.Context, req StartRequest) (*StartResponse, error)
}

type service struct {
	states   *tokenstore.Store[domain.FlowContext]
	limiter  *ratelimit.Limiter
	stateTTL time.Duration
	google   *oauth2.Config
	apple    *oauth2.Config
}

func NewService(states *tokenstore.Store[domain.FlowContext], limiter *ratelimit.Limiter, cfg *config.Config) Service {
	return &service{
		states:   states,
		limiter:  limiter,
		stateTTL: cfg.OAuthStateTTL,
		google: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Endpoint:     googleoauth.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		apple: &oauth2.Config{
			ClientID:    cfg.AppleClientID,
			RedirectURL: cfg.AppleRedirectURL,
			Endpoint:    appleEndpoint,
			Scopes:      []string{"name", "email"},
		},
	}
}

// Start validates the request, generates provider challenge material, stores
// the flow context under a fresh correlation token, and returns the provider
// authorization URL with that token as the state parameter. Every validation
// failure aborts before any record is created.
func (s *service) Start(ctx context.Context, req StartRequest) (*StartResponse, error) {
	provider := domain.Provider(req.Provider)
	if !domain.ValidOAuthProvider(provider) {
		return nil, fmt.Errorf("invalid provider %q: %w", req.Provider, domain.ErrBadRequest)
	}
	mode := domain.Mode(req.Mode)
	if !domain.ValidMode(mode) {
		return nil, fmt.Errorf("invalid mode %q: %w", req.Mode, domain.ErrBadRequest)
	}

	fc := domain.FlowContext{
		Provider:       provider,
		Mode:           mode,
		DeviceID:       req.DeviceID,
		RememberDevice: req.RememberDevice,
		RedirectTo:     sanitizeRedirect(req.RedirectTo),
	}

	limitKey := fc.DeviceID
	if mode == domain.ModeSignup {
		signup, err := buildSignupContext(req)
		if err != nil {
			return nil, err
		}
		fc.Signup = signup
		limitKey = signup.Email
	} else if fc.DeviceID == "" {
		fc.DeviceID = id.New()
		limitKey = fc.DeviceID
	}

	if res := s.limiter.Check("oauth-start:"+limitKey, startMaxRequests, startWindow); !res.Allowed {
		return nil, fmt.Errorf("flow start throttled until %s: %w", res.ResetAt.Format(time.RFC3339), domain.ErrRateLimited)
	}

	var authURL string
	switch provider {
	case domain.ProviderGoogle:
		pair, err := challenge.NewPKCEPair()
		if err != nil {
			return nil, err
		}
		fc.Binding = domain.PKCEBinding{Verifier: pair.Verifier}
		state, _, err := s.states.Create(fc, s.stateTTL)
		if err != nil {
			return nil, err
		}
		authURL = s.google.AuthCodeURL(state,
			oauth2.SetAuthURLParam("code_challenge", pair.Challenge),
			oauth2.SetAuthURLParam("code_challenge_method", challenge.MethodS256),
		)
	case domain.ProviderApple:
		nonce, err := challenge.NewNonce()
		if err != nil {
			return nil, err
		}
		fc.Binding = domain.NonceBinding{Nonce: nonce}
		state, _, err := s.states.Create(fc, s.stateTTL)
		if err != nil {
			return nil, err
		}
		authURL = s.apple.AuthCodeURL(state,
			oauth2.SetAuthURLParam("nonce", nonce),
			oauth2.SetAuthURLParam("response_mode", "form_post"),
		)
	}

	return &StartResponse{AuthorizationURL: authURL}, nil
}

// buildSignupContext validates the mode-dependent signup fields. Each missing
// required field fails with an error naming that field.
func buildSignupContext(req StartRequest) (*domain.SignupContext, error) {
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return nil, fmt.Errorf("full_name is required for signup: %w", domain.ErrBadRequest)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, fmt.Errorf("email is required for signup: %w", domain.ErrBadRequest)
	}
	if req.UserType == "" {
		return nil, fmt.Errorf("user_type is required for signup: %w", domain.ErrBadRequest)
	}
	if req.Plan == "" {
		return nil, fmt.Errorf("plan is required for signup: %w", domain.ErrBadRequest)
	}
	if req.PlanType == "" {
		return nil, fmt.Errorf("plan_type is required for signup: %w", domain.ErrBadRequest)
	}
	requestedAt := time.Now().UTC()
	if req.RequestedAt != nil {
		requestedAt = req.RequestedAt.UTC()
	}
	return &domain.SignupContext{
		FullName:    fullName,
		Email:       email,
		UserType:    req.UserType,
		Plan:        req.Plan,
		PlanType:    req.PlanType,
		Business:    req.Business,
		Employer:    req.Employer,
		Niche:       req.Niche,
		RequestedAt: requestedAt,
	}, nil
}

// sanitizeRedirect accepts only same-site relative paths. Anything that could
// escape the client origin ("//host", "/\host", absolute URLs) is dropped.
func sanitizeRedirect(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") {
		return ""
	}
	if strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return ""
	}
	return p
}
