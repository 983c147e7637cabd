package http

import (
	"github.com/go-auth-broker/internal/domain"
	"github.com/go-auth-broker/internal/infrastructure/apple"
	"github.com/go-auth-broker/internal/infrastructure/dynamo"
	"github.com/go-auth-broker/internal/infrastructure/google"
	jwtinfra "github.com/go-auth-broker/internal/infrastructure/jwt"
	"github.com/go-auth-broker/internal/infrastructure/smtp"
	"github.com/go-auth-broker/internal/pkg/ratelimit"
	"github.com/go-auth-broker/internal/pkg/tokenstore"
	appmiddleware "github.com/go-auth-broker/internal/transport/http/middleware"
)

// Deps holds all infrastructure dependencies for the router. The correlation
// stores and the per-IP limiter are owned by the caller, which is responsible
// for closing them on shutdown.
type Deps struct {
	States    *tokenstore.Store[domain.FlowContext]
	Results   *tokenstore.Store[domain.FlowOutcome]
	Pending   *tokenstore.Store[domain.PendingSignup]
	Limiter   *ratelimit.Limiter
	IPLimiter *appmiddleware.RateLimiter

	AccountRepo     *dynamo.AccountRepo
	Mailer          smtp.Mailer
	JWTProvider     *jwtinfra.Provider
	GoogleVerifier  *google.Verifier
	GoogleExchanger *google.Exchanger
	AppleParser     *apple.Parser
}
