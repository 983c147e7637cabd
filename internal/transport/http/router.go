package http

import (
	"net/http"

	"github.com/go-auth-broker/internal/application/callback"
	"github.com/go-auth-broker/internal/application/oauthflow"
	"github.com/go-auth-broker/internal/application/oauthresult"
	"github.com/go-auth-broker/internal/application/signup"
	"github.com/go-auth-broker/internal/config"
	"github.com/go-auth-broker/internal/transport/http/handler"
	appmiddleware "github.com/go-auth-broker/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Applied to sensitive public endpoints.
	sensitiveRL := deps.IPLimiter

	resultSvc := oauthresult.NewService(deps.Results, cfg.OAuthResultTTL)
	flowSvc := oauthflow.NewService(deps.States, deps.Limiter, cfg)
	callbackSvc := callback.NewService(callback.ServiceDeps{
		States:        deps.States,
		Results:       resultSvc,
		Accounts:      deps.AccountRepo,
		Exchanger:     deps.GoogleExchanger,
		Verifier:      deps.GoogleVerifier,
		AppleParser:   deps.AppleParser,
		Signer:        deps.JWTProvider,
		ClientBaseURL: cfg.ClientBaseURL,
	})
	signupSvc := signup.NewService(signup.ServiceDeps{
		Pending:          deps.Pending,
		Mailer:           deps.Mailer,
		Limiter:          deps.Limiter,
		TokenTTL:         cfg.SignupTokenTTL,
		VerificationURL:  cfg.VerificationBaseURL,
		DistinguishState: cfg.SignupDistinguishTokenState,
	})

	healthH := handler.NewHealthHandler()
	oauthH := handler.NewOAuthHandler(flowSvc, callbackSvc, resultSvc, cfg.ClientBaseURL)
	signupH := handler.NewSignupHandler(signupSvc)
	sessionH := handler.NewSessionHandler(deps.AccountRepo)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		r.With(sensitiveRL.Limit).Post("/oauth/start", oauthH.Start)
		// Google redirects with query parameters; Apple form-posts.
		r.Get("/oauth/{provider}/callback", oauthH.Callback)
		r.Post("/oauth/{provider}/callback", oauthH.Callback)
		r.Get("/oauth/result/{token}", oauthH.Result)

		r.With(sensitiveRL.Limit).Post("/signup-verifications", signupH.Create)
		r.Post("/signup-verifications/{token}/consume", signupH.Consume)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(deps.JWTProvider))
			r.Get("/session", sessionH.Get)
		})
	})

	return r
}
