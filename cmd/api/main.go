package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-auth-broker/internal/config"
	"github.com/go-auth-broker/internal/domain"
	"github.com/go-auth-broker/internal/infrastructure/apple"
	"github.com/go-auth-broker/internal/infrastructure/dynamo"
	"github.com/go-auth-broker/internal/infrastructure/google"
	jwtinfra "github.com/go-auth-broker/internal/infrastructure/jwt"
	"github.com/go-auth-broker/internal/infrastructure/smtp"
	"github.com/go-auth-broker/internal/pkg/ratelimit"
	"github.com/go-auth-broker/internal/pkg/tokenstore"
	transporthttp "github.com/go-auth-broker/internal/transport/http"
	appmiddleware "github.com/go-auth-broker/internal/transport/http/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap the DynamoDB accounts table (creates it if it doesn't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.AccountsTable)

	// Session signing is load-bearing: every successful flow carries a bearer.
	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("JWT provider not available: %v", err)
	}

	mailer := smtp.NewMailer(cfg)

	// Correlation stores. Each holds one kind of single-use token; the
	// background sweeper reclaims expired records between consumes.
	states := tokenstore.New(tokenstore.WithSweepInterval[domain.FlowContext](cfg.StoreSweepEvery))
	results := tokenstore.New(tokenstore.WithSweepInterval[domain.FlowOutcome](cfg.StoreSweepEvery))
	pending := tokenstore.New(tokenstore.WithSweepInterval[domain.PendingSignup](cfg.StoreSweepEvery))
	defer states.Close()
	defer results.Close()
	defer pending.Close()

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	ipLimiter := appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	defer ipLimiter.Close()

	deps := &transporthttp.Deps{
		States:          states,
		Results:         results,
		Pending:         pending,
		Limiter:         ratelimit.New(),
		IPLimiter:       ipLimiter,
		AccountRepo:     dynamo.NewAccountRepo(dynamoClient, cfg.AccountsTable),
		Mailer:          mailer,
		JWTProvider:     jwtProvider,
		GoogleVerifier:  google.NewVerifier(cfg.GoogleClientID),
		GoogleExchanger: google.NewExchanger(cfg),
		AppleParser:     apple.NewParser(cfg.AppleClientID),
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
