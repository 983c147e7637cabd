package oauthresult

import (
	"context"
	"time"

	"github.com/go-auth-broker/internal/domain"
	"github.com/go-auth-broker/internal/pkg/tokenstore"
)

// Service relays the outcome of a completed provider redirect to the polling
// client. The callback handler publishes under a fresh delivery token — never
// the original correlation state — and the client retrieves it exactly once.
type Service interface {
	Publish(ctx context.Context, outcome domain.FlowOutcome) (string, error)
	Consume(ctx context.Context, deliveryToken string) (*domain.FlowOutcome, error)
}

type service struct {
	outcomes *tokenstore.Store[domain.FlowOutcome]
	ttl      time.Duration
}

func NewService(outcomes *tokenstore.Store[domain.FlowOutcome], ttl time.Duration) Service {
	return &service{outcomes: outcomes, ttl: ttl}
}

func (s *service) Publish(_ context.Context, outcome domain.FlowOutcome) (string, error) {
	tok, _, err := s.outcomes.Create(outcome, s.ttl)
	return tok, err
}

// Consume returns the outcome at most once. Expired and already-used both
// surface as domain.ErrNotFound so an attacker replaying a delivery token
// learns nothing about its history.
func (s *service) Consume(_ context.Context, deliveryToken string) (*domain.FlowOutcome, error) {
	outcome, err := s.outcomes.Consume(deliveryToken)
	if err != nil {
		return nil, domain.OpaqueTokenError(err)
	}
	return &outcome, nil
}
