package oauthresult

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-auth-broker/internal/domain"
	"github.com/go-auth-broker/internal/pkg/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, now *time.Time) Service {
	t.Helper()
	outcomes := tokenstore.New(
		tokenstore.WithClock[domain.FlowOutcome](func() time.Time { return *now }),
		tokenstore.WithSweepInterval[domain.FlowOutcome](0),
	)
	t.Cleanup(outcomes.Close)
	return NewService(outcomes, 2*time.Minute)
}

func TestPublishConsume_ExactlyOnce(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)

	outcome := domain.FlowOutcome{
		Status:   domain.OutcomeSuccess,
		Provider: domain.ProviderGoogle,
		Mode:     domain.ModeLogin,
		Bearer:   "bearer-token",
	}
	tok, err := svc.Publish(context.Background(), outcome)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	got, err := svc.Consume(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, outcome, *got)

	// Second read: not found, never "already used" — relay leaks nothing.
	_, err = svc.Consume(context.Background(), tok)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.False(t, errors.Is(err, domain.ErrAlreadyUsed))
}

func TestConsume_Expired_CollapsesToNotFound(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)

	tok, err := svc.Publish(context.Background(), domain.FlowOutcome{Status: domain.OutcomeFailure})
	require.NoError(t, err)

	now = now.Add(3 * time.Minute)

	_, err = svc.Consume(context.Background(), tok)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.False(t, errors.Is(err, domain.ErrExpired))
}

func TestConsume_UnknownToken(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)

	_, err := svc.Consume(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
