package callback

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-auth-broker/internal/application/oauthresult"
	"github.com/go-auth-broker/internal/domain"
	"github.com/go-auth-broker/internal/infrastructure/apple"
	"github.com/go-auth-broker/internal/infrastructure/google"
	"github.com/go-auth-broker/internal/pkg/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExchanger struct{ mock.Mock }

func (m *mockExchanger) Exchange(ctx context.Context, code, verifier string) (string, error) {
	args := m.Called(ctx, code, verifier)
	return args.String(0), args.Error(1)
}

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) Verify(ctx context.Context, idToken string) (*google.Payload, error) {
	args := m.Called(ctx, idToken)
	if p, _ := args.Get(0).(*google.Payload); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockAppleParser struct{ mock.Mock }

func (m *mockAppleParser) Parse(ctx context.Context, idToken string) (*apple.Payload, error) {
	args := m.Called(ctx, idToken)
	if p, _ := args.Get(0).(*apple.Payload); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockAccountStore struct{ mock.Mock }

func (m *mockAccountStore) GetBySubject(ctx context.Context, provider domain.Provider, sub string) (*domain.Account, error) {
	args := m.Called(ctx, provider, sub)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccountStore) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccountStore) Put(ctx context.Context, a *domain.Account) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockAccountStore) Update(ctx context.Context, accountID string, updates map[string]interface{}) error {
	return m.Called(ctx, accountID, updates).Error(0)
}

type mockSigner struct{ mock.Mock }

func (m *mockSigner) Sign(accountID, deviceID, provider string) (string, error) {
	args := m.Called(accountID, deviceID, provider)
	return args.String(0), args.Error(1)
}

// --- fixture ---

type fixture struct {
	svc       Service
	states    *tokenstore.Store[domain.FlowContext]
	results   oauthresult.Service
	accounts  *mockAccountStore
	exchanger *mockExchanger
	verifier  *mockVerifier
	parser    *mockAppleParser
	signer    *mockSigner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	states := tokenstore.New(tokenstore.WithSweepInterval[domain.FlowContext](0))
	t.Cleanup(states.Close)
	outcomes := tokenstore.New(tokenstore.WithSweepInterval[domain.FlowOutcome](0))
	t.Cleanup(outcomes.Close)

	f := &fixture{
		states:    states,
		results:   oauthresult.NewService(outcomes, 2*time.Minute),
		accounts:  &mockAccountStore{},
		exchanger: &mockExchanger{},
		verifier:  &mockVerifier{},
		parser:    &mockAppleParser{},
		signer:    &mockSigner{},
	}
	f.svc = NewService(ServiceDeps{
		States:        states,
		Results:       f.results,
		Accounts:      f.accounts,
		Exchanger:     f.exchanger,
		Verifier:      f.verifier,
		AppleParser:   f.parser,
		Signer:        f.signer,
		ClientBaseURL: "http://localhost:5173",
	})
	return f
}

func (f *fixture) storeState(t *testing.T, fc domain.FlowContext) string {
	t.Helper()
	state, _, err := f.states.Create(fc, 10*time.Minute)
	require.NoError(t, err)
	return state
}

// deliveryToken extracts and redeems the one-time token from a redirect URL.
func (f *fixture) outcomeFor(t *testing.T, redirectURL string) *domain.FlowOutcome {
	t.Helper()
	u, err := url.Parse(redirectURL)
	require.NoError(t, err)
	tok := u.Query().Get("token")
	require.NotEmpty(t, tok)
	outcome, err := f.results.Consume(context.Background(), tok)
	require.NoError(t, err)
	return outcome
}

func googleLoginContext() domain.FlowContext {
	return domain.FlowContext{
		Provider: domain.ProviderGoogle,
		Mode:     domain.ModeLogin,
		DeviceID: "dev-1",
		Binding:  domain.PKCEBinding{Verifier: "stored-verifier"},
	}
}

// --- CompleteGoogle ---

func TestCompleteGoogle_Login_HappyPath(t *testing.T) {
	f := newFixture(t)
	state := f.storeState(t, googleLoginContext())

	f.exchanger.On("Exchange", mock.Anything, "auth-code", "stored-verifier").Return("raw-id-token", nil)
	f.verifier.On("Verify", mock.Anything, "raw-id-token").Return(&google.Payload{
		Sub: "gsub-1", Email: "ada@example.com", EmailVerified: true, FullName: "Ada Lovelace",
	}, nil)
	account := &domain.Account{AccountID: "acc-1", Provider: domain.ProviderGoogle, EmailVerified: true}
	f.accounts.On("GetBySubject", mock.Anything, domain.ProviderGoogle, "gsub-1").Return(account, nil)
	f.signer.On("Sign", "acc-1", "dev-1", "google").Return("bearer-token", nil)

	redirectURL, err := f.svc.CompleteGoogle(context.Background(), state, "auth-code")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(redirectURL, "http://localhost:5173/auth/result?token="))

	outcome := f.outcomeFor(t, redirectURL)
	assert.Equal(t, domain.OutcomeSuccess, outcome.Status)
	assert.Equal(t, "bearer-token", outcome.Bearer)
	assert.Equal(t, "acc-1", outcome.Account.AccountID)
	assert.Equal(t, "dev-1", outcome.DeviceID)

	// The delivery token embedded in the redirect is not the original state.
	u, _ := url.Parse(redirectURL)
	assert.NotEqual(t, state, u.Query().Get("token"))

	f.exchanger.AssertExpectations(t)
	f.verifier.AssertExpectations(t)
	f.accounts.AssertExpectations(t)
	f.signer.AssertExpectations(t)
}

func TestCompleteGoogle_UnknownState_OpaqueNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CompleteGoogle(context.Background(), "bogus-state", "code")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCompleteGoogle_ReplayedState_OpaqueNotFound(t *testing.T) {
	f := newFixture(t)
	state := f.storeState(t, googleLoginContext())

	f.exchanger.On("Exchange", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("boom"))

	_, err := f.svc.CompleteGoogle(context.Background(), state, "code")
	require.NoError(t, err) // failure outcome is still a redirect

	// Second delivery of the same state must not reveal it was ever valid.
	_, err = f.svc.CompleteGoogle(context.Background(), state, "code")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.False(t, errors.Is(err, domain.ErrAlreadyUsed))
}

func TestCompleteGoogle_ExchangeFails_PublishesFailureOutcome(t *testing.T) {
	f := newFixture(t)
	state := f.storeState(t, googleLoginContext())

	f.exchanger.On("Exchange", mock.Anything, "bad-code", "stored-verifier").Return("", errors.New("exchange rejected"))

	redirectURL, err := f.svc.CompleteGoogle(context.Background(), state, "bad-code")
	require.NoError(t, err)

	outcome := f.outcomeFor(t, redirectURL)
	assert.Equal(t, domain.OutcomeFailure, outcome.Status)
	assert.Equal(t, "authorization code exchange failed", outcome.Error)
	assert.Empty(t, outcome.Bearer)
}

func TestCompleteGoogle_Login_UnknownIdentity_Fails(t *testing.T) {
	f := newFixture(t)
	state := f.storeState(t, googleLoginContext())

	f.exchanger.On("Exchange", mock.Anything, "code", "stored-verifier").Return("raw-id-token", nil)
	f.verifier.On("Verify", mock.Anything, "raw-id-token").Return(&google.Payload{Sub: "unknown"}, nil)
	f.accounts.On("GetBySubject", mock.Anything, domain.ProviderGoogle, "unknown").Return(nil, domain.ErrNotFound)

	redirectURL, err := f.svc.CompleteGoogle(context.Background(), state, "code")
	require.NoError(t, err)

	outcome := f.outcomeFor(t, redirectURL)
	assert.Equal(t, domain.OutcomeFailure, outcome.Status)
	f.signer.AssertNotCalled(t, "Sign", mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteGoogle_Signup_CreatesAccount(t *testing.T) {
	f := newFixture(t)
	fc := domain.FlowContext{
		Provider: domain.ProviderGoogle,
		Mode:     domain.ModeSignup,
		DeviceID: "dev-2",
		Signup: &domain.SignupContext{
			FullName: "Ada Lovelace",
			Email:    "ada@example.com",
			UserType: "creator",
			Plan:     "pro",
			PlanType: "annual",
		},
		Binding: domain.PKCEBinding{Verifier: "stored-verifier"},
	}
	state := f.storeState(t, fc)

	f.exchanger.On("Exchange", mock.Anything, "code", "stored-verifier").Return("raw-id-token", nil)
	f.verifier.On("Verify", mock.Anything, "raw-id-token").Return(&google.Payload{
		Sub: "gsub-2", Email: "ada@gmail.example", EmailVerified: true,
	}, nil)
	f.accounts.On("GetBySubject", mock.Anything, domain.ProviderGoogle, "gsub-2").Return(nil, domain.ErrNotFound)
	f.accounts.On("GetByEmail", mock.Anything, "ada@gmail.example").Return(nil, domain.ErrNotFound)
	f.accounts.On("Put", mock.Anything, mock.MatchedBy(func(a *domain.Account) bool {
		return a.Provider == domain.ProviderGoogle &&
			a.ProviderSubject == "google#gsub-2" &&
			a.Email == "ada@gmail.example" && // provider email wins over the form's
			a.Plan == "pro" && a.Enable
	})).Return(nil)
	f.signer.On("Sign", mock.Anything, "dev-2", "google").Return("bearer-token", nil)

	redirectURL, err := f.svc.CompleteGoogle(context.Background(), state, "code")
	require.NoError(t, err)

	outcome := f.outcomeFor(t, redirectURL)
	assert.Equal(t, domain.OutcomeSuccess, outcome.Status)
	assert.Equal(t, domain.ModeSignup, outcome.Mode)
	f.accounts.AssertExpectations(t)
}

func TestCompleteGoogle_Signup_DuplicateEmail_PublishesFailure(t *testing.T) {
	f := newFixture(t)
	fc := domain.FlowContext{
		Provider: domain.ProviderGoogle,
		Mode:     domain.ModeSignup,
		DeviceID: "dev-2",
		Signup: &domain.SignupContext{
			FullName: "Ada Lovelace",
			Email:    "ada@example.com",
			UserType: "creator",
			Plan:     "pro",
			PlanType: "annual",
		},
		Binding: domain.PKCEBinding{Verifier: "stored-verifier"},
	}
	state := f.storeState(t, fc)

	f.exchanger.On("Exchange", mock.Anything, "code", "stored-verifier").Return("raw-id-token", nil)
	f.verifier.On("Verify", mock.Anything, "raw-id-token").Return(&google.Payload{
		Sub: "gsub-3", Email: "ada@example.com", EmailVerified: true,
	}, nil)
	f.accounts.On("GetBySubject", mock.Anything, domain.ProviderGoogle, "gsub-3").Return(nil, domain.ErrNotFound)
	f.accounts.On("GetByEmail", mock.Anything, "ada@example.com").
		Return(&domain.Account{AccountID: "acc-other", Email: "ada@example.com"}, nil)

	redirectURL, err := f.svc.CompleteGoogle(context.Background(), state, "code")
	require.NoError(t, err)

	outcome := f.outcomeFor(t, redirectURL)
	assert.Equal(t, domain.OutcomeFailure, outcome.Status)
	f.accounts.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	f.signer.AssertNotCalled(t, "Sign", mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteGoogle_Login_RefreshesEmailVerified(t *testing.T) {
	f := newFixture(t)
	state := f.storeState(t, googleLoginContext())

	f.exchanger.On("Exchange", mock.Anything, "code", "stored-verifier").Return("raw-id-token", nil)
	f.verifier.On("Verify", mock.Anything, "raw-id-token").Return(&google.Payload{
		Sub: "gsub-1", Email: "ada@example.com", EmailVerified: true,
	}, nil)
	// Stored account predates the provider-side verification.
	account := &domain.Account{AccountID: "acc-1", Provider: domain.ProviderGoogle, EmailVerified: false}
	f.accounts.On("GetBySubject", mock.Anything, domain.ProviderGoogle, "gsub-1").Return(account, nil)
	f.accounts.On("Update", mock.Anything, "acc-1", map[string]interface{}{"email_verified": true}).Return(nil)
	f.signer.On("Sign", "acc-1", "dev-1", "google").Return("bearer-token", nil)

	redirectURL, err := f.svc.CompleteGoogle(context.Background(), state, "code")
	require.NoError(t, err)

	outcome := f.outcomeFor(t, redirectURL)
	assert.Equal(t, domain.OutcomeSuccess, outcome.Status)
	assert.True(t, outcome.Account.EmailVerified)
	f.accounts.AssertExpectations(t)
}

// --- CompleteApple ---

func appleLoginContext(nonce string) domain.FlowContext {
	return domain.FlowContext{
		Provider: domain.ProviderApple,
		Mode:     domain.ModeLogin,
		DeviceID: "dev-3",
		Binding:  domain.NonceBinding{Nonce: nonce},
	}
}

func TestCompleteApple_Login_HappyPath(t *testing.T) {
	f := newFixture(t)
	state := f.storeState(t, appleLoginContext("nonce-1"))

	f.parser.On("Parse", mock.Anything, "apple-id-token").Return(&apple.Payload{
		Sub: "asub-1", Email: "ada@privaterelay.example", EmailVerified: true, Nonce: "nonce-1",
	}, nil)
	account := &domain.Account{AccountID: "acc-9", Provider: domain.ProviderApple, EmailVerified: true}
	f.accounts.On("GetBySubject", mock.Anything, domain.ProviderApple, "asub-1").Return(account, nil)
	f.signer.On("Sign", "acc-9", "dev-3", "apple").Return("bearer-token", nil)

	redirectURL, err := f.svc.CompleteApple(context.Background(), state, "apple-id-token")
	require.NoError(t, err)

	outcome := f.outcomeFor(t, redirectURL)
	assert.Equal(t, domain.OutcomeSuccess, outcome.Status)
	assert.Equal(t, "bearer-token", outcome.Bearer)
}

func TestCompleteApple_NonceMismatch_PublishesFailure(t *testing.T) {
	f := newFixture(t)
	state := f.storeState(t, appleLoginContext("nonce-1"))

	f.parser.On("Parse", mock.Anything, "apple-id-token").Return(&apple.Payload{
		Sub: "asub-1", Nonce: "some-other-nonce",
	}, nil)

	redirectURL, err := f.svc.CompleteApple(context.Background(), state, "apple-id-token")
	require.NoError(t, err)

	outcome := f.outcomeFor(t, redirectURL)
	assert.Equal(t, domain.OutcomeFailure, outcome.Status)
	assert.Equal(t, "nonce mismatch", outcome.Error)
	f.accounts.AssertNotCalled(t, "GetBySubject", mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteApple_WrongBindingKind_PublishesFailure(t *testing.T) {
	f := newFixture(t)
	// A google-style context arriving on the apple callback.
	state := f.storeState(t, googleLoginContext())

	redirectURL, err := f.svc.CompleteApple(context.Background(), state, "apple-id-token")
	require.NoError(t, err)

	outcome := f.outcomeFor(t, redirectURL)
	assert.Equal(t, domain.OutcomeFailure, outcome.Status)
}
