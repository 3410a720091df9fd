package callback

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"identity-service/internal/account"
	"identity-service/internal/auth"
	"identity-service/internal/auth/handoff"
	"identity-service/internal/auth/resolver"
	"identity-service/internal/auth/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const frontend = "http://localhost:3001"

var secret = []byte("0123456789abcdef0123456789abcdef")

type fixture struct {
	accounts *account.MemoryStore
	handoffs *handoff.MemoryStore
	tokens   *token.Issuer
	orch     *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		accounts: account.NewMemoryStore(),
		handoffs: handoff.NewMemoryStore(time.Minute),
		tokens:   token.NewIssuer(secret, "identity-service", time.Hour),
	}
	f.orch = NewOrchestrator(resolver.New(f.accounts), f.handoffs, f.tokens, frontend, nil)
	return f
}

func parseRedirect(t *testing.T, raw string) (*url.URL, url.Values) {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u, u.Query()
}

var googleClaims = map[string]any{
	"sub":            "g-100",
	"email":          "jane@example.com",
	"email_verified": true,
	"name":           "Jane Doe",
}

func TestComplete_GoogleSuccess(t *testing.T) {
	f := newFixture()
	a := NewAttempt("attempt-1", "google")

	out := f.orch.Complete(context.Background(), a, googleClaims)

	require.NoError(t, out.Err)
	assert.Equal(t, StateSessionIssued, out.State)
	assert.Equal(t, StateSessionIssued, a.State())
	require.NotNil(t, out.Account)
	assert.Equal(t, "jane", out.Account.Username)

	u, q := parseRedirect(t, out.RedirectURL)
	assert.Equal(t, "/auth/callback", u.Path)
	assert.Equal(t, "jane", q.Get("username"))
	assert.Equal(t, "jane@example.com", q.Get("email"))
	assert.Equal(t, "USER", q.Get("role"))
	assert.Equal(t, out.Account.ID.String(), q.Get("userId"))

	claims, err := f.tokens.Parse(q.Get("token"))
	require.NoError(t, err)
	assert.Equal(t, "jane", claims.Subject)

	assert.Equal(t, 0, f.handoffs.Len(), "handoff consumed")
}

func TestComplete_YandexSuccess(t *testing.T) {
	f := newFixture()
	a := NewAttempt("attempt-y", "yandex")

	out := f.orch.Complete(context.Background(), a, map[string]any{
		"id":            "y-1",
		"login":         "ivan.petrov",
		"default_email": "ivan@yandex.ru",
		"first_name":    "Ivan",
		"last_name":     "Petrov",
	})

	require.NoError(t, out.Err)
	assert.Equal(t, StateSessionIssued, out.State)
	assert.Equal(t, "ivan.petrov", out.Account.Username)
	assert.Equal(t, "yandex", out.Account.LinkedProvider)
}

func TestComplete_UnsupportedProvider(t *testing.T) {
	res := new(mockResolver)
	f := newFixture()
	orch := NewOrchestrator(res, f.handoffs, f.tokens, frontend, nil)

	a := NewAttempt("attempt-fb", "facebook")
	out := orch.Complete(context.Background(), a, map[string]any{"id": "fb-1"})

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, StateFailed, a.State())
	assert.ErrorIs(t, out.Err, auth.ErrUnsupportedProvider)
	assert.Nil(t, out.Account)

	u, q := parseRedirect(t, out.RedirectURL)
	assert.Equal(t, "/login", u.Path)
	assert.Equal(t, "oauth2_failed", q.Get("error"))
	assert.Contains(t, q.Get("message"), "unsupported_provider")

	res.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	assert.Equal(t, 0, f.accounts.Len())
	assert.Equal(t, 0, f.handoffs.Len())
}

func TestComplete_MissingExternalID(t *testing.T) {
	f := newFixture()
	a := NewAttempt("attempt-2", "google")

	out := f.orch.Complete(context.Background(), a, map[string]any{"email": "x@example.com"})

	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, out.Err, auth.ErrMissingClaim)
	_, q := parseRedirect(t, out.RedirectURL)
	assert.Contains(t, q.Get("message"), "missing_claim")
	assert.Equal(t, 0, f.accounts.Len())
}

func TestComplete_DoesNotLeakInternalErrors(t *testing.T) {
	res := new(mockResolver)
	res.On("Resolve", mock.Anything, mock.Anything).
		Return(nil, errors.New("dial tcp: password=hunter2 refused")).Once()

	f := newFixture()
	orch := NewOrchestrator(res, f.handoffs, f.tokens, frontend, nil)

	out := orch.Complete(context.Background(), NewAttempt("a", "google"), googleClaims)

	assert.Equal(t, StateFailed, out.State)
	assert.NotContains(t, out.RedirectURL, "hunter2")
	_, q := parseRedirect(t, out.RedirectURL)
	assert.Equal(t, "internal_error: authentication failed", q.Get("message"))
	res.AssertExpectations(t)
}

func TestIssueSession_ReResolvesWhenHandoffMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a := NewAttempt("attempt-3", "google")

	require.NoError(t, f.orch.LoadIdentity(ctx, a, googleClaims))
	assert.Equal(t, StateIdentityLoaded, a.State())

	// Something else consumed the entry, e.g. the phase ran on another
	// instance with its own memory store.
	loaded, ok, err := f.handoffs.TakeAndClear(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, ok)

	out, err := f.orch.IssueSession(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, StateSessionIssued, out.State)
	assert.Equal(t, loaded.ID, out.Account.ID, "re-resolution yields the same account")
	assert.Equal(t, 1, f.accounts.Len())
}

type failingHandoff struct{}

func (failingHandoff) Put(context.Context, string, *account.Account) error {
	return errors.New("redis down")
}

func (failingHandoff) TakeAndClear(context.Context, string) (*account.Account, bool, error) {
	return nil, false, errors.New("redis down")
}

func TestComplete_SurvivesHandoffOutage(t *testing.T) {
	f := newFixture()
	orch := NewOrchestrator(resolver.New(f.accounts), failingHandoff{}, f.tokens, frontend, nil)

	out := orch.Complete(context.Background(), NewAttempt("a", "google"), googleClaims)

	require.NoError(t, out.Err)
	assert.Equal(t, StateSessionIssued, out.State)
	assert.Equal(t, 1, f.accounts.Len())
}

func TestIssueSession_ReResolutionFailure(t *testing.T) {
	ctx := context.Background()
	res := new(mockResolver)
	acc := &account.Account{Username: "jane", Role: account.RoleUser}
	res.On("Resolve", mock.Anything, mock.Anything).Return(acc, nil).Once()
	res.On("Resolve", mock.Anything, mock.Anything).Return(nil, account.ErrNotFound).Once()

	f := newFixture()
	orch := NewOrchestrator(res, f.handoffs, f.tokens, frontend, nil)
	a := NewAttempt("attempt-4", "google")

	require.NoError(t, orch.LoadIdentity(ctx, a, googleClaims))
	_, _, err := f.handoffs.TakeAndClear(ctx, a.ID)
	require.NoError(t, err)

	_, err = orch.IssueSession(ctx, a)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrAccountNotResolved)

	out := orch.Fail(a, err)
	assert.Equal(t, StateFailed, out.State)
	_, q := parseRedirect(t, out.RedirectURL)
	assert.Contains(t, q.Get("message"), "account_not_resolved")
}

func TestOrchestrator_RejectsOutOfOrderPhases(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	a := NewAttempt("attempt-5", "google")
	_, err := f.orch.IssueSession(ctx, a)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, f.orch.LoadIdentity(ctx, a, googleClaims))
	assert.ErrorIs(t, f.orch.LoadIdentity(ctx, a, googleClaims), ErrInvalidTransition)

	_, err = f.orch.IssueSession(ctx, a)
	require.NoError(t, err)

	out := f.orch.Fail(a, errors.New("late"))
	assert.Equal(t, StateSessionIssued, out.State, "terminal state is kept")
	assert.NoError(t, a.Err())
}

func TestFail_FromAwaiting(t *testing.T) {
	f := newFixture()
	a := NewAttempt("attempt-6", "google")

	cause := &auth.ProviderExchangeError{Provider: "google", Reason: "access_denied"}
	out := f.orch.Fail(a, cause)

	assert.Equal(t, StateFailed, out.State)
	assert.Same(t, cause, a.Err())
	_, q := parseRedirect(t, out.RedirectURL)
	assert.Equal(t, "provider_error: google returned access_denied", q.Get("message"))
}

func TestComplete_ConcurrentAttemptsStayIsolated(t *testing.T) {
	f := newFixture()

	const users = 8
	outcomes := make([]Outcome, users)

	var g errgroup.Group
	for i := range users {
		g.Go(func() error {
			a := NewAttempt(fmt.Sprintf("attempt-%d", i), "google")
			outcomes[i] = f.orch.Complete(context.Background(), a, map[string]any{
				"sub":                fmt.Sprintf("g-%d", i),
				"preferred_username": fmt.Sprintf("user%d", i),
			})
			return outcomes[i].Err
		})
	}
	require.NoError(t, g.Wait())

	for i, out := range outcomes {
		assert.Equal(t, fmt.Sprintf("g-%d", i), out.Account.LinkedExternalID)
	}
	assert.Equal(t, users, f.accounts.Len())
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateAwaitingProviderResponse, StateIdentityLoaded, true},
		{StateAwaitingProviderResponse, StateFailed, true},
		{StateAwaitingProviderResponse, StateSessionIssued, false},
		{StateIdentityLoaded, StateSessionIssued, true},
		{StateIdentityLoaded, StateFailed, true},
		{StateSessionIssued, StateFailed, false},
		{StateFailed, StateIdentityLoaded, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.True(t, StateSessionIssued.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateIdentityLoaded.Terminal())
}

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, identity auth.ExternalIdentity) (*account.Account, error) {
	args := m.Called(ctx, identity)
	acc, _ := args.Get(0).(*account.Account)
	return acc, args.Error(1)
}
