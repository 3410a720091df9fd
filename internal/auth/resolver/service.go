package resolver

import (
	"context"
	"errors"
	"fmt"

	"identity-service/internal/account"
	"identity-service/internal/auth"
	"identity-service/internal/auth/username"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultMaxAttempts = 5

var _ Resolver = (*Service)(nil)

// Service resolves identities against the account store. Resolution order,
// first match wins:
//
//  1. an account already linked to (provider, external id), returned as is;
//  2. an account with the same verified email, which gets linked;
//  3. a new account.
//
// There is no lock around the lookup-then-insert sequence. Concurrent first
// logins race on the store's uniqueness constraints; the loser sees a
// conflict and runs the lookup again, which then finds the winner's row.
//
// Step 2 trusts the provider's claim that the email belongs to the user.
// A verified email matching a local account silently attaches the
// provider to that account.
type Service struct {
	store       account.Store
	usernames   *username.Allocator
	log         *zap.Logger
	tracer      trace.Tracer
	maxAttempts int
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxAttempts bounds the conflict retry loop. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func New(store account.Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		usernames:   username.New(store),
		log:         zap.NewNop(),
		tracer:      otel.Tracer("identity-service/resolver"),
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("component", "resolver"))
	return s
}

// Resolve returns the persisted account for identity. Uniqueness
// conflicts are retried; every other store error is returned unchanged.
func (s *Service) Resolve(ctx context.Context, identity auth.ExternalIdentity) (*account.Account, error) {
	ctx, span := s.tracer.Start(ctx, "resolver.Resolve", trace.WithAttributes(
		attribute.String("auth.provider", identity.Provider.String()),
	))
	defer span.End()

	if identity.ExternalID == "" {
		err := &auth.MissingClaimError{Provider: identity.Provider, Claim: auth.ExternalIDClaim(identity.Provider)}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var lastConflict error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		acc, err := s.resolveOnce(ctx, identity)
		if err == nil {
			span.SetAttributes(attribute.Int("resolver.attempts", attempt))
			return acc, nil
		}
		if !account.IsConflict(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "resolve failed")
			return nil, err
		}

		lastConflict = err
		s.log.Info("uniqueness conflict, retrying resolution",
			zap.String("provider", identity.Provider.String()),
			zap.String("external_id", identity.ExternalID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	err := fmt.Errorf("%w: gave up after %d conflicts: %w", auth.ErrAccountNotResolved, s.maxAttempts, lastConflict)
	span.RecordError(err)
	span.SetStatus(codes.Error, "conflict retries exhausted")
	return nil, err
}

func (s *Service) resolveOnce(ctx context.Context, identity auth.ExternalIdentity) (*account.Account, error) {
	provider := identity.Provider.String()

	// 1. Existing linkage.
	acc, err := s.store.FindByProviderAndExternalID(ctx, provider, identity.ExternalID)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, account.ErrNotFound) {
		return nil, err
	}

	// 2. Email-based linking (existing account, new provider).
	emailTaken := false
	if identity.Email != "" {
		acc, err = s.store.FindByEmail(ctx, identity.Email)
		switch {
		case err == nil && identity.EmailVerified:
			return s.link(ctx, acc, identity)
		case err == nil:
			emailTaken = true
		case !errors.Is(err, account.ErrNotFound):
			return nil, err
		}
	}

	// 3. New account.
	return s.create(ctx, identity, emailTaken)
}

func (s *Service) link(ctx context.Context, acc *account.Account, identity auth.ExternalIdentity) (*account.Account, error) {
	if acc.LinkedProvider == identity.Provider.String() && acc.LinkedExternalID == identity.ExternalID {
		// A concurrent login linked it between our lookups.
		return acc, nil
	}
	if acc.IsLinked() {
		s.log.Warn("relinking account to a different provider identity",
			zap.String("account_id", acc.ID.String()),
			zap.String("from_provider", acc.LinkedProvider),
			zap.String("to_provider", identity.Provider.String()),
		)
	}

	acc.Link(identity.Provider.String(), identity.ExternalID)

	saved, err := s.store.Save(ctx, acc)
	if err != nil {
		return nil, err
	}

	s.log.Info("linked provider to existing account",
		zap.String("account_id", saved.ID.String()),
		zap.String("username", saved.Username),
		zap.String("provider", identity.Provider.String()),
	)
	return saved, nil
}

func (s *Service) create(ctx context.Context, identity auth.ExternalIdentity, emailTaken bool) (*account.Account, error) {
	name, err := s.usernames.Allocate(ctx, identity.Provider, identity.Claims, identity.Email)
	if err != nil {
		return nil, err
	}

	first, last := auth.SplitName(identity.DisplayName)

	acc := &account.Account{
		Username:  name,
		Email:     identity.Email,
		Role:      account.RoleUser,
		FirstName: first,
		LastName:  last,
	}
	acc.Link(identity.Provider.String(), identity.ExternalID)

	if emailTaken {
		// Unverified email owned by another account: keep the new account
		// but without the address.
		acc.Email = ""
		s.log.Warn("unverified provider email already in use, not linking",
			zap.String("provider", identity.Provider.String()),
			zap.String("external_id", identity.ExternalID),
		)
	}

	saved, err := s.store.Save(ctx, acc)
	if err != nil {
		return nil, err
	}

	s.log.Info("created account for provider identity",
		zap.String("account_id", saved.ID.String()),
		zap.String("username", saved.Username),
		zap.String("provider", identity.Provider.String()),
	)
	return saved, nil
}
