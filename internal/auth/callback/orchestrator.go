package callback

import (
	"context"
	"errors"
	"fmt"

	"identity-service/internal/account"
	"identity-service/internal/auth"
	"identity-service/internal/auth/handoff"
	"identity-service/internal/auth/resolver"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TokenIssuer signs the session token for a resolved account.
type TokenIssuer interface {
	Issue(acc *account.Account) (string, error)
}

// Outcome is the final result of an attempt.
type Outcome struct {
	State       State
	RedirectURL string
	Account     *account.Account // nil unless SESSION_ISSUED
	Token       string
	Err         error // nil unless FAILED
}

// Orchestrator drives an Attempt through its two phases:
//
//	identity load:  normalize -> resolve -> handoff put
//	session issue:  handoff take (or re-resolve) -> token
//
// Any failure moves the attempt to FAILED with a redirect carrying a
// sanitized reason.
type Orchestrator struct {
	resolver    resolver.Resolver
	handoff     handoff.Store
	tokens      TokenIssuer
	frontendURL string
	log         *zap.Logger
	tracer      trace.Tracer
}

func NewOrchestrator(
	res resolver.Resolver,
	store handoff.Store,
	tokens TokenIssuer,
	frontendURL string,
	log *zap.Logger,
) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		resolver:    res,
		handoff:     store,
		tokens:      tokens,
		frontendURL: frontendURL,
		log:         log.With(zap.String("component", "callback")),
		tracer:      otel.Tracer("identity-service/callback"),
	}
}

// Complete runs both phases for a provider response and always returns an
// outcome the caller can redirect to.
func (o *Orchestrator) Complete(ctx context.Context, a *Attempt, claims map[string]any) Outcome {
	ctx, span := o.tracer.Start(ctx, "callback.Complete", trace.WithAttributes(
		attribute.String("auth.provider", a.ProviderKey),
	))
	defer span.End()

	if err := o.LoadIdentity(ctx, a, claims); err != nil {
		span.SetStatus(codes.Error, auth.Classify(err))
		return o.Fail(a, err)
	}

	out, err := o.IssueSession(ctx, a)
	if err != nil {
		span.SetStatus(codes.Error, auth.Classify(err))
		return o.Fail(a, err)
	}
	return out
}

// LoadIdentity is the first phase. On success the attempt is
// IDENTITY_LOADED and the resolved account is parked in the handoff store.
func (o *Orchestrator) LoadIdentity(ctx context.Context, a *Attempt, claims map[string]any) error {
	if a.state != StateAwaitingProviderResponse {
		return fmt.Errorf("%w: load identity in %s", ErrInvalidTransition, a.state)
	}
	a.Claims = claims

	identity, err := auth.Normalize(a.ProviderKey, claims)
	if err != nil {
		return err
	}

	acc, err := o.resolver.Resolve(ctx, identity)
	if err != nil {
		return err
	}

	// A lost handoff is recovered by re-resolution in IssueSession.
	if err := o.handoff.Put(ctx, a.ID, acc); err != nil {
		o.log.Warn("handoff put failed, issuance will re-resolve",
			zap.String("provider", a.ProviderKey),
			zap.Error(err),
		)
	}

	return a.transition(StateIdentityLoaded)
}

// IssueSession is the second phase. It consumes the handoff entry and
// signs a token. When no entry is observable the account is resolved
// again from the attempt's claims.
func (o *Orchestrator) IssueSession(ctx context.Context, a *Attempt) (Outcome, error) {
	if a.state != StateIdentityLoaded {
		return Outcome{}, fmt.Errorf("%w: issue session in %s", ErrInvalidTransition, a.state)
	}

	acc, ok, err := o.handoff.TakeAndClear(ctx, a.ID)
	if err != nil {
		o.log.Warn("handoff take failed, re-resolving",
			zap.String("provider", a.ProviderKey),
			zap.Error(err),
		)
		ok = false
	}

	if !ok {
		acc, err = o.reresolve(ctx, a)
		if err != nil {
			return Outcome{}, err
		}
	}

	signed, err := o.tokens.Issue(acc)
	if err != nil {
		return Outcome{}, fmt.Errorf("issue token: %w", err)
	}

	if err := a.transition(StateSessionIssued); err != nil {
		return Outcome{}, err
	}

	o.log.Info("session issued",
		zap.String("provider", a.ProviderKey),
		zap.String("account_id", acc.ID.String()),
		zap.String("username", acc.Username),
	)

	return Outcome{
		State:       StateSessionIssued,
		RedirectURL: SuccessURL(o.frontendURL, signed, acc),
		Account:     acc,
		Token:       signed,
	}, nil
}

func (o *Orchestrator) reresolve(ctx context.Context, a *Attempt) (*account.Account, error) {
	o.log.Info("no handoff for attempt, re-resolving",
		zap.String("provider", a.ProviderKey),
	)

	identity, err := auth.Normalize(a.ProviderKey, a.Claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrAccountNotResolved, err)
	}
	acc, err := o.resolver.Resolve(ctx, identity)
	if err != nil {
		if errors.Is(err, auth.ErrAccountNotResolved) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", auth.ErrAccountNotResolved, err)
	}
	return acc, nil
}

// Fail moves a non-terminal attempt to FAILED and returns the failure
// redirect. Failing an already terminal attempt keeps its state.
func (o *Orchestrator) Fail(a *Attempt, cause error) Outcome {
	if cause == nil {
		cause = errors.New("unknown failure")
	}

	if a.state.CanTransitionTo(StateFailed) {
		_ = a.transition(StateFailed)
		a.err = cause
	}

	o.log.Warn("authentication attempt failed",
		zap.String("provider", a.ProviderKey),
		zap.String("state", string(a.state)),
		zap.String("reason", auth.Classify(cause)),
		zap.Error(cause),
	)

	return Outcome{
		State:       a.state,
		RedirectURL: FailureURL(o.frontendURL, cause),
		Err:         cause,
	}
}
