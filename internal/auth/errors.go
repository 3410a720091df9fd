package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported oauth provider")
	ErrMissingClaim        = errors.New("missing required claim")
	ErrAccountNotResolved  = errors.New("account not resolved")
	ErrProviderExchange    = errors.New("provider exchange failed")
	ErrInvalidState        = errors.New("invalid oauth state")
)

// UnsupportedProviderError matches ErrUnsupportedProvider.
type UnsupportedProviderError struct {
	Key string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported oauth provider: %q", e.Key)
}

func (e *UnsupportedProviderError) Is(target error) bool {
	return target == ErrUnsupportedProvider
}

// MissingClaimError matches ErrMissingClaim.
type MissingClaimError struct {
	Provider Provider
	Claim    string
}

func (e *MissingClaimError) Error() string {
	return fmt.Sprintf("%s response is missing required claim %q", e.Provider, e.Claim)
}

func (e *MissingClaimError) Is(target error) bool {
	return target == ErrMissingClaim
}

// ProviderExchangeError wraps a failure of the token or userinfo round-trip
// and attributes it to the provider. It matches ErrProviderExchange.
type ProviderExchangeError struct {
	Provider Provider
	Reason   string // provider error code such as access_denied, if any
	Err      error
}

func (e *ProviderExchangeError) Error() string {
	msg := fmt.Sprintf("%s exchange failed", e.Provider)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderExchangeError) Is(target error) bool {
	return target == ErrProviderExchange
}

func (e *ProviderExchangeError) Unwrap() error {
	return e.Err
}

// Failure codes carried to the frontend. The login page only understands
// oauth2_failed; the category is folded into the message.
const FailureCode = "oauth2_failed"

// Classify turns an attempt failure into a caller-visible message. The
// message names the failure category and never includes wrapped error
// text, which may contain provider secrets or internal detail.
func Classify(err error) string {
	var (
		unsupported *UnsupportedProviderError
		missing     *MissingClaimError
		exchange    *ProviderExchangeError
	)

	switch {
	case errors.As(err, &unsupported):
		return fmt.Sprintf("unsupported_provider: %q is not a supported provider", safeToken(unsupported.Key))
	case errors.Is(err, ErrUnsupportedProvider):
		return "unsupported_provider: provider is not supported"
	case errors.As(err, &missing):
		return fmt.Sprintf("missing_claim: %s did not return %q", missing.Provider, missing.Claim)
	case errors.Is(err, ErrMissingClaim):
		return "missing_claim: provider response is incomplete"
	case errors.As(err, &exchange):
		if reason := safeToken(exchange.Reason); reason != "" {
			return fmt.Sprintf("provider_error: %s returned %s", exchange.Provider, reason)
		}
		return fmt.Sprintf("provider_error: %s authentication failed", exchange.Provider)
	case errors.Is(err, ErrProviderExchange):
		return "provider_error: provider authentication failed"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state: authentication attempt expired or was tampered with"
	case errors.Is(err, ErrAccountNotResolved):
		return "account_not_resolved: could not load your account"
	default:
		return "internal_error: authentication failed"
	}
}

const maxTokenLen = 32

// safeToken keeps only characters that cannot carry markup or secrets
// into a redirect message.
func safeToken(s string) string {
	var b strings.Builder
	for _, r := range s {
		if b.Len() >= maxTokenLen {
			break
		}
		if r == '_' || r == '-' || r == '.' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
