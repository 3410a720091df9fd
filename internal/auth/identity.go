package auth

import "strings"

// Provider identifies a statically configured OAuth2 provider.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderYandex Provider = "yandex"
)

func (p Provider) String() string {
	return string(p)
}

// ParseProvider maps a registration key (e.g. a URL path segment) to a
// known provider. Matching is case-insensitive.
func ParseProvider(key string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(key)))
	if _, ok := rules[p]; !ok {
		return "", &UnsupportedProviderError{Key: key}
	}
	return p, nil
}

// ExternalIdentity is the provider-agnostic view of one callback's claims.
// It contains facts only, no decisions. Never persisted directly.
type ExternalIdentity struct {
	Provider      Provider
	ExternalID    string // provider-scoped unique user identifier
	Email         string // optional
	EmailVerified bool   // whether the email may be used for account linking
	DisplayName   string // optional

	// Claims is the raw provider response, kept for username allocation
	// and for re-resolution.
	Claims map[string]any
}

// SplitName splits a display name into first name (first token) and
// last name (the remainder). Both may be empty.
func SplitName(display string) (first, last string) {
	display = strings.TrimSpace(display)
	if display == "" {
		return "", ""
	}
	first, last, _ = strings.Cut(display, " ")
	return first, strings.TrimSpace(last)
}
