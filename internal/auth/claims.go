package auth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// claimRule describes how one provider's claim vocabulary maps onto an
// ExternalIdentity. Supporting a new provider means adding a row to rules.
type claimRule struct {
	externalID string
	email      string
	handle     string // preferred username claim

	// emailVerified names the claim asserting email ownership. When the
	// claim is absent the email is trusted only if trustEmail is set.
	emailVerified string
	trustEmail    bool

	displayName func(claims map[string]any, email string) string
}

var rules = map[Provider]claimRule{
	ProviderGoogle: {
		externalID:    "sub",
		email:         "email",
		handle:        "preferred_username",
		emailVerified: "email_verified",
		displayName: func(claims map[string]any, email string) string {
			if name := ClaimString(claims, "name"); name != "" {
				return name
			}
			return SanitizeHandle(EmailLocalPart(email))
		},
	},
	ProviderYandex: {
		externalID: "id",
		email:      "default_email",
		handle:     "login",
		// default_email is the confirmed address of the Yandex account.
		trustEmail: true,
		displayName: func(claims map[string]any, _ string) string {
			first := ClaimString(claims, "first_name")
			last := ClaimString(claims, "last_name")
			switch {
			case first != "" && last != "":
				return first + " " + last
			case first != "":
				return first
			default:
				return ClaimString(claims, "login")
			}
		},
	},
}

// Normalize maps a provider key and its raw claims to an ExternalIdentity.
// It fails with *UnsupportedProviderError for an unknown key and with
// *MissingClaimError when the external id claim is absent.
func Normalize(providerKey string, claims map[string]any) (ExternalIdentity, error) {
	provider, err := ParseProvider(providerKey)
	if err != nil {
		return ExternalIdentity{}, err
	}
	rule := rules[provider]

	externalID := ClaimString(claims, rule.externalID)
	if externalID == "" {
		return ExternalIdentity{}, &MissingClaimError{Provider: provider, Claim: rule.externalID}
	}

	email := strings.ToLower(ClaimString(claims, rule.email))

	verified := rule.trustEmail
	if rule.emailVerified != "" {
		if v, ok := claimBool(claims, rule.emailVerified); ok {
			verified = v
		}
	}

	return ExternalIdentity{
		Provider:      provider,
		ExternalID:    externalID,
		Email:         email,
		EmailVerified: verified && email != "",
		DisplayName:   strings.TrimSpace(rule.displayName(claims, email)),
		Claims:        claims,
	}, nil
}

// HandleClaim returns the provider's preferred username claim name.
func HandleClaim(p Provider) string {
	return rules[p].handle
}

// ExternalIDClaim returns the claim holding the provider-scoped user id.
func ExternalIDClaim(p Provider) string {
	return rules[p].externalID
}

// ClaimString reads a claim as a trimmed string. Numeric ids are
// formatted without exponent; anything else yields "".
func ClaimString(claims map[string]any, name string) string {
	v, ok := claims[name]
	if !ok || v == nil {
		return ""
	}

	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return ""
	}
}

func claimBool(claims map[string]any, name string) (value, ok bool) {
	switch t := claims[name].(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(t)
		return b, err == nil
	default:
		return false, false
	}
}

// EmailLocalPart returns the substring before '@', or the whole input
// when there is none.
func EmailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// SanitizeHandle strips everything outside [A-Za-z0-9._-] and lowercases
// the result.
func SanitizeHandle(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	return b.String()
}
