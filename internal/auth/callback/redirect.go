package callback

import (
	"net/url"

	"identity-service/internal/account"
	"identity-service/internal/auth"
)

// SuccessURL is where the browser lands after a session was issued.
func SuccessURL(frontendBaseURL, token string, acc *account.Account) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("username", acc.Username)
	q.Set("email", acc.Email)
	q.Set("role", string(acc.Role))
	q.Set("userId", acc.ID.String())
	return frontendBaseURL + "/auth/callback?" + q.Encode()
}

// FailureURL sends the browser back to the login page with a sanitized
// message describing err.
func FailureURL(frontendBaseURL string, err error) string {
	q := url.Values{}
	q.Set("error", auth.FailureCode)
	q.Set("message", auth.Classify(err))
	return frontendBaseURL + "/login?" + q.Encode()
}
