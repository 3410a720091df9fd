package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// RandomString returns bytes of crypto/rand entropy, base64url encoded
// without padding. crypto/rand.Read never fails on supported platforms.
func RandomString(bytes int) string {
	b := make([]byte, bytes)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
