package handoff

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewAttemptID generates a cryptographically secure attempt id.
// 32 bytes = 256 bits of entropy.
func NewAttemptID() (string, error) {

	const size = 32 // 256 bits

	b := make([]byte, size)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("handoff: failed to generate attempt id: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil

}
