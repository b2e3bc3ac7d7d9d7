package internal

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// stateBytes is the entropy of the state parameter. 16 bytes base64url-encode
// to 22 characters, above the 16-character minimum the flow requires.
const stateBytes = 16

// GenerateState returns a random state parameter that binds one
// authorization attempt to its redirect. Each attempt must use a fresh
// value; the result is never reused.
func GenerateState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
