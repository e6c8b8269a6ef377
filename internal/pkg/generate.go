package pkg

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const sessionIDSize = 32

var randRead = rand.Read

// GenerateNewSessionID - generates a new unique opaque session id.
func GenerateNewSessionID() (string, error) {
	b := make([]byte, sessionIDSize)
	if _, err := randRead(b); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
