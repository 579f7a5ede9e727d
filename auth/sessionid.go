package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// SessionIDBytes is the entropy of a login session identifier.
const SessionIDBytes = 32

// NewSessionID returns a fresh 256-bit session identifier as lower-case hex.
func NewSessionID() (string, error) {
	b := make([]byte, SessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
