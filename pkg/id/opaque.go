package id

import (
	"crypto/rand"
	"encoding/base64"
)

const (
	externalIDBytes = 32
	tokenBytes      = 64
)

// NewExternalID returns an unguessable URL-safe channel identifier.
func NewExternalID() (string, error) { return randomURLSafe(externalIDBytes) }

// NewToken returns an unguessable URL-safe bearer token.
func NewToken() (string, error) { return randomURLSafe(tokenBytes) }

func randomURLSafe(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
