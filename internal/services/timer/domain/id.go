package domain

import (
	"encoding/base32"
	"strings"

	"github.com/google/uuid"
)

// NewSessionID generates a URL-safe session identifier from UUIDv4 bytes
// encoded as base32. The identifier is 26 characters long, lowercase, and
// contains no padding.
func NewSessionID() (string, error) {
	raw, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw[:])
	return strings.ToLower(encoded), nil
}
