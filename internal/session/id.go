package session

import (
	"encoding/base64"

	"github.com/debapps/WebAuthSecurity/internal/utils"
)

// IDBytes is the entropy of a session id.
const IDBytes = 32

// GenerateID returns a new opaque session id.
func GenerateID() (string, error) {
	return utils.RandomString(IDBytes)
}

// ValidID reports whether id has the shape GenerateID produces. Cookie values
// that fail this never reach the store.
func ValidID(id string) bool {
	if base64.RawURLEncoding.DecodedLen(len(id)) != IDBytes {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(id)
	return err == nil
}
