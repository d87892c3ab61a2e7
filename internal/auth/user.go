package auth

import "time"

// User is the durable identity record as seen outside the user store.
// Credential material (hash, salt) is never carried here.
type User struct {
	ID        string
	Local     *LocalCredential
	External  map[string]string // provider -> provider subject
	Secret    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LocalCredential marks a user that registered with a username and password.
type LocalCredential struct {
	Username string
}

// Username returns the local username or "" for OAuth-only users.
func (u *User) Username() string {
	if u == nil || u.Local == nil {
		return ""
	}
	return u.Local.Username
}

// ExternalID returns the subject id for provider, if linked.
func (u *User) ExternalID(provider string) (string, bool) {
	if u == nil {
		return "", false
	}
	id, ok := u.External[provider]
	return id, ok
}
