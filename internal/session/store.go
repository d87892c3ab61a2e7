package session

import (
	"context"
	"time"
)

// Session is a server-side session. It holds the principal id and, while a
// login round trip to an OAuth provider is in flight, the pending flow.
type Session struct {
	SessionID         string     `json:"session_id"`
	UserID            string     `json:"user_id,omitempty"` // empty means anonymous
	OAuth             *OAuthFlow `json:"oauth,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	ExpiresAt         time.Time  `json:"expires_at"` // idle expiry, slides on use
	AbsoluteExpiresAt time.Time  `json:"absolute_expires_at"`

	persisted bool
}

// OAuthFlow is the state and PKCE verifier of a pending OAuth login.
type OAuthFlow struct {
	Provider     string    `json:"provider"`
	State        string    `json:"state"`
	CodeVerifier string    `json:"code_verifier"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != ""
}

// Persisted reports whether the session exists in the store.
func (s *Session) Persisted() bool {
	return s != nil && s.persisted
}

// Store defines how sessions are stored and retrieved.
// Implementations (e.g., Redis) must remain stateless and opaque.
// Get returns (nil, nil) when the session does not exist.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, sessionID string) error
}
