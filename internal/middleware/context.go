package middleware

import (
	"context"

	"github.com/debapps/WebAuthSecurity/internal/auth"
	"github.com/debapps/WebAuthSecurity/internal/session"
)

// unexported, collision-proof context keys
type sessionContextKeyType struct{}
type identityContextKeyType struct{}

var (
	sessionKey  = sessionContextKeyType{}
	identityKey = identityContextKeyType{}
)

func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the request's session, if one exists.
func SessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

func WithIdentity(ctx context.Context, u *auth.User) context.Context {
	return context.WithValue(ctx, identityKey, u)
}

// IdentityFromContext returns the authenticated user or nil.
func IdentityFromContext(ctx context.Context) *auth.User {
	u, _ := ctx.Value(identityKey).(*auth.User)
	return u
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	u := IdentityFromContext(ctx)
	if u == nil {
		return "", false
	}
	return u.ID, true
}
