package middleware

import (
	"context"
	"net/http"

	"github.com/debapps/WebAuthSecurity/internal/auth"
	"github.com/debapps/WebAuthSecurity/internal/logger"
	"github.com/debapps/WebAuthSecurity/internal/session"
)

type Identities interface {
	CurrentIdentity(ctx context.Context, sess *session.Session) (*auth.User, error)
}

type AuthMiddleware struct {
	Sessions          *session.Manager
	Identities        Identities
	SaveUninitialized bool
	LoginPath         string
}

func NewAuthMiddleware(sessions *session.Manager, identities Identities, saveUninitialized bool) *AuthMiddleware {
	return &AuthMiddleware{
		Sessions:          sessions,
		Identities:        identities,
		SaveUninitialized: saveUninitialized,
		LoginPath:         "/login",
	}
}

// LoadSession attaches the request's session and current identity to the
// request context. A session store outage fails the request with 503.
func (a *AuthMiddleware) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		// 1. Load session by cookie
		sess, err := a.Sessions.LoadRequest(r)
		if err != nil {
			logger.Error("session load failed", map[string]any{
				"error": err.Error(),
			})
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}

		// 2. Unknown or expired cookie
		if sess == nil {
			if c, err := r.Cookie(a.Sessions.CookieName()); err == nil && c.Value != "" {
				a.Sessions.ClearCookie(w)
			}
		}

		// 3. Create, touch or leave alone
		switch {
		case sess == nil && a.SaveUninitialized:
			sess, err = a.Sessions.New()
			if err == nil {
				err = a.Sessions.Save(ctx, sess)
			}
			if err != nil {
				logger.Error("session create failed", map[string]any{
					"error": err.Error(),
				})
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
			a.Sessions.WriteCookie(w, sess)
		case sess != nil:
			if err := a.Sessions.Touch(ctx, sess); err != nil {
				logger.Warn("session touch failed", map[string]any{
					"error": err.Error(),
				})
			}
		}

		// 4. Resolve the principal
		identity, err := a.Identities.CurrentIdentity(ctx, sess)
		if err != nil {
			logger.Error("identity lookup failed", map[string]any{
				"error": err.Error(),
			})
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}

		ctx = WithSession(ctx, sess)
		ctx = WithIdentity(ctx, identity)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth redirects anonymous requests to the login page. It must run
// after LoadSession.
func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFromContext(r.Context()) == nil {
			http.Redirect(w, r, a.LoginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
