package session

import (
	"net/http"
	"time"
)

// CookieName is the default session cookie. The __Host- prefix pins it to
// Secure, Path=/ and no Domain.
const CookieName = "__Host-session"

type CookieOptions struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func (o CookieOptions) withDefaults() CookieOptions {
	if o.Name == "" {
		o.Name = CookieName
	}
	if o.Path == "" {
		o.Path = "/"
	}
	if o.SameSite == 0 {
		// Lax survives the top-level redirect back from an OAuth provider.
		o.SameSite = http.SameSiteLaxMode
	}
	return o
}

func (o CookieOptions) build(value string) *http.Cookie {
	o = o.withDefaults()
	return &http.Cookie{
		Name:     o.Name,
		Value:    value,
		Path:     o.Path,
		Domain:   o.Domain,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	}
}

// SetCookie issues the session cookie, expiring with the session's absolute
// lifetime.
func SetCookie(w http.ResponseWriter, sessionID string, expiresAt time.Time, opts CookieOptions) {
	c := opts.build(sessionID)
	c.Expires = expiresAt
	http.SetCookie(w, c)
}

func ClearCookie(w http.ResponseWriter, opts CookieOptions) {
	c := opts.build("")
	c.MaxAge = -1
	http.SetCookie(w, c)
}
