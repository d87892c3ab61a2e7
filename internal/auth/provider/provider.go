package provider

import (
	"context"

	"github.com/debapps/WebAuthSecurity/internal/auth"
)

// OAuthProvider defines the contract every external auth provider
// must implement. Implementations return identity facts only and
// must not perform user creation, linking, or session management.
type OAuthProvider interface {
	// Name returns the provider identifier (e.g. "google", "facebook").
	Name() string

	// AuthCodeURL returns the OAuth authorization URL. The S256 PKCE
	// challenge is derived from codeVerifier.
	AuthCodeURL(state string, codeVerifier string) string

	// ExchangeCode exchanges the authorization code for provider credentials
	// and returns a normalized profile. Tokens never leave the provider.
	//
	// Failures wrap auth.ErrTokenExchangeFailed or auth.ErrProviderError.
	ExchangeCode(
		ctx context.Context,
		code string,
		codeVerifier string,
	) (*auth.Profile, error)
}
