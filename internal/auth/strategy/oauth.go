package strategy

import (
	"context"
	"fmt"

	"github.com/debapps/WebAuthSecurity/internal/auth"
	"github.com/debapps/WebAuthSecurity/internal/auth/provider"
)

type ExternalUsers interface {
	FindOrCreateByExternal(ctx context.Context, provider, externalID string) (*auth.User, error)
}

// OAuth turns an authorization code into a user: the provider verifies
// the code and returns a profile, the profile subject is mapped to a user.
type OAuth struct {
	provider provider.OAuthProvider
	users    ExternalUsers
}

func NewOAuth(p provider.OAuthProvider, users ExternalUsers) *OAuth {
	return &OAuth{provider: p, users: users}
}

func (o *OAuth) Name() string {
	return o.provider.Name()
}

func (o *OAuth) AuthCodeURL(state, codeVerifier string) string {
	return o.provider.AuthCodeURL(state, codeVerifier)
}

func (o *OAuth) Authenticate(ctx context.Context, creds Credentials) (*auth.User, error) {
	if creds.Code == "" {
		return nil, fmt.Errorf("%s: %w: callback without code", o.Name(), auth.ErrProviderError)
	}

	profile, err := o.provider.ExchangeCode(ctx, creds.Code, creds.CodeVerifier)
	if err != nil {
		return nil, err
	}

	if profile == nil || profile.Subject == "" {
		return nil, fmt.Errorf("%s: %w: profile has no subject", o.Name(), auth.ErrProviderError)
	}

	return o.users.FindOrCreateByExternal(ctx, o.Name(), profile.Subject)
}
