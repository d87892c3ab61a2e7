package strategy

import (
	"context"
	"strings"

	"github.com/debapps/WebAuthSecurity/internal/auth"
)

type LocalVerifier interface {
	VerifyLocal(ctx context.Context, username, password string) (*auth.User, error)
}

// Local authenticates a username and password against the user store.
type Local struct {
	users LocalVerifier
}

func NewLocal(users LocalVerifier) *Local {
	return &Local{users: users}
}

func (l *Local) Name() string {
	return LocalName
}

func (l *Local) Authenticate(ctx context.Context, creds Credentials) (*auth.User, error) {
	if strings.TrimSpace(creds.Username) == "" {
		return nil, auth.ErrUserNotFound
	}
	return l.users.VerifyLocal(ctx, creds.Username, creds.Password)
}
