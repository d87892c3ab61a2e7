package strategy

import (
	"context"

	"github.com/debapps/WebAuthSecurity/internal/auth"
)

const LocalName = "local"

// Credentials carries whatever a strategy needs. Local uses Username and
// Password; OAuth strategies use Code and CodeVerifier.
type Credentials struct {
	Username     string
	Password     string
	Code         string
	CodeVerifier string
}

// Strategy authenticates one kind of credential and yields the durable user.
type Strategy interface {
	Name() string
	Authenticate(ctx context.Context, creds Credentials) (*auth.User, error)
}
