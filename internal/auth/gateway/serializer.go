package gateway

import (
	"context"
	"errors"

	"github.com/debapps/WebAuthSecurity/internal/auth"
)

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*auth.User, error)
}

// Serializer converts between a user and the principal id kept in the
// session. Only the id is ever stored.
type Serializer struct {
	users UserFinder
}

func NewSerializer(users UserFinder) *Serializer {
	return &Serializer{users: users}
}

func (s *Serializer) Serialize(user *auth.User) string {
	return user.ID
}

// Deserialize returns the user for principalID, or (nil, nil) when the
// record no longer exists. Store failures are returned as is.
func (s *Serializer) Deserialize(ctx context.Context, principalID string) (*auth.User, error) {
	user, err := s.users.FindByID(ctx, principalID)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
