package auth

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCredentialFailure(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrUserNotFound, true},
		{fmt.Errorf("local: %w", ErrBadPassword), true},
		{fmt.Errorf("google: %w", ErrTokenExchangeFailed), true},
		{ErrProviderDenied, true},
		{ErrStoreUnavailable, false},
		{ErrAlreadyExists, false},
		{nil, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsCredentialFailure(tt.err), "%v", tt.err)
	}
}

func TestUserAccessors(t *testing.T) {
	var nilUser *User
	assert.Equal(t, "", nilUser.Username())

	u := &User{
		ID:       "u-1",
		Local:    &LocalCredential{Username: "alice"},
		External: map[string]string{"google": "g-1"},
	}
	assert.Equal(t, "alice", u.Username())

	id, ok := u.ExternalID("google")
	assert.True(t, ok)
	assert.Equal(t, "g-1", id)

	_, ok = u.ExternalID("facebook")
	assert.False(t, ok)
}
