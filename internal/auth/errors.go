package auth

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrBadPassword         = errors.New("bad password")
	ErrAlreadyExists       = errors.New("user already exists")
	ErrProviderDenied      = errors.New("provider denied authorization")
	ErrProviderError       = errors.New("provider error")
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrNotFound            = errors.New("not found")
	ErrUnknownStrategy     = errors.New("unknown strategy")
	ErrPasswordTooShort    = errors.New("password too short")
)

// IsCredentialFailure reports whether err is a login failure the user can
// retry from the login page, as opposed to an infrastructure fault.
func IsCredentialFailure(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrBadPassword) ||
		errors.Is(err, ErrProviderDenied) ||
		errors.Is(err, ErrProviderError) ||
		errors.Is(err, ErrTokenExchangeFailed) ||
		errors.Is(err, ErrUnknownStrategy)
}
