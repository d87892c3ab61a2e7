package auth

// Profile is a normalized external identity returned by an OAuth provider
// after the token exchange. It contains facts only, no decisions.
type Profile struct {
	Provider string // e.g. "google", "facebook"
	Subject  string // provider-scoped unique user identifier
	Email    string
	Name     string
}
