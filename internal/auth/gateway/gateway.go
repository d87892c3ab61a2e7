package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/debapps/WebAuthSecurity/internal/auth"
	"github.com/debapps/WebAuthSecurity/internal/auth/strategy"
	"github.com/debapps/WebAuthSecurity/internal/logger"
	"github.com/debapps/WebAuthSecurity/internal/session"
	"github.com/debapps/WebAuthSecurity/internal/telemetry"
	"github.com/debapps/WebAuthSecurity/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
)

const oauthFlowTTL = 10 * time.Minute

var tracer = otel.Tracer("github.com/debapps/WebAuthSecurity/internal/auth/gateway")

// Users is the user store as seen by the gateway.
type Users interface {
	UserFinder
	CreateLocal(ctx context.Context, username, password string) (*auth.User, error)
	SetSecret(ctx context.Context, userID, secret string) error
	ListUsersWithSecret(ctx context.Context) ([]*auth.User, error)
	Delete(ctx context.Context, userID string) error
}

type Sessions interface {
	New() (*session.Session, error)
	Save(ctx context.Context, s *session.Session) error
	Rotate(ctx context.Context, old *session.Session) (*session.Session, error)
	Destroy(ctx context.Context, s *session.Session) error
}

// Gateway runs strategies, binds the resulting identity to the session and
// guards protected operations.
type Gateway struct {
	engine     *strategy.Engine
	users      Users
	serializer *Serializer
	sessions   Sessions
	now        func() time.Time
}

func New(engine *strategy.Engine, users Users, sessions Sessions) *Gateway {
	return &Gateway{
		engine:     engine,
		users:      users,
		serializer: NewSerializer(users),
		sessions:   sessions,
		now:        time.Now,
	}
}

// Providers lists the enabled OAuth providers.
func (g *Gateway) Providers() []string {
	return g.engine.Providers()
}

func (g *Gateway) AuthenticateLocal(ctx context.Context, username, password string) (user *auth.User, err error) {
	ctx, span := tracer.Start(ctx, "gateway.AuthenticateLocal")
	defer func() { telemetry.EndSpan(span, storeFault(err)) }()

	return g.engine.Local().Authenticate(ctx, strategy.Credentials{
		Username: username,
		Password: password,
	})
}

func (g *Gateway) RegisterLocal(ctx context.Context, username, password string) (user *auth.User, err error) {
	ctx, span := tracer.Start(ctx, "gateway.RegisterLocal")
	defer func() { telemetry.EndSpan(span, storeFault(err)) }()

	return g.users.CreateLocal(ctx, username, password)
}

// BeginOAuth records a pending flow in sess and returns the provider's
// authorization URL. sess is saved.
func (g *Gateway) BeginOAuth(ctx context.Context, sess *session.Session, provider string) (redirect string, err error) {
	ctx, span := tracer.Start(ctx, "gateway.BeginOAuth")
	span.SetAttributes(attribute.String("auth.provider", provider))
	defer func() { telemetry.EndSpan(span, storeFault(err)) }()

	strat, err := g.engine.OAuth(provider)
	if err != nil {
		return "", err
	}

	state, err := utils.RandomString(32)
	if err != nil {
		return "", err
	}
	verifier := oauth2.GenerateVerifier()

	sess.OAuth = &session.OAuthFlow{
		Provider:     provider,
		State:        state,
		CodeVerifier: verifier,
		ExpiresAt:    g.now().Add(oauthFlowTTL),
	}

	if err := g.sessions.Save(ctx, sess); err != nil {
		return "", fmt.Errorf("gateway: %w: %w", auth.ErrStoreUnavailable, err)
	}

	return strat.AuthCodeURL(state, verifier), nil
}

// CompleteOAuth validates the callback against the pending flow in sess and
// runs the provider's strategy. The pending flow is consumed either way.
func (g *Gateway) CompleteOAuth(ctx context.Context, sess *session.Session, provider string, params url.Values) (user *auth.User, err error) {
	ctx, span := tracer.Start(ctx, "gateway.CompleteOAuth")
	span.SetAttributes(attribute.String("auth.provider", provider))
	defer func() { telemetry.EndSpan(span, storeFault(err)) }()

	strat, err := g.engine.OAuth(provider)
	if err != nil {
		return nil, err
	}

	var flow *session.OAuthFlow
	if sess != nil {
		flow = sess.OAuth
		if flow != nil {
			sess.OAuth = nil
			if err := g.sessions.Save(ctx, sess); err != nil {
				return nil, fmt.Errorf("gateway: %w: %w", auth.ErrStoreUnavailable, err)
			}
		}
	}

	if reason := params.Get("error"); reason != "" {
		return nil, fmt.Errorf("%s: %w: %s", provider, auth.ErrProviderDenied, reason)
	}

	if flow == nil || flow.Provider != provider || !g.now().Before(flow.ExpiresAt) {
		return nil, fmt.Errorf("%s: %w: no pending login", provider, auth.ErrProviderDenied)
	}

	if subtle.ConstantTimeCompare([]byte(flow.State), []byte(params.Get("state"))) != 1 {
		return nil, fmt.Errorf("%s: %w: state mismatch", provider, auth.ErrProviderDenied)
	}

	return strat.Authenticate(ctx, strategy.Credentials{
		Code:         params.Get("code"),
		CodeVerifier: flow.CodeVerifier,
	})
}

// Login binds user to a freshly rotated session and saves it. The caller
// must issue the cookie for the returned session.
func (g *Gateway) Login(ctx context.Context, sess *session.Session, user *auth.User) (fresh *session.Session, err error) {
	ctx, span := tracer.Start(ctx, "gateway.Login")
	defer func() { telemetry.EndSpan(span, err) }()

	fresh, err = g.sessions.Rotate(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w: %w", auth.ErrStoreUnavailable, err)
	}

	fresh.UserID = g.serializer.Serialize(user)

	if err := g.sessions.Save(ctx, fresh); err != nil {
		return nil, fmt.Errorf("gateway: %w: %w", auth.ErrStoreUnavailable, err)
	}

	logger.Info("login succeeded", map[string]any{
		"user_id": user.ID,
	})
	return fresh, nil
}

// CurrentIdentity returns the user bound to sess, or nil when anonymous.
// A session whose user record is gone is turned anonymous.
func (g *Gateway) CurrentIdentity(ctx context.Context, sess *session.Session) (*auth.User, error) {
	if !sess.Authenticated() {
		return nil, nil
	}

	user, err := g.serializer.Deserialize(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	if user == nil {
		logger.Warn("session principal no longer exists", map[string]any{
			"user_id": sess.UserID,
		})
		sess.UserID = ""
		if err := g.sessions.Save(ctx, sess); err != nil {
			logger.Warn("failed to anonymize session", map[string]any{
				"error": err.Error(),
			})
		}
		return nil, nil
	}

	return user, nil
}

func (g *Gateway) Logout(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return nil
	}

	userID := sess.UserID
	if err := g.sessions.Destroy(ctx, sess); err != nil {
		return fmt.Errorf("gateway: %w: %w", auth.ErrStoreUnavailable, err)
	}
	sess.UserID = ""

	if userID != "" {
		logger.Info("logout", map[string]any{
			"user_id": userID,
		})
	}
	return nil
}

// Require fails with auth.ErrUnauthenticated for anonymous callers.
func (g *Gateway) Require(identity *auth.User) error {
	if identity == nil {
		return auth.ErrUnauthenticated
	}
	return nil
}

// SubmitSecret stores text as the caller's secret.
func (g *Gateway) SubmitSecret(ctx context.Context, identity *auth.User, text string) (err error) {
	if err := g.Require(identity); err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "gateway.SubmitSecret")
	defer func() { telemetry.EndSpan(span, storeFault(err)) }()

	err = g.users.SetSecret(ctx, identity.ID, text)
	if errors.Is(err, auth.ErrNotFound) {
		return auth.ErrUnauthenticated
	}
	return err
}

// Secrets returns every submitted secret, oldest first, without owners.
func (g *Gateway) Secrets(ctx context.Context, identity *auth.User) (secrets []string, err error) {
	if err := g.Require(identity); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "gateway.Secrets")
	defer func() { telemetry.EndSpan(span, err) }()

	users, err := g.users.ListUsersWithSecret(ctx)
	if err != nil {
		return nil, err
	}

	secrets = make([]string, 0, len(users))
	for _, u := range users {
		if u.Secret != nil {
			secrets = append(secrets, *u.Secret)
		}
	}
	return secrets, nil
}

// DeleteAccount removes the caller's record and ends the session.
func (g *Gateway) DeleteAccount(ctx context.Context, sess *session.Session, identity *auth.User) (err error) {
	if err := g.Require(identity); err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "gateway.DeleteAccount")
	defer func() { telemetry.EndSpan(span, storeFault(err)) }()

	if err := g.users.Delete(ctx, identity.ID); err != nil && !errors.Is(err, auth.ErrNotFound) {
		return err
	}

	return g.Logout(ctx, sess)
}

// storeFault keeps ordinary auth failures from marking spans as errors.
func storeFault(err error) error {
	if errors.Is(err, auth.ErrStoreUnavailable) {
		return err
	}
	if err != nil && !auth.IsCredentialFailure(err) &&
		!errors.Is(err, auth.ErrAlreadyExists) &&
		!errors.Is(err, auth.ErrPasswordTooShort) &&
		!errors.Is(err, auth.ErrUnauthenticated) {
		return err
	}
	return nil
}
