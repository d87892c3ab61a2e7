package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/debapps/WebAuthSecurity/internal/auth"
	"github.com/debapps/WebAuthSecurity/internal/logger"
	"github.com/debapps/WebAuthSecurity/internal/middleware"
	"github.com/debapps/WebAuthSecurity/internal/session"

	"github.com/gin-gonic/gin"
)

// Gateway is the authentication surface the handlers drive.
type Gateway interface {
	Providers() []string
	AuthenticateLocal(ctx context.Context, username, password string) (*auth.User, error)
	RegisterLocal(ctx context.Context, username, password string) (*auth.User, error)
	BeginOAuth(ctx context.Context, sess *session.Session, provider string) (string, error)
	CompleteOAuth(ctx context.Context, sess *session.Session, provider string, params url.Values) (*auth.User, error)
	Login(ctx context.Context, sess *session.Session, user *auth.User) (*session.Session, error)
	Logout(ctx context.Context, sess *session.Session) error
	SubmitSecret(ctx context.Context, identity *auth.User, text string) error
	Secrets(ctx context.Context, identity *auth.User) ([]string, error)
	DeleteAccount(ctx context.Context, sess *session.Session, identity *auth.User) error
}

type Handler struct {
	gateway  Gateway
	sessions *session.Manager
}

func NewHandler(gateway Gateway, sessions *session.Manager) *Handler {
	return &Handler{
		gateway:  gateway,
		sessions: sessions,
	}
}

// RegisterRoutes mounts the public and protected routes. The router must
// already run the session-loading middleware.
func (h *Handler) RegisterRoutes(r *gin.Engine, authMiddleware *middleware.AuthMiddleware) {
	r.GET("/", h.home)
	r.GET("/login", h.loginPage)
	r.POST("/login", h.login)
	r.GET("/register", h.registerPage)
	r.POST("/register", h.register)
	r.GET("/logout", h.logout)
	r.GET("/auth/:provider", h.beginOAuth)
	r.GET("/auth/:provider/secrets", h.oauthCallback)

	protected := r.Group("/")
	protected.Use(middleware.GinRequireAuth(authMiddleware))
	protected.GET("/secrets", h.secrets)
	protected.GET("/submit", h.submitPage)
	protected.POST("/submit", h.submit)
	protected.POST("/account/delete", h.deleteAccount)
}

func (h *Handler) home(c *gin.Context) {
	identity := middleware.IdentityFromContext(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"page":          "home",
		"authenticated": identity != nil,
	})
}

func (h *Handler) logout(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.gateway.Logout(ctx, middleware.SessionFromContext(ctx)); err != nil {
		h.fail(c, err, "/")
		return
	}

	h.sessions.ClearCookie(c.Writer)
	c.Redirect(http.StatusFound, "/")
}

// establish binds user to a new session, issues its cookie and lands the
// client on the secrets page.
func (h *Handler) establish(c *gin.Context, user *auth.User) {
	ctx := c.Request.Context()

	fresh, err := h.gateway.Login(ctx, middleware.SessionFromContext(ctx), user)
	if err != nil {
		h.fail(c, err, "/login")
		return
	}

	h.sessions.WriteCookie(c.Writer, fresh)
	c.Redirect(http.StatusFound, "/secrets")
}

// fail maps an error to a response. Credential failures send the client
// back to redirect; infrastructure faults become 503 or 500.
func (h *Handler) fail(c *gin.Context, err error, redirect string) {
	switch {
	case errors.Is(err, auth.ErrStoreUnavailable):
		logger.Error("store unavailable", map[string]any{
			"path":  c.Request.URL.Path,
			"error": err.Error(),
		})
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	case errors.Is(err, auth.ErrUnauthenticated):
		c.Redirect(http.StatusFound, "/login")
	case auth.IsCredentialFailure(err):
		c.Redirect(http.StatusFound, redirect)
	default:
		logger.Error("request failed", map[string]any{
			"path":  c.Request.URL.Path,
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
