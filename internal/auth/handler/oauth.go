package handler

import (
	"errors"
	"net/http"

	"github.com/debapps/WebAuthSecurity/internal/auth"
	"github.com/debapps/WebAuthSecurity/internal/logger"
	"github.com/debapps/WebAuthSecurity/internal/middleware"

	"github.com/gin-gonic/gin"
)

func (h *Handler) beginOAuth(c *gin.Context) {
	ctx := c.Request.Context()
	providerName := c.Param("provider")

	sess := middleware.SessionFromContext(ctx)
	if sess == nil {
		var err error
		if sess, err = h.sessions.New(); err != nil {
			h.fail(c, err, "/login")
			return
		}
	}

	authURL, err := h.gateway.BeginOAuth(ctx, sess, providerName)
	if errors.Is(err, auth.ErrUnknownStrategy) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "unknown oauth provider",
		})
		return
	}
	if err != nil {
		h.fail(c, err, "/login")
		return
	}

	h.sessions.WriteCookie(c.Writer, sess)
	c.Redirect(http.StatusFound, authURL)
}

func (h *Handler) oauthCallback(c *gin.Context) {
	ctx := c.Request.Context()
	providerName := c.Param("provider")

	user, err := h.gateway.CompleteOAuth(
		ctx,
		middleware.SessionFromContext(ctx),
		providerName,
		c.Request.URL.Query(),
	)
	if err != nil {
		logger.Warn("oauth callback failed", map[string]any{
			"provider": providerName,
			"error":    err.Error(),
		})
		h.fail(c, err, "/login?error=oauth_failed")
		return
	}

	h.establish(c, user)
}
