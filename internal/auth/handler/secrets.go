package handler

import (
	"net/http"
	"strings"

	"github.com/debapps/WebAuthSecurity/internal/middleware"

	"github.com/gin-gonic/gin"
)

type submitRequest struct {
	Secret string `form:"secret" json:"secret"`
}

func (h *Handler) secrets(c *gin.Context) {
	ctx := c.Request.Context()

	secrets, err := h.gateway.Secrets(ctx, middleware.IdentityFromContext(ctx))
	if err != nil {
		h.fail(c, err, "/login")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"secrets": secrets,
	})
}

func (h *Handler) submitPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"page":  "submit",
		"error": c.Query("error"),
	})
}

func (h *Handler) submit(c *gin.Context) {
	ctx := c.Request.Context()

	var req submitRequest
	if err := c.ShouldBind(&req); err != nil || strings.TrimSpace(req.Secret) == "" {
		c.Redirect(http.StatusFound, "/submit?error=empty")
		return
	}

	if err := h.gateway.SubmitSecret(ctx, middleware.IdentityFromContext(ctx), req.Secret); err != nil {
		h.fail(c, err, "/submit")
		return
	}

	c.Redirect(http.StatusFound, "/secrets")
}

func (h *Handler) deleteAccount(c *gin.Context) {
	ctx := c.Request.Context()

	err := h.gateway.DeleteAccount(
		ctx,
		middleware.SessionFromContext(ctx),
		middleware.IdentityFromContext(ctx),
	)
	if err != nil {
		h.fail(c, err, "/")
		return
	}

	h.sessions.ClearCookie(c.Writer)
	c.Redirect(http.StatusFound, "/")
}
