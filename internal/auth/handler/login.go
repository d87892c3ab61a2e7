package handler

import (
	"net/http"

	"github.com/debapps/WebAuthSecurity/internal/logger"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

func (h *Handler) loginPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"page":      "login",
		"error":     c.Query("error"),
		"providers": h.gateway.Providers(),
	})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.Redirect(http.StatusFound, "/login?error=invalid_request")
		return
	}

	user, err := h.gateway.AuthenticateLocal(
		c.Request.Context(),
		req.Username,
		req.Password,
	)
	if err != nil {
		logger.Warn("local login failed", map[string]any{
			"error": err.Error(),
		})
		h.fail(c, err, "/login?error=bad_credentials")
		return
	}

	h.establish(c, user)
}
