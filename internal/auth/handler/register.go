package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/debapps/WebAuthSecurity/internal/auth"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

func (h *Handler) registerPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"page":  "register",
		"error": c.Query("error"),
	})
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil || strings.TrimSpace(req.Username) == "" {
		c.Redirect(http.StatusFound, "/register?error=invalid_request")
		return
	}

	user, err := h.gateway.RegisterLocal(
		c.Request.Context(),
		req.Username,
		req.Password,
	)

	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAlreadyExists):
			c.Redirect(http.StatusFound, "/register?error=already_exists")
		case errors.Is(err, auth.ErrPasswordTooShort):
			c.Redirect(http.StatusFound, "/register?error=weak_password")
		default:
			h.fail(c, err, "/register")
		}
		return
	}

	h.establish(c, user)
}
