package middleware

import (
	"net/http"
	"time"

	"github.com/debapps/WebAuthSecurity/internal/logger"

	"github.com/gin-gonic/gin"
)

// Gin adapts a net/http middleware to Gin. If the middleware does not call
// next, the rest of the Gin chain is aborted.
func Gin(mw func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		called := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			c.Request = r
			c.Next()
		})

		mw(next).ServeHTTP(c.Writer, c.Request)

		// A bodyless redirect leaves Written() false, so it cannot be
		// used to detect a short-circuit.
		if !called {
			c.Abort()
		}
	}
}

func GinLoadSession(a *AuthMiddleware) gin.HandlerFunc {
	return Gin(a.LoadSession)
}

func GinRequireAuth(a *AuthMiddleware) gin.HandlerFunc {
	return Gin(a.RequireAuth)
}

// RequestLogger logs one line per request. Query strings are left out
// since OAuth callbacks carry codes in them.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := map[string]any{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		}
		if userID, ok := UserIDFromContext(c.Request.Context()); ok {
			fields["user_id"] = userID
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", fields)
		default:
			logger.Info("request", fields)
		}
	}
}
