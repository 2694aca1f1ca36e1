package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cvbot-backend/internal/shared/server/respond"
)

const (
	adminHeader  = "X-Admin-Token"
	principalKey = "principal"
	userIDKey    = "userId"
)

// AdminAuth guards operator endpoints with a shared token. An empty token
// disables the routes entirely.
func AdminAuth(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		if token == "" {
			respond.Error(c, http.StatusServiceUnavailable, "admin_disabled", "admin token not configured", nil)
			return
		}
		got := strings.TrimSpace(c.GetHeader(adminHeader))
		if got == "" {
			if h := strings.TrimSpace(c.GetHeader("Authorization")); strings.HasPrefix(h, "Bearer ") {
				got = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			}
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid admin token", nil)
			return
		}
		c.Set(principalKey, "admin")
		c.Next()
	}
}

// SetUserID records the chat user a request acts on so logging and rate
// limiting can key on it.
func SetUserID(c *gin.Context, userID string) {
	if c == nil || userID == "" {
		return
	}
	c.Set(userIDKey, userID)
}

// UserIDFromContext returns the chat user recorded for the request, if any.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// PrincipalFromContext reports who authenticated the request.
func PrincipalFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(principalKey)
}
