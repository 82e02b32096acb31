package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
)

// UserIDKey is the gin context key holding the authenticated user ID, set
// by RequireUser.
const UserIDKey = "user_id"

// RequireUser extracts the caller's user ID from the X-User-ID header.
// Authentication provider
// internals (how that header gets populated — JWT, session cookie, a
// gateway claim) sit outside this service; RequireUser only enforces that
// every request downstream of it carries one.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.Error(&ErrUnauthorized{Err: errors.New("missing X-User-ID header")})
			c.Abort()
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID reads the authenticated user ID stashed by RequireUser.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(UserIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
