package middleware

import (
	"context"
	"net/http"
	"strconv"

	"threadline/internal/logger"
	"threadline/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const CheckUserKey = "user"

// SessionUserKey is the session field holding the signed-in user's id.
const SessionUserKey = "user_id"

type UserFinder interface {
	FindUser(ctx context.Context, id uint) (models.User, error)
}

// AuthRequired rejects requests without a loaded user. LoadUser must run first.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(CheckUserKey); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

// LoadUser retrieves the user from the session and sets it on the context.
// A session pointing at a vanished user is treated as signed out.
func LoadUser(users UserFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if id, ok := sessionUserID(session.Get(SessionUserKey)); ok {
			user, err := users.FindUser(c.Request.Context(), id)
			if err == nil {
				c.Set(CheckUserKey, &user)
			} else {
				logger.Debug("Session user not loaded", zap.Uint("user_id", id), zap.Error(err))
			}
		}
		c.Next()
	}
}

func sessionUserID(v any) (uint, bool) {
	switch id := v.(type) {
	case uint:
		return id, id > 0
	case int:
		return uint(id), id > 0
	case int64:
		return uint(id), id > 0
	case uint64:
		return uint(id), id > 0
	case float64:
		return uint(id), id > 0
	case string:
		n, err := strconv.ParseUint(id, 10, 64)
		return uint(n), err == nil && n > 0
	}
	return 0, false
}
