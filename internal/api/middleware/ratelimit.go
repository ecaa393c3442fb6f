package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/campusbeep/beep-server/pkg/cache"
	apperrors "github.com/campusbeep/beep-server/pkg/errors"
	"github.com/campusbeep/beep-server/pkg/logger"
)

// RateLimit bounds requests per user per window using a Redis counter.
// With no Redis client it is a no-op, so the limit degrades open
// rather than taking the API down with the cache.
func RateLimit(client *redis.Client, name string, limit int, window time.Duration, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || limit <= 0 {
			c.Next()
			return
		}

		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			userID = c.ClientIP()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", name, userID)
		count, err := cache.IncrWithWindow(c.Request.Context(), client, key, window)
		if err != nil {
			log.Warn("Rate limit check failed", logger.Err(err))
			c.Next()
			return
		}

		if count > int64(limit) {
			appErr := apperrors.ErrRateLimitExceeded
			c.AbortWithStatusJSON(appErr.Status, gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			})
			return
		}
		c.Next()
	}
}
