package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"github.com/campusbeep/beep-server/internal/api/handlers"
	"github.com/campusbeep/beep-server/internal/api/middleware"
	"github.com/campusbeep/beep-server/pkg/logger"
)

// RateLimits holds per-surface request budgets
type RateLimits struct {
	RideRequestsPerMinute int
	GeneralPerMinute      int
}

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, nrApp *newrelic.Application,
	redisClient *redis.Client, limits RateLimits, log *logger.Logger) {
	// Add New Relic middleware if enabled
	if nrApp != nil {
		r.Use(nrgin.Middleware(nrApp))
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	general := middleware.RateLimit(redisClient, "general", limits.GeneralPerMinute, time.Minute, log)

	// API v1 routes
	v1 := r.Group("/v1")
	v1.Use(general)
	{
		// WebSocket connection
		v1.GET("/ws", h.HandleWebSocket)

		// Rider surface
		rides := v1.Group("/rides")
		{
			rides.POST("", middleware.RateLimit(redisClient, "ride_requests", limits.RideRequestsPerMinute, time.Minute, log), h.RequestRide)
			rides.GET("/status", h.GetStatus)
			rides.DELETE("", h.CancelRide)
		}

		// Beeper surface
		queue := v1.Group("/queue")
		{
			queue.GET("", h.GetQueue)
			queue.POST("/:id", h.ApplyCommand)
		}
		v1.PUT("/beepers/settings", h.UpdateSettings)

		// Admin surface (read-only)
		admin := v1.Group("/admin")
		{
			admin.GET("/beeps", h.ListBeeps)
		}
	}
}
