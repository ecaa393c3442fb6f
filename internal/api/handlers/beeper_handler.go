package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusbeep/beep-server/internal/api/dto"
	"github.com/campusbeep/beep-server/pkg/logger"
)

// UpdateSettings handles PUT /v1/beepers/settings
func (h *Handlers) UpdateSettings(c *gin.Context) {
	beeperID, ok := h.userID(c)
	if !ok {
		return
	}

	var req dto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	h.Logger.Info("Beeper settings update",
		logger.String("beeper_id", beeperID.String()),
		logger.Bool("is_beeping", *req.IsBeeping),
		logger.Int("capacity", req.Capacity),
	)

	u, err := h.Engine.UpdateSettings(c.Request.Context(), beeperID, *req.IsBeeping, req.Capacity)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         u.ID,
		"is_beeping": u.IsBeeping,
		"capacity":   u.Capacity,
		"queue_size": u.QueueSize,
	})
}
