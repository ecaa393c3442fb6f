package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campusbeep/beep-server/internal/api/dto"
	"github.com/campusbeep/beep-server/internal/domain/queue"
	"github.com/campusbeep/beep-server/pkg/logger"
)

// GetQueue handles GET /v1/queue
func (h *Handlers) GetQueue(c *gin.Context) {
	beeperID, ok := h.userID(c)
	if !ok {
		return
	}

	views, err := h.Engine.GetQueue(c.Request.Context(), beeperID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	entries := make([]dto.EntryResponse, 0, len(views))
	for _, v := range views {
		entries = append(entries, entryResponse(v))
	}
	c.JSON(http.StatusOK, dto.QueueResponse{
		BeeperID: beeperID.String(),
		Entries:  entries,
	})
}

// ApplyCommand handles POST /v1/queue/:id
func (h *Handlers) ApplyCommand(c *gin.Context) {
	beeperID, ok := h.userID(c)
	if !ok {
		return
	}

	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entry id"})
		return
	}

	var req dto.ApplyCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	h.Logger.Info("Queue command received",
		logger.String("beeper_id", beeperID.String()),
		logger.String("entry_id", entryID.String()),
		logger.String("command", req.Command),
	)

	entry, err := h.Engine.ApplyCommand(c.Request.Context(), beeperID, entryID, queue.Command(req.Command))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       entry.ID,
		"progress": entry.Progress,
		"accepted": entry.Accepted,
	})
}
