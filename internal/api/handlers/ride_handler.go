package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campusbeep/beep-server/internal/api/dto"
	"github.com/campusbeep/beep-server/internal/service/position"
	"github.com/campusbeep/beep-server/pkg/logger"
)

// RequestRide handles POST /v1/rides
func (h *Handlers) RequestRide(c *gin.Context) {
	riderID, ok := h.userID(c)
	if !ok {
		return
	}

	var req dto.RequestRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}
	beeperID, err := uuid.Parse(req.BeeperID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid beeper_id"})
		return
	}

	h.Logger.Info("Ride request received",
		logger.String("rider_id", riderID.String()),
		logger.String("beeper_id", req.BeeperID),
		logger.Int("group_size", req.GroupSize),
	)

	entry, err := h.Engine.RequestRide(c.Request.Context(), riderID, beeperID, req.Origin, req.Destination, req.GroupSize)
	if err != nil {
		h.respondError(c, err)
		return
	}

	pos, err := h.Engine.GetStatus(c.Request.Context(), riderID)
	if err != nil {
		// Entry was just created; fall back to showing it last.
		c.JSON(http.StatusCreated, entryResponse(position.RiderView{Entry: entry, Position: 0}))
		return
	}
	c.JSON(http.StatusCreated, entryResponse(*pos))
}

// GetStatus handles GET /v1/rides/status
func (h *Handlers) GetStatus(c *gin.Context) {
	riderID, ok := h.userID(c)
	if !ok {
		return
	}

	view, err := h.Engine.GetStatus(c.Request.Context(), riderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entryResponse(*view))
}

// CancelRide handles DELETE /v1/rides
func (h *Handlers) CancelRide(c *gin.Context) {
	riderID, ok := h.userID(c)
	if !ok {
		return
	}

	if err := h.Engine.Cancel(c.Request.Context(), riderID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}
