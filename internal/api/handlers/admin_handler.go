package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campusbeep/beep-server/internal/api/dto"
	"github.com/campusbeep/beep-server/internal/domain/beep"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// ListBeeps handles GET /v1/admin/beeps
func (h *Handlers) ListBeeps(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var (
		records []*beep.Record
		err     error
	)
	if raw := c.Query("beeper_id"); raw != "" {
		beeperID, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid beeper_id"})
			return
		}
		records, err = h.Store.Beeps().ListByBeeper(c.Request.Context(), beeperID, limit, offset)
	} else {
		records, err = h.Store.Beeps().List(c.Request.Context(), limit, offset)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]dto.RecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, dto.RecordResponse{
			ID:          r.ID,
			BeeperID:    r.BeeperID,
			RiderID:     r.RiderID,
			Origin:      r.Origin,
			Destination: r.Destination,
			GroupSize:   r.GroupSize,
			Outcome:     string(r.Outcome),
			EnqueuedAt:  r.EnqueuedAt,
			CompletedAt: r.CompletedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"beeps": out, "limit": limit, "offset": offset})
}
