package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campusbeep/beep-server/internal/api/dto"
	"github.com/campusbeep/beep-server/internal/service/engine"
	"github.com/campusbeep/beep-server/internal/service/position"
	"github.com/campusbeep/beep-server/internal/storage"
	apperrors "github.com/campusbeep/beep-server/pkg/errors"
	"github.com/campusbeep/beep-server/pkg/logger"
	"github.com/campusbeep/beep-server/pkg/websocket"
)

// Handlers holds all handler dependencies
type Handlers struct {
	Engine *engine.Engine
	Store  storage.Store
	Logger *logger.Logger
	Hub    *websocket.Hub
}

// NewHandlers creates a new Handlers instance
func NewHandlers(eng *engine.Engine, store storage.Store, log *logger.Logger, hub *websocket.Hub) *Handlers {
	return &Handlers{
		Engine: eng,
		Store:  store,
		Logger: log,
		Hub:    hub,
	}
}

// userID extracts the authenticated user from the X-User-ID header.
// Auth token verification lives in front of this service; the header
// is the seam it fills in.
func (h *Handlers) userID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetHeader("X-User-ID")
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Code:    "UNAUTHORIZED",
			Message: "Missing or invalid X-User-ID header",
		})
		return uuid.Nil, false
	}
	return id, true
}

// respondError translates engine failures into the error envelope
func (h *Handlers) respondError(c *gin.Context, err error) {
	appErr := apperrors.GetAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.Logger.Error("Request failed",
			logger.String("path", c.FullPath()),
			logger.Err(err),
		)
	}
	c.JSON(appErr.Status, dto.ErrorResponse{Code: appErr.Code, Message: appErr.Message})
}

func entryResponse(v position.RiderView) dto.EntryResponse {
	return dto.EntryResponse{
		ID:          v.Entry.ID,
		BeeperID:    v.Entry.BeeperID,
		RiderID:     v.Entry.RiderID,
		Origin:      v.Entry.Origin,
		Destination: v.Entry.Destination,
		GroupSize:   v.Entry.GroupSize,
		EnqueuedAt:  v.Entry.EnqueuedAt,
		Accepted:    v.Entry.Accepted,
		Progress:    string(v.Entry.Progress),
		Position:    v.Position,
	}
}
