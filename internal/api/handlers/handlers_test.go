package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbeep/beep-server/internal/api/dto"
	"github.com/campusbeep/beep-server/internal/domain/user"
	"github.com/campusbeep/beep-server/internal/notify"
	"github.com/campusbeep/beep-server/internal/service/archive"
	"github.com/campusbeep/beep-server/internal/service/engine"
	"github.com/campusbeep/beep-server/internal/service/position"
	"github.com/campusbeep/beep-server/internal/storage"
	"github.com/campusbeep/beep-server/pkg/logger"
)

func newTestRouter(t *testing.T) (*gin.Engine, *storage.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemoryStore()
	log := logger.NewNop()
	coordinator := position.NewCoordinator(store, notify.Nop{}, nil, log)
	eng := engine.New(store, archive.NewArchiver(log), coordinator, nil, engine.Config{}, log)
	h := NewHandlers(eng, store, log, nil)

	r := gin.New()
	v1 := r.Group("/v1")
	{
		v1.POST("/rides", h.RequestRide)
		v1.GET("/rides/status", h.GetStatus)
		v1.DELETE("/rides", h.CancelRide)
		v1.GET("/queue", h.GetQueue)
		v1.POST("/queue/:id", h.ApplyCommand)
		v1.PUT("/beepers/settings", h.UpdateSettings)
	}
	return r, store
}

func seedAccount(t *testing.T, store *storage.MemoryStore, isBeeping bool) uuid.UUID {
	t.Helper()
	u := &user.User{
		ID:        uuid.New(),
		IsBeeping: isBeeping,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.Users().Create(context.Background(), u))
	return u.ID
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, asUser uuid.UUID, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if asUser != uuid.Nil {
		req.Header.Set("X-User-ID", asUser.String())
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestRide_MissingUserHeader(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/rides", uuid.Nil, dto.RequestRideRequest{
		BeeperID: uuid.NewString(), Origin: "a", Destination: "b", GroupSize: 1,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestRide_InvalidPayload(t *testing.T) {
	r, store := newTestRouter(t)
	rider := seedAccount(t, store, false)

	w := doJSON(t, r, http.MethodPost, "/v1/rides", rider, map[string]interface{}{
		"beeper_id": "not-a-uuid", "origin": "a", "destination": "b", "group_size": 1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestRide_Created(t *testing.T) {
	r, store := newTestRouter(t)
	beeper := seedAccount(t, store, true)
	rider := seedAccount(t, store, false)

	w := doJSON(t, r, http.MethodPost, "/v1/rides", rider, dto.RequestRideRequest{
		BeeperID: beeper.String(), Origin: "dorm", Destination: "library", GroupSize: 2,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp dto.EntryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, rider, resp.RiderID)
	assert.Equal(t, beeper, resp.BeeperID)
	assert.Equal(t, "waiting", resp.Progress)
	assert.Equal(t, 0, resp.Position)
}

func TestRequestRide_BeeperUnavailable(t *testing.T) {
	r, store := newTestRouter(t)
	beeper := seedAccount(t, store, false)
	rider := seedAccount(t, store, false)

	w := doJSON(t, r, http.MethodPost, "/v1/rides", rider, dto.RequestRideRequest{
		BeeperID: beeper.String(), Origin: "a", Destination: "b", GroupSize: 1,
	})
	require.Equal(t, http.StatusConflict, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "BEEPER_UNAVAILABLE", resp.Code)
}

func TestQueueCommandFlow(t *testing.T) {
	r, store := newTestRouter(t)
	beeper := seedAccount(t, store, true)
	rider := seedAccount(t, store, false)

	w := doJSON(t, r, http.MethodPost, "/v1/rides", rider, dto.RequestRideRequest{
		BeeperID: beeper.String(), Origin: "a", Destination: "b", GroupSize: 1,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created dto.EntryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// Beeper sees the rider at position zero.
	w = doJSON(t, r, http.MethodGet, "/v1/queue", beeper, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var q dto.QueueResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	require.Len(t, q.Entries, 1)
	assert.Equal(t, created.ID, q.Entries[0].ID)

	// Accept, then walk the ride to completion.
	for i, cmd := range []string{"accept", "advance", "advance", "complete"} {
		w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/queue/%s", created.ID), beeper, dto.ApplyCommandRequest{Command: cmd})
		require.Equal(t, http.StatusOK, w.Code, "command %d (%s): %s", i, cmd, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/v1/queue", beeper, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	assert.Empty(t, q.Entries)

	// Rider no longer has an active ride.
	w = doJSON(t, r, http.MethodGet, "/v1/rides/status", rider, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApplyCommand_UnknownCommandRejected(t *testing.T) {
	r, store := newTestRouter(t)
	beeper := seedAccount(t, store, true)

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/queue/%s", uuid.New()), beeper, map[string]string{"command": "reject"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelRide(t *testing.T) {
	r, store := newTestRouter(t)
	beeper := seedAccount(t, store, true)
	rider := seedAccount(t, store, false)

	w := doJSON(t, r, http.MethodPost, "/v1/rides", rider, dto.RequestRideRequest{
		BeeperID: beeper.String(), Origin: "a", Destination: "b", GroupSize: 1,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/v1/rides", rider, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Nothing left to cancel.
	w = doJSON(t, r, http.MethodDelete, "/v1/rides", rider, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateSettings(t *testing.T) {
	r, store := newTestRouter(t)
	beeper := seedAccount(t, store, true)
	rider := seedAccount(t, store, false)

	w := doJSON(t, r, http.MethodPost, "/v1/rides", rider, dto.RequestRideRequest{
		BeeperID: beeper.String(), Origin: "a", Destination: "b", GroupSize: 1,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	off := false
	w = doJSON(t, r, http.MethodPut, "/v1/beepers/settings", beeper, dto.UpdateSettingsRequest{IsBeeping: &off})
	require.Equal(t, http.StatusConflict, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "QUEUE_NOT_EMPTY", resp.Code)
}
