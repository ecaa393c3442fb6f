package position

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/campusbeep/beep-server/internal/domain/queue"
	"github.com/campusbeep/beep-server/internal/notify"
	"github.com/campusbeep/beep-server/internal/storage"
	"github.com/campusbeep/beep-server/pkg/logger"
	"github.com/campusbeep/beep-server/pkg/websocket"
)

const dispatchTimeout = 5 * time.Second

// Coordinator derives queue positions and fans out queue updates and
// push notifications after queue mutations. Positions are always
// computed from the live entries, never stored, so they cannot drift.
type Coordinator struct {
	store    storage.Store
	notifier notify.Notifier
	hub      *websocket.Hub
	logger   *logger.Logger
}

// RiderView is one rider's slice of the queue
type RiderView struct {
	Entry    *queue.Entry `json:"entry"`
	Position int          `json:"position"`
}

// NewCoordinator creates a coordinator. hub may be nil when realtime
// updates are disabled.
func NewCoordinator(store storage.Store, notifier notify.Notifier, hub *websocket.Hub, log *logger.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		notifier: notifier,
		hub:      hub,
		logger:   log,
	}
}

// Position returns the number of non-cancelled entries for the same
// beeper ordered ahead of entry
func (c *Coordinator) Position(ctx context.Context, entry *queue.Entry) (int, error) {
	return c.store.Queues().CountAhead(ctx, entry)
}

// Notify delivers a push notification to a user. Failures are logged,
// never propagated: notification delivery must not fail or block the
// state transition that triggered it.
func (c *Coordinator) Notify(ctx context.Context, userID uuid.UUID, title, body string) {
	u, err := c.store.Users().GetByID(ctx, userID)
	if err != nil {
		c.logger.Warn("Notification target lookup failed",
			logger.String("user_id", userID.String()),
			logger.Err(err),
		)
		return
	}

	if err := c.notifier.Send(ctx, u.PushToken, title, body); err != nil {
		c.logger.Warn("Push notification failed",
			logger.String("user_id", userID.String()),
			logger.String("title", title),
			logger.Err(err),
		)
	}
}

// QueueChanged recomputes positions for a beeper's remaining riders
// and pushes a queue_update to each of them and to the beeper. Called
// after the transaction that mutated the queue has committed.
func (c *Coordinator) QueueChanged(ctx context.Context, beeperID uuid.UUID) {
	entries, err := c.store.Queues().ListByBeeper(ctx, beeperID)
	if err != nil {
		c.logger.Error("Failed to load queue for update fan-out",
			logger.String("beeper_id", beeperID.String()),
			logger.Err(err),
		)
		return
	}

	// Positions count only non-cancelled entries ahead; walking the
	// ordered list keeps this one pass instead of a count per entry.
	views := make([]RiderView, 0, len(entries))
	pos := 0
	for _, e := range entries {
		if e.Progress == queue.ProgressCancelled {
			continue
		}
		views = append(views, RiderView{Entry: e, Position: pos})
		pos++
	}

	if c.hub == nil {
		return
	}

	for _, v := range views {
		c.hub.SendToUser(v.Entry.RiderID.String(), websocket.Message{
			Type: "queue_update",
			Data: v,
		})
	}

	c.hub.SendToUser(beeperID.String(), websocket.Message{
		Type: "queue_update",
		Data: map[string]interface{}{
			"beeper_id": beeperID.String(),
			"queue":     views,
		},
	})
}

// Dispatch runs fn on a fresh goroutine with a bounded context. The
// engine uses it to schedule post-commit side effects so they can
// never roll back, or be rolled back by, the committed transition.
func (c *Coordinator) Dispatch(fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		fn(ctx)
	}()
}
