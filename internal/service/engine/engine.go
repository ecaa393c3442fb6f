package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/campusbeep/beep-server/internal/domain/beep"
	"github.com/campusbeep/beep-server/internal/domain/queue"
	"github.com/campusbeep/beep-server/internal/domain/user"
	"github.com/campusbeep/beep-server/internal/service/archive"
	"github.com/campusbeep/beep-server/internal/service/position"
	"github.com/campusbeep/beep-server/internal/storage"
	apperrors "github.com/campusbeep/beep-server/pkg/errors"
	"github.com/campusbeep/beep-server/pkg/logger"
)

// Engine owns admission, ordering and the ride-state machine for
// beeper queues. All mutating operations serialize per beeper: the
// ordering check and the write they guard run under the beeper's lock
// and inside one store transaction, so two overlapping commands can
// never both observe a stale "am I first" answer.
type Engine struct {
	store       storage.Store
	archiver    *archive.Archiver
	coordinator *position.Coordinator
	locks       *beeperLocker
	logger      *logger.Logger
}

// Config holds engine configuration
type Config struct {
	// LeaseTTL bounds how long a crashed replica can hold a beeper's
	// cross-replica lease
	LeaseTTL time.Duration
}

// New creates an engine. redisClient may be nil; the engine then
// relies on the in-process per-beeper mutex alone, which is correct
// for a single replica.
func New(store storage.Store, archiver *archive.Archiver, coordinator *position.Coordinator,
	redisClient *redis.Client, cfg Config, log *logger.Logger) *Engine {
	ttl := cfg.LeaseTTL
	if ttl == 0 {
		ttl = 10 * time.Second
	}
	return &Engine{
		store:       store,
		archiver:    archiver,
		coordinator: coordinator,
		locks:       newBeeperLocker(redisClient, ttl, log),
		logger:      log,
	}
}

// RequestRide admits a rider into a beeper's queue. The entry starts
// unaccepted with progress waiting; the beeper's queue_size counter
// only reflects accepted entries and is untouched here.
func (e *Engine) RequestRide(ctx context.Context, riderID, beeperID uuid.UUID, origin, destination string, groupSize int) (*queue.Entry, error) {
	if groupSize < 1 {
		return nil, apperrors.BadRequest("Group size must be positive", queue.ErrInvalidGroupSize)
	}

	unlock, err := e.locks.Lock(ctx, beeperID)
	if err != nil {
		return nil, mapLockErr(err)
	}
	defer unlock()

	entry := &queue.Entry{
		ID:          uuid.New(),
		BeeperID:    beeperID,
		RiderID:     riderID,
		Origin:      origin,
		Destination: destination,
		GroupSize:   groupSize,
		EnqueuedAt:  time.Now(),
		Accepted:    false,
		Progress:    queue.ProgressWaiting,
	}

	err = e.store.InTx(ctx, func(tx storage.Store) error {
		beeper, err := tx.Users().GetByID(ctx, beeperID)
		if err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				return apperrors.ErrBeeperNotFound
			}
			return err
		}
		if err := beeper.CanAdmit(groupSize); err != nil {
			switch {
			case errors.Is(err, user.ErrBeeperUnavailable):
				return apperrors.ErrBeeperUnavailable
			case errors.Is(err, user.ErrGroupTooLarge):
				return apperrors.ErrGroupTooLarge
			}
			return err
		}

		// A rider may sit in at most one queue at a time, anywhere.
		if _, err := tx.Queues().GetActiveByRider(ctx, riderID); err == nil {
			return apperrors.ErrRiderAlreadyQueued
		} else if !errors.Is(err, queue.ErrEntryNotFound) {
			return err
		}

		return tx.Queues().Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Rider admitted to queue",
		logger.String("entry_id", entry.ID.String()),
		logger.String("rider_id", riderID.String()),
		logger.String("beeper_id", beeperID.String()),
		logger.Int("group_size", groupSize),
	)

	e.coordinator.Dispatch(func(ctx context.Context) {
		e.coordinator.Notify(ctx, beeperID, "New ride request", "A rider entered your queue")
		e.coordinator.QueueChanged(ctx, beeperID)
	})

	return entry, nil
}

// ApplyCommand applies a beeper-issued transition to a queue entry.
// First come, first served: accept/deny must target the earliest
// waiting entry, and an accepted entry may only advance once every
// earlier accepted entry is strictly further along.
func (e *Engine) ApplyCommand(ctx context.Context, beeperID, entryID uuid.UUID, cmd queue.Command) (*queue.Entry, error) {
	if !cmd.IsValid() {
		return nil, apperrors.BadRequest("Unknown queue command", queue.ErrInvalidCommand)
	}

	unlock, err := e.locks.Lock(ctx, beeperID)
	if err != nil {
		return nil, mapLockErr(err)
	}
	defer unlock()

	var (
		result      *queue.Entry
		afterCommit []func(ctx context.Context)
	)

	err = e.store.InTx(ctx, func(tx storage.Store) error {
		afterCommit = afterCommit[:0]

		entry, err := tx.Queues().GetByID(ctx, entryID)
		if err != nil {
			if errors.Is(err, queue.ErrEntryNotFound) {
				return apperrors.ErrEntryNotFound
			}
			return err
		}
		if entry.BeeperID != beeperID {
			return apperrors.ErrEntryNotFound
		}
		if entry.IsTerminal() {
			return apperrors.ErrAlreadyTerminal
		}

		peers, err := tx.Queues().ListByBeeper(ctx, beeperID)
		if err != nil {
			return err
		}
		if err := checkOrdering(entry, peers, cmd); err != nil {
			return err
		}

		riderID := entry.RiderID

		switch cmd {
		case queue.CommandAccept:
			if !entry.CanAccept() {
				return apperrors.Conflict("Ride is not awaiting acceptance", nil)
			}
			entry.Accepted = true
			entry.Progress = queue.ProgressAccepted
			if err := tx.Queues().Update(ctx, entry); err != nil {
				return err
			}
			if err := tx.Users().AdjustQueueSize(ctx, beeperID, 1); err != nil {
				return err
			}
			afterCommit = append(afterCommit, func(ctx context.Context) {
				e.coordinator.Notify(ctx, riderID, "Ride accepted", "Your beeper accepted your request")
			})

		case queue.CommandDeny:
			if !entry.CanDeny() {
				return apperrors.Conflict("Ride is not awaiting acceptance", nil)
			}
			entry.Progress = queue.ProgressDenied
			// Never accepted, so queue_size is untouched.
			if _, err := e.archiver.Archive(ctx, tx, entry, beep.OutcomeDenied); err != nil {
				return err
			}
			afterCommit = append(afterCommit, func(ctx context.Context) {
				e.coordinator.Notify(ctx, riderID, "Ride denied", "Your beeper denied your request")
			})

		case queue.CommandAdvance, queue.CommandComplete:
			next, ok := entry.Progress.Next()
			if !ok || !entry.Accepted {
				return apperrors.Conflict("Ride cannot advance from its current stage", nil)
			}
			if cmd == queue.CommandComplete && next != queue.ProgressComplete {
				return apperrors.Conflict("Ride must reach the pickup point before completing", nil)
			}

			entry.Progress = next
			switch next {
			case queue.ProgressEnRoute:
				if err := tx.Queues().Update(ctx, entry); err != nil {
					return err
				}
				afterCommit = append(afterCommit, func(ctx context.Context) {
					e.coordinator.Notify(ctx, riderID, "Beeper on the way", "Your beeper is heading to you")
				})
			case queue.ProgressArrived:
				if err := tx.Queues().Update(ctx, entry); err != nil {
					return err
				}
				afterCommit = append(afterCommit, func(ctx context.Context) {
					e.coordinator.Notify(ctx, riderID, "Beeper is here", "Your beeper has arrived")
				})
			case queue.ProgressComplete:
				if _, err := e.archiver.Archive(ctx, tx, entry, beep.OutcomeCompleted); err != nil {
					return err
				}
				if err := tx.Users().AdjustQueueSize(ctx, beeperID, -1); err != nil {
					return err
				}
			}
		}

		snapshot := *entry
		result = &snapshot
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Queue command applied",
		logger.String("entry_id", entryID.String()),
		logger.String("beeper_id", beeperID.String()),
		logger.String("command", string(cmd)),
		logger.String("progress", string(result.Progress)),
	)

	e.coordinator.Dispatch(func(ctx context.Context) {
		for _, fn := range afterCommit {
			fn(ctx)
		}
		e.coordinator.QueueChanged(ctx, beeperID)
	})

	return result, nil
}

// Cancel withdraws the rider's active request. The entry is marked
// cancelled rather than deleted so a read racing the cancel sees a
// consistent terminal state; the next GetQueue sweeps it into history.
func (e *Engine) Cancel(ctx context.Context, riderID uuid.UUID) error {
	// The entry tells us which beeper's lock to take; re-read under
	// the lock in case it changed in between.
	peek, err := e.store.Queues().GetActiveByRider(ctx, riderID)
	if err != nil {
		if errors.Is(err, queue.ErrEntryNotFound) {
			return apperrors.ErrEntryNotFound
		}
		return err
	}
	beeperID := peek.BeeperID

	unlock, err := e.locks.Lock(ctx, beeperID)
	if err != nil {
		return mapLockErr(err)
	}
	defer unlock()

	err = e.store.InTx(ctx, func(tx storage.Store) error {
		entry, err := tx.Queues().GetActiveByRider(ctx, riderID)
		if err != nil {
			if errors.Is(err, queue.ErrEntryNotFound) {
				// Lost the race with an accept-then-complete or a
				// deny; the entry is already terminal.
				return apperrors.ErrEntryNotFound
			}
			return err
		}

		// Effects derive from current state, not from what the rider
		// observed: only an accepted entry ever incremented the
		// counter, so only an accepted entry decrements it.
		if entry.Accepted {
			if err := tx.Users().AdjustQueueSize(ctx, entry.BeeperID, -1); err != nil {
				return err
			}
		}
		entry.Progress = queue.ProgressCancelled
		return tx.Queues().Update(ctx, entry)
	})
	if err != nil {
		return err
	}

	e.logger.Info("Rider cancelled",
		logger.String("rider_id", riderID.String()),
		logger.String("beeper_id", beeperID.String()),
	)

	e.coordinator.Dispatch(func(ctx context.Context) {
		e.coordinator.Notify(ctx, beeperID, "Rider left", "A rider left your queue")
		e.coordinator.QueueChanged(ctx, beeperID)
	})

	return nil
}

// GetQueue returns the beeper's live entries in arrival order with
// derived positions. Cancelled entries are swept into history as a
// side effect of the read.
func (e *Engine) GetQueue(ctx context.Context, beeperID uuid.UUID) ([]position.RiderView, error) {
	unlock, err := e.locks.Lock(ctx, beeperID)
	if err != nil {
		return nil, mapLockErr(err)
	}
	defer unlock()

	var views []position.RiderView
	err = e.store.InTx(ctx, func(tx storage.Store) error {
		views = views[:0]

		entries, err := tx.Queues().ListByBeeper(ctx, beeperID)
		if err != nil {
			return err
		}

		pos := 0
		for _, entry := range entries {
			if entry.Progress == queue.ProgressCancelled {
				// queue_size was already adjusted when the rider
				// cancelled; the sweep only moves the row to history.
				if _, err := e.archiver.Archive(ctx, tx, entry, beep.OutcomeCancelled); err != nil {
					return err
				}
				continue
			}
			views = append(views, position.RiderView{Entry: entry, Position: pos})
			pos++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// GetStatus returns the rider's active entry with its derived position
func (e *Engine) GetStatus(ctx context.Context, riderID uuid.UUID) (*position.RiderView, error) {
	entry, err := e.store.Queues().GetActiveByRider(ctx, riderID)
	if err != nil {
		if errors.Is(err, queue.ErrEntryNotFound) {
			return nil, apperrors.ErrEntryNotFound
		}
		return nil, err
	}

	pos, err := e.coordinator.Position(ctx, entry)
	if err != nil {
		return nil, err
	}
	return &position.RiderView{Entry: entry, Position: pos}, nil
}

// UpdateSettings toggles a beeper's availability and capacity. A
// beeper cannot stop while riders are still in the queue.
func (e *Engine) UpdateSettings(ctx context.Context, beeperID uuid.UUID, isBeeping bool, capacity int) (*user.User, error) {
	if capacity < 0 {
		return nil, apperrors.BadRequest("Capacity cannot be negative", nil)
	}

	unlock, err := e.locks.Lock(ctx, beeperID)
	if err != nil {
		return nil, mapLockErr(err)
	}
	defer unlock()

	var updated *user.User
	err = e.store.InTx(ctx, func(tx storage.Store) error {
		u, err := tx.Users().GetByID(ctx, beeperID)
		if err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				return apperrors.ErrBeeperNotFound
			}
			return err
		}

		if u.IsBeeping && !isBeeping {
			entries, err := tx.Queues().ListByBeeper(ctx, beeperID)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if entry.IsActive() {
					return apperrors.ErrQueueNotEmpty
				}
			}
		}

		u.IsBeeping = isBeeping
		u.Capacity = capacity
		if err := tx.Users().Update(ctx, u); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Beeper settings updated",
		logger.String("beeper_id", beeperID.String()),
		logger.Bool("is_beeping", isBeeping),
		logger.Int("capacity", capacity),
	)
	return updated, nil
}

// checkOrdering enforces first come, first served. A stale client
// issuing a command for a rider who is no longer first gets OutOfOrder
// and must refresh.
func checkOrdering(entry *queue.Entry, peers []*queue.Entry, cmd queue.Command) error {
	switch cmd {
	case queue.CommandAccept, queue.CommandDeny:
		// No earlier waiting entry may exist.
		for _, p := range peers {
			if p.ID == entry.ID || p.Progress != queue.ProgressWaiting {
				continue
			}
			if p.Before(entry) {
				return apperrors.ErrOutOfOrder
			}
		}
	case queue.CommandAdvance, queue.CommandComplete:
		// Every earlier accepted entry must already be strictly
		// further along; otherwise this entry would overtake it.
		for _, p := range peers {
			if p.ID == entry.ID || !p.Accepted || p.Progress.IsTerminal() {
				continue
			}
			if p.Before(entry) && stageRank(p.Progress) <= stageRank(entry.Progress) {
				return apperrors.ErrOutOfOrder
			}
		}
	}
	return nil
}

func stageRank(p queue.Progress) int {
	switch p {
	case queue.ProgressAccepted:
		return 1
	case queue.ProgressEnRoute:
		return 2
	case queue.ProgressArrived:
		return 3
	}
	return 0
}

func mapLockErr(err error) error {
	if errors.Is(err, storage.ErrConflict) {
		return apperrors.ErrStoreConflict
	}
	return apperrors.Internal("Failed to acquire queue lock", err)
}
