package archive

import (
	"context"
	"time"

	"github.com/campusbeep/beep-server/internal/domain/beep"
	"github.com/campusbeep/beep-server/internal/domain/queue"
	"github.com/campusbeep/beep-server/internal/storage"
	"github.com/campusbeep/beep-server/pkg/logger"
)

// Archiver converts a terminal queue entry into an immutable ride
// record and removes the live entry. Both writes go through the
// caller's transactional store, so a reader can never observe the ride
// as both live and historical, or as neither.
type Archiver struct {
	logger *logger.Logger
}

// NewArchiver creates an archiver
func NewArchiver(log *logger.Logger) *Archiver {
	return &Archiver{logger: log}
}

// Archive snapshots entry with the given outcome inside tx and deletes
// the live row. The record keeps the entry's ID so history lookups by
// ride ID keep working after the entry is gone.
func (a *Archiver) Archive(ctx context.Context, tx storage.Store, entry *queue.Entry, outcome beep.Outcome) (*beep.Record, error) {
	if !outcome.IsValid() {
		return nil, beep.ErrInvalidOutcome
	}

	record := &beep.Record{
		ID:          entry.ID,
		BeeperID:    entry.BeeperID,
		RiderID:     entry.RiderID,
		Origin:      entry.Origin,
		Destination: entry.Destination,
		GroupSize:   entry.GroupSize,
		Outcome:     outcome,
		EnqueuedAt:  entry.EnqueuedAt,
		CompletedAt: time.Now(),
	}

	if err := tx.Beeps().Create(ctx, record); err != nil {
		return nil, err
	}
	if err := tx.Queues().Delete(ctx, entry.ID); err != nil {
		return nil, err
	}

	a.logger.Info("Ride archived",
		logger.String("ride_id", record.ID.String()),
		logger.String("beeper_id", record.BeeperID.String()),
		logger.String("outcome", string(record.Outcome)),
	)
	return record, nil
}
