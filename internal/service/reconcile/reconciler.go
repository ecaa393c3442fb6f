package reconcile

import (
	"context"
	"time"

	"github.com/campusbeep/beep-server/internal/storage"
	"github.com/campusbeep/beep-server/pkg/logger"
	"github.com/campusbeep/beep-server/pkg/monitoring"
)

// Reconciler recounts each beeper's accepted, non-terminal entries and
// corrects queue_size drift. Counter updates normally commit in the
// same transaction as the entry mutation, so drift means a bug or a
// partial failure; the pass both repairs it and makes it visible.
type Reconciler struct {
	store    storage.Store
	interval time.Duration
	nr       *monitoring.NewRelicApp
	logger   *logger.Logger
}

// New creates a reconciler. nr may be a disabled app.
func New(store storage.Store, interval time.Duration, nr *monitoring.NewRelicApp, log *logger.Logger) *Reconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Reconciler{store: store, interval: interval, nr: nr, logger: log}
}

// Run reconciles on a ticker until ctx is cancelled
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.ReconcileOnce(ctx); err != nil {
				r.logger.Error("Queue size reconciliation failed", logger.Err(err))
			}
		}
	}
}

// ReconcileOnce runs a single pass over all active beepers. Each
// beeper is corrected in its own transaction; the row lock on the user
// serializes the recount against concurrent transitions.
func (r *Reconciler) ReconcileOnce(ctx context.Context) error {
	beepers, err := r.store.Users().ListBeepers(ctx)
	if err != nil {
		return err
	}

	for _, b := range beepers {
		beeperID := b.ID
		err := r.store.InTx(ctx, func(tx storage.Store) error {
			u, err := tx.Users().GetByID(ctx, beeperID)
			if err != nil {
				return err
			}
			count, err := tx.Queues().CountAcceptedActive(ctx, beeperID)
			if err != nil {
				return err
			}
			if u.QueueSize == count {
				return nil
			}

			r.logger.Warn("Correcting queue size drift",
				logger.String("beeper_id", beeperID.String()),
				logger.Int("stored", u.QueueSize),
				logger.Int("actual", count),
			)
			r.nr.RecordCounterDrift(beeperID.String(), u.QueueSize-count)
			return tx.Users().SetQueueSize(ctx, beeperID, count)
		})
		if err != nil {
			r.logger.Error("Failed to reconcile beeper",
				logger.String("beeper_id", beeperID.String()),
				logger.Err(err),
			)
		}
	}
	return nil
}
