package storage

import (
	"context"
	"errors"

	"github.com/campusbeep/beep-server/internal/domain/beep"
	"github.com/campusbeep/beep-server/internal/domain/queue"
	"github.com/campusbeep/beep-server/internal/domain/user"
)

// ErrConflict is returned when a transactional write loses a race and
// retries are exhausted
var ErrConflict = errors.New("store write conflict")

// Store bundles the repositories over one backing store and provides a
// transactional scope. Mutations that must be atomic (entry transition
// plus queue_size adjustment, archival snapshot plus live-entry delete)
// run inside InTx; repositories obtained from the Store passed to fn
// share that transaction.
type Store interface {
	Queues() queue.Repository
	Users() user.Repository
	Beeps() beep.Repository

	// InTx runs fn in a single transaction. The error from fn rolls
	// the transaction back and is returned unchanged.
	InTx(ctx context.Context, fn func(Store) error) error
}
