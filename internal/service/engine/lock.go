package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/campusbeep/beep-server/internal/storage"
	"github.com/campusbeep/beep-server/pkg/cache"
	"github.com/campusbeep/beep-server/pkg/logger"
)

const (
	leaseRetryDelay = 25 * time.Millisecond
	leaseRetryMax   = 40
)

// beeperLocker serializes queue mutations per beeper. Commands for the
// same beeper must not interleave between their ordering check and
// their write; commands for different beepers proceed in parallel.
//
// The in-process mutex covers a single replica. When a Redis client is
// configured, a SetNX lease excludes other replicas as well; the lease
// carries a random value so an expired lease re-acquired elsewhere is
// never released by the old holder.
type beeperLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex

	redis    *redis.Client
	leaseTTL time.Duration
	logger   *logger.Logger
}

func newBeeperLocker(client *redis.Client, leaseTTL time.Duration, log *logger.Logger) *beeperLocker {
	return &beeperLocker{
		locks:    make(map[uuid.UUID]*sync.Mutex),
		redis:    client,
		leaseTTL: leaseTTL,
		logger:   log,
	}
}

func (l *beeperLocker) mutexFor(beeperID uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[beeperID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[beeperID] = m
	}
	return m
}

// Lock acquires the beeper's lock and returns the release function.
// Returns storage.ErrConflict when the cross-replica lease cannot be
// acquired within the retry budget.
func (l *beeperLocker) Lock(ctx context.Context, beeperID uuid.UUID) (func(), error) {
	m := l.mutexFor(beeperID)
	m.Lock()

	if l.redis == nil {
		return m.Unlock, nil
	}

	key := fmt.Sprintf("beeper_lock:%s", beeperID)
	value := uuid.NewString()

	for attempt := 0; attempt < leaseRetryMax; attempt++ {
		ok, err := cache.AcquireLease(ctx, l.redis, key, value, l.leaseTTL)
		if err != nil {
			m.Unlock()
			return nil, fmt.Errorf("acquire beeper lease: %w", err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := cache.ReleaseLease(releaseCtx, l.redis, key, value); err != nil {
					l.logger.Warn("Failed to release beeper lease",
						logger.String("beeper_id", beeperID.String()),
						logger.Err(err),
					)
				}
				m.Unlock()
			}, nil
		}

		select {
		case <-ctx.Done():
			m.Unlock()
			return nil, ctx.Err()
		case <-time.After(leaseRetryDelay):
		}
	}

	m.Unlock()
	return nil, storage.ErrConflict
}
