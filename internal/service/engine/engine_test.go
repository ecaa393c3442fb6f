package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbeep/beep-server/internal/domain/beep"
	"github.com/campusbeep/beep-server/internal/domain/queue"
	"github.com/campusbeep/beep-server/internal/domain/user"
	"github.com/campusbeep/beep-server/internal/notify"
	"github.com/campusbeep/beep-server/internal/service/archive"
	"github.com/campusbeep/beep-server/internal/service/position"
	"github.com/campusbeep/beep-server/internal/storage"
	apperrors "github.com/campusbeep/beep-server/pkg/errors"
	"github.com/campusbeep/beep-server/pkg/logger"
)

func newTestEngine(t *testing.T) (*Engine, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	log := logger.NewNop()
	coordinator := position.NewCoordinator(store, notify.Nop{}, nil, log)
	archiver := archive.NewArchiver(log)
	return New(store, archiver, coordinator, nil, Config{}, log), store
}

func seedUser(t *testing.T, store *storage.MemoryStore, isBeeping bool, capacity int) uuid.UUID {
	t.Helper()
	u := &user.User{
		ID:        uuid.New(),
		Name:      "test user",
		IsBeeping: isBeeping,
		Capacity:  capacity,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.Users().Create(context.Background(), u))
	return u.ID
}

func queueSize(t *testing.T, store *storage.MemoryStore, beeperID uuid.UUID) int {
	t.Helper()
	u, err := store.Users().GetByID(context.Background(), beeperID)
	require.NoError(t, err)
	return u.QueueSize
}

func TestRequestRide_BeeperNotBeeping(t *testing.T) {
	eng, store := newTestEngine(t)
	beeper := seedUser(t, store, false, 0)
	rider := seedUser(t, store, false, 0)

	_, err := eng.RequestRide(context.Background(), rider, beeper, "dorm", "library", 1)
	assert.ErrorIs(t, err, apperrors.ErrBeeperUnavailable)
}

func TestRequestRide_UnknownBeeper(t *testing.T) {
	eng, store := newTestEngine(t)
	rider := seedUser(t, store, false, 0)

	_, err := eng.RequestRide(context.Background(), rider, uuid.New(), "dorm", "library", 1)
	assert.ErrorIs(t, err, apperrors.ErrBeeperNotFound)
}

func TestRequestRide_RiderAlreadyQueued(t *testing.T) {
	eng, store := newTestEngine(t)
	beeper := seedUser(t, store, true, 0)
	other := seedUser(t, store, true, 0)
	rider := seedUser(t, store, false, 0)

	_, err := eng.RequestRide(context.Background(), rider, beeper, "dorm", "library", 1)
	require.NoError(t, err)

	// One queue at a time, anywhere: a second request against a
	// different beeper is rejected too.
	_, err = eng.RequestRide(context.Background(), rider, other, "dorm", "gym", 1)
	assert.ErrorIs(t, err, apperrors.ErrRiderAlreadyQueued)
}

func TestRequestRide_GroupTooLarge(t *testing.T) {
	eng, store := newTestEngine(t)
	beeper := seedUser(t, store, true, 3)
	rider := seedUser(t, store, false, 0)

	_, err := eng.RequestRide(context.Background(), rider, beeper, "dorm", "library", 4)
	assert.ErrorIs(t, err, apperrors.ErrGroupTooLarge)
}

func TestRequestRide_DoesNotTouchCounter(t *testing.T) {
	eng, store := newTestEngine(t)
	beeper := seedUser(t, store, true, 0)
	rider := seedUser(t, store, false, 0)

	_, err := eng.RequestRide(context.Background(), rider, beeper, "dorm", "library", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, queueSize(t, store, beeper), "unaccepted entries never count")
}

func TestGetQueue_OrderedByArrival(t *testing.T) {
	eng, store := newTestEngine(t)
	beeper := seedUser(t, store, true, 0)

	riders := make([]uuid.UUID, 4)
	for i := range riders {
		riders[i] = seedUser(t, store, false, 0)
		_, err := eng.RequestRide(context.Background(), riders[i], beeper, "a", "b", 1)
		require.NoError(t, err)
	}

	views, err := eng.GetQueue(context.Background(), beeper)
	require.NoError(t, err)
	require.Len(t, views, 4)
	for i, v := range views {
		assert.Equal(t, riders[i], v.Entry.RiderID, "entry %d out of order", i)
		assert.Equal(t, i, v.Position)
	}

	// Repeated reads without mutations are identical.
	again, err := eng.GetQueue(context.Background(), beeper)
	require.NoError(t, err)
	require.Len(t, again, 4)
	for i := range views {
		assert.Equal(t, views[i].Entry.ID, again[i].Entry.ID)
		assert.Equal(t, views[i].Position, again[i].Position)
	}
}

func TestApplyCommand_AcceptOutOfOrder(t *testing.T) {
	eng, store := newTestEngine(t)
	beeper := seedUser(t, store, true, 0)
	r1 := seedUser(t, store, false, 0)
	r2 := seedUser(t, store, false, 0)

	e1, err := eng.RequestRide(context.Background(), r1, beeper, "a", "b", 1)
	require.NoError(t, err)
	e2, err := eng.RequestRide(context.Background(), r2, beeper, "a", "b", 1)
	require.NoError(t, err)

	// The later entry cannot be accepted or denied while an earlier
	// waiting entry exists.
	_, err = eng.ApplyCommand(context.Background(), beeper, e2.ID, queue.CommandAccept)
	assert.ErrorIs(t, err, apperrors.ErrOutOfOrder)
	_, err = eng.ApplyCommand(context.Background(), beeper, e2.ID, queue.CommandDeny)
	assert.ErrorIs(t, err, apperrors.ErrOutOfOrder)

	// The earliest succeeds, then the next becomes eligible.
	_, err = eng.ApplyCommand(context.Background(), beeper, e1.ID, queue.CommandAccept)
	require.NoError(t, err)
	_, err = eng.ApplyCommand(context.Background(), beeper, e2.ID, queue.CommandAccept)
	require.NoError(t, err)

	assert.Equal(t, 2, queueSize(t, store, beeper))
}

func TestApplyCommand_Deny(t *testing.T) {
	eng, store := newTestEngine(t)
	beeper := seedUser(t, store, true, 0)
	rider := seedUser(t, store, false, 0)

	entry, err := eng.RequestRide(context.Background(), rider, beeper, "dorm", "stadium", 3)
	require.NoError(t, err)

	_, err = eng.ApplyCommand(context.Background(), beeper, entry.ID, queue.CommandDeny)
	require.NoError(t, err)

	// Never accepted, so the counter never moved.
	assert.Equal(t, 0, queueSize(t, store, beeper))

	views, err := eng.GetQueue(context.Background(), beeper)
	require.NoError(t, err)
	assert.Empty(t, views)

	rec, err := store.Beeps().GetByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, beep.OutcomeDenied, rec.Outcome)
	assert.Equal(t, "dorm", rec.Origin)
	assert.Equal(t, "stadium", rec.Destination)
	assert.Equal(t, 3, rec.GroupSize)
}

func TestApplyCommand_FullLifecycle(t *testing.T) {
	eng, store := newTestEngine(t)
	beeper := seedUser(t, store, true, 0)
	rider := seedUser(t, store, false, 0)

	entry, err := eng.RequestRide(context.Background(), rider, beeper, "dorm", "airport", 2)
	require.NoError(t, err)

	got, err := eng.ApplyCommand(context.Background(), beeper, entry.ID, queue.CommandAccept)
	require.NoError(t, err)
	assert.Equal(t, queue.ProgressAccepted, got.Progress)
	assert.True(t, got.Accepted)
	assert.Equal(t, 1, queueSize(t, store, beeper))

	got, err = eng.ApplyCommand(context.Background(), beeper, entry.ID, queue.CommandAdvance)
	require.NoError(t, err)
	assert.Equal(t, queue.ProgressEnRoute, got.Progress)

	got, err = eng.ApplyCommand(context.Background(), beeper, entry.ID, queue.CommandAdvance)
	require.NoError(t, err)
	assert.Equal(t, queue.ProgressArrived, got.Progress)

	got, err = eng.ApplyCommand(context.Background(), beeper, entry.ID, queue.CommandComplete)
	require.NoError(t, err)
	assert.Equal(t, queue.ProgressComplete, got.Progress)
	assert.Equal(t, 0, queueSize(t, store, beeper))

	views, err := eng.GetQueue(context.Background(), beeper)
	require.NoError(t, err)
	assert.Empty(t, views)

	rec, err := store.Beeps().GetByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, beep.OutcomeCompleted, rec.Outcome)
	assert.Equal(t, "dorm", rec.Origin)
	assert.Equal(t, "airport", rec.Destination)
	assert.Equal(t, 2, rec.GroupSize)
	assert.False(t, rec.CompletedAt.IsZero())
}

func TestApplyCommand_CompleteRequiresArrival(t *testing.T) {
	eng, store := newTestEngine(t)
	beeper := seedUser(t, store, true, 0)
	rider := seedUser(t, store, false, 0)

	entry, err := eng.RequestRide(context.Background(), rider, beeper, "a", "b", 1)
	require.NoError(t, err)
	_, err = eng.ApplyCommand(context.Background(), beeper, entry.ID, queue.CommandAccept)
	require.NoError(t, err)

	_, err = eng.ApplyCommand(context.Background(), beeper, entry.ID, queue.CommandComplete)
	require.Error(t, err)
	assert.Equal(t, 1, queueSize(t, store, beeper), "failed command must not touch the counter")
}

func TestApplyCommand_AdvanceOutOfOrder(t *testing.T) {
	eng, store := newTestEngine(t)
	beeper := seedUser(t, store, true, 0)
	r1 := seedUser(t, store, false, 0)
	r2 := seedUser(t, store, false, 0)

	e1, err := eng.RequestRide(context.Background(), r1, beeper, "a", "b", 1)
	require.NoError(t, err)
	e2, err := eng.RequestRide(context.Background(), r2, beeper, "a", "b", 1)
	require.NoError(t, err)

	_, err = eng.ApplyCommand(context.Background(), beeper, e1.ID, queue.CommandAccept)
	require.NoError(t, err)
	_, err = eng.ApplyCommand(context.Background(), beeper, e2.ID, queue.CommandAccept)
	require.NoError(t, err)

	// The later accepted entry cannot advance past the earlier one.
	_, err = eng.ApplyCommand(context.Background(), beeper, e2.ID, queue.CommandAdvance)
	assert.ErrorIs(t, err, apperrors.ErrOutOfOrder)

	// Once the earlier entry is further along, the later may follow.
	_, err = eng.ApplyCommand(context.Background(), beeper, e1.ID, queue.CommandAdvance)
	require.NoError(t, err)
	_, err = eng.ApplyCommand(context.Background(), beeper, e2.ID, queue.CommandAdvance)
	require.NoError(t, err)

	// But it can never overtake.
	_, err = eng.ApplyCommand(context.Background(), beeper, e2.ID, queue.CommandAdvance)
	assert.ErrorIs(t, err, apperrors.ErrOutOfOrder)
}

func TestApplyCommand_WrongBeeper(t *testing.T) {
	eng, store := newTestEngine(t)
	beeper := seedUser(t, store, true, 0)
	other := seedUser(t, store, true, 0)
	rider := seedUser(t, store, false, 0)

	entry, err := eng.RequestRide(context.Background(), rider, beeper, "a", "b", 1)
	require.NoError(t, err)

	_, err = eng.ApplyCommand(context.Background(), other, entry.ID, queue.CommandAccept)
	assert.ErrorIs(t, err, apperrors.ErrEntryNotFound)
}

func TestCancel_WaitingEntry(t *testing.T) {
	eng, store := newTestEngine(t)
	beeper := seedUser(t, store, true, 0)
	rider := seedUser(t, store, false, 0)

	entry, err := eng.RequestRide(context.Background(), rider, beeper, "a", "b", 1)
	require.NoError(t, err)

	require.NoError(t, eng.Cancel(context.Background(), rider))
	assert.Equal(t, 0, queueSize(t, store, beeper), "cancel of unaccepted entry must not touch the counter")

	// The row survives as a cancelled terminal state until the next
	// queue read sweeps it.
	stored, err := store.Queues().GetByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.ProgressCancelled, stored.Progress)

	// Commands against it now fail terminally.
	_, err = eng.ApplyCommand(context.Background(), beeper, entry.ID, queue.CommandAccept)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyTerminal)

	views, err := eng.GetQueue(context.Background(), beeper)
	require.NoError(t, err)
	assert.Empty(t, views)

	// The sweep archived it.
	rec, err := store.Beeps().GetByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, beep.OutcomeCancelled, rec.Outcome)

	_, err = store.Queues().GetByID(context.Background(), entry.ID)
	assert.ErrorIs(t, err, queue.ErrEntryNotFound)
}

func TestCancel_AcceptedEntryDecrementsOnce(t *testing.T) {
	eng, store := newTestEngine(t)
	beeper := seedUser(t, store, true, 0)
	rider := seedUser(t, store, false, 0)

	entry, err := eng.RequestRide(context.Background(), rider, beeper, "a", "b", 1)
	require.NoError(t, err)
	_, err = eng.ApplyCommand(context.Background(), beeper, entry.ID, queue.CommandAccept)
	require.NoError(t, err)
	require.Equal(t, 1, queueSize(t, store, beeper))

	require.NoError(t, eng.Cancel(context.Background(), rider))
	assert.Equal(t, 0, queueSize(t, store, beeper))

	// A second cancel finds no active entry.
	err = eng.Cancel(context.Background(), rider)
	assert.ErrorIs(t, err, apperrors.ErrEntryNotFound)
	assert.Equal(t, 0, queueSize(t, store, beeper))
}

func TestCancel_RacingComplete_SingleDecrement(t *testing.T) {
	eng, store := newTestEngine(t)
	beeper := seedUser(t, store, true, 0)
	rider := seedUser(t, store, false, 0)

	entry, err := eng.RequestRide(context.Background(), rider, beeper, "a", "b", 1)
	require.NoError(t, err)
	for _, cmd := range []queue.Command{queue.CommandAccept, queue.CommandAdvance, queue.CommandAdvance} {
		_, err = eng.ApplyCommand(context.Background(), beeper, entry.ID, cmd)
		require.NoError(t, err)
	}
	require.Equal(t, 1, queueSize(t, store, beeper))

	// Fire cancel and complete concurrently; whichever write wins is
	// authoritative and the loser must not apply its counter effect.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = eng.Cancel(context.Background(), rider)
	}()
	go func() {
		defer wg.Done()
		_, _ = eng.ApplyCommand(context.Background(), beeper, entry.ID, queue.CommandComplete)
	}()
	wg.Wait()

	assert.Equal(t, 0, queueSize(t, store, beeper), "exactly one decrement must win")
}

func TestQueueSizeMatchesAcceptedEntries(t *testing.T) {
	eng, store := newTestEngine(t)
	beeper := seedUser(t, store, true, 0)

	// Mixed sequence: admit four, accept two, deny one, cancel one
	// accepted, complete the other.
	riders := make([]uuid.UUID, 4)
	entries := make([]*queue.Entry, 4)
	for i := range riders {
		riders[i] = seedUser(t, store, false, 0)
		e, err := eng.RequestRide(context.Background(), riders[i], beeper, "a", "b", 1)
		require.NoError(t, err)
		entries[i] = e
	}

	_, err := eng.ApplyCommand(context.Background(), beeper, entries[0].ID, queue.CommandAccept)
	require.NoError(t, err)
	_, err = eng.ApplyCommand(context.Background(), beeper, entries[1].ID, queue.CommandAccept)
	require.NoError(t, err)
	_, err = eng.ApplyCommand(context.Background(), beeper, entries[2].ID, queue.CommandDeny)
	require.NoError(t, err)
	require.NoError(t, eng.Cancel(context.Background(), riders[1]))

	for _, cmd := range []queue.Command{queue.CommandAdvance, queue.CommandAdvance, queue.CommandComplete} {
		_, err = eng.ApplyCommand(context.Background(), beeper, entries[0].ID, cmd)
		require.NoError(t, err)
	}

	count, err := store.Queues().CountAcceptedActive(context.Background(), beeper)
	require.NoError(t, err)
	assert.Equal(t, count, queueSize(t, store, beeper), "counter must equal accepted live entries")
	assert.Equal(t, 0, queueSize(t, store, beeper))
}

func TestGetStatus_DerivedPosition(t *testing.T) {
	eng, store := newTestEngine(t)
	beeper := seedUser(t, store, true, 0)
	r1 := seedUser(t, store, false, 0)
	r2 := seedUser(t, store, false, 0)

	_, err := eng.RequestRide(context.Background(), r1, beeper, "a", "b", 1)
	require.NoError(t, err)
	_, err = eng.RequestRide(context.Background(), r2, beeper, "a", "b", 1)
	require.NoError(t, err)

	view, err := eng.GetStatus(context.Background(), r2)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Position)

	// Position shifts forward when the rider ahead cancels.
	require.NoError(t, eng.Cancel(context.Background(), r1))
	view, err = eng.GetStatus(context.Background(), r2)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Position)
}

func TestGetStatus_NoActiveEntry(t *testing.T) {
	eng, store := newTestEngine(t)
	rider := seedUser(t, store, false, 0)

	_, err := eng.GetStatus(context.Background(), rider)
	assert.ErrorIs(t, err, apperrors.ErrEntryNotFound)
}

func TestUpdateSettings_StopRefusedWithLiveQueue(t *testing.T) {
	eng, store := newTestEngine(t)
	beeper := seedUser(t, store, true, 0)
	rider := seedUser(t, store, false, 0)

	_, err := eng.RequestRide(context.Background(), rider, beeper, "a", "b", 1)
	require.NoError(t, err)

	_, err = eng.UpdateSettings(context.Background(), beeper, false, 0)
	assert.ErrorIs(t, err, apperrors.ErrQueueNotEmpty)

	require.NoError(t, eng.Cancel(context.Background(), rider))
	_, err = eng.GetQueue(context.Background(), beeper)
	require.NoError(t, err)

	u, err := eng.UpdateSettings(context.Background(), beeper, false, 0)
	require.NoError(t, err)
	assert.False(t, u.IsBeeping)
}

func TestConcurrentBeepers_Independent(t *testing.T) {
	eng, store := newTestEngine(t)

	// Parallel admissions against distinct beepers must all land.
	const n = 8
	beepers := make([]uuid.UUID, n)
	riders := make([]uuid.UUID, n)
	for i := 0; i < n; i++ {
		beepers[i] = seedUser(t, store, true, 0)
		riders[i] = seedUser(t, store, false, 0)
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := eng.RequestRide(context.Background(), riders[i], beepers[i], "a", "b", 1)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		views, err := eng.GetQueue(context.Background(), beepers[i])
		require.NoError(t, err)
		assert.Len(t, views, 1)
	}
}
