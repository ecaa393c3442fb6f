package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campusbeep/beep-server/internal/domain/beep"
	"github.com/campusbeep/beep-server/internal/domain/queue"
	"github.com/campusbeep/beep-server/internal/domain/user"
)

// MemoryStore implements Store over in-process maps. It backs the
// service tests and local development without a database. A single
// mutex serializes transactions, which gives InTx the same isolation
// the Postgres store gets from row locks; fn errors roll the maps back
// to their pre-transaction snapshot.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
	inTx bool
}

type memData struct {
	entries map[uuid.UUID]queue.Entry
	users   map[uuid.UUID]user.User
	beeps   map[uuid.UUID]beep.Record
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memData{
		entries: make(map[uuid.UUID]queue.Entry),
		users:   make(map[uuid.UUID]user.User),
		beeps:   make(map[uuid.UUID]beep.Record),
	}}
}

func (d *memData) clone() *memData {
	c := &memData{
		entries: make(map[uuid.UUID]queue.Entry, len(d.entries)),
		users:   make(map[uuid.UUID]user.User, len(d.users)),
		beeps:   make(map[uuid.UUID]beep.Record, len(d.beeps)),
	}
	for k, v := range d.entries {
		c.entries[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.beeps {
		c.beeps[k] = v
	}
	return c
}

// locked runs fn with the store mutex held, unless this store is a
// transactional view whose transaction already holds it.
func (s *MemoryStore) locked(fn func(d *memData) error) error {
	if !s.inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.data)
}

// Queues returns the queue entry repository
func (s *MemoryStore) Queues() queue.Repository { return &memQueueRepo{s: s} }

// Users returns the identity repository
func (s *MemoryStore) Users() user.Repository { return &memUserRepo{s: s} }

// Beeps returns the ride history repository
func (s *MemoryStore) Beeps() beep.Repository { return &memBeepRepo{s: s} }

// InTx runs fn under the store mutex against a rollback-capable view
func (s *MemoryStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&MemoryStore{data: s.data, inTx: true}); err != nil {
		*s.data = *snapshot
		return err
	}
	return nil
}

type memQueueRepo struct {
	s *MemoryStore
}

func (r *memQueueRepo) Create(ctx context.Context, entry *queue.Entry) error {
	return r.s.locked(func(d *memData) error {
		d.entries[entry.ID] = *entry
		return nil
	})
}

func (r *memQueueRepo) GetByID(ctx context.Context, id uuid.UUID) (*queue.Entry, error) {
	var out *queue.Entry
	err := r.s.locked(func(d *memData) error {
		e, ok := d.entries[id]
		if !ok {
			return queue.ErrEntryNotFound
		}
		out = &e
		return nil
	})
	return out, err
}

func (r *memQueueRepo) GetActiveByRider(ctx context.Context, riderID uuid.UUID) (*queue.Entry, error) {
	var out *queue.Entry
	err := r.s.locked(func(d *memData) error {
		for _, e := range d.entries {
			if e.RiderID == riderID && !e.Progress.IsTerminal() {
				entry := e
				out = &entry
				return nil
			}
		}
		return queue.ErrEntryNotFound
	})
	return out, err
}

func (r *memQueueRepo) ListByBeeper(ctx context.Context, beeperID uuid.UUID) ([]*queue.Entry, error) {
	var out []*queue.Entry
	err := r.s.locked(func(d *memData) error {
		for _, e := range d.entries {
			if e.BeeperID == beeperID {
				entry := e
				out = append(out, &entry)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (r *memQueueRepo) Update(ctx context.Context, entry *queue.Entry) error {
	return r.s.locked(func(d *memData) error {
		if _, ok := d.entries[entry.ID]; !ok {
			return queue.ErrEntryNotFound
		}
		d.entries[entry.ID] = *entry
		return nil
	})
}

func (r *memQueueRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.s.locked(func(d *memData) error {
		delete(d.entries, id)
		return nil
	})
}

func (r *memQueueRepo) CountAhead(ctx context.Context, entry *queue.Entry) (int, error) {
	count := 0
	err := r.s.locked(func(d *memData) error {
		for _, e := range d.entries {
			if e.BeeperID != entry.BeeperID || e.ID == entry.ID {
				continue
			}
			if e.Progress == queue.ProgressCancelled {
				continue
			}
			other := e
			if other.Before(entry) {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *memQueueRepo) CountAcceptedActive(ctx context.Context, beeperID uuid.UUID) (int, error) {
	count := 0
	err := r.s.locked(func(d *memData) error {
		for _, e := range d.entries {
			if e.BeeperID == beeperID && e.Accepted && !e.Progress.IsTerminal() {
				count++
			}
		}
		return nil
	})
	return count, err
}

type memUserRepo struct {
	s *MemoryStore
}

func (r *memUserRepo) Create(ctx context.Context, u *user.User) error {
	return r.s.locked(func(d *memData) error {
		d.users[u.ID] = *u
		return nil
	})
}

func (r *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var out *user.User
	err := r.s.locked(func(d *memData) error {
		u, ok := d.users[id]
		if !ok {
			return user.ErrUserNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *memUserRepo) Update(ctx context.Context, u *user.User) error {
	return r.s.locked(func(d *memData) error {
		if _, ok := d.users[u.ID]; !ok {
			return user.ErrUserNotFound
		}
		stored := *u
		stored.UpdatedAt = time.Now()
		d.users[u.ID] = stored
		return nil
	})
}

func (r *memUserRepo) AdjustQueueSize(ctx context.Context, id uuid.UUID, delta int) error {
	return r.s.locked(func(d *memData) error {
		u, ok := d.users[id]
		if !ok {
			return user.ErrUserNotFound
		}
		u.QueueSize += delta
		u.UpdatedAt = time.Now()
		d.users[id] = u
		return nil
	})
}

func (r *memUserRepo) SetQueueSize(ctx context.Context, id uuid.UUID, size int) error {
	return r.s.locked(func(d *memData) error {
		u, ok := d.users[id]
		if !ok {
			return user.ErrUserNotFound
		}
		u.QueueSize = size
		u.UpdatedAt = time.Now()
		d.users[id] = u
		return nil
	})
}

func (r *memUserRepo) ListBeepers(ctx context.Context) ([]*user.User, error) {
	var out []*user.User
	err := r.s.locked(func(d *memData) error {
		for _, u := range d.users {
			if u.IsBeeping {
				beeper := u
				out = append(out, &beeper)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

type memBeepRepo struct {
	s *MemoryStore
}

func (r *memBeepRepo) Create(ctx context.Context, rec *beep.Record) error {
	return r.s.locked(func(d *memData) error {
		d.beeps[rec.ID] = *rec
		return nil
	})
}

func (r *memBeepRepo) GetByID(ctx context.Context, id uuid.UUID) (*beep.Record, error) {
	var out *beep.Record
	err := r.s.locked(func(d *memData) error {
		rec, ok := d.beeps[id]
		if !ok {
			return beep.ErrRecordNotFound
		}
		out = &rec
		return nil
	})
	return out, err
}

func (r *memBeepRepo) List(ctx context.Context, limit, offset int) ([]*beep.Record, error) {
	return r.list(func(rec *beep.Record) bool { return true }, limit, offset)
}

func (r *memBeepRepo) ListByBeeper(ctx context.Context, beeperID uuid.UUID, limit, offset int) ([]*beep.Record, error) {
	return r.list(func(rec *beep.Record) bool { return rec.BeeperID == beeperID }, limit, offset)
}

func (r *memBeepRepo) list(match func(*beep.Record) bool, limit, offset int) ([]*beep.Record, error) {
	var all []*beep.Record
	err := r.s.locked(func(d *memData) error {
		for _, rec := range d.beeps {
			record := rec
			if match(&record) {
				all = append(all, &record)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CompletedAt.Equal(all[j].CompletedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].CompletedAt.After(all[j].CompletedAt)
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}
