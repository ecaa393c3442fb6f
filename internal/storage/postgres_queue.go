package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/campusbeep/beep-server/internal/domain/queue"
)

type pgQueueRepo struct {
	q       querier
	locking bool
}

const queueColumns = `id, beeper_id, rider_id, origin, destination, group_size, enqueued_at, accepted, progress`

func (r *pgQueueRepo) Create(ctx context.Context, entry *queue.Entry) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO queue_entries (`+queueColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.BeeperID, entry.RiderID, entry.Origin, entry.Destination,
		entry.GroupSize, entry.EnqueuedAt, entry.Accepted, entry.Progress)
	if err != nil {
		return fmt.Errorf("insert queue entry: %w", err)
	}
	return nil
}

func (r *pgQueueRepo) GetByID(ctx context.Context, id uuid.UUID) (*queue.Entry, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_entries WHERE id = $1`
	if r.locking {
		query += ` FOR UPDATE`
	}
	entry, err := scanEntry(r.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, queue.ErrEntryNotFound
	}
	return entry, err
}

func (r *pgQueueRepo) GetActiveByRider(ctx context.Context, riderID uuid.UUID) (*queue.Entry, error) {
	query := `
		SELECT ` + queueColumns + ` FROM queue_entries
		WHERE rider_id = $1 AND progress NOT IN ('complete', 'denied', 'cancelled')
	`
	if r.locking {
		query += ` FOR UPDATE`
	}
	entry, err := scanEntry(r.q.QueryRowContext(ctx, query, riderID))
	if err == sql.ErrNoRows {
		return nil, queue.ErrEntryNotFound
	}
	return entry, err
}

func (r *pgQueueRepo) ListByBeeper(ctx context.Context, beeperID uuid.UUID) ([]*queue.Entry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+queueColumns+` FROM queue_entries
		WHERE beeper_id = $1
		ORDER BY enqueued_at ASC, id ASC
	`, beeperID)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []*queue.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *pgQueueRepo) Update(ctx context.Context, entry *queue.Entry) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE queue_entries
		SET accepted = $1, progress = $2
		WHERE id = $3
	`, entry.Accepted, entry.Progress, entry.ID)
	if err != nil {
		return fmt.Errorf("update queue entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return queue.ErrEntryNotFound
	}
	return nil
}

func (r *pgQueueRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM queue_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete queue entry: %w", err)
	}
	return nil
}

func (r *pgQueueRepo) CountAhead(ctx context.Context, entry *queue.Entry) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM queue_entries
		WHERE beeper_id = $1
		  AND progress <> 'cancelled'
		  AND (enqueued_at < $2 OR (enqueued_at = $2 AND id < $3))
	`, entry.BeeperID, entry.EnqueuedAt, entry.ID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count entries ahead: %w", err)
	}
	return count, nil
}

func (r *pgQueueRepo) CountAcceptedActive(ctx context.Context, beeperID uuid.UUID) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM queue_entries
		WHERE beeper_id = $1
		  AND accepted = TRUE
		  AND progress NOT IN ('complete', 'denied', 'cancelled')
	`, beeperID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count accepted entries: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*queue.Entry, error) {
	var e queue.Entry
	err := row.Scan(&e.ID, &e.BeeperID, &e.RiderID, &e.Origin, &e.Destination,
		&e.GroupSize, &e.EnqueuedAt, &e.Accepted, &e.Progress)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
