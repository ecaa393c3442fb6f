package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/campusbeep/beep-server/internal/domain/beep"
)

type pgBeepRepo struct {
	q querier
}

const beepColumns = `id, beeper_id, rider_id, origin, destination, group_size, outcome, enqueued_at, completed_at`

func (r *pgBeepRepo) Create(ctx context.Context, rec *beep.Record) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO beeps (`+beepColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.ID, rec.BeeperID, rec.RiderID, rec.Origin, rec.Destination,
		rec.GroupSize, rec.Outcome, rec.EnqueuedAt, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert ride record: %w", err)
	}
	return nil
}

func (r *pgBeepRepo) GetByID(ctx context.Context, id uuid.UUID) (*beep.Record, error) {
	var rec beep.Record
	err := r.q.QueryRowContext(ctx, `
		SELECT `+beepColumns+` FROM beeps WHERE id = $1
	`, id).Scan(&rec.ID, &rec.BeeperID, &rec.RiderID, &rec.Origin, &rec.Destination,
		&rec.GroupSize, &rec.Outcome, &rec.EnqueuedAt, &rec.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, beep.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ride record: %w", err)
	}
	return &rec, nil
}

func (r *pgBeepRepo) List(ctx context.Context, limit, offset int) ([]*beep.Record, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+beepColumns+` FROM beeps
		ORDER BY completed_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list ride records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (r *pgBeepRepo) ListByBeeper(ctx context.Context, beeperID uuid.UUID, limit, offset int) ([]*beep.Record, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+beepColumns+` FROM beeps
		WHERE beeper_id = $1
		ORDER BY completed_at DESC
		LIMIT $2 OFFSET $3
	`, beeperID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list ride records by beeper: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]*beep.Record, error) {
	var records []*beep.Record
	for rows.Next() {
		var rec beep.Record
		if err := rows.Scan(&rec.ID, &rec.BeeperID, &rec.RiderID, &rec.Origin, &rec.Destination,
			&rec.GroupSize, &rec.Outcome, &rec.EnqueuedAt, &rec.CompletedAt); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
