package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/campusbeep/beep-server/internal/domain/user"
)

type pgUserRepo struct {
	q       querier
	locking bool
}

const userColumns = `id, name, is_beeping, queue_size, capacity, push_token, created_at, updated_at`

func (r *pgUserRepo) Create(ctx context.Context, u *user.User) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Name, u.IsBeeping, u.QueueSize, u.Capacity, u.PushToken, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *pgUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if r.locking {
		query += ` FOR UPDATE`
	}

	var u user.User
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Name, &u.IsBeeping, &u.QueueSize, &u.Capacity,
		&u.PushToken, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *pgUserRepo) Update(ctx context.Context, u *user.User) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET name = $1, is_beeping = $2, queue_size = $3, capacity = $4,
		    push_token = $5, updated_at = NOW()
		WHERE id = $6
	`, u.Name, u.IsBeeping, u.QueueSize, u.Capacity, u.PushToken, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func (r *pgUserRepo) AdjustQueueSize(ctx context.Context, id uuid.UUID, delta int) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET queue_size = queue_size + $1, updated_at = NOW()
		WHERE id = $2
	`, delta, id)
	if err != nil {
		return fmt.Errorf("adjust queue size: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func (r *pgUserRepo) SetQueueSize(ctx context.Context, id uuid.UUID, size int) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET queue_size = $1, updated_at = NOW()
		WHERE id = $2
	`, size, id)
	if err != nil {
		return fmt.Errorf("set queue size: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func (r *pgUserRepo) ListBeepers(ctx context.Context) ([]*user.User, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE is_beeping = TRUE ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list beepers: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Name, &u.IsBeeping, &u.QueueSize, &u.Capacity,
			&u.PushToken, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}
