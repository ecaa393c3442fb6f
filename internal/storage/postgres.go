package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/campusbeep/beep-server/internal/domain/beep"
	"github.com/campusbeep/beep-server/internal/domain/queue"
	"github.com/campusbeep/beep-server/internal/domain/user"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresStore implements Store over PostgreSQL
type PostgresStore struct {
	db *sql.DB
	q  querier
	tx bool
}

// NewPostgresStore creates a store over an existing connection pool
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

// Queues returns the queue entry repository
func (s *PostgresStore) Queues() queue.Repository {
	return &pgQueueRepo{q: s.q, locking: s.tx}
}

// Users returns the identity repository
func (s *PostgresStore) Users() user.Repository {
	return &pgUserRepo{q: s.q, locking: s.tx}
}

// Beeps returns the ride history repository
func (s *PostgresStore) Beeps() beep.Repository {
	return &pgBeepRepo{q: s.q}
}

// InTx runs fn in a single database transaction. Row reads performed
// through the transactional store take FOR UPDATE locks, which is what
// serializes read-check-then-write sequences against other replicas.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.tx {
		// Already transactional; join the surrounding transaction.
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&PostgresStore{db: s.db, q: tx, tx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
