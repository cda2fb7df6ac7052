// internal/ledger/store.go
// Package ledger is the durable record of franchises, share holdings,
// financial transactions and token balances. Pure data access; business
// rules live in the packages that drive it.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("ledger: record not found")

// DBTX is satisfied by both *sql.DB and *sql.Tx so every query can run
// standalone or inside a franchise-level transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store provides ledger access over PostgreSQL.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the pool for read paths that do not need a transaction.
func (s *Store) DB() DBTX {
	return s.db
}

// WithTx runs fn inside a transaction. All ledger writes for one
// franchise's resolution go through here: either every write commits or
// none do.
func (s *Store) WithTx(ctx context.Context, fn func(tx DBTX) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
