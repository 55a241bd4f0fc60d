package repository

import (
	"context"
	"database/sql"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so repository methods
// run transparently inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type txKey struct{}

// Store owns the database handle and the transaction scope shared by
// all repositories. A transaction started by WithTx travels in the
// context so that every repository call inside the closure joins it;
// this is what makes the hold's seat transitions and reservation
// creation commit together or not at all.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store bound to the provided database.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// WithTx runs fn inside a transaction. When the context already carries
// a transaction the closure joins it instead of nesting. The
// transaction is rolled back when fn returns an error and committed
// otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// conn returns the transaction carried by ctx, falling back to the
// plain database handle.
func (s *Store) conn(ctx context.Context) dbtx {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}
