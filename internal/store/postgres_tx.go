package store

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbtx is the query surface shared by the pool and an open transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// InTx runs fn on a store bound to a single transaction. Nested calls
// open savepoints on the enclosing transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	mu := &sync.Mutex{}
	if parent, ok := s.db.(*txConn); ok {
		mu = parent.mu
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&PostgresStore{pool: s.pool, db: &txConn{mu: mu, tx: tx}})
	})
}

// txConn serializes statements on one transaction connection so that
// concurrent readers sharing a transaction do not collide. A Query holds
// the connection until its rows are closed.
type txConn struct {
	mu *sync.Mutex
	tx pgx.Tx
}

func (c *txConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tx.Exec(ctx, sql, args...)
}

func (c *txConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	c.mu.Lock()
	rows, err := c.tx.Query(ctx, sql, args...)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	return &lockedRows{Rows: rows, unlock: c.mu.Unlock}, nil
}

func (c *txConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	c.mu.Lock()
	return &lockedRow{row: c.tx.QueryRow(ctx, sql, args...), unlock: c.mu.Unlock}
}

// Begin opens a savepoint. InTx hands the savepoint the parent's lock.
func (c *txConn) Begin(ctx context.Context) (pgx.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tx.Begin(ctx)
}

type lockedRows struct {
	pgx.Rows
	once   sync.Once
	unlock func()
}

func (r *lockedRows) Close() {
	r.Rows.Close()
	r.once.Do(r.unlock)
}

type lockedRow struct {
	row    pgx.Row
	unlock func()
}

func (r *lockedRow) Scan(dest ...any) error {
	defer r.unlock()
	return r.row.Scan(dest...)
}
