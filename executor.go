package simpledb

import (
	"context"
	"database/sql"

	"github.com/stephenafamo/scan"
)

// Executor is the session a handle runs its statements on.
// *sql.Conn and *sql.Tx satisfy it once wrapped with [NewExecutor].
type Executor interface {
	scan.Queryer
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// StdInterface is an interface that *sql.DB, *sql.Tx and *sql.Conn satisfy
type StdInterface interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// NewExecutor wraps a [StdInterface] so that it returns [scan.Rows]
func NewExecutor[T StdInterface](wrapped T) Executor {
	return common[T]{wrapped: wrapped}
}

type common[T StdInterface] struct {
	wrapped T
}

// QueryContext executes a query that returns rows, typically a SELECT. The args are for any placeholder parameters in the query.
func (c common[T]) QueryContext(ctx context.Context, query string, args ...any) (scan.Rows, error) {
	return c.wrapped.QueryContext(ctx, query, args...)
}

// ExecContext executes a query without returning any rows. The args are for any placeholder parameters in the query.
func (c common[T]) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.wrapped.ExecContext(ctx, query, args...)
}

// session is the single connection owned by a handle, plus the
// transaction currently open on it
type session struct {
	db   *sql.DB
	conn *sql.Conn
	tx   *sql.Tx
}

func (s *session) executor() Executor {
	if s.tx != nil {
		return NewExecutor(s.tx)
	}
	return NewExecutor(s.conn)
}

func (s *session) close() error {
	var err error
	if s.tx != nil {
		err = s.tx.Rollback()
		s.tx = nil
	}
	if cerr := s.conn.Close(); err == nil {
		err = cerr
	}
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}

	return err
}
