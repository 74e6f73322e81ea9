package binder

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teresa-solution/tenant-schema-router/internal/tenantctx"
)

// Conn is a storage connection pinned to one schema for the lifetime of a
// unit of work. Release must run on every exit path.
type Conn interface {
	tenantctx.Querier
	Release(ctx context.Context) error
}

// ConnSource acquires schema-scoped connections. The pgx pool implementation
// is the production source; tests substitute their own.
type ConnSource interface {
	AcquireSchema(ctx context.Context, schemaName string) (Conn, error)
}

// poolSource pins pooled connections to a schema via search_path.
type poolSource struct {
	pool *pgxpool.Pool
}

func (s *poolSource) AcquireSchema(ctx context.Context, schemaName string) (Conn, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	// Quoted identifier: schema names are validated at creation time, but the
	// session setting must still never be an injection point.
	setPath := "SET search_path TO " + pgx.Identifier{schemaName}.Sanitize()
	if _, err := conn.Exec(ctx, setPath); err != nil {
		conn.Release()
		return nil, fmt.Errorf("set search_path to %q: %w", schemaName, err)
	}
	return &pooledConn{conn: conn}, nil
}

type pooledConn struct {
	conn *pgxpool.Conn
}

func (c *pooledConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.conn.Exec(ctx, sql, args...)
}

func (c *pooledConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.conn.Query(ctx, sql, args...)
}

func (c *pooledConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return c.conn.QueryRow(ctx, sql, args...)
}

// Release resets the search_path before the connection returns to the pool.
// If the reset fails the underlying connection is closed instead of being
// returned, so a poisoned search_path can never reach another unit of work.
func (c *pooledConn) Release(ctx context.Context) error {
	if c.conn == nil {
		return nil
	}
	_, err := c.conn.Exec(ctx, "RESET search_path")
	if err != nil {
		_ = c.conn.Conn().Close(ctx)
	}
	c.conn.Release()
	c.conn = nil
	return err
}
