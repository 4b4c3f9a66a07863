// Package postgres holds the pgx connection pool used by the session store.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kailas-cloud/simproj/internal/db"
)

//go:embed schema.sql
var schema string

// Config holds PostgreSQL connection parameters.
type Config struct {
	DSN      string
	MaxConns int32
}

// Pool wraps a pgx connection pool.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool parses the DSN and creates a lazy pool. Use WaitForReady before serving.
func NewPool(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Pool{pool: pool}, nil
}

// QueryRow runs a single-row query.
func (p *Pool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

// Ping checks connectivity.
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// EnsureSchema creates the sessions table when it does not exist.
func (p *Pool) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (p *Pool) Close() {
	p.pool.Close()
}

// WaitForReady polls Ping until PostgreSQL responds or timeout expires.
func (p *Pool) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitReady(ctx, "postgres", timeout, p.Ping)
}
