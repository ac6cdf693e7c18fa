// Package repository reads recorded search activity from Postgres.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

// Repository owns the Postgres connections shared by the search repositories.
// Queries returning Postgres arrays go through db, where lib/pq reads them in
// text form; everything else uses the pgx pool.
type Repository struct {
	pool *pgxpool.Pool
	db   *sql.DB
}

// New creates a new Repository with a connection pool.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 8
	config.MinConns = 1
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to open database handle: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{pool: pool, db: db}, nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return err
	}
	return r.db.PingContext(ctx)
}

// Close closes the database connections.
func (r *Repository) Close() {
	_ = r.db.Close()
	r.pool.Close()
}

// Pool returns the underlying connection pool. Tests use it to reset the schema.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}
