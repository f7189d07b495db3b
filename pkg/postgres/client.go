package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

type Option func(*config)

type config struct {
	maxOpen      int
	maxIdle      int
	maxLifetime  time.Duration
	pingAttempts int
	pingInterval time.Duration
}

func WithPool(maxOpen, maxIdle int, lifetime time.Duration) Option {
	return func(c *config) {
		c.maxOpen = maxOpen
		c.maxIdle = maxIdle
		c.maxLifetime = lifetime
	}
}

// WithPingRetry retries the startup ping while the database comes up.
func WithPingRetry(attempts int, interval time.Duration) Option {
	return func(c *config) {
		c.pingAttempts = attempts
		c.pingInterval = interval
	}
}

// Client owns the offer store connection pool.
type Client struct {
	db *sql.DB
}

func NewClient(ctx context.Context, dsn string, opts ...Option) (*Client, error) {
	cfg := &config{
		maxOpen:      25,
		maxIdle:      5,
		maxLifetime:  5 * time.Minute,
		pingAttempts: 5,
		pingInterval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.maxOpen)
	db.SetMaxIdleConns(cfg.maxIdle)
	db.SetConnMaxLifetime(cfg.maxLifetime)

	for i := 0; i < cfg.pingAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(cfg.pingInterval):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}
	return &Client{db: db}, nil
}

// NewClientFromDB wraps an already opened pool.
func NewClientFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

func (c *Client) DB() *sql.DB { return c.db }

func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Migrate runs DDL statements in a single transaction.
func (c *Client) Migrate(ctx context.Context, stmts []string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: migrate begin: %w", err)
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return tx.Commit()
}

// WithTx runs fn inside a transaction, rolling back when it fails.
func (c *Client) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
