package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/angelmondragon/angkor-storefront/pkg/config"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
)

// Client owns the process-wide GORM handle. Repositories take *gorm.DB
// directly; Client adds lifecycle and transactions on top.
type Client struct {
	conn *gorm.DB
}

// Pinger is satisfied by anything with a readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

var errNoDSN = errors.New("database DSN is required")

// New opens a Postgres pool. Statements slower than cfg.SlowQuery, and
// failed statements, are reported through logg.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, errNoDSN
	}

	conn, err := gorm.Open(
		postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}),
		&gorm.Config{
			Logger:                 newQueryLogger(logg, cfg.SlowQuery),
			SkipDefaultTransaction: true,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pool, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	tunePool(pool, cfg)

	logg.Info(logg.WithField(ctx, "max_open_conns", cfg.MaxOpenConns), "database connection established")
	return &Client{conn: conn}, nil
}

// tunePool leaves database/sql defaults in place for zero values.
func tunePool(pool *sql.DB, cfg config.DBConfig) {
	if n := cfg.MaxOpenConns; n > 0 {
		pool.SetMaxOpenConns(n)
	}
	if n := cfg.MaxIdleConns; n > 0 {
		pool.SetMaxIdleConns(n)
	}
	if d := cfg.ConnMaxLifetime; d > 0 {
		pool.SetConnMaxLifetime(d)
	}
	if d := cfg.ConnMaxIdleTime; d > 0 {
		pool.SetConnMaxIdleTime(d)
	}
}

// Wrap adopts a connection opened elsewhere (sqlite in tests).
func Wrap(conn *gorm.DB) *Client { return &Client{conn: conn} }

func (c *Client) DB() *gorm.DB { return c.conn }

func (c *Client) Ping(ctx context.Context) error {
	return c.withPool(func(pool *sql.DB) error { return pool.PingContext(ctx) })
}

func (c *Client) Close() error {
	return c.withPool((*sql.DB).Close)
}

func (c *Client) withPool(fn func(*sql.DB) error) error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return fn(pool)
}

func (c *Client) Exec(ctx context.Context, query string, args ...any) *gorm.DB {
	return c.conn.WithContext(ctx).Exec(query, args...)
}

func (c *Client) Raw(ctx context.Context, query string, args ...any) *gorm.DB {
	return c.conn.WithContext(ctx).Raw(query, args...)
}

// WithTx commits when fn returns nil and rolls back otherwise. A panic in
// fn rolls back and keeps propagating.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}
