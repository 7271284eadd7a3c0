// Package postgres provides PostgreSQL-backed implementations of the
// checkpoint, tool-call and session stores.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config configures the PostgreSQL connection pool.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// MaxConns is the maximum pool size.
	MaxConns int32

	// MinConns is the number of connections kept open.
	MinConns int32

	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration

	// Schema holds the orbit tables.
	Schema string
}

// ConfigOption configures Config.
type ConfigOption func(*Config)

// DefaultConfig returns the local development defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "orbit",
		User:            "postgres",
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
		Schema:          "public",
	}
}

// ConnectionString returns the keyword/value DSN for the config.
func (c Config) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode)
}

// WithPoolSize caps the pool at maxConns. MinConns is lowered to match
// when it would exceed the cap. Zero keeps the current size.
func WithPoolSize(maxConns int32) ConfigOption {
	return func(c *Config) {
		if maxConns <= 0 {
			return
		}
		c.MaxConns = maxConns
		c.MinConns = min(c.MinConns, maxConns)
	}
}

// WithConnectTimeout bounds establishing a connection. Zero keeps the
// current timeout.
func WithConnectTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		if d > 0 {
			c.ConnectTimeout = d
		}
	}
}

// WithSchema sets the schema holding the tables. Connections search it
// first. An empty schema keeps the current one.
func WithSchema(schema string) ConfigOption {
	return func(c *Config) {
		if schema != "" {
			c.Schema = schema
		}
	}
}

// Errors
var (
	ErrConnectionFailed = errors.New("postgres: connection failed")
	ErrOperationTimeout = errors.New("postgres: operation timeout")
	ErrMigrationFailed  = errors.New("postgres: migration failed")
)

// Connect opens a pool for cfg with opts applied. A non-empty dsn
// overrides the discrete connection fields.
func Connect(ctx context.Context, dsn string, cfg Config, opts ...ConfigOption) (*pgxpool.Pool, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	poolCfg, err := poolConfig(dsn, cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	return pool, nil
}

func poolConfig(dsn string, cfg Config) (*pgxpool.Config, error) {
	if dsn == "" {
		dsn = cfg.ConnectionString()
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = min(cfg.MinConns, poolCfg.MaxConns)
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.Schema != "" {
		poolCfg.ConnConfig.RuntimeParams["search_path"] = cfg.Schema
	}
	return poolCfg, nil
}

// wrapError maps driver errors onto the package errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrOperationTimeout, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Join(ErrOperationTimeout, err)
	}
	return err
}
