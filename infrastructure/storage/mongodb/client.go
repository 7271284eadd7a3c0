// Package mongodb provides a MongoDB-backed checkpointer.
package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Config configures the MongoDB connection.
type Config struct {
	// URI is the connection string.
	URI string

	// Database holds the orbit collections.
	Database string

	ConnectTimeout time.Duration

	// QueryTimeout bounds each store operation.
	QueryTimeout time.Duration

	MaxPoolSize uint64
}

// ConfigOption configures Config.
type ConfigOption func(*Config)

// DefaultConfig returns the local development defaults.
func DefaultConfig() Config {
	return Config{
		URI:            "mongodb://localhost:27017",
		Database:       "orbit",
		ConnectTimeout: 10 * time.Second,
		QueryTimeout:   5 * time.Second,
		MaxPoolSize:    10,
	}
}

// WithURI sets the connection string.
func WithURI(uri string) ConfigOption {
	return func(c *Config) {
		c.URI = uri
	}
}

// WithDatabase sets the database name.
func WithDatabase(name string) ConfigOption {
	return func(c *Config) {
		c.Database = name
	}
}

// WithQueryTimeout sets the per-operation timeout.
func WithQueryTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.QueryTimeout = d
	}
}

// Errors
var (
	ErrConnectionFailed = errors.New("mongodb: connection failed")
	ErrOperationTimeout = errors.New("mongodb: operation timeout")
)

// Client wraps a connected driver client and the configured database.
type Client struct {
	client *mongo.Client
	config Config
}

// Connect opens and verifies a connection.
func Connect(ctx context.Context, cfg Config, opts ...ConfigOption) (*Client, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultConfig().QueryTimeout
	}

	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	if cfg.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	return &Client{client: client, config: cfg}, nil
}

// Collection returns a collection of the configured database.
func (c *Client) Collection(name string) *mongo.Collection {
	return c.client.Database(c.config.Database).Collection(name)
}

// Database returns the configured database.
func (c *Client) Database() *mongo.Database {
	return c.client.Database(c.config.Database)
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// wrapError wraps MongoDB errors with package errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrOperationTimeout, err)
	}
	return errors.Join(ErrConnectionFailed, err)
}
