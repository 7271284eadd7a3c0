package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/checkpoint"
)

// Checkpointer is a Redis-backed implementation of checkpoint.Saver.
//
// Each checkpoint is a string key holding its JSON entry; each thread is a
// sorted set of checkpoint ids scored by a per-thread sequence.
type Checkpointer struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// entry is the stored value of a checkpoint.
type entry struct {
	ID        string          `json:"id"`
	ThreadID  string          `json:"thread_id"`
	SessionID string          `json:"session_id"`
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewCheckpointer creates a new Redis checkpointer with the given configuration.
func NewCheckpointer(cfg Config, opts ...ConfigOption) (*Checkpointer, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewCheckpointerFromClient(client, cfg.KeyPrefix), nil
}

// NewCheckpointerFromClient creates a checkpointer from an existing Redis client.
func NewCheckpointerFromClient(client *redis.Client, keyPrefix string) *Checkpointer {
	return &Checkpointer{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// WithTTL expires checkpoints and thread indexes d after their last write.
// Zero keeps them forever.
func (c *Checkpointer) WithTTL(d time.Duration) *Checkpointer {
	c.ttl = d
	return c
}

func (c *Checkpointer) entryKey(id string) string {
	return c.keyPrefix + "checkpoint:" + id
}

func (c *Checkpointer) threadKey(threadID string) string {
	return c.keyPrefix + "thread:" + threadID
}

func (c *Checkpointer) seqKey(threadID string) string {
	return c.keyPrefix + "thread-seq:" + threadID
}

// Put stores a new checkpoint chained to cfg.CheckpointID.
func (c *Checkpointer) Put(ctx context.Context, cfg checkpoint.Config, state *agent.AgentState, meta checkpoint.Metadata) (checkpoint.Config, error) {
	cp, err := checkpoint.New(cfg, state, meta)
	if err != nil {
		return checkpoint.Config{}, err
	}
	blob, err := checkpoint.MarshalState(cp)
	if err != nil {
		return checkpoint.Config{}, fmt.Errorf("marshal checkpoint: %w", err)
	}
	value, err := json.Marshal(entry{
		ID:        cp.ID,
		ThreadID:  cp.ThreadID,
		SessionID: cp.SessionID,
		State:     blob,
		CreatedAt: cp.CreatedAt,
	})
	if err != nil {
		return checkpoint.Config{}, err
	}

	seq, err := c.client.Incr(ctx, c.seqKey(cp.ThreadID)).Result()
	if err != nil {
		return checkpoint.Config{}, wrapError(err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.entryKey(cp.ID), value, c.ttl)
		pipe.ZAdd(ctx, c.threadKey(cp.ThreadID), redis.Z{Score: float64(seq), Member: cp.ID})
		if c.ttl > 0 {
			pipe.Expire(ctx, c.threadKey(cp.ThreadID), c.ttl)
			pipe.Expire(ctx, c.seqKey(cp.ThreadID), c.ttl)
		}
		return nil
	})
	if err != nil {
		return checkpoint.Config{}, wrapError(err)
	}
	return cp.Config(), nil
}

// Get returns the addressed checkpoint, or the thread's latest.
func (c *Checkpointer) Get(ctx context.Context, cfg checkpoint.Config) (*checkpoint.Checkpoint, error) {
	if cfg.ThreadID == "" && cfg.CheckpointID == "" {
		return nil, checkpoint.ErrInvalidThreadID
	}
	notFound := fmt.Errorf("%w: thread %q checkpoint %q", checkpoint.ErrNotFound, cfg.ThreadID, cfg.CheckpointID)

	id := cfg.CheckpointID
	if id == "" {
		ids, err := c.client.ZRevRange(ctx, c.threadKey(cfg.ThreadID), 0, 0).Result()
		if err != nil {
			return nil, wrapError(err)
		}
		if len(ids) == 0 {
			return nil, notFound
		}
		id = ids[0]
	}

	data, err := c.client.Get(ctx, c.entryKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound
	}
	if err != nil {
		return nil, wrapError(err)
	}

	cp, err := decode(data)
	if err != nil {
		return nil, err
	}
	if cfg.ThreadID != "" && cp.ThreadID != cfg.ThreadID {
		return nil, notFound
	}
	return cp, nil
}

// List returns up to opts.Limit checkpoints in chronological order.
func (c *Checkpointer) List(ctx context.Context, threadID string, opts checkpoint.ListOptions) ([]*checkpoint.Checkpoint, error) {
	limit := int64(opts.EffectiveLimit())
	key := c.threadKey(threadID)

	upper := "+inf"
	if opts.Before != "" {
		score, err := c.client.ZScore(ctx, key, opts.Before).Result()
		if errors.Is(err, redis.Nil) {
			return []*checkpoint.Checkpoint{}, nil
		}
		if err != nil {
			return nil, wrapError(err)
		}
		upper = "(" + strconv.FormatFloat(score, 'f', -1, 64)
	}

	ids, err := c.client.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   upper,
		Count: limit,
	}).Result()
	if err != nil {
		return nil, wrapError(err)
	}
	if len(ids) == 0 {
		return []*checkpoint.Checkpoint{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.entryKey(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrapError(err)
	}

	desc := make([]*checkpoint.Checkpoint, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // Expired entry
		}
		cp, err := decode([]byte(s))
		if err != nil {
			return nil, err
		}
		desc = append(desc, cp)
	}
	return checkpoint.Chronological(desc), nil
}

// Client returns the underlying Redis client.
func (c *Checkpointer) Client() *redis.Client {
	return c.client
}

// Close closes the client.
func (c *Checkpointer) Close() error {
	return c.client.Close()
}

func decode(data []byte) (*checkpoint.Checkpoint, error) {
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", checkpoint.ErrCorrupt, err)
	}
	cp := &checkpoint.Checkpoint{
		ID:        e.ID,
		ThreadID:  e.ThreadID,
		SessionID: e.SessionID,
		CreatedAt: e.CreatedAt,
	}
	if err := checkpoint.UnmarshalState(e.State, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

var _ checkpoint.Saver = (*Checkpointer)(nil)
