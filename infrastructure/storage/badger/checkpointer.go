package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/checkpoint"
)

// Checkpointer is a BadgerDB-backed implementation of checkpoint.Saver.
//
// Key layout (all under the configured prefix):
//
//	cp:<thread>\x00<seq>  checkpoint entry, seq is 8 bytes big-endian
//	cpid:<id>             thread and seq of a checkpoint
//	cpseq:<thread>        last seq issued for the thread
type Checkpointer struct {
	db        *badger.DB
	keyPrefix string
	mu        sync.Mutex // serializes sequence allocation
	gcStop    chan struct{}
	gcWg      sync.WaitGroup
}

// entry is the stored value of a checkpoint.
type entry struct {
	ID        string          `json:"id"`
	ThreadID  string          `json:"thread_id"`
	SessionID string          `json:"session_id"`
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}

// pointer is the stored value of an id index entry.
type pointer struct {
	ThreadID string `json:"thread_id"`
	Seq      uint64 `json:"seq"`
}

// NewCheckpointer creates a new BadgerDB checkpointer with the given configuration.
func NewCheckpointer(cfg Config, opts ...Option) (*Checkpointer, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	c := NewCheckpointerFromDB(db, cfg.KeyPrefix)
	if cfg.GCInterval > 0 && !cfg.InMemory {
		c.startGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return c, nil
}

// NewCheckpointerFromDB creates a checkpointer from an existing BadgerDB database.
func NewCheckpointerFromDB(db *badger.DB, keyPrefix string) *Checkpointer {
	return &Checkpointer{
		db:        db,
		keyPrefix: keyPrefix,
		gcStop:    make(chan struct{}),
	}
}

// startGC starts the value log garbage collection goroutine.
func (c *Checkpointer) startGC(interval time.Duration, discardRatio float64) {
	c.gcWg.Add(1)
	go func() {
		defer c.gcWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.gcStop:
				return
			case <-ticker.C:
				for c.db.RunValueLogGC(discardRatio) == nil {
				}
			}
		}
	}()
}

func (c *Checkpointer) threadPrefix(threadID string) []byte {
	return []byte(c.keyPrefix + "cp:" + threadID + "\x00")
}

func (c *Checkpointer) entryKey(threadID string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(c.threadPrefix(threadID), seq)
}

func (c *Checkpointer) idKey(id string) []byte {
	return []byte(c.keyPrefix + "cpid:" + id)
}

func (c *Checkpointer) seqKey(threadID string) []byte {
	return []byte(c.keyPrefix + "cpseq:" + threadID)
}

// Put stores a new checkpoint chained to cfg.CheckpointID.
func (c *Checkpointer) Put(ctx context.Context, cfg checkpoint.Config, state *agent.AgentState, meta checkpoint.Metadata) (checkpoint.Config, error) {
	if err := ctx.Err(); err != nil {
		return checkpoint.Config{}, err
	}

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

	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.db.Update(func(txn *badger.Txn) error {
		var seq uint64
		item, err := txn.Get(c.seqKey(cp.ThreadID))
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error {
				if len(val) == 8 {
					seq = binary.BigEndian.Uint64(val)
				}
				return nil
			}); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		seq++

		ptr, err := json.Marshal(pointer{ThreadID: cp.ThreadID, Seq: seq})
		if err != nil {
			return err
		}
		if err := txn.Set(c.entryKey(cp.ThreadID, seq), value); err != nil {
			return err
		}
		if err := txn.Set(c.idKey(cp.ID), ptr); err != nil {
			return err
		}
		return txn.Set(c.seqKey(cp.ThreadID), binary.BigEndian.AppendUint64(nil, seq))
	})
	if err != nil {
		return checkpoint.Config{}, err
	}
	return cp.Config(), nil
}

// Get returns the addressed checkpoint, or the thread's latest.
func (c *Checkpointer) Get(ctx context.Context, cfg checkpoint.Config) (*checkpoint.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.ThreadID == "" && cfg.CheckpointID == "" {
		return nil, checkpoint.ErrInvalidThreadID
	}

	var cp *checkpoint.Checkpoint
	err := c.db.View(func(txn *badger.Txn) error {
		if cfg.CheckpointID != "" {
			ptr, err := c.lookup(txn, cfg.CheckpointID)
			if err != nil {
				return err
			}
			if cfg.ThreadID != "" && ptr.ThreadID != cfg.ThreadID {
				return badger.ErrKeyNotFound
			}
			item, err := txn.Get(c.entryKey(ptr.ThreadID, ptr.Seq))
			if err != nil {
				return err
			}
			cp, err = decode(item)
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = c.threadPrefix(cfg.ThreadID)
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(append(c.threadPrefix(cfg.ThreadID), 0xFF))
		if !it.Valid() {
			return badger.ErrKeyNotFound
		}
		var err error
		cp, err = decode(it.Item())
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: thread %q checkpoint %q", checkpoint.ErrNotFound, cfg.ThreadID, cfg.CheckpointID)
	}
	if err != nil {
		return nil, err
	}
	return cp, nil
}

// List returns up to opts.Limit checkpoints in chronological order.
func (c *Checkpointer) List(ctx context.Context, threadID string, opts checkpoint.ListOptions) ([]*checkpoint.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := opts.EffectiveLimit()
	var desc []*checkpoint.Checkpoint
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := c.threadPrefix(threadID)
		seek := append(prefix, 0xFF)
		if opts.Before != "" {
			ptr, err := c.lookup(txn, opts.Before)
			if errors.Is(err, badger.ErrKeyNotFound) || (err == nil && ptr.ThreadID != threadID) {
				return nil
			}
			if err != nil {
				return err
			}
			if ptr.Seq <= 1 {
				return nil
			}
			seek = c.entryKey(threadID, ptr.Seq-1)
		}

		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Reverse = true
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(seek); it.Valid() && len(desc) < limit; it.Next() {
			cp, err := decode(it.Item())
			if err != nil {
				return err
			}
			desc = append(desc, cp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return checkpoint.Chronological(desc), nil
}

// Close stops garbage collection and closes the database.
func (c *Checkpointer) Close() error {
	close(c.gcStop)
	c.gcWg.Wait()
	return c.db.Close()
}

func (c *Checkpointer) lookup(txn *badger.Txn, id string) (pointer, error) {
	var ptr pointer
	item, err := txn.Get(c.idKey(id))
	if err != nil {
		return ptr, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &ptr)
	})
	return ptr, err
}

func decode(item *badger.Item) (*checkpoint.Checkpoint, error) {
	var e entry
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &e)
	}); err != nil {
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
