package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/checkpoint"
)

// checkpointDocument is the MongoDB document representation of a checkpoint.
type checkpointDocument struct {
	ID        string    `bson:"_id"`
	ThreadID  string    `bson:"thread_id"`
	SessionID string    `bson:"session_id"`
	Seq       int64     `bson:"seq"`
	State     []byte    `bson:"state"`
	CreatedAt time.Time `bson:"created_at"`
}

// Checkpointer is a MongoDB-backed implementation of checkpoint.Saver.
// Sequence numbers per thread come from a counters collection.
type Checkpointer struct {
	collection   *mongo.Collection
	counters     *mongo.Collection
	queryTimeout time.Duration
}

// NewCheckpointer creates a new MongoDB checkpointer.
func NewCheckpointer(client *Client, collectionName string) *Checkpointer {
	if collectionName == "" {
		collectionName = "checkpoints"
	}
	return &Checkpointer{
		collection:   client.Collection(collectionName),
		counters:     client.Collection(collectionName + "_counters"),
		queryTimeout: client.config.QueryTimeout,
	}
}

// EnsureIndexes creates the (thread_id, seq) index.
func (s *Checkpointer) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "thread_id", Value: 1}, {Key: "seq", Value: -1}},
		Options: options.Index().SetUnique(true),
	})
	return wrapError(err)
}

// Put stores a new checkpoint chained to cfg.CheckpointID.
func (s *Checkpointer) Put(ctx context.Context, cfg checkpoint.Config, state *agent.AgentState, meta checkpoint.Metadata) (checkpoint.Config, error) {
	cp, err := checkpoint.New(cfg, state, meta)
	if err != nil {
		return checkpoint.Config{}, err
	}
	blob, err := checkpoint.MarshalState(cp)
	if err != nil {
		return checkpoint.Config{}, fmt.Errorf("marshal checkpoint: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err = s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": cp.ThreadID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return checkpoint.Config{}, wrapError(err)
	}

	_, err = s.collection.InsertOne(ctx, checkpointDocument{
		ID:        cp.ID,
		ThreadID:  cp.ThreadID,
		SessionID: cp.SessionID,
		Seq:       counter.Seq,
		State:     blob,
		CreatedAt: cp.CreatedAt,
	})
	if err != nil {
		return checkpoint.Config{}, wrapError(err)
	}
	return cp.Config(), nil
}

// Get returns the addressed checkpoint, or the thread's latest.
func (s *Checkpointer) Get(ctx context.Context, cfg checkpoint.Config) (*checkpoint.Checkpoint, error) {
	if cfg.ThreadID == "" && cfg.CheckpointID == "" {
		return nil, checkpoint.ErrInvalidThreadID
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	filter := bson.M{}
	if cfg.ThreadID != "" {
		filter["thread_id"] = cfg.ThreadID
	}
	if cfg.CheckpointID != "" {
		filter["_id"] = cfg.CheckpointID
	}

	var doc checkpointDocument
	err := s.collection.FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: thread %q checkpoint %q", checkpoint.ErrNotFound, cfg.ThreadID, cfg.CheckpointID)
		}
		return nil, wrapError(err)
	}
	return fromDocument(&doc)
}

// List returns up to opts.Limit checkpoints in chronological order.
func (s *Checkpointer) List(ctx context.Context, threadID string, opts checkpoint.ListOptions) ([]*checkpoint.Checkpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	filter := bson.M{"thread_id": threadID}
	if opts.Before != "" {
		var before checkpointDocument
		err := s.collection.FindOne(ctx, bson.M{"_id": opts.Before, "thread_id": threadID}).Decode(&before)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []*checkpoint.Checkpoint{}, nil
		}
		if err != nil {
			return nil, wrapError(err)
		}
		filter["seq"] = bson.M{"$lt": before.Seq}
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "seq", Value: -1}}).
		SetLimit(int64(opts.EffectiveLimit()))

	cursor, err := s.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, wrapError(err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	desc := []*checkpoint.Checkpoint{}
	for cursor.Next(ctx) {
		var doc checkpointDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, wrapError(err)
		}
		cp, err := fromDocument(&doc)
		if err != nil {
			return nil, err
		}
		desc = append(desc, cp)
	}
	if err := cursor.Err(); err != nil {
		return nil, wrapError(err)
	}
	return checkpoint.Chronological(desc), nil
}

func fromDocument(doc *checkpointDocument) (*checkpoint.Checkpoint, error) {
	cp := &checkpoint.Checkpoint{
		ID:        doc.ID,
		ThreadID:  doc.ThreadID,
		SessionID: doc.SessionID,
		CreatedAt: doc.CreatedAt.UTC(),
	}
	if err := checkpoint.UnmarshalState(doc.State, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

var _ checkpoint.Saver = (*Checkpointer)(nil)
