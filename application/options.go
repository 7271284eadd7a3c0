package application

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/orbit/domain/checkpoint"
	"github.com/felixgeelhaar/orbit/domain/event"
	"github.com/felixgeelhaar/orbit/domain/lock"
	"github.com/felixgeelhaar/orbit/domain/session"
	"github.com/felixgeelhaar/orbit/infrastructure/telemetry"
)

// Option configures the engine.
type Option func(*EngineConfig)

// WithStages sets the six stage implementations. commands may be nil.
func WithStages(classifier Classifier, commands CommandGenerator, planner Planner, executor StepExecutor, evaluator Evaluator, responder Responder) Option {
	return func(c *EngineConfig) {
		c.Classifier = classifier
		c.Commands = commands
		c.Planner = planner
		c.Executor = executor
		c.Evaluator = evaluator
		c.Responder = responder
	}
}

// WithCheckpointer sets the checkpoint saver.
func WithCheckpointer(s checkpoint.Saver) Option {
	return func(c *EngineConfig) {
		c.Checkpointer = s
	}
}

// WithSessions sets the session store.
func WithSessions(s session.Store) Option {
	return func(c *EngineConfig) {
		c.Sessions = s
	}
}

// WithPublisher sets the event publisher.
func WithPublisher(p event.Publisher) Option {
	return func(c *EngineConfig) {
		c.Publisher = p
	}
}

// WithThreadLock sets the locker that keeps concurrent runs off one thread.
func WithThreadLock(l lock.Locker) Option {
	return func(c *EngineConfig) {
		c.Locks = l
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(c *EngineConfig) {
		c.Metrics = m
	}
}

// WithTracer sets the tracer used for stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *EngineConfig) {
		c.Tracer = t
	}
}

// WithMaxIterations bounds executor/evaluator cycles.
func WithMaxIterations(n int) Option {
	return func(c *EngineConfig) {
		c.MaxIterations = n
	}
}

// WithChunkSize sets the rune length of chunk events.
func WithChunkSize(n int) Option {
	return func(c *EngineConfig) {
		c.ChunkSize = n
	}
}

// WithPermissionLevel sets the default caller permission.
func WithPermissionLevel(level int) Option {
	return func(c *EngineConfig) {
		c.PermissionLevel = level
	}
}

// NewEngineWithOptions creates an engine with functional options.
func NewEngineWithOptions(opts ...Option) (*Engine, error) {
	config := EngineConfig{}
	for _, opt := range opts {
		opt(&config)
	}
	return NewEngine(config)
}
