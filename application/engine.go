// Package application provides the graph driver that runs the orbit stages
// over one thread of execution.
package application

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/checkpoint"
	"github.com/felixgeelhaar/orbit/domain/event"
	"github.com/felixgeelhaar/orbit/domain/lock"
	"github.com/felixgeelhaar/orbit/domain/session"
	"github.com/felixgeelhaar/orbit/infrastructure/conversation"
	"github.com/felixgeelhaar/orbit/infrastructure/logging"
	"github.com/felixgeelhaar/orbit/infrastructure/storage/memory"
	"github.com/felixgeelhaar/orbit/infrastructure/telemetry"
)

// Defaults applied by NewEngine.
const (
	DefaultMaxIterations = 10
	DefaultSessionID     = "default"
	DefaultUserID        = "user"

	streamBuffer = 64
)

// Response statuses.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Errors returned by the engine.
var (
	// ErrEmptyMessage indicates a request without a message.
	ErrEmptyMessage = errors.New("message is required")

	// ErrNothingToResume indicates the checkpoint has no stage left to run.
	ErrNothingToResume = errors.New("checkpoint has no pending stage")

	// ErrMissingStage indicates a required stage implementation is nil.
	ErrMissingStage = errors.New("stage implementation is required")

	// ErrThreadBusy indicates another run holds the thread.
	ErrThreadBusy = errors.New("thread is already running")
)

// Classifier assigns an intent to the latest user message.
type Classifier interface {
	Classify(ctx context.Context, state *agent.AgentState) agent.Intent
}

// CommandGenerator proposes, gates and optionally runs a shell command.
type CommandGenerator interface {
	Generate(ctx context.Context, state *agent.AgentState) conversation.CommandResult
}

// Planner produces a plan for the latest user request.
type Planner interface {
	CreatePlan(ctx context.Context, state *agent.AgentState) (*agent.Plan, error)
}

// StepExecutor runs the plan step at the state's cursor.
type StepExecutor interface {
	ExecuteStep(ctx context.Context, state *agent.AgentState) (*agent.ExecutionResult, error)
}

// Evaluator judges the results accumulated so far.
type Evaluator interface {
	Evaluate(ctx context.Context, state *agent.AgentState) agent.Evaluation
}

// Responder writes the final reply.
type Responder interface {
	Respond(ctx context.Context, state *agent.AgentState) agent.Message
}

// Request starts or continues a thread.
type Request struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`

	// ThreadID continues an existing thread: its latest checkpoint's
	// transcript is carried into the new turn. Empty starts a new thread.
	ThreadID string `json:"thread_id,omitempty"`

	// PermissionLevel overrides the engine default when positive.
	PermissionLevel int `json:"permission_level,omitempty"`
}

// Response summarizes a finished execution.
type Response struct {
	ThreadID     string            `json:"thread_id"`
	CheckpointID string            `json:"checkpoint_id"`
	Messages     []string          `json:"messages"`
	Intent       agent.Intent      `json:"intent"`
	Command      string            `json:"command"`
	Outcome      agent.Outcome     `json:"outcome,omitempty"`
	Status       string            `json:"status"`
	State        *agent.AgentState `json:"-"`
}

// EngineConfig contains configuration for the engine.
type EngineConfig struct {
	Classifier Classifier
	Commands   CommandGenerator
	Planner    Planner
	Executor   StepExecutor
	Evaluator  Evaluator
	Responder  Responder

	// Checkpointer defaults to an in-memory saver.
	Checkpointer checkpoint.Saver

	// Sessions records transcripts. Optional.
	Sessions session.Store

	// Publisher receives every event. Optional.
	Publisher event.Publisher

	// Locks keeps concurrent runs off one thread. Defaults to an
	// in-process locker.
	Locks lock.Locker

	Metrics telemetry.Metrics
	Tracer  trace.Tracer

	// MaxIterations bounds executor/evaluator cycles per run.
	MaxIterations int

	// ChunkSize is the rune length of chunk events.
	ChunkSize int

	// PermissionLevel is assumed for requests that declare none.
	PermissionLevel int
}

// Engine drives the stage graph. It holds no per-thread state and is safe
// for concurrent use by many sessions.
type Engine struct {
	classifier Classifier
	commands   CommandGenerator
	planner    Planner
	executor   StepExecutor
	evaluator  Evaluator
	responder  Responder

	checkpoints checkpoint.Saver
	sessions    session.Store
	publisher   event.Publisher
	locks       lock.Locker
	metrics     telemetry.Metrics
	tracer      trace.Tracer

	maxIterations   int
	chunkSize       int
	permissionLevel int
}

// NewEngine creates a new engine with the given configuration.
func NewEngine(config EngineConfig) (*Engine, error) {
	switch {
	case config.Classifier == nil:
		return nil, fmt.Errorf("%w: classifier", ErrMissingStage)
	case config.Planner == nil:
		return nil, fmt.Errorf("%w: planner", ErrMissingStage)
	case config.Executor == nil:
		return nil, fmt.Errorf("%w: executor", ErrMissingStage)
	case config.Evaluator == nil:
		return nil, fmt.Errorf("%w: evaluator", ErrMissingStage)
	case config.Responder == nil:
		return nil, fmt.Errorf("%w: responder", ErrMissingStage)
	}

	e := &Engine{
		classifier:      config.Classifier,
		commands:        config.Commands,
		planner:         config.Planner,
		executor:        config.Executor,
		evaluator:       config.Evaluator,
		responder:       config.Responder,
		checkpoints:     config.Checkpointer,
		sessions:        config.Sessions,
		publisher:       config.Publisher,
		locks:           config.Locks,
		metrics:         config.Metrics,
		tracer:          config.Tracer,
		maxIterations:   config.MaxIterations,
		chunkSize:       config.ChunkSize,
		permissionLevel: config.PermissionLevel,
	}

	if e.checkpoints == nil {
		e.checkpoints = memory.NewCheckpointer()
	}
	if e.locks == nil {
		e.locks = memory.NewLocker()
	}
	if e.metrics == nil {
		e.metrics = telemetry.NoopMetricsProvider{}
	}
	if e.tracer == nil {
		e.tracer = noop.NewTracerProvider().Tracer(telemetry.InstrumentationName)
	}
	if e.maxIterations <= 0 {
		e.maxIterations = DefaultMaxIterations
	}
	if e.chunkSize <= 0 {
		e.chunkSize = event.DefaultChunkSize
	}
	if e.permissionLevel <= 0 {
		e.permissionLevel = agent.DefaultPermissionLevel
	}

	return e, nil
}

// Checkpoints returns the engine's checkpoint saver.
func (e *Engine) Checkpoints() checkpoint.Saver {
	return e.checkpoints
}

// Run executes one turn to completion. Cancelling ctx lets the in-flight
// stage finish and stops before the next; the partial response is returned
// together with the context error.
func (e *Engine) Run(ctx context.Context, req Request) (*Response, error) {
	release, err := e.claim(ctx, req.ThreadID)
	if err != nil {
		return nil, err
	}
	defer release()

	x, err := e.begin(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	return e.drive(ctx, x)
}

// Stream executes one turn and delivers its events on the returned
// channel, which is closed when the run ends. The run stops emitting once
// ctx is cancelled.
func (e *Engine) Stream(ctx context.Context, req Request) (<-chan event.Event, error) {
	release, err := e.claim(ctx, req.ThreadID)
	if err != nil {
		return nil, err
	}

	out := make(chan event.Event, streamBuffer)
	x, err := e.begin(ctx, req, out)
	if err != nil {
		release()
		return nil, err
	}

	go func() {
		defer release()
		defer close(out)
		_, _ = e.drive(ctx, x)
	}()
	return out, nil
}

// Resume re-enters a thread at the stage recorded in a checkpoint. An
// empty checkpoint id resumes from the thread's latest checkpoint.
func (e *Engine) Resume(ctx context.Context, threadID, checkpointID string) (*Response, error) {
	release, err := e.claim(ctx, threadID)
	if err != nil {
		return nil, err
	}
	defer release()

	x, err := e.resume(ctx, threadID, checkpointID, nil)
	if err != nil {
		return nil, err
	}
	return e.drive(ctx, x)
}

// ResumeStream is Resume with event delivery on a channel.
func (e *Engine) ResumeStream(ctx context.Context, threadID, checkpointID string) (<-chan event.Event, error) {
	release, err := e.claim(ctx, threadID)
	if err != nil {
		return nil, err
	}

	out := make(chan event.Event, streamBuffer)
	x, err := e.resume(ctx, threadID, checkpointID, out)
	if err != nil {
		release()
		return nil, err
	}

	go func() {
		defer release()
		defer close(out)
		_, _ = e.drive(ctx, x)
	}()
	return out, nil
}

// claim leases threadID for the length of one run. New threads have no
// id yet and need no lease.
func (e *Engine) claim(ctx context.Context, threadID string) (func(), error) {
	if threadID == "" {
		return func() {}, nil
	}
	release, err := lock.Hold(ctx, e.locks, "thread:"+threadID, lock.DefaultTTL, func(err error) {
		logging.Warn().
			Add(logging.ThreadID(threadID)).
			Add(logging.ErrorField(err)).
			Msg("thread lease lost")
	})
	switch {
	case errors.Is(err, lock.ErrHeld):
		return nil, fmt.Errorf("%w: %s", ErrThreadBusy, threadID)
	case err != nil:
		return nil, fmt.Errorf("lock thread: %w", err)
	}
	return release, nil
}

// begin builds the initial state and writes the input checkpoint.
func (e *Engine) begin(ctx context.Context, req Request, sink chan<- event.Event) (*execution, error) {
	if req.Message == "" {
		return nil, ErrEmptyMessage
	}
	if req.SessionID == "" {
		req.SessionID = DefaultSessionID
	}
	if req.UserID == "" {
		req.UserID = DefaultUserID
	}

	state := agent.NewAgentState(req.SessionID, req.UserID, req.Message)
	cfg := checkpoint.Config{ThreadID: req.ThreadID}

	if req.ThreadID != "" {
		prev, err := e.checkpoints.Get(ctx, checkpoint.Config{ThreadID: req.ThreadID})
		switch {
		case err == nil:
			state = continueThread(prev.State, req)
			cfg = prev.Config()
		case errors.Is(err, checkpoint.ErrNotFound):
		default:
			return nil, fmt.Errorf("load thread: %w", err)
		}
	}

	state.PermissionLevel = e.permissionLevel
	if req.PermissionLevel > 0 {
		state.PermissionLevel = req.PermissionLevel
	}

	if e.sessions != nil {
		if _, err := e.sessions.Ensure(ctx, state.SessionID, state.UserID); err != nil {
			logging.Warn().
				Add(logging.SessionID(state.SessionID)).
				Add(logging.ErrorField(err)).
				Msg("session ensure failed")
		}
	}

	cfg, err := e.checkpoints.Put(ctx, cfg, state, checkpoint.Metadata{
		Source:   checkpoint.SourceInput,
		NextNode: agent.StageClassifier,
	})
	if err != nil {
		return nil, fmt.Errorf("write input checkpoint: %w", err)
	}

	return e.newExecution(cfg, state, agent.StageStart, sink, false)
}

// continueThread carries a finished thread's transcript into a new turn.
func continueThread(prev *agent.AgentState, req Request) *agent.AgentState {
	state := agent.NewAgentState(prev.SessionID, prev.UserID, "")
	state.Messages = append(state.Messages, prev.Messages...)
	state.AppendMessages(agent.UserMessage(req.Message))
	if req.UserID != "" && req.UserID != DefaultUserID {
		state.UserID = req.UserID
	}
	return state
}

func (e *Engine) resume(ctx context.Context, threadID, checkpointID string, sink chan<- event.Event) (*execution, error) {
	if threadID == "" {
		return nil, checkpoint.ErrInvalidThreadID
	}
	cp, err := e.checkpoints.Get(ctx, checkpoint.Config{ThreadID: threadID, CheckpointID: checkpointID})
	if err != nil {
		return nil, err
	}

	next := cp.Metadata.NextNode
	if next == "" || next == agent.StageEnd || cp.State.IsComplete {
		return nil, fmt.Errorf("%w: %s", ErrNothingToResume, cp.ID)
	}
	if next == agent.StageStart {
		next = agent.StageClassifier
	}

	cfg, err := e.checkpoints.Put(ctx, cp.Config(), cp.State, checkpoint.Metadata{
		Source:   checkpoint.SourceResume,
		Step:     cp.Metadata.Step,
		NextNode: next,
	})
	if err != nil {
		return nil, fmt.Errorf("write resume checkpoint: %w", err)
	}

	x, err := e.newExecution(cfg, cp.State, next, sink, true)
	if err != nil {
		return nil, err
	}
	x.step = cp.Metadata.Step
	return x, nil
}
