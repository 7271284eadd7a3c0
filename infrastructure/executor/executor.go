// Package executor runs plan steps against the tool registry and records
// each tool invocation in the tool-call repository.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/tool"
	"github.com/felixgeelhaar/orbit/domain/toolcall"
	"github.com/felixgeelhaar/orbit/infrastructure/logging"
	"github.com/felixgeelhaar/orbit/infrastructure/resilience"
)

// ErrNoStep indicates the cursor does not point at a plan step.
var ErrNoStep = errors.New("no plan step at cursor")

// Messages recorded on skipped and failed steps.
const (
	MsgNeedsConfirmation = "This step requires user confirmation"
	msgToolNotFound      = "Tool '%s' not found in registry"
	msgNeedsPermission   = "Tool '%s' requires higher permission level"
)

// Observer is notified after every tool invocation.
type Observer func(toolName string, status agent.StepStatus, elapsed time.Duration)

// Executor executes one plan step per call.
type Executor struct {
	registry tool.Registry
	runner   *resilience.Executor
	calls    toolcall.Repository
	retry    resilience.RetryConfig
	observer Observer
}

// Config configures an Executor.
type Config struct {
	Registry tool.Registry

	// Runner applies the bulkhead and per-tool deadline. Defaults to
	// resilience.NewDefaultExecutor.
	Runner *resilience.Executor

	// ToolCalls receives the tool-call audit trail. Optional.
	ToolCalls toolcall.Repository

	// Retry governs tool-call repository writes.
	Retry resilience.RetryConfig

	Observer Observer
}

// New creates an executor.
func New(cfg Config) *Executor {
	runner := cfg.Runner
	if runner == nil {
		runner = resilience.NewDefaultExecutor()
	}
	return &Executor{
		registry: cfg.Registry,
		runner:   runner,
		calls:    cfg.ToolCalls,
		retry:    cfg.Retry,
		observer: cfg.Observer,
	}
}

// ExecuteStep runs the step at the state's cursor. Step failures are
// reported in the result; the error is reserved for a cursor that does
// not address a step.
func (e *Executor) ExecuteStep(ctx context.Context, state *agent.AgentState) (*agent.ExecutionResult, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: nil state", agent.ErrInvalidState)
	}
	step, ok := state.Plan.Step(state.CurrentStep)
	if !ok {
		return nil, fmt.Errorf("%w: step %d of %d", ErrNoStep, state.CurrentStep, state.Plan.TotalSteps())
	}
	return e.run(ctx, state, step), nil
}

// ExecuteAll runs every remaining step from the cursor in order. The state
// is not modified.
func (e *Executor) ExecuteAll(ctx context.Context, state *agent.AgentState) ([]agent.ExecutionResult, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: nil state", agent.ErrInvalidState)
	}
	start := state.CurrentStep
	if start < 1 {
		start = 1
	}

	results := make([]agent.ExecutionResult, 0, state.Plan.TotalSteps())
	for n := start; n <= state.Plan.TotalSteps(); n++ {
		step, _ := state.Plan.Step(n)
		results = append(results, *e.run(ctx, state, step))
	}
	return results, nil
}

func (e *Executor) run(ctx context.Context, state *agent.AgentState, step agent.PlanStep) *agent.ExecutionResult {
	result := agent.NewExecutionResult(step)

	if step.RequiresConfirmation {
		_ = result.Skip(MsgNeedsConfirmation)
		return e.done(state, result, 0)
	}
	if step.IsInformational() {
		_ = result.Complete(step.Description, 0)
		return e.done(state, result, 0)
	}

	name := step.Tool()
	var t tool.Tool
	if e.registry != nil {
		t, _ = e.registry.Get(name)
	}
	if t == nil {
		_ = result.Fail(fmt.Sprintf(msgToolNotFound, name), nil)
		return e.done(state, result, 0)
	}
	if !t.Annotations().IsSafeFor(state.PermissionLevel) {
		_ = result.Skip(fmt.Sprintf(msgNeedsPermission, name))
		return e.done(state, result, 0)
	}

	input, err := json.Marshal(arguments(step))
	if err != nil {
		_ = result.Fail("invalid arguments: "+err.Error(), nil)
		return e.done(state, result, 0)
	}

	id, err := e.open(ctx, state.SessionID, name, input)
	if err != nil {
		_ = result.Fail("failed to record tool call: "+err.Error(), nil)
		return e.done(state, result, 0)
	}
	_ = result.Transition(agent.StepRunning)

	start := time.Now()
	res, runErr := e.runner.Execute(ctx, t, input)
	elapsed := time.Since(start)
	ms := elapsed.Milliseconds()

	if runErr != nil {
		msg := runErr.Error()
		if err := e.write(ctx, func(ctx context.Context) error {
			return e.calls.MarkFailed(ctx, id, msg)
		}); err != nil {
			msg += "; failed to persist tool call: " + err.Error()
		}
		_ = result.Fail(msg, &ms)
		return e.done(state, result, elapsed)
	}

	outputs, _ := json.Marshal(map[string]string{"output": res.Output})
	if err := e.write(ctx, func(ctx context.Context) error {
		return e.calls.MarkCompleted(ctx, id, outputs, ms)
	}); err != nil {
		_ = result.Fail("tool succeeded but persisting the result failed: "+err.Error(), &ms)
		return e.done(state, result, elapsed)
	}

	_ = result.Complete(res.Output, ms)
	return e.done(state, result, elapsed)
}

// open creates the tool-call record and marks it running.
func (e *Executor) open(ctx context.Context, sessionID, name string, input json.RawMessage) (string, error) {
	if e.calls == nil {
		return "", nil
	}
	id, err := resilience.Retry(ctx, e.retry, func(ctx context.Context) (string, error) {
		return e.calls.Create(ctx, sessionID, name, input)
	})
	if err != nil {
		return "", err
	}
	if err := resilience.RetryErr(ctx, e.retry, func(ctx context.Context) error {
		return e.calls.MarkRunning(ctx, id)
	}); err != nil {
		return "", err
	}
	return id, nil
}

// write applies a terminal repository write with retries. The write runs
// even when the caller has gone away so that the audit trail is closed.
func (e *Executor) write(ctx context.Context, fn func(context.Context) error) error {
	if e.calls == nil {
		return nil
	}
	return resilience.RetryErr(context.WithoutCancel(ctx), e.retry, fn)
}

func (e *Executor) done(state *agent.AgentState, result *agent.ExecutionResult, elapsed time.Duration) *agent.ExecutionResult {
	if e.observer != nil && result.ToolName != "" {
		e.observer(result.ToolName, result.Status, elapsed)
	}

	ev := logging.Debug()
	if result.Status == agent.StepFailed {
		ev = logging.Warn()
	}
	ev.Add(logging.SessionID(state.SessionID)).
		Add(logging.StepNumber(result.StepNumber)).
		Add(logging.ToolName(result.ToolName)).
		Add(logging.Str("status", string(result.Status))).
		Add(logging.Duration(elapsed)).
		Add(logging.Reason(result.ErrorText())).
		Msg("step executed")
	return result
}

func arguments(step agent.PlanStep) map[string]any {
	if step.Arguments == nil {
		return map[string]any{}
	}
	return step.Arguments
}
