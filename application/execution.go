package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/checkpoint"
	"github.com/felixgeelhaar/orbit/domain/event"
	"github.com/felixgeelhaar/orbit/infrastructure/executor"
	"github.com/felixgeelhaar/orbit/infrastructure/logging"
	"github.com/felixgeelhaar/orbit/infrastructure/statemachine"
	"github.com/felixgeelhaar/orbit/infrastructure/telemetry"
)

// execution is the per-run state owned by one drive call.
type execution struct {
	// ctx is the caller's context; stages run detached from it.
	ctx     context.Context
	cfg     checkpoint.Config
	state   *agent.AgentState
	interp  *statemachine.Interpreter
	sink    chan<- event.Event
	resumed bool

	step     int
	seq      uint64
	start    time.Time
	baseline int
}

func (e *Engine) newExecution(cfg checkpoint.Config, state *agent.AgentState, at agent.Stage, sink chan<- event.Event, resumed bool) (*execution, error) {
	interp, err := statemachine.NewRouterInterpreter(state)
	if err != nil {
		return nil, err
	}
	interp.Start()
	if at != agent.StageStart {
		if err := interp.ResumeFrom(at); err != nil {
			interp.Stop()
			return nil, err
		}
	}

	return &execution{
		cfg:      cfg,
		state:    state,
		interp:   interp,
		sink:     sink,
		resumed:  resumed,
		start:    time.Now(),
		baseline: len(state.Messages),
	}, nil
}

// drive runs stages until END. Only checkpoint outages and invalid
// transitions abort a run.
func (e *Engine) drive(ctx context.Context, x *execution) (resp *Response, err error) {
	defer x.interp.Stop()
	x.ctx = ctx

	e.metrics.IncrementActiveRuns(ctx)
	defer func() {
		e.metrics.DecrementActiveRuns(context.WithoutCancel(ctx))
		e.metrics.RecordRunDuration(context.WithoutCancel(ctx), time.Since(x.start), x.state.Intent, err == nil)
	}()

	logging.Info().
		Add(logging.ThreadID(x.cfg.ThreadID)).
		Add(logging.SessionID(x.state.SessionID)).
		Add(logging.Stage(x.interp.Stage())).
		Msg("run started")

	e.emit(x, event.TypeStart, event.StartPayload{
		SessionID: x.state.SessionID,
		UserID:    x.state.UserID,
		Stage:     x.interp.Stage(),
		Resumed:   x.resumed,
	})

	stage := x.interp.Stage()
	if stage == agent.StageStart {
		stage, err = e.advance(ctx, x, stage)
		if err != nil {
			return e.abort(ctx, x, stage, err)
		}
	}

	for stage != agent.StageEnd {
		if ctx.Err() != nil {
			return e.cancelled(ctx, x, stage)
		}

		// The stage runs to completion even if the caller goes away.
		stageCtx := context.WithoutCancel(ctx)
		writes, err := e.runStage(stageCtx, x, stage)
		if err != nil {
			return e.abort(ctx, x, stage, err)
		}

		next := statemachine.Next(stage, x.state)
		x.step++
		cfg, err := e.checkpoints.Put(stageCtx, x.cfg, x.state, checkpoint.Metadata{
			Source:   checkpoint.SourceLoop,
			Step:     x.step,
			Writes:   map[string]any{string(stage): writes},
			NextNode: next,
		})
		if err != nil {
			return e.abort(ctx, x, stage, fmt.Errorf("write checkpoint: %w", err))
		}
		x.cfg = cfg

		if stage, err = e.advance(ctx, x, stage); err != nil {
			return e.abort(ctx, x, stage, err)
		}
	}

	resp = e.response(x, StatusCompleted)
	e.persistTranscript(ctx, x)
	e.emit(x, event.TypeComplete, event.CompletePayload{
		Intent:       x.state.Intent,
		Command:      x.state.Command,
		Outcome:      x.state.EvaluationOutcome,
		CheckpointID: x.cfg.CheckpointID,
		Status:       resp.Status,
	})

	logging.Info().
		Add(logging.ThreadID(x.cfg.ThreadID)).
		Add(logging.Intent(x.state.Intent)).
		Add(logging.Outcome(x.state.EvaluationOutcome)).
		Add(logging.Duration(time.Since(x.start))).
		Msg("run completed")
	return resp, nil
}

// advance routes from the live stage and moves the statechart there.
func (e *Engine) advance(ctx context.Context, x *execution, from agent.Stage) (agent.Stage, error) {
	to := statemachine.Next(from, x.state)
	if err := x.interp.Transition(to); err != nil {
		return from, err
	}
	e.metrics.RecordStageTransition(ctx, from, to)
	logging.Debug().
		Add(logging.ThreadID(x.cfg.ThreadID)).
		Add(logging.FromStage(from)).
		Add(logging.ToStage(to)).
		Msg("stage transition")
	return to, nil
}

// runStage invokes one stage and applies its delta to the state. The
// returned writes summarize the delta for checkpoint metadata.
func (e *Engine) runStage(ctx context.Context, x *execution, stage agent.Stage) (writes map[string]any, err error) {
	ctx, span := telemetry.StartStage(ctx, e.tracer, stage, x.cfg.ThreadID)
	defer func() { telemetry.EndSpan(span, err) }()

	switch stage {
	case agent.StageClassifier:
		return e.classify(ctx, x), nil
	case agent.StageCommandGenerator:
		return e.generateCommand(ctx, x), nil
	case agent.StagePlanner:
		return e.plan(ctx, x), nil
	case agent.StageExecutor:
		return e.execute(ctx, x)
	case agent.StageEvaluator:
		return e.evaluate(ctx, x), nil
	case agent.StageResponder:
		return e.respond(ctx, x), nil
	default:
		return nil, fmt.Errorf("%w: %q", agent.ErrInvalidStage, stage)
	}
}

func (e *Engine) classify(ctx context.Context, x *execution) map[string]any {
	x.state.Intent = e.classifier.Classify(ctx, x.state)
	e.emit(x, event.TypeIntent, event.IntentPayload{Intent: x.state.Intent})
	return map[string]any{"intent": x.state.Intent}
}

func (e *Engine) generateCommand(ctx context.Context, x *execution) map[string]any {
	if e.commands == nil {
		return map[string]any{"command": ""}
	}
	res := e.commands.Generate(ctx, x.state)
	x.state.Command = res.Command
	x.state.AppendMessages(res.Messages...)
	return map[string]any{
		"command":  res.Command,
		"safe":     res.Verdict.Safe,
		"executed": res.Executed,
	}
}

func (e *Engine) plan(ctx context.Context, x *execution) map[string]any {
	plan, err := e.planner.CreatePlan(ctx, x.state)
	if err != nil || plan == nil {
		logging.Warn().
			Add(logging.ThreadID(x.cfg.ThreadID)).
			Add(logging.ErrorField(err)).
			Msg("planner returned no plan")
		plan = agent.NewPlan("", nil)
	}
	x.state.ApplyPlan(plan)
	e.emit(x, event.TypePlan, event.PlanPayload{Plan: plan})
	return map[string]any{"goal": plan.Goal, "steps": plan.TotalSteps()}
}

func (e *Engine) execute(ctx context.Context, x *execution) (map[string]any, error) {
	if step, ok := x.state.Plan.Step(x.state.CurrentStep); ok {
		e.emit(x, event.TypeStep, event.StepPayload{
			StepNumber:  step.StepNumber,
			Description: step.Description,
			ToolName:    step.Tool(),
		})
	}

	result, err := e.executor.ExecuteStep(ctx, x.state)
	if errors.Is(err, executor.ErrNoStep) {
		// The evaluator decides how to proceed from an exhausted cursor.
		return map[string]any{"step": x.state.CurrentStep, "status": "none"}, nil
	}
	if err != nil {
		return nil, err
	}

	x.state.ToolResults = append(x.state.ToolResults, *result)
	e.emit(x, event.TypeToolResult, event.ToolResultPayload{Result: *result})
	return map[string]any{"step": result.StepNumber, "status": result.Status}, nil
}

func (e *Engine) evaluate(ctx context.Context, x *execution) map[string]any {
	ev := e.evaluator.Evaluate(ctx, x.state)
	x.state.IterationCount++

	if x.state.IterationCount >= e.maxIterations && !ev.Outcome.IsTerminal() {
		logging.Warn().
			Add(logging.ThreadID(x.cfg.ThreadID)).
			Add(logging.Count("iterations", x.state.IterationCount)).
			Msg("iteration limit reached")
		ev = agent.Evaluation{
			Outcome:   agent.OutcomeIncomplete,
			Reasoning: fmt.Sprintf("Stopped after %d iterations without reaching the goal", x.state.IterationCount),
			Gaps:      append(ev.Gaps, "Iteration limit reached"),
		}
	}

	x.state.ApplyEvaluation(ev)
	e.emit(x, event.TypeEvaluation, event.EvaluationPayload{
		Evaluation: ev,
		Summary:    ev.FormatForUser(),
	})
	return map[string]any{"outcome": ev.Outcome, "iteration": x.state.IterationCount}
}

func (e *Engine) respond(ctx context.Context, x *execution) map[string]any {
	msg := e.responder.Respond(ctx, x.state)
	x.state.AppendMessages(msg)
	x.state.IsComplete = true

	chunks := event.Chunk(msg.Content, e.chunkSize)
	for i, c := range chunks {
		e.emit(x, event.TypeChunk, event.ChunkPayload{
			Index:   i,
			Content: c,
			Last:    i == len(chunks)-1,
		})
	}
	return map[string]any{"chars": len([]rune(msg.Content))}
}

func (e *Engine) cancelled(ctx context.Context, x *execution, stage agent.Stage) (*Response, error) {
	logging.Info().
		Add(logging.ThreadID(x.cfg.ThreadID)).
		Add(logging.Stage(stage)).
		Add(logging.CheckpointID(x.cfg.CheckpointID)).
		Msg("run cancelled")
	e.persistTranscript(ctx, x)
	return e.response(x, StatusCancelled), ctx.Err()
}

func (e *Engine) abort(ctx context.Context, x *execution, stage agent.Stage, err error) (*Response, error) {
	logging.Error().
		Add(logging.ThreadID(x.cfg.ThreadID)).
		Add(logging.Stage(stage)).
		Add(logging.ErrorField(err)).
		Msg("run failed")
	e.metrics.RecordError(context.WithoutCancel(ctx), "engine", map[string]string{"stage": string(stage)})
	e.emit(x, event.TypeError, event.ErrorPayload{Error: err.Error(), Stage: stage})
	return nil, err
}

func (e *Engine) response(x *execution, status string) *Response {
	resp := &Response{
		ThreadID:     x.cfg.ThreadID,
		CheckpointID: x.cfg.CheckpointID,
		Messages:     make([]string, 0),
		Intent:       x.state.Intent,
		Command:      x.state.Command,
		Outcome:      x.state.EvaluationOutcome,
		Status:       status,
		State:        x.state,
	}
	for _, m := range x.newMessages() {
		if m.Role == agent.RoleAssistant {
			resp.Messages = append(resp.Messages, m.Content)
		}
	}
	return resp
}

func (x *execution) newMessages() []agent.Message {
	if x.baseline > len(x.state.Messages) {
		return nil
	}
	return x.state.Messages[x.baseline:]
}

// persistTranscript appends the turn's messages to the session. A fresh
// turn includes the user message that seeded it.
func (e *Engine) persistTranscript(ctx context.Context, x *execution) {
	if e.sessions == nil {
		return
	}
	from := x.baseline
	if !x.resumed && from > 0 {
		from--
	}
	msgs := x.state.Messages[from:]
	if len(msgs) == 0 {
		return
	}
	if err := e.sessions.AppendMessages(context.WithoutCancel(ctx), x.state.SessionID, msgs...); err != nil {
		logging.Warn().
			Add(logging.SessionID(x.state.SessionID)).
			Add(logging.ErrorField(err)).
			Msg("transcript append failed")
	}
}

// emit stamps and delivers one event. Nothing is emitted once the caller
// has cancelled, including by a stage that is still finishing.
func (e *Engine) emit(x *execution, typ event.Type, payload any) {
	ctx := x.ctx
	if ctx.Err() != nil {
		return
	}
	ev, err := event.NewEvent(x.cfg.ThreadID, typ, payload)
	if err != nil {
		logging.Warn().
			Add(logging.ThreadID(x.cfg.ThreadID)).
			Add(logging.ErrorField(err)).
			Msg("event encoding failed")
		return
	}
	x.seq++
	ev.Sequence = x.seq

	if e.publisher != nil {
		if err := e.publisher.Publish(ctx, ev); err != nil {
			logging.Debug().
				Add(logging.ThreadID(x.cfg.ThreadID)).
				Add(logging.ErrorField(err)).
				Msg("event publish failed")
		}
	}
	if x.sink != nil {
		select {
		case x.sink <- ev:
		case <-ctx.Done():
		}
	}
}
