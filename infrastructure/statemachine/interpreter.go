package statemachine

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/orbit/domain/agent"
)

// Interpreter wraps the statekit interpreter and tracks the live stage of
// one run. It is not safe for concurrent use; each run owns one.
type Interpreter struct {
	interp *statekit.Interpreter[*Context]
	ctx    *Context
}

// NewInterpreter creates an interpreter bound to a state.
func NewInterpreter(machine *statekit.MachineConfig[*Context], state *agent.AgentState) *Interpreter {
	ctx := NewContext(state)
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})
	return &Interpreter{interp: interp, ctx: ctx}
}

// NewRouterInterpreter builds the router statechart and an interpreter on it.
func NewRouterInterpreter(state *agent.AgentState) (*Interpreter, error) {
	machine, err := NewRouterMachine()
	if err != nil {
		return nil, fmt.Errorf("build router machine: %w", err)
	}
	return NewInterpreter(machine, state), nil
}

// Start enters the initial stage.
func (i *Interpreter) Start() {
	i.interp.Start()
}

// Stop stops the interpreter.
func (i *Interpreter) Stop() {
	i.interp.Stop()
}

// Stage returns the live stage.
func (i *Interpreter) Stage() agent.Stage {
	return StageFromMachine(i.interp.State().Value)
}

// Bind replaces the state the guards observe.
func (i *Interpreter) Bind(state *agent.AgentState) {
	i.ctx.State = state
}

// Trail returns the stages entered so far, in order.
func (i *Interpreter) Trail() []agent.Stage {
	return append([]agent.Stage(nil), i.ctx.Trail...)
}

// Transition moves the machine to a stage. Transitions absent from the
// table, or rejected by a guard, return ErrInvalidTransition and leave the
// live stage unchanged.
func (i *Interpreter) Transition(to agent.Stage) error {
	from := i.Stage()
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", agent.ErrInvalidTransition, from, to)
	}

	i.interp.Send(statekit.Event{Type: EventForStage(to), Payload: to})

	if got := i.Stage(); got != to {
		return fmt.Errorf("%w: %s -> %s rejected by guard", agent.ErrInvalidTransition, from, to)
	}
	return nil
}

// Advance routes from the live stage using Next and transitions there.
func (i *Interpreter) Advance() (agent.Stage, error) {
	to := Next(i.Stage(), i.ctx.State)
	if err := i.Transition(to); err != nil {
		return i.Stage(), err
	}
	return to, nil
}

// IsTerminal returns true once END has been reached.
func (i *Interpreter) IsTerminal() bool {
	return i.interp.Done()
}

// ResumeFrom restores the machine at a stage, as when a checkpointed run
// re-enters the graph.
func (i *Interpreter) ResumeFrom(stage agent.Stage) error {
	if !stage.IsValid() {
		return fmt.Errorf("%w: %q", agent.ErrInvalidStage, stage)
	}

	snapshot := statekit.Snapshot[*Context]{
		MachineID:    MachineID,
		CurrentState: statekit.StateID(stage),
		Context:      i.ctx,
		CreatedAt:    time.Now(),
	}
	if err := i.interp.Restore(snapshot); err != nil {
		return fmt.Errorf("failed to restore stage: %w", err)
	}
	return nil
}
