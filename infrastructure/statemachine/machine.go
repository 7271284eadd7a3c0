// Package statemachine provides the statekit integration for the
// orchestration graph: pure routing functions and a statechart that
// tracks the live stage of a run.
package statemachine

import (
	"strings"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/orbit/domain/agent"
)

// MachineID identifies the router statechart in snapshots.
const MachineID = "orbit-router"

// Context carries the run state through the statechart.
type Context struct {
	State *agent.AgentState
	Trail []agent.Stage
}

// NewContext creates a machine context for a state.
func NewContext(state *agent.AgentState) *Context {
	return &Context{State: state}
}

// EventForStage returns the event type that moves the machine into a stage.
func EventForStage(to agent.Stage) statekit.EventType {
	switch to {
	case agent.StageEnd:
		return "FINISH"
	case agent.StageStart:
		return "START"
	default:
		return statekit.EventType("GOTO_" + strings.ToUpper(string(to)))
	}
}

// StageFromMachine converts a statechart state id to a stage.
func StageFromMachine(id statekit.StateID) agent.Stage {
	return agent.Stage(id)
}

// State IDs as StateID type for statekit.
const (
	stateStart    = statekit.StateID(agent.StageStart)
	stateClassify = statekit.StateID(agent.StageClassifier)
	stateCommand  = statekit.StateID(agent.StageCommandGenerator)
	statePlan     = statekit.StateID(agent.StagePlanner)
	stateExecute  = statekit.StateID(agent.StageExecutor)
	stateEvaluate = statekit.StateID(agent.StageEvaluator)
	stateRespond  = statekit.StateID(agent.StageResponder)
	stateEnd      = statekit.StateID(agent.StageEnd)
)

// NewRouterMachine compiles the transition table into a statechart.
// Transitions into work stages are guarded against completed states;
// END is only reachable from the responder or from a completed state.
func NewRouterMachine() (*statekit.MachineConfig[*Context], error) {
	var (
		toClassify = EventForStage(agent.StageClassifier)
		toCommand  = EventForStage(agent.StageCommandGenerator)
		toPlan     = EventForStage(agent.StagePlanner)
		toExecute  = EventForStage(agent.StageExecutor)
		toEvaluate = EventForStage(agent.StageEvaluator)
		toRespond  = EventForStage(agent.StageResponder)
		finish     = EventForStage(agent.StageEnd)
	)

	return statekit.NewMachine[*Context](MachineID).
		WithInitial(stateStart).
		WithContext(&Context{}).
		WithAction("recordStage", recordStage).
		WithGuard("notComplete", guardNotComplete).
		WithGuard("isComplete", guardIsComplete).
		State(stateStart).
			On(toClassify).Target(stateClassify).Guard("notComplete").Do("recordStage").
			On(finish).Target(stateEnd).Guard("isComplete").Do("recordStage").
			Done().
		State(stateClassify).
			On(toCommand).Target(stateCommand).Guard("notComplete").Do("recordStage").
			On(toPlan).Target(statePlan).Guard("notComplete").Do("recordStage").
			On(toRespond).Target(stateRespond).Do("recordStage").
			On(finish).Target(stateEnd).Guard("isComplete").Do("recordStage").
			Done().
		State(stateCommand).
			On(toRespond).Target(stateRespond).Do("recordStage").
			On(finish).Target(stateEnd).Guard("isComplete").Do("recordStage").
			Done().
		State(statePlan).
			On(toExecute).Target(stateExecute).Guard("notComplete").Do("recordStage").
			On(toRespond).Target(stateRespond).Do("recordStage").
			On(finish).Target(stateEnd).Guard("isComplete").Do("recordStage").
			Done().
		State(stateExecute).
			On(toEvaluate).Target(stateEvaluate).Guard("notComplete").Do("recordStage").
			On(finish).Target(stateEnd).Guard("isComplete").Do("recordStage").
			Done().
		State(stateEvaluate).
			On(toExecute).Target(stateExecute).Guard("notComplete").Do("recordStage").
			On(toPlan).Target(statePlan).Guard("notComplete").Do("recordStage").
			On(toRespond).Target(stateRespond).Do("recordStage").
			On(finish).Target(stateEnd).Guard("isComplete").Do("recordStage").
			Done().
		State(stateRespond).
			On(finish).Target(stateEnd).Do("recordStage").
			Done().
		State(stateEnd).
			Final().
			Done().
		Build()
}

func recordStage(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	if to, ok := event.Payload.(agent.Stage); ok {
		(*ctx).Trail = append((*ctx).Trail, to)
	}
}

func guardNotComplete(ctx *Context, _ statekit.Event) bool {
	return ctx == nil || ctx.State == nil || !ctx.State.IsComplete
}

func guardIsComplete(ctx *Context, _ statekit.Event) bool {
	return ctx != nil && ctx.State != nil && ctx.State.IsComplete
}
