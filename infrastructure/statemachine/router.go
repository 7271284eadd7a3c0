package statemachine

import (
	"github.com/felixgeelhaar/orbit/domain/agent"
)

// Routing functions are pure and total: every input state maps to exactly
// one next stage and none of them mutate the state.

// AfterStart enters the graph at the classifier.
func AfterStart(*agent.AgentState) agent.Stage {
	return agent.StageClassifier
}

// AfterClassifier dispatches on the classified intent.
func AfterClassifier(state *agent.AgentState) agent.Stage {
	switch state.Intent {
	case agent.IntentCommand:
		return agent.StageCommandGenerator
	case agent.IntentWorkflow:
		return agent.StagePlanner
	default:
		return agent.StageResponder
	}
}

// AfterCommandGenerator always responds.
func AfterCommandGenerator(*agent.AgentState) agent.Stage {
	return agent.StageResponder
}

// AfterPlanner executes a plan with steps and responds otherwise.
func AfterPlanner(state *agent.AgentState) agent.Stage {
	if state.Plan.HasSteps() {
		return agent.StageExecutor
	}
	return agent.StageResponder
}

// AfterExecutor always evaluates.
func AfterExecutor(*agent.AgentState) agent.Stage {
	return agent.StageEvaluator
}

// AfterEvaluator dispatches on the evaluation outcome. Terminal and
// unrecognized outcomes respond.
func AfterEvaluator(state *agent.AgentState) agent.Stage {
	switch state.EvaluationOutcome {
	case agent.OutcomeContinueExecution:
		return agent.StageExecutor
	case agent.OutcomeNeedsReplanning:
		return agent.StagePlanner
	default:
		return agent.StageResponder
	}
}

// AfterResponder ends the graph.
func AfterResponder(*agent.AgentState) agent.Stage {
	return agent.StageEnd
}

// Next returns the stage that follows from. A completed state only ever
// routes to END, and an unknown stage falls through to the responder.
func Next(from agent.Stage, state *agent.AgentState) agent.Stage {
	if from == agent.StageEnd || (state != nil && state.IsComplete) {
		return agent.StageEnd
	}
	if state == nil {
		return agent.StageResponder
	}

	switch from {
	case agent.StageStart:
		return AfterStart(state)
	case agent.StageClassifier:
		return AfterClassifier(state)
	case agent.StageCommandGenerator:
		return AfterCommandGenerator(state)
	case agent.StagePlanner:
		return AfterPlanner(state)
	case agent.StageExecutor:
		return AfterExecutor(state)
	case agent.StageEvaluator:
		return AfterEvaluator(state)
	case agent.StageResponder:
		return AfterResponder(state)
	default:
		return agent.StageResponder
	}
}

// edges is the static transition table. Every work stage may additionally
// jump to END once the state is complete.
var edges = map[agent.Stage][]agent.Stage{
	agent.StageStart:            {agent.StageClassifier},
	agent.StageClassifier:       {agent.StageCommandGenerator, agent.StagePlanner, agent.StageResponder},
	agent.StageCommandGenerator: {agent.StageResponder},
	agent.StagePlanner:          {agent.StageExecutor, agent.StageResponder},
	agent.StageExecutor:         {agent.StageEvaluator},
	agent.StageEvaluator:        {agent.StageExecutor, agent.StagePlanner, agent.StageResponder},
	agent.StageResponder:        {agent.StageEnd},
}

// Targets returns the stages reachable from a stage.
func Targets(from agent.Stage) []agent.Stage {
	out := append([]agent.Stage(nil), edges[from]...)
	if from != agent.StageResponder && from != agent.StageEnd && from.IsValid() {
		out = append(out, agent.StageEnd)
	}
	return out
}

// CanTransition reports whether to is reachable from from in the table.
func CanTransition(from, to agent.Stage) bool {
	for _, s := range Targets(from) {
		if s == to {
			return true
		}
	}
	return false
}
