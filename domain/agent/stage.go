// Package agent provides the core domain model for the orchestration graph.
package agent

// Stage identifies one node of the orchestration graph.
// Stages are identified by stable strings so they can be persisted in
// checkpoints and compared across process restarts.
type Stage string

// Graph stages.
const (
	StageStart            Stage = "__start__" // Virtual entry
	StageClassifier       Stage = "classifier"
	StageCommandGenerator Stage = "command_generator"
	StagePlanner          Stage = "planner"
	StageExecutor         Stage = "executor"
	StageEvaluator        Stage = "evaluator"
	StageResponder        Stage = "responder"
	StageEnd              Stage = "__end__" // Virtual exit
)

// IsVirtual returns true for the START and END markers.
func (s Stage) IsVirtual() bool {
	return s == StageStart || s == StageEnd
}

// IsValid returns true if the stage is a recognized graph stage.
func (s Stage) IsValid() bool {
	switch s {
	case StageStart, StageClassifier, StageCommandGenerator, StagePlanner,
		StageExecutor, StageEvaluator, StageResponder, StageEnd:
		return true
	default:
		return false
	}
}

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// WorkStages returns every non-virtual stage in graph order.
func WorkStages() []Stage {
	return []Stage{
		StageClassifier,
		StageCommandGenerator,
		StagePlanner,
		StageExecutor,
		StageEvaluator,
		StageResponder,
	}
}

// AllStages returns all stages including the virtual markers.
func AllStages() []Stage {
	return append(append([]Stage{StageStart}, WorkStages()...), StageEnd)
}
