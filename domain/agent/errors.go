package agent

import "errors"

// Domain errors for the orchestration graph.
var (
	// ErrInvalidState indicates an AgentState failed boundary validation.
	ErrInvalidState = errors.New("invalid agent state")

	// ErrInvalidStage indicates the stage is not a recognized graph stage.
	ErrInvalidStage = errors.New("invalid stage")

	// ErrInvalidTransition indicates an attempted transition is not allowed.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrStepReopened indicates a terminal execution result was modified.
	ErrStepReopened = errors.New("step result already terminal")

	// ErrEmptyMessages indicates a stage required at least one message.
	ErrEmptyMessages = errors.New("no messages in state")
)
