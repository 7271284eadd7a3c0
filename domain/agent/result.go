package agent

import "fmt"

// StepStatus is the lifecycle status of a step execution.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// IsTerminal returns true once the status can no longer change.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepFailed || s == StepSkipped
}

// ExecutionResult records the outcome of one plan step.
type ExecutionResult struct {
	StepNumber      int        `json:"step_number"`
	Description     string     `json:"description"`
	Status          StepStatus `json:"status"`
	Output          *string    `json:"output"`
	Error           *string    `json:"error"`
	ExecutionTimeMs *int64     `json:"execution_time_ms"`
	ToolName        string     `json:"tool_name"`
}

// NewExecutionResult starts a pending result for the given step.
func NewExecutionResult(step PlanStep) *ExecutionResult {
	return &ExecutionResult{
		StepNumber:  step.StepNumber,
		Description: step.Description,
		Status:      StepPending,
		ToolName:    step.Tool(),
	}
}

// Transition moves the result along PENDING -> RUNNING -> terminal.
// A terminal result is never reopened.
func (r *ExecutionResult) Transition(to StepStatus) error {
	switch {
	case r.Status.IsTerminal():
		return fmt.Errorf("%w: step %d is %s", ErrStepReopened, r.StepNumber, r.Status)
	case r.Status == StepPending && (to == StepRunning || to.IsTerminal()):
	case r.Status == StepRunning && to.IsTerminal():
	default:
		return fmt.Errorf("%w: step %d %s -> %s", ErrInvalidTransition, r.StepNumber, r.Status, to)
	}
	r.Status = to
	return nil
}

// Complete marks the result completed with output.
func (r *ExecutionResult) Complete(output string, elapsedMs int64) error {
	if err := r.Transition(StepCompleted); err != nil {
		return err
	}
	r.Output = &output
	r.ExecutionTimeMs = &elapsedMs
	return nil
}

// Fail marks the result failed.
func (r *ExecutionResult) Fail(msg string, elapsedMs *int64) error {
	if err := r.Transition(StepFailed); err != nil {
		return err
	}
	r.Error = &msg
	r.ExecutionTimeMs = elapsedMs
	return nil
}

// Skip marks the result skipped with a reason.
func (r *ExecutionResult) Skip(reason string) error {
	if err := r.Transition(StepSkipped); err != nil {
		return err
	}
	r.Error = &reason
	return nil
}

// ErrorText returns the error message or the empty string.
func (r ExecutionResult) ErrorText() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// OutputText returns the output or the empty string.
func (r ExecutionResult) OutputText() string {
	if r.Output == nil {
		return ""
	}
	return *r.Output
}
