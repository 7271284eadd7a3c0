package tool

import "time"

// Result contains the output of a tool execution.
type Result struct {
	// Output is the textual result handed back to the agent.
	Output string `json:"output"`

	// Duration is how long the execution took.
	Duration time.Duration `json:"duration"`
}

// NewResult creates a successful result with the given output.
func NewResult(output string) Result {
	return Result{Output: output}
}

// NewResultWithDuration creates a result with timing information.
func NewResultWithDuration(output string, duration time.Duration) Result {
	return Result{
		Output:   output,
		Duration: duration,
	}
}
