package agent

// PlanStep is one ordered unit of work within a Plan.
type PlanStep struct {
	StepNumber           int            `json:"step_number"`
	Description          string         `json:"description"`
	ToolName             *string        `json:"tool_name"`
	Arguments            map[string]any `json:"arguments"`
	ExpectedOutcome      string         `json:"expected_outcome"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
}

// IsInformational returns true if the step is not bound to a tool.
func (s PlanStep) IsInformational() bool {
	return s.ToolName == nil || *s.ToolName == ""
}

// Tool returns the bound tool name, or the empty string.
func (s PlanStep) Tool() string {
	if s.ToolName == nil {
		return ""
	}
	return *s.ToolName
}

// Plan is the ordered set of steps produced by the planner.
type Plan struct {
	Goal                 string     `json:"goal"`
	Steps                []PlanStep `json:"steps"`
	RequiresConfirmation bool       `json:"requires_confirmation"`

	// EstimatedSteps is advisory only. It is recomputed whenever Steps
	// mutates and must never be used to drive execution.
	EstimatedSteps int `json:"estimated_steps"`
}

// NewPlan creates a plan and numbers its steps by position.
func NewPlan(goal string, steps []PlanStep) *Plan {
	p := &Plan{Goal: goal}
	p.SetSteps(steps)
	return p
}

// NewFallbackPlan builds the single-step plan used whenever structured plan
// output cannot be recovered. The result is lossy by construction: the step
// only echoes the request.
func NewFallbackPlan(goal, description, expected string) *Plan {
	if goal == "" {
		goal = description
	}
	return NewPlan(goal, []PlanStep{{
		Description:     description,
		ExpectedOutcome: expected,
	}})
}

// SetSteps replaces the steps and renumbers them.
func (p *Plan) SetSteps(steps []PlanStep) {
	p.Steps = steps
	p.Renumber()
}

// AddStep appends a step and renumbers.
func (p *Plan) AddStep(step PlanStep) {
	p.Steps = append(p.Steps, step)
	p.Renumber()
}

// Truncate keeps at most n steps.
func (p *Plan) Truncate(n int) {
	if n >= 0 && len(p.Steps) > n {
		p.Steps = p.Steps[:n]
	}
	p.Renumber()
}

// Renumber assigns 1-based step numbers matching position and refreshes
// EstimatedSteps.
func (p *Plan) Renumber() {
	for i := range p.Steps {
		p.Steps[i].StepNumber = i + 1
	}
	p.EstimatedSteps = len(p.Steps)
}

// HasSteps returns true if the plan contains at least one step.
func (p *Plan) HasSteps() bool {
	return p != nil && len(p.Steps) > 0
}

// TotalSteps returns the live step count.
func (p *Plan) TotalSteps() int {
	if p == nil {
		return 0
	}
	return len(p.Steps)
}

// Step returns the step with the given 1-based number.
func (p *Plan) Step(number int) (PlanStep, bool) {
	if p == nil || number < 1 || number > len(p.Steps) {
		return PlanStep{}, false
	}
	return p.Steps[number-1], true
}
