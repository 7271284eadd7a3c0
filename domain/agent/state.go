package agent

import (
	"encoding/json"
	"fmt"
)

// DefaultPermissionLevel is the permission level assumed for callers that do
// not declare one.
const DefaultPermissionLevel = 1

// AgentState is the single-owner container threaded through every stage of
// one execution. Stages return deltas; the graph driver applies them.
type AgentState struct {
	Messages          []Message         `json:"messages"`
	Intent            Intent            `json:"intent"`
	Command           string            `json:"command,omitempty"`
	Plan              *Plan             `json:"plan,omitempty"`
	CurrentStep       int               `json:"current_step"`
	ToolResults       []ExecutionResult `json:"tool_results"`
	EvaluationOutcome Outcome           `json:"evaluation_outcome,omitempty"`
	Evaluation        *Evaluation       `json:"evaluation,omitempty"`
	IsComplete        bool              `json:"is_complete"`
	SessionID         string            `json:"session_id"`
	UserID            string            `json:"user_id"`
	PermissionLevel   int               `json:"permission_level"`
	IterationCount    int               `json:"iteration_count"`
}

// NewAgentState creates a state seeded with a single user message.
func NewAgentState(sessionID, userID, message string) *AgentState {
	s := &AgentState{
		Intent:          IntentUnknown,
		SessionID:       sessionID,
		UserID:          userID,
		PermissionLevel: DefaultPermissionLevel,
		ToolResults:     make([]ExecutionResult, 0),
	}
	if message != "" {
		s.Messages = []Message{UserMessage(message)}
	}
	return s
}

// AppendMessages concatenates messages onto the transcript. Existing
// entries are never overwritten.
func (s *AgentState) AppendMessages(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

// LastMessage returns the most recent message.
func (s *AgentState) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LastUserMessage returns the most recent message authored by the user.
func (s *AgentState) LastUserMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// RecentMessages returns at most n trailing messages.
func (s *AgentState) RecentMessages(n int) []Message {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// HasFailures returns true if any accumulated result failed.
func (s *AgentState) HasFailures() bool {
	for _, r := range s.ToolResults {
		if r.Status == StepFailed {
			return true
		}
	}
	return false
}

// LastResult returns the most recent execution result.
func (s *AgentState) LastResult() (ExecutionResult, bool) {
	if len(s.ToolResults) == 0 {
		return ExecutionResult{}, false
	}
	return s.ToolResults[len(s.ToolResults)-1], true
}

// ApplyPlan installs a fresh plan and resets the execution cursor.
func (s *AgentState) ApplyPlan(p *Plan) {
	s.Plan = p
	s.CurrentStep = 1
	s.ToolResults = make([]ExecutionResult, 0)
	s.EvaluationOutcome = ""
	s.Evaluation = nil
	s.IsComplete = false
}

// ApplyEvaluation records the evaluator's verdict and advances the cursor.
func (s *AgentState) ApplyEvaluation(e Evaluation) {
	s.EvaluationOutcome = e.Outcome
	s.Evaluation = &e
	if e.NextStep > 0 {
		s.CurrentStep = e.NextStep
	}
}

// Validate checks the invariants every stage boundary relies on.
func (s *AgentState) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil state", ErrInvalidState)
	}
	if s.Intent != "" && !s.Intent.IsValid() {
		return fmt.Errorf("%w: intent %q", ErrInvalidState, s.Intent)
	}
	if s.EvaluationOutcome != "" && !s.EvaluationOutcome.IsValid() {
		return fmt.Errorf("%w: outcome %q", ErrInvalidState, s.EvaluationOutcome)
	}
	if s.CurrentStep < 0 {
		return fmt.Errorf("%w: negative step cursor", ErrInvalidState)
	}
	for i, m := range s.Messages {
		if !m.Role.IsValid() {
			return fmt.Errorf("%w: message %d has role %q", ErrInvalidState, i, m.Role)
		}
	}
	if s.Plan != nil {
		for i, step := range s.Plan.Steps {
			if step.StepNumber != i+1 {
				return fmt.Errorf("%w: step %d numbered %d", ErrInvalidState, i+1, step.StepNumber)
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the state.
func (s *AgentState) Clone() (*AgentState, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out AgentState
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
