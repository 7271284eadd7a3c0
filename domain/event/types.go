package event

import (
	"github.com/felixgeelhaar/orbit/domain/agent"
)

// Type classifies stream events.
type Type string

// Stream event vocabulary.
const (
	TypeStart      Type = "start"
	TypeIntent     Type = "intent"
	TypePlan       Type = "plan"
	TypeStep       Type = "step"
	TypeToolResult Type = "tool_result"
	TypeEvaluation Type = "evaluation"
	TypeChunk      Type = "chunk"
	TypeComplete   Type = "complete"
	TypeError      Type = "error"
)

// AllTypes returns the full vocabulary.
func AllTypes() []Type {
	return []Type{
		TypeStart, TypeIntent, TypePlan, TypeStep, TypeToolResult,
		TypeEvaluation, TypeChunk, TypeComplete, TypeError,
	}
}

// IsValid reports whether t is part of the vocabulary.
func (t Type) IsValid() bool {
	for _, known := range AllTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// StartPayload opens a stream.
type StartPayload struct {
	SessionID string      `json:"session_id"`
	UserID    string      `json:"user_id"`
	Stage     agent.Stage `json:"stage"`
	Resumed   bool        `json:"resumed,omitempty"`
}

// IntentPayload carries the classified intent.
type IntentPayload struct {
	Intent agent.Intent `json:"intent"`
}

// PlanPayload carries a freshly generated plan.
type PlanPayload struct {
	Plan *agent.Plan `json:"plan"`
}

// StepPayload announces the step about to run.
type StepPayload struct {
	StepNumber  int    `json:"step_number"`
	Description string `json:"description"`
	ToolName    string `json:"tool_name,omitempty"`
}

// ToolResultPayload carries one execution result.
type ToolResultPayload struct {
	Result agent.ExecutionResult `json:"result"`
}

// EvaluationPayload carries the evaluator's verdict.
type EvaluationPayload struct {
	Evaluation agent.Evaluation `json:"evaluation"`
	Summary    string           `json:"summary"`
}

// ChunkPayload carries one slice of the response message.
type ChunkPayload struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
	Last    bool   `json:"last"`
}

// CompletePayload closes a successful stream.
type CompletePayload struct {
	Intent       agent.Intent  `json:"intent"`
	Command      string        `json:"command,omitempty"`
	Outcome      agent.Outcome `json:"outcome,omitempty"`
	CheckpointID string        `json:"checkpoint_id,omitempty"`
	Status       string        `json:"status"`
}

// ErrorPayload closes a failed stream.
type ErrorPayload struct {
	Error string      `json:"error"`
	Stage agent.Stage `json:"stage,omitempty"`
}
