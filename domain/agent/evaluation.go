package agent

import (
	"fmt"
	"strings"
)

// Outcome is the macro-transition selected by the evaluator.
type Outcome string

const (
	OutcomeGoalAchieved      Outcome = "goal_achieved"
	OutcomeContinueExecution Outcome = "continue_execution"
	OutcomeNeedsReplanning   Outcome = "needs_replanning"
	OutcomeFatalError        Outcome = "fatal_error"
	OutcomeIncomplete        Outcome = "incomplete"
)

// IsTerminal returns true if the outcome ends the execute/evaluate loop.
func (o Outcome) IsTerminal() bool {
	return o == OutcomeGoalAchieved || o == OutcomeFatalError || o == OutcomeIncomplete
}

// IsValid returns true if the outcome is recognized.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeGoalAchieved, OutcomeContinueExecution, OutcomeNeedsReplanning,
		OutcomeFatalError, OutcomeIncomplete:
		return true
	default:
		return false
	}
}

// Evaluation is the evaluator's verdict for one invocation.
type Evaluation struct {
	Outcome      Outcome  `json:"outcome"`
	Reasoning    string   `json:"reasoning"`
	Gaps         []string `json:"gaps,omitempty"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Confidence   float64  `json:"confidence,omitempty"`

	// NextStep is the cursor the graph should continue from.
	NextStep int `json:"next_step"`
}

// FormatForUser renders the evaluation as a short user-facing summary.
func (e Evaluation) FormatForUser() string {
	switch e.Outcome {
	case OutcomeGoalAchieved:
		return "✓ Goal achieved: " + e.Reasoning
	case OutcomeFatalError:
		msg := e.ErrorMessage
		if msg == "" {
			msg = "Unknown error"
		}
		return fmt.Sprintf("✗ Fatal error: %s\nReasoning: %s", msg, e.Reasoning)
	case OutcomeNeedsReplanning:
		if e.SuggestedFix != "" {
			return fmt.Sprintf("⚠️ Re-planning needed: %s\nSuggested fix: %s", e.Reasoning, e.SuggestedFix)
		}
		return "⚠️ Re-planning needed: " + e.Reasoning
	case OutcomeContinueExecution:
		return "→ Continuing: " + e.Reasoning
	case OutcomeIncomplete:
		var gaps string
		if len(e.Gaps) > 0 {
			gaps = "\n- " + strings.Join(e.Gaps, "\n- ")
		}
		return "⚠️ Incomplete: " + e.Reasoning + gaps
	default:
		return "Evaluation: " + e.Reasoning
	}
}
