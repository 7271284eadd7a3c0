// Package evaluator decides how the graph proceeds after each executed
// step.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/tool"
	"github.com/felixgeelhaar/orbit/infrastructure/completion"
	"github.com/felixgeelhaar/orbit/infrastructure/logging"
)

const (
	analysisTemperature = 0.2

	// defaultConfidence is reported when completion analysis is unavailable
	// and no step failed.
	defaultConfidence = 0.8
)

// Evaluator applies the ordered evaluation rules.
type Evaluator struct {
	llm completion.Service
}

// New creates an evaluator.
func New(llm completion.Service) *Evaluator {
	return &Evaluator{llm: llm}
}

// Evaluate never fails: classification problems resolve to the defaults
// of the rule that needed them.
func (e *Evaluator) Evaluate(ctx context.Context, state *agent.AgentState) agent.Evaluation {
	var eval agent.Evaluation
	switch {
	case state.HasFailures():
		eval = e.analyzeError(ctx, state)
	case state.CurrentStep >= state.Plan.TotalSteps():
		eval = e.analyzeCompletion(ctx, state)
	default:
		eval = progress(state)
	}

	logging.Debug().
		Add(logging.SessionID(state.SessionID)).
		Add(logging.Outcome(eval.Outcome)).
		Add(logging.StepNumber(state.CurrentStep)).
		Add(logging.Reason(eval.Reasoning)).
		Msg("step evaluated")
	return eval
}

// progress handles the mid-plan case from the last result alone.
func progress(state *agent.AgentState) agent.Evaluation {
	last, ok := state.LastResult()
	if !ok {
		return agent.Evaluation{
			Outcome:   agent.OutcomeContinueExecution,
			Reasoning: "No steps executed yet",
		}
	}

	if last.Status == agent.StepSkipped {
		reason := strings.ToLower(last.ErrorText())
		if strings.Contains(reason, "confirmation") || strings.Contains(reason, "permission") {
			return agent.Evaluation{
				Outcome:      agent.OutcomeNeedsReplanning,
				Reasoning:    fmt.Sprintf("Step %d was skipped: %s", last.StepNumber, last.ErrorText()),
				SuggestedFix: "Revise the plan to avoid steps that need confirmation or higher permissions",
			}
		}
	}

	reasoning := fmt.Sprintf("Step %d completed, continuing with step %d", last.StepNumber, state.CurrentStep+1)
	if last.Status != agent.StepCompleted {
		reasoning = fmt.Sprintf("Step %d %s, continuing with step %d", last.StepNumber, last.Status, state.CurrentStep+1)
	}
	return agent.Evaluation{
		Outcome:   agent.OutcomeContinueExecution,
		Reasoning: reasoning,
		NextStep:  state.CurrentStep + 1,
	}
}

type errorAnalysis struct {
	IsRecoverable   bool   `json:"is_recoverable"`
	SuggestedFix    string `json:"suggested_fix"`
	NeedsReplanning bool   `json:"needs_replanning"`
	Reasoning       string `json:"reasoning"`
}

func (e *Evaluator) analyzeError(ctx context.Context, state *agent.AgentState) agent.Evaluation {
	failures := failedResults(state)
	errMsg := failures[len(failures)-1].ErrorText()
	heuristic := tool.SuggestFix(errors.New(errMsg))

	var out errorAnalysis
	if err := e.ask(ctx, ErrorAnalysisPrompt, errorPrompt(state, failures), &out); err != nil {
		return agent.Evaluation{
			Outcome:      agent.OutcomeNeedsReplanning,
			Reasoning:    "Error occurred, unable to analyze: " + err.Error(),
			ErrorMessage: errMsg,
			SuggestedFix: heuristic,
		}
	}

	fix := strings.TrimSpace(out.SuggestedFix)
	if fix == "" {
		fix = heuristic
	}
	if out.IsRecoverable || out.NeedsReplanning {
		return agent.Evaluation{
			Outcome:      agent.OutcomeNeedsReplanning,
			Reasoning:    out.Reasoning,
			ErrorMessage: errMsg,
			SuggestedFix: fix,
		}
	}
	return agent.Evaluation{
		Outcome:      agent.OutcomeFatalError,
		Reasoning:    out.Reasoning,
		ErrorMessage: errMsg,
		SuggestedFix: fix,
	}
}

type completionAnalysis struct {
	GoalAchieved bool     `json:"goal_achieved"`
	Confidence   float64  `json:"confidence"`
	Reasoning    string   `json:"reasoning"`
	Gaps         []string `json:"gaps"`
}

func (e *Evaluator) analyzeCompletion(ctx context.Context, state *agent.AgentState) agent.Evaluation {
	var out completionAnalysis
	if err := e.ask(ctx, CompletionAnalysisPrompt, completionPrompt(state), &out); err != nil {
		if !state.HasFailures() {
			return agent.Evaluation{
				Outcome:    agent.OutcomeGoalAchieved,
				Reasoning:  "All steps completed",
				Confidence: defaultConfidence,
			}
		}
		return agent.Evaluation{
			Outcome:   agent.OutcomeIncomplete,
			Reasoning: "Unable to analyze completion: " + err.Error(),
			Gaps:      []string{"Analysis failed"},
		}
	}

	if out.GoalAchieved {
		return agent.Evaluation{
			Outcome:    agent.OutcomeGoalAchieved,
			Reasoning:  out.Reasoning,
			Confidence: out.Confidence,
		}
	}
	return agent.Evaluation{
		Outcome:    agent.OutcomeIncomplete,
		Reasoning:  out.Reasoning,
		Confidence: out.Confidence,
		Gaps:       out.Gaps,
	}
}

func (e *Evaluator) ask(ctx context.Context, system, prompt string, out any) error {
	if e.llm == nil {
		return errors.New("no completion service configured")
	}
	raw, err := e.llm.Complete(ctx, []agent.Message{
		{Role: agent.RoleSystem, Content: system},
		agent.UserMessage(prompt),
	}, analysisTemperature)
	if err != nil {
		return err
	}
	return completion.DecodeJSON(raw, out)
}

func failedResults(state *agent.AgentState) []agent.ExecutionResult {
	var out []agent.ExecutionResult
	for _, r := range state.ToolResults {
		if r.Status == agent.StepFailed {
			out = append(out, r)
		}
	}
	return out
}

func goal(state *agent.AgentState) string {
	if state.Plan != nil && state.Plan.Goal != "" {
		return state.Plan.Goal
	}
	if m, ok := state.LastUserMessage(); ok {
		return m.Content
	}
	return ""
}

func errorPrompt(state *agent.AgentState, failures []agent.ExecutionResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Goal: %s\n\nFailed steps:\n", goal(state))
	for _, r := range failures {
		fmt.Fprintf(&sb, "- Step %d (%s): %s\n", r.StepNumber, r.Description, r.ErrorText())
	}
	return sb.String()
}

func completionPrompt(state *agent.AgentState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Goal: %s\n\nResults:\n", goal(state))
	for _, r := range state.ToolResults {
		fmt.Fprintf(&sb, "- Step %d (%s) %s: %s\n", r.StepNumber, r.Description, r.Status, truncate(r.OutputText(), 500))
	}
	return sb.String()
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
