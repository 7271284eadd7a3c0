package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/infrastructure/completion"
	"github.com/felixgeelhaar/orbit/infrastructure/logging"
)

const (
	responderTemperature = 0.7

	// DefaultContextWindow is the number of recent messages sent with
	// the reply request.
	DefaultContextWindow = 10

	maxResultChars = 2000

	// MsgNoResponse is the reply when neither the model nor the execution
	// context has anything to say.
	MsgNoResponse = "I could not generate a response right now. Please try again."
)

// Responder writes the final assistant message of a turn.
type Responder struct {
	llm           completion.Service
	contextWindow int
}

// NewResponder creates a responder. A window of zero uses
// DefaultContextWindow.
func NewResponder(llm completion.Service, contextWindow int) *Responder {
	if contextWindow <= 0 {
		contextWindow = DefaultContextWindow
	}
	return &Responder{llm: llm, contextWindow: contextWindow}
}

// Respond returns the reply to append. The caller marks the state
// complete. A failed completion yields a reply built from the evaluation
// so the user always receives a message.
func (r *Responder) Respond(ctx context.Context, state *agent.AgentState) agent.Message {
	if state == nil {
		return agent.AssistantMessage(MsgNoResponse)
	}
	if r.llm == nil {
		return agent.AssistantMessage(Fallback(state))
	}

	messages := make([]agent.Message, 0, r.contextWindow+1)
	messages = append(messages, agent.Message{
		Role:    agent.RoleSystem,
		Content: ResponderPrompt + "\n\n" + describe(state),
	})
	messages = append(messages, state.RecentMessages(r.contextWindow)...)

	raw, err := r.llm.Complete(ctx, messages, responderTemperature)
	if err == nil && strings.TrimSpace(raw) == "" {
		err = completion.ErrEmptyResponse
	}
	if err != nil {
		logging.Warn().
			Add(logging.SessionID(state.SessionID)).
			Add(logging.ErrorField(err)).
			Msg("response completion failed, using fallback reply")
		return agent.AssistantMessage(Fallback(state))
	}
	return agent.AssistantMessage(strings.TrimSpace(raw))
}

// Fallback renders a deterministic reply from the execution context.
func Fallback(state *agent.AgentState) string {
	if state.Evaluation != nil {
		summary := state.Evaluation.FormatForUser()
		if last, ok := state.LastResult(); ok && last.Status == agent.StepCompleted && last.OutputText() != "" {
			summary += "\n\n" + truncate(last.OutputText(), maxResultChars)
		}
		return summary
	}
	for i := len(state.Messages) - 1; i >= 0; i-- {
		m := state.Messages[i]
		if m.Role == agent.RoleUser {
			break
		}
		if m.Role == agent.RoleTool || m.Role == agent.RoleAssistant {
			return m.Content
		}
	}
	return MsgNoResponse
}

// describe renders the execution context for the system prompt.
func describe(state *agent.AgentState) string {
	var sb strings.Builder

	sb.WriteString("## Context\n")
	fmt.Fprintf(&sb, "User intent: %s\n", state.Intent)
	if state.Command != "" {
		fmt.Fprintf(&sb, "Command: %s\n", state.Command)
	}

	if state.Plan != nil && state.Plan.HasSteps() {
		fmt.Fprintf(&sb, "\n## Plan\nGoal: %s\n", state.Plan.Goal)
		for _, step := range state.Plan.Steps {
			fmt.Fprintf(&sb, "%d. %s\n", step.StepNumber, step.Description)
		}
	}

	if len(state.ToolResults) > 0 {
		sb.WriteString("\n## Tool Results\n")
		for _, res := range state.ToolResults {
			name := res.ToolName
			if name == "" {
				name = "none"
			}
			fmt.Fprintf(&sb, "Step %d [%s] (%s): ", res.StepNumber, res.Status, name)
			if res.Status == agent.StepCompleted {
				sb.WriteString(truncate(res.OutputText(), maxResultChars))
			} else {
				sb.WriteString(res.ErrorText())
			}
			sb.WriteByte('\n')
		}
	}

	if state.Evaluation != nil {
		sb.WriteString("\n## Evaluation\n")
		sb.WriteString(state.Evaluation.FormatForUser())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "... (truncated)"
}
