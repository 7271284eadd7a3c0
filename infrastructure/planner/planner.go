// Package planner turns a user request into an ordered, tool-bound plan.
// Planning degrades gracefully: whatever the completion service returns,
// the caller receives a plan.
package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/tool"
	"github.com/felixgeelhaar/orbit/infrastructure/completion"
	"github.com/felixgeelhaar/orbit/infrastructure/logging"
)

// Defaults for the planner.
const (
	DefaultMaxSteps      = 5
	DefaultContextWindow = 10

	simpleTemperature    = 0.2
	multiStepTemperature = 0.5
)

// Goals reported for requests the planner cannot plan for.
const (
	GoalNoMessage      = "No user message to plan for"
	GoalNotUserRequest = "Planning only available for user requests"
)

// simplePrefixes mark requests that need a single lookup rather than a
// multi-step plan.
var simplePrefixes = []string{
	"what is my",
	"list ",
	"show me",
	"how do i",
	"who am i",
	"tell me about",
	"explain ",
}

// Planner creates plans through a completion service.
type Planner struct {
	llm           completion.Service
	registry      tool.Registry
	maxSteps      int
	contextWindow int
}

// Config configures a Planner.
type Config struct {
	Completion    completion.Service
	Registry      tool.Registry
	MaxSteps      int
	ContextWindow int
}

// New creates a planner.
func New(cfg Config) *Planner {
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	window := cfg.ContextWindow
	if window <= 0 {
		window = DefaultContextWindow
	}
	return &Planner{
		llm:           cfg.Completion,
		registry:      cfg.Registry,
		maxSteps:      maxSteps,
		contextWindow: window,
	}
}

// IsSimpleRequest reports whether a request matches the simple-lookup
// pre-filter.
func IsSimpleRequest(request string) bool {
	lower := strings.ToLower(strings.TrimSpace(request))
	for _, prefix := range simplePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// CreatePlan plans the last user message. Completion and parse failures
// degrade to a single-step fallback plan; the only error is a nil state.
func (p *Planner) CreatePlan(ctx context.Context, state *agent.AgentState) (*agent.Plan, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: nil state", agent.ErrInvalidState)
	}

	last, ok := state.LastMessage()
	if !ok {
		return agent.NewPlan(GoalNoMessage, nil), nil
	}
	if last.Role != agent.RoleUser {
		return agent.NewPlan(GoalNotUserRequest, nil), nil
	}

	request := last.Content
	simple := IsSimpleRequest(request)
	temperature := multiStepTemperature
	if simple {
		temperature = simpleTemperature
	}

	plan := p.complete(ctx, state, request, simple, temperature)
	p.finalize(plan, state.PermissionLevel)

	logging.Debug().
		Add(logging.SessionID(state.SessionID)).
		Add(logging.Goal(plan.Goal)).
		Add(logging.Count("steps", len(plan.Steps))).
		Add(logging.Str("mode", mode(simple))).
		Msg("plan created")

	return plan, nil
}

func (p *Planner) complete(ctx context.Context, state *agent.AgentState, request string, simple bool, temperature float64) *agent.Plan {
	if p.llm == nil {
		return fallbackPlan(request, simple)
	}

	messages := []agent.Message{
		{Role: agent.RoleSystem, Content: SystemPrompt},
		agent.UserMessage(p.buildPrompt(state, request, simple)),
	}

	raw, err := p.llm.Complete(ctx, messages, temperature)
	if err != nil {
		logging.Warn().
			Add(logging.SessionID(state.SessionID)).
			Add(logging.ErrorField(err)).
			Msg("planning completion failed, using fallback plan")
		return fallbackPlan(request, simple)
	}

	plan, err := ParsePlan(raw)
	if err != nil {
		logging.Debug().
			Add(logging.SessionID(state.SessionID)).
			Add(logging.ErrorField(err)).
			Msg("unparseable plan, using fallback plan")
		return fallbackPlan(request, simple)
	}
	if plan.Goal == "" {
		plan.Goal = request
	}
	return plan
}

// finalize truncates, renumbers, and derives confirmation flags.
func (p *Planner) finalize(plan *agent.Plan, permission int) {
	plan.Truncate(p.maxSteps)

	needsConfirmation := plan.RequiresConfirmation
	for i := range plan.Steps {
		step := &plan.Steps[i]
		if !step.IsInformational() && p.registry != nil {
			if t, ok := p.registry.Get(step.Tool()); ok && !t.Annotations().IsSafeFor(permission) {
				step.RequiresConfirmation = true
			}
		}
		if step.RequiresConfirmation {
			needsConfirmation = true
		}
	}
	plan.RequiresConfirmation = needsConfirmation
	plan.Renumber()
}

func (p *Planner) buildPrompt(state *agent.AgentState, request string, simple bool) string {
	var sb strings.Builder

	sb.WriteString("## Goal\n")
	sb.WriteString(request)
	sb.WriteString("\n\n")

	if simple {
		sb.WriteString("This is a simple request. Plan a single step.\n\n")
	} else {
		fmt.Fprintf(&sb, "Plan at most %d steps.\n\n", p.maxSteps)
	}

	if p.registry != nil {
		if catalogue := tool.FormatCatalogue(p.registry); catalogue != "" {
			sb.WriteString("## Available Tools\n")
			sb.WriteString(catalogue)
			sb.WriteString("\n\n")
		}
	}

	if recent := state.RecentMessages(p.contextWindow); len(recent) > 0 {
		sb.WriteString("## Conversation\n")
		for _, m := range recent {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Respond with JSON only.")
	return sb.String()
}

func fallbackPlan(request string, simple bool) *agent.Plan {
	if simple {
		return agent.NewFallbackPlan(request, "Process: "+request, "Understand and respond to user")
	}
	return agent.NewFallbackPlan(request, "Analyze and respond to: "+request, "Understand and provide information")
}

func mode(simple bool) string {
	if simple {
		return "simple"
	}
	return "multi_step"
}
