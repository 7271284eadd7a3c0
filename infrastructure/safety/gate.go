// Package safety implements the command safety gate. The gate is
// fail-closed: anything it cannot positively clear is unsafe.
package safety

import (
	"context"
	"strings"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/infrastructure/completion"
	"github.com/felixgeelhaar/orbit/infrastructure/logging"
)

// Source identifies which tier produced a verdict.
type Source string

const (
	SourceRule      Source = "rule"
	SourceAllowlist Source = "allowlist"
	SourceLLM       Source = "llm"
)

// Reasons reported by the deterministic tiers.
const (
	ReasonEmpty        = "Empty command"
	ReasonAllowlisted  = "Whitelisted safe command"
	ReasonUnknownRisk  = "Unknown risk"
	ReasonInvalidJSON  = "Safety check failed: Invalid JSON response from LLM"
	reasonFailedPrefix = "Safety check failed: "
)

// DefaultSafeCommands are cleared without consulting the completion
// service, either exactly or followed by a space and arguments.
var DefaultSafeCommands = []string{
	"ls", "pwd", "echo", "cat", "grep", "find",
	"git status", "git log", "git diff", "git show",
	"npm list", "pip list",
}

// dangerousChars disqualify a command from the allowlist.
const dangerousChars = ";&|><`$"

// Verdict is the result of a safety check.
type Verdict struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason"`
	Source Source `json:"source"`
}

// Gate classifies shell commands as safe or unsafe.
type Gate struct {
	llm      completion.Service
	safeList []string
}

// Option configures a Gate.
type Option func(*Gate)

// WithSafeCommands replaces the allowlist.
func WithSafeCommands(cmds ...string) Option {
	return func(g *Gate) {
		g.safeList = cmds
	}
}

// NewGate creates a gate. A nil completion service makes every command
// outside the allowlist unsafe.
func NewGate(llm completion.Service, opts ...Option) *Gate {
	g := &Gate{llm: llm, safeList: DefaultSafeCommands}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check classifies a command.
func (g *Gate) Check(ctx context.Context, command string) Verdict {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return Verdict{Safe: false, Reason: ReasonEmpty, Source: SourceRule}
	}

	if g.allowlisted(cmd) {
		return Verdict{Safe: true, Reason: ReasonAllowlisted, Source: SourceAllowlist}
	}

	v := g.classify(ctx, cmd)
	logging.Debug().
		Add(logging.Component("safety")).
		Add(logging.Command(cmd)).
		Add(logging.Str("verdict", verdictLabel(v.Safe))).
		Add(logging.Reason(v.Reason)).
		Msg("command classified")
	return v
}

// IsAllowlisted reports whether a command clears the deterministic tier.
func (g *Gate) IsAllowlisted(command string) bool {
	return g.allowlisted(strings.TrimSpace(command))
}

func (g *Gate) allowlisted(cmd string) bool {
	if strings.ContainsAny(cmd, dangerousChars) {
		return false
	}
	for _, safe := range g.safeList {
		if cmd == safe || strings.HasPrefix(cmd, safe+" ") {
			return true
		}
	}
	return false
}

type llmVerdict struct {
	Safe   *bool  `json:"safe"`
	Reason string `json:"reason"`
}

func (g *Gate) classify(ctx context.Context, cmd string) Verdict {
	if g.llm == nil {
		return Verdict{Safe: false, Reason: reasonFailedPrefix + "no classifier configured", Source: SourceRule}
	}

	raw, err := g.llm.Complete(ctx, []agent.Message{
		{Role: agent.RoleSystem, Content: SystemPrompt},
		agent.UserMessage("Command: " + cmd),
	}, 0)
	if err != nil {
		return Verdict{Safe: false, Reason: reasonFailedPrefix + err.Error(), Source: SourceLLM}
	}

	var out llmVerdict
	if err := completion.DecodeJSON(raw, &out); err != nil || out.Safe == nil {
		return Verdict{Safe: false, Reason: ReasonInvalidJSON, Source: SourceLLM}
	}

	reason := strings.TrimSpace(out.Reason)
	if reason == "" {
		reason = ReasonUnknownRisk
	}
	return Verdict{Safe: *out.Safe, Reason: reason, Source: SourceLLM}
}

func verdictLabel(safe bool) string {
	if safe {
		return "safe"
	}
	return "unsafe"
}

// SystemPrompt instructs the completion service to classify a command.
const SystemPrompt = `You are the safety reviewer for shell commands run on a user's machine.

Decide whether the command is safe to run without asking the user. A command is unsafe if it deletes or overwrites data, changes permissions or ownership, installs software, touches credentials, contacts the network, or is otherwise irreversible.

Respond with JSON only:
{"safe": true|false, "reason": "<one sentence>"}`
