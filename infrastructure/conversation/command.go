package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/infrastructure/completion"
	"github.com/felixgeelhaar/orbit/infrastructure/logging"
	"github.com/felixgeelhaar/orbit/infrastructure/safety"
)

// ErrNoCompletion indicates the generator has no completion service.
var ErrNoCompletion = errors.New("no completion service configured")

// Runner executes an approved shell command and returns its output.
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
}

// CommandResult is the state delta produced by the command generator.
type CommandResult struct {
	Command  string
	Verdict  safety.Verdict
	Executed bool
	Messages []agent.Message
}

// CommandGenerator turns a command request into a gated shell command.
type CommandGenerator struct {
	llm    completion.Service
	gate   *safety.Gate
	runner Runner
}

// NewCommandGenerator creates a generator. A nil runner only proposes
// commands; a nil gate treats every command as needing confirmation.
func NewCommandGenerator(llm completion.Service, gate *safety.Gate, runner Runner) *CommandGenerator {
	return &CommandGenerator{llm: llm, gate: gate, runner: runner}
}

// Generate proposes a command for the latest user request.
func (g *CommandGenerator) Generate(ctx context.Context, state *agent.AgentState) CommandResult {
	if state == nil || state.Intent != agent.IntentCommand {
		return CommandResult{}
	}
	request, ok := state.LastUserMessage()
	if !ok || strings.TrimSpace(request.Content) == "" {
		return CommandResult{}
	}

	command, err := g.complete(ctx, request.Content)
	if err != nil {
		logging.Warn().
			Add(logging.SessionID(state.SessionID)).
			Add(logging.ErrorField(err)).
			Msg("command generation failed")
		return CommandResult{
			Messages: []agent.Message{agent.AssistantMessage("Failed to generate command: " + err.Error())},
		}
	}

	verdict := safety.Verdict{Safe: false, Reason: "no safety gate configured", Source: safety.SourceRule}
	if g.gate != nil {
		verdict = g.gate.Check(ctx, command)
	}

	res := CommandResult{Command: command, Verdict: verdict}
	if !verdict.Safe {
		res.Messages = []agent.Message{
			agent.AssistantMessage(fmt.Sprintf("Command `%s` needs confirmation: %s", command, verdict.Reason)),
		}
		return res
	}

	res.Messages = []agent.Message{agent.AssistantMessage(fmt.Sprintf("Running: `%s`", command))}
	if g.runner == nil {
		return res
	}

	output, err := g.runner.Run(ctx, command)
	if err != nil {
		output = "Error: " + err.Error()
	}
	res.Executed = err == nil
	res.Messages = append(res.Messages, agent.ToolMessage(output))

	logging.Debug().
		Add(logging.SessionID(state.SessionID)).
		Add(logging.Command(command)).
		Add(logging.Str("source", string(verdict.Source))).
		Msg("command executed")
	return res
}

func (g *CommandGenerator) complete(ctx context.Context, request string) (string, error) {
	if g.llm == nil {
		return "", ErrNoCompletion
	}
	raw, err := g.llm.Complete(ctx, []agent.Message{
		{Role: agent.RoleSystem, Content: CommandPrompt},
		agent.UserMessage(request),
	}, 0)
	if err != nil {
		return "", err
	}
	command := strings.TrimSpace(completion.StripFences(raw))
	command = strings.Trim(command, "`")
	if command == "" {
		return "", completion.ErrEmptyResponse
	}
	return command, nil
}
