// Package shell provides the shell_exec tool, which runs commands on the
// user's machine through the command bridge after the safety gate clears
// them.
package shell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/felixgeelhaar/orbit/domain/pack"
	"github.com/felixgeelhaar/orbit/domain/tool"
	"github.com/felixgeelhaar/orbit/infrastructure/bridge"
	"github.com/felixgeelhaar/orbit/infrastructure/safety"
)

// ToolName is the registry name of the shell tool.
const ToolName = "shell_exec"

// Bridge executes commands remotely.
type Bridge interface {
	ExecuteCommand(ctx context.Context, cmd string, args []string, cwd string) (bridge.CommandResponse, error)
}

// Checker classifies a command before it runs.
type Checker interface {
	Check(ctx context.Context, command string) safety.Verdict
}

// Config configures the shell pack.
type Config struct {
	// BlockedCommands are refused before the safety gate is consulted.
	BlockedCommands []string

	// BlockedPatterns are regex patterns refused before the safety gate.
	BlockedPatterns []string

	// Timeout bounds one command.
	Timeout time.Duration

	// MaxOutputSize limits the stdout returned (bytes).
	MaxOutputSize int

	// Gate is consulted for every command that is not blocked. Without a
	// gate every command is refused.
	Gate Checker

	compiledPatterns []*regexp.Regexp
}

// Option configures the shell pack.
type Option func(*Config)

// WithBlockedCommands sets the list of blocked commands.
func WithBlockedCommands(commands ...string) Option {
	return func(c *Config) {
		c.BlockedCommands = commands
	}
}

// WithBlockedPatterns sets regex patterns that block command execution.
func WithBlockedPatterns(patterns ...string) Option {
	return func(c *Config) {
		c.BlockedPatterns = patterns
	}
}

// WithTimeout sets the command timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxOutputSize sets the maximum output size.
func WithMaxOutputSize(size int) Option {
	return func(c *Config) {
		c.MaxOutputSize = size
	}
}

// WithGate sets the safety gate.
func WithGate(gate Checker) Option {
	return func(c *Config) {
		c.Gate = gate
	}
}

// DefaultBlockedCommands are never run, whatever the gate says.
func DefaultBlockedCommands() []string {
	return []string{
		"dd", "mkfs", "fdisk", "parted",
		"shutdown", "reboot", "halt", "poweroff", "init",
		"su", "sudo", "doas",
		"passwd", "useradd", "userdel",
		"mount", "umount",
		"iptables", "nft", "ufw",
	}
}

// DefaultBlockedPatterns returns sensible blocked patterns.
func DefaultBlockedPatterns() []string {
	return []string{
		`>\s*/dev/`,
		`\|\s*(sh|bash)\b`,
		`rm\s+-[a-zA-Z]*r[a-zA-Z]*f?\s+/\s*$`,
		`>\s*/(etc|usr|var)/`,
		`(curl|wget).*\|\s*(sh|bash)`,
	}
}

// New creates the shell pack.
func New(b Bridge, opts ...Option) (*pack.Pack, error) {
	if b == nil {
		return nil, errors.New("shell pack requires a bridge")
	}

	cfg := Config{
		BlockedCommands: DefaultBlockedCommands(),
		BlockedPatterns: DefaultBlockedPatterns(),
		Timeout:         bridge.DefaultTimeout,
		MaxOutputSize:   1024 * 1024,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	for _, pattern := range cfg.BlockedPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid blocked pattern %q: %w", pattern, err)
		}
		cfg.compiledPatterns = append(cfg.compiledPatterns, re)
	}

	return pack.NewBuilder("shell").
		WithDescription("Shell command execution through the command bridge").
		WithVersion("1.0.0").
		WithMetadata("requires", "bridge").
		AddTools(execTool(&cfg, b)).
		Build(), nil
}

// isCommandAllowed applies the static block lists.
func isCommandAllowed(cfg *Config, command string, base string) error {
	for _, blocked := range cfg.BlockedCommands {
		if base == blocked {
			return fmt.Errorf("command %q is blocked", base)
		}
	}
	for _, pattern := range cfg.compiledPatterns {
		if pattern.MatchString(command) {
			return errors.New("command matches blocked pattern")
		}
	}
	return nil
}

type execInput struct {
	Command string `json:"command"`
	Cwd     string `json:"cwd,omitempty"`
}

func execTool(cfg *Config, b Bridge) tool.Tool {
	return tool.NewBuilder(ToolName).
		WithDescription("Executes a shell command on the user's machine via the bridge. Use this for file operations, git commands, running tests, etc.").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"command": {Type: "string", Description: "The shell command to execute"},
			"cwd":     {Type: "string", Description: "The directory to execute the command in"},
		}, []string{"command"})).
		WithDangerLevel(tool.DangerCritical).
		RequiresConfirmation().
		Destructive().
		WithCategory(tool.CategorySystem).
		WithTags("shell", "command", "bridge").
		WithTimeout(cfg.Timeout).
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			var in execInput
			if err := json.Unmarshal(input, &in); err != nil {
				return tool.Result{}, tool.NewValidationError(ToolName, err.Error())
			}

			parts, err := bridge.Split(in.Command)
			if err != nil {
				return tool.Result{}, tool.NewValidationError(ToolName, err.Error())
			}
			if len(parts) == 0 {
				return tool.Result{}, tool.NewValidationError(ToolName, "Empty command")
			}
			if err := isCommandAllowed(cfg, in.Command, parts[0]); err != nil {
				return tool.Result{}, tool.NewValidationError(ToolName, err.Error())
			}

			if cfg.Gate == nil {
				return tool.Result{}, tool.NewValidationError(ToolName, "no safety gate configured")
			}
			if v := cfg.Gate.Check(ctx, in.Command); !v.Safe {
				return tool.Result{}, tool.NewValidationError(ToolName, "command rejected by safety gate: "+v.Reason)
			}

			start := time.Now()
			resp, err := b.ExecuteCommand(ctx, parts[0], parts[1:], in.Cwd)
			if err != nil {
				return tool.Result{}, tool.NewExecutionError(ToolName, err)
			}
			if err := resp.Err(); err != nil {
				return tool.Result{}, tool.NewExecutionError(ToolName, err)
			}

			out := resp.Stdout
			if cfg.MaxOutputSize > 0 && len(out) > cfg.MaxOutputSize {
				out = out[:cfg.MaxOutputSize] + "\n[output truncated]"
			}
			return tool.NewResultWithDuration(out, time.Since(start)), nil
		}).
		MustBuild()
}
