package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/orbit/infrastructure/completion"
	"github.com/felixgeelhaar/orbit/infrastructure/safety"
)

// ErrUnsafeCommand is returned by the safety command for a rejected command.
var ErrUnsafeCommand = errors.New("command is not safe to run unattended")

// safetyOptions holds options for the safety command.
type safetyOptions struct {
	jsonOutput bool
}

// newSafetyCmd creates the safety command.
func (a *App) newSafetyCmd() *cobra.Command {
	opts := &safetyOptions{}

	cmd := &cobra.Command{
		Use:   "safety <command>",
		Short: "Check a shell command against the safety gate",
		Long: `Classify a shell command the way the agent does before running it.

Read-only commands on the allowlist pass without a model call. Anything
else is judged by the configured completion provider. The command exits
non-zero when the command would need confirmation.

Examples:
  orbit safety ls -la
  orbit safety --json "rm -rf ./build"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.checkSafety(cmd.Context(), strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	// Flags of the checked command belong to it, not to safety.
	cmd.Flags().SetInterspersed(false)

	return cmd
}

func (a *App) checkSafety(ctx context.Context, command string, opts *safetyOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	llm, err := completion.NewService(cfg.LLM, resilienceConfig(cfg).BreakerConfig(), nil)
	if err != nil {
		return err
	}

	verdict := safety.NewGate(llm).Check(ctx, command)
	if opts.jsonOutput {
		if err := json.NewEncoder(a.stdout).Encode(verdict); err != nil {
			return err
		}
	} else {
		label := "unsafe"
		if verdict.Safe {
			label = "safe"
		}
		fmt.Fprintf(a.stdout, "%s (%s): %s\n", label, verdict.Source, verdict.Reason)
	}

	if !verdict.Safe {
		return ErrUnsafeCommand
	}
	return nil
}
