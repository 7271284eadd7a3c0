package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// resumeOptions holds options for the resume command.
type resumeOptions struct {
	checkpointID string
	stream       bool
	jsonOutput   bool
}

// newResumeCmd creates the resume command.
func (a *App) newResumeCmd() *cobra.Command {
	opts := &resumeOptions{}

	cmd := &cobra.Command{
		Use:   "resume <thread-id>",
		Short: "Resume an interrupted thread from its checkpoint",
		Long: `Resume a thread that stopped before reaching the end of the graph.

By default the latest checkpoint is used. Pass --checkpoint to resume from
an earlier one. Threads that already finished cannot be resumed. Resuming
needs a persistent storage backend; the memory backend forgets threads
when the process exits.

Examples:
  # Resume the latest checkpoint
  orbit resume -c orbit.yaml 3f2c...

  # Resume from a specific checkpoint and stream the rest
  orbit resume -c orbit.yaml 3f2c... --checkpoint 9a1b... --stream`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.resume(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.checkpointID, "checkpoint", "", "Checkpoint ID (default: latest)")
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "Stream events as they happen")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func (a *App) resume(ctx context.Context, threadID string, opts *resumeOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close(context.WithoutCancel(ctx))

	if opts.stream {
		events, err := rt.engine.ResumeStream(ctx, threadID, opts.checkpointID)
		if err != nil {
			return err
		}
		return a.printStream(events, opts.jsonOutput)
	}

	resp, err := rt.engine.Resume(ctx, threadID, opts.checkpointID)
	if err != nil {
		return err
	}
	return a.printResponse(resp, opts.jsonOutput)
}
