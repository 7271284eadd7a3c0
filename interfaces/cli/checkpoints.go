package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/orbit/application"
	"github.com/felixgeelhaar/orbit/domain/checkpoint"
)

// checkpointsOptions holds options for the checkpoints command.
type checkpointsOptions struct {
	limit  int
	before string
	format string
}

// newCheckpointsCmd creates the checkpoints command.
func (a *App) newCheckpointsCmd() *cobra.Command {
	opts := &checkpointsOptions{}

	cmd := &cobra.Command{
		Use:   "checkpoints <thread-id>",
		Short: "Show the checkpoint timeline of a thread",
		Long: `List the checkpoints recorded for a thread, oldest first.

Each row shows what wrote the checkpoint, the stage that runs next and the
state of the run at that point.

Examples:
  # Show the last 10 checkpoints
  orbit checkpoints -c orbit.yaml 3f2c...

  # Everything before a checkpoint, as JSON
  orbit checkpoints -c orbit.yaml 3f2c... --before 9a1b... --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.checkpoints(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.limit, "limit", checkpoint.DefaultListLimit, "Maximum number of checkpoints")
	cmd.Flags().StringVar(&opts.before, "before", "", "Only checkpoints older than this ID")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "table", "Output format (table, json)")

	return cmd
}

func (a *App) checkpoints(ctx context.Context, threadID string, opts *checkpointsOptions) error {
	if opts.format != "table" && opts.format != "json" {
		return fmt.Errorf("%w: %s", application.ErrUnsupportedFormat, opts.format)
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close(context.WithoutCancel(ctx))

	svc := application.NewInspectionService(rt.saver)
	listOpts := checkpoint.ListOptions{Limit: opts.limit, Before: opts.before}

	entries, err := svc.Timeline(ctx, threadID, listOpts)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: thread %s", checkpoint.ErrNotFound, threadID)
	}

	if opts.format == "json" {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tCHECKPOINT\tSOURCE\tNEXT\tINTENT\tOUTCOME\tCREATED")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Step, e.CheckpointID, e.Source, e.NextNode, e.Intent, e.Outcome,
			e.CreatedAt.Format("15:04:05.000"))
	}
	return w.Flush()
}
