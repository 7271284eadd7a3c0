package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/orbit/application"
	"github.com/felixgeelhaar/orbit/domain/event"
)

type historyOptions struct {
	eventType  string
	from       uint64
	jsonOutput bool
}

// newHistoryCmd creates the history command.
func (a *App) newHistoryCmd() *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history <thread-id>",
		Short: "Replay the recorded events of a thread",
		Long: `Rebuild what happened in a thread from its retained event stream.

Events are retained by the sqlite backend; other backends keep them only for
the lifetime of the process.

Examples:
  # Summarize a thread
  orbit history -c orbit.yaml 3f2c...

  # Only the tool results
  orbit history -c orbit.yaml 3f2c... --type tool_result`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.history(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.eventType, "type", "", "Only print events of this type")
	cmd.Flags().Uint64Var(&opts.from, "from", 0, "Start at this sequence number")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func (a *App) history(ctx context.Context, threadID string, opts *historyOptions) error {
	if opts.eventType != "" && !event.Type(opts.eventType).IsValid() {
		return fmt.Errorf("%w: %s", event.ErrInvalidEvent, opts.eventType)
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

	replay := application.NewReplay(rt.events)

	if opts.eventType != "" {
		events, err := replay.EventsByType(ctx, threadID, event.Type(opts.eventType))
		if err != nil {
			return err
		}
		for _, ev := range events {
			if ev.Sequence < opts.from {
				continue
			}
			if opts.jsonOutput {
				data, err := json.Marshal(ev)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, string(data))
				continue
			}
			fmt.Fprintf(a.stdout, "%4d  %s  %s  %s\n",
				ev.Sequence, ev.Timestamp.Format("15:04:05.000"), ev.Type, ev.Payload)
		}
		return nil
	}

	summary, err := replay.ReconstructThreadFrom(ctx, threadID, opts.from)
	if err != nil {
		return err
	}
	if opts.jsonOutput {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Fprintf(a.stdout, "Thread:   %s\n", summary.ThreadID)
	fmt.Fprintf(a.stdout, "Session:  %s\n", summary.SessionID)
	fmt.Fprintf(a.stdout, "Status:   %s\n", summary.Status)
	fmt.Fprintf(a.stdout, "Intent:   %s\n", summary.Intent)
	if summary.Plan != nil {
		fmt.Fprintf(a.stdout, "Plan:     %s (%d steps)\n", summary.Plan.Goal, len(summary.Plan.Steps))
	}
	fmt.Fprintf(a.stdout, "Results:  %d\n", len(summary.Results))
	if summary.Resumes > 0 {
		fmt.Fprintf(a.stdout, "Resumed:  %d times\n", summary.Resumes)
	}
	if d := summary.Duration(); d > 0 {
		fmt.Fprintf(a.stdout, "Duration: %s\n", d)
	}
	if summary.Error != "" {
		fmt.Fprintf(a.stdout, "Error:    %s\n", summary.Error)
	}
	if summary.Response != "" {
		fmt.Fprintf(a.stdout, "\n%s\n", summary.Response)
	}
	return nil
}
