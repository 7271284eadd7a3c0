package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/orbit/application"
	"github.com/felixgeelhaar/orbit/domain/event"
)

// ErrStreamFailed is returned when a streamed run ends with an error event.
var ErrStreamFailed = errors.New("run failed")

// runOptions holds options for the run command.
type runOptions struct {
	sessionID  string
	userID     string
	threadID   string
	permission int
	stream     bool
	jsonOutput bool
}

// newRunCmd creates the run command.
func (a *App) newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <message>",
		Short: "Send one message to the agent",
		Long: `Run the agent on a single message and print its reply.

The message is classified first. Questions are answered directly, commands
are proposed and checked by the safety gate, and workflows are planned and
executed step by step with the configured tools.

Examples:
  # Ask a question with the offline mock provider
  ORBIT_LLM_PROVIDER=mock orbit run "what is a goroutine?"

  # Stream the reply as it is produced
  orbit run --stream "list the files in my home directory"

  # Continue an earlier thread
  orbit run --thread 3f2c... "and the hidden ones?"

  # Print the full response as JSON
  orbit run --json "check disk usage"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.sessionID, "session", "", "Session ID (default: generated)")
	cmd.Flags().StringVar(&opts.userID, "user", "", "User ID recorded on the session")
	cmd.Flags().StringVar(&opts.threadID, "thread", "", "Continue an existing thread")
	cmd.Flags().IntVar(&opts.permission, "permission", 0, "Permission level (default: configured level)")
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "Stream events as they happen")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func (a *App) run(ctx context.Context, message string, opts *runOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close(context.WithoutCancel(ctx))

	req := application.Request{
		Message:         message,
		SessionID:       opts.sessionID,
		UserID:          opts.userID,
		ThreadID:        opts.threadID,
		PermissionLevel: opts.permission,
	}

	if opts.stream {
		events, err := rt.engine.Stream(ctx, req)
		if err != nil {
			return err
		}
		return a.printStream(events, opts.jsonOutput)
	}

	resp, err := rt.engine.Run(ctx, req)
	if err != nil {
		return err
	}
	return a.printResponse(resp, opts.jsonOutput)
}

func (a *App) printResponse(resp *application.Response, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	for _, msg := range resp.Messages {
		fmt.Fprintln(a.stdout, msg)
	}
	fmt.Fprintf(a.stderr, "\nthread %s  checkpoint %s  intent %s  status %s\n",
		resp.ThreadID, resp.CheckpointID, resp.Intent, resp.Status)
	return nil
}

// printStream renders events until the channel closes. Chunks are written
// as they arrive; progress goes to stderr.
func (a *App) printStream(events <-chan event.Event, jsonOutput bool) error {
	var failed error
	for ev := range events {
		if jsonOutput {
			data, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, string(data))
			if ev.Type == event.TypeError {
				failed = ErrStreamFailed
			}
			continue
		}

		switch ev.Type {
		case event.TypeIntent:
			var p event.IntentPayload
			if ev.UnmarshalPayload(&p) == nil {
				fmt.Fprintf(a.stderr, "intent: %s\n", p.Intent)
			}
		case event.TypePlan:
			var p event.PlanPayload
			if ev.UnmarshalPayload(&p) == nil && p.Plan != nil {
				fmt.Fprintf(a.stderr, "plan: %d steps\n", len(p.Plan.Steps))
			}
		case event.TypeStep:
			var p event.StepPayload
			if ev.UnmarshalPayload(&p) == nil {
				fmt.Fprintf(a.stderr, "step %d: %s\n", p.StepNumber, p.Description)
			}
		case event.TypeChunk:
			var p event.ChunkPayload
			if ev.UnmarshalPayload(&p) == nil {
				fmt.Fprint(a.stdout, p.Content)
				if p.Last {
					fmt.Fprintln(a.stdout)
				}
			}
		case event.TypeComplete:
			var p event.CompletePayload
			if ev.UnmarshalPayload(&p) == nil {
				fmt.Fprintf(a.stderr, "\nthread %s  checkpoint %s  status %s\n", ev.ThreadID, p.CheckpointID, p.Status)
			}
		case event.TypeError:
			var p event.ErrorPayload
			if ev.UnmarshalPayload(&p) == nil {
				failed = fmt.Errorf("%w: %s", ErrStreamFailed, p.Error)
			} else {
				failed = ErrStreamFailed
			}
		}
	}
	return failed
}
