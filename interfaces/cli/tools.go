package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/orbit/domain/tool"
)

// toolsOptions holds options for the tools command.
type toolsOptions struct {
	search     string
	permission int
	jsonOutput bool
}

// toolInfo is the printable view of a registered tool.
type toolInfo struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Annotations tool.Annotations `json:"annotations"`
	InputSchema tool.Schema      `json:"input_schema"`
}

// newToolsCmd creates the tools command.
func (a *App) newToolsCmd() *cobra.Command {
	opts := &toolsOptions{}

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools available to the planner",
		Long: `List every tool the planner may put into a plan, with its safety
annotations. Tools backed by the command bridge are absent when the bridge
is disabled in the configuration.

With --permission, only the tools a caller at that level may run are listed
and CONFIRM shows whether that caller must confirm each call.

Examples:
  orbit tools
  orbit tools --search files
  orbit tools --permission 3 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listTools(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.search, "search", "", "Only tools whose name, description or tags match")
	cmd.Flags().IntVar(&opts.permission, "permission", -1, "Only tools safe for this permission level")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func (a *App) listTools(ctx context.Context, opts *toolsOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close(context.WithoutCancel(ctx))

	tools := selectTools(rt.registry, opts)
	confirm := func(t tool.Tool) bool { return t.Annotations().RequiresConfirmation }
	if opts.permission >= 0 {
		needs := make(map[string]bool)
		for _, name := range tool.RequiringConfirmation(rt.registry, opts.permission) {
			needs[name] = true
		}
		confirm = func(t tool.Tool) bool { return needs[t.Name()] }
	}

	if opts.jsonOutput {
		infos := make([]toolInfo, 0, len(tools))
		for _, t := range tools {
			infos = append(infos, toolInfo{
				Name:        t.Name(),
				Description: t.Description(),
				Annotations: t.Annotations(),
				InputSchema: t.InputSchema(),
			})
		}
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	if len(tools) == 0 {
		if opts.search != "" || opts.permission >= 0 {
			fmt.Fprintln(a.stdout, "No matching tools.")
		} else {
			fmt.Fprintln(a.stdout, "No tools registered.")
		}
		return nil
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDANGER\tREAD-ONLY\tCONFIRM\tDESCRIPTION")
	for _, t := range tools {
		ann := t.Annotations()
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\n",
			t.Name(), ann.DangerLevel, ann.ReadOnly, confirm(t), t.Description())
	}
	return w.Flush()
}

// selectTools applies the search and permission filters, sorted by name.
func selectTools(r tool.Registry, opts *toolsOptions) []tool.Tool {
	tools := r.List()
	keep := func(names []string) {
		set := make(map[string]bool, len(names))
		for _, n := range names {
			set[n] = true
		}
		filtered := tools[:0]
		for _, t := range tools {
			if set[t.Name()] {
				filtered = append(filtered, t)
			}
		}
		tools = filtered
	}
	if opts.search != "" {
		keep(tool.Search(r, opts.search))
	}
	if opts.permission >= 0 {
		keep(tool.SafeFor(r, opts.permission))
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}
