package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/orbit/application"
)

// newGraphCmd creates the graph command.
func (a *App) newGraphCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the stage routing graph",
		Long: `Print every stage transition the router allows.

Examples:
  # Render with Graphviz
  orbit graph --format dot | dot -Tsvg > graph.svg

  # Paste into a Markdown file
  orbit graph --format mermaid`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := application.ExportGraph(application.ExportFormat(format))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, string(out))
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(application.FormatMermaid), "Output format (json, dot, mermaid)")

	return cmd
}
