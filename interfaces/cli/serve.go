package cli

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/orbit/domain/config"
	infraconfig "github.com/felixgeelhaar/orbit/infrastructure/config"
	"github.com/felixgeelhaar/orbit/infrastructure/logging"
	"github.com/felixgeelhaar/orbit/interfaces/server"
)

// serveOptions holds options for the serve command.
type serveOptions struct {
	host  string
	port  int
	watch bool
}

// newServeCmd creates the serve command.
func (a *App) newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over HTTP",
		Long: `Start the HTTP API.

Endpoints:
  GET  /health
  POST /api/v1/agent                        run one message
  POST /api/v1/agent/stream                 run one message as Server-Sent Events
  GET  /api/v1/graph?format=json|dot|mermaid
  GET  /api/v1/threads/:id/checkpoints      checkpoint timeline
  POST /api/v1/threads/:id/resume           resume an interrupted thread
  GET  /api/v1/threads/:id/events           follow a thread live

With --watch, edits to the configuration file are picked up without a
restart. Only the log level is applied live; other settings take effect on
the next start.

Examples:
  orbit serve -c orbit.yaml
  orbit serve -c orbit.yaml --port 8080 --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "Listen host (default: configured host)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Listen port (default: configured port)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Reload the configuration file on change")

	return cmd
}

func (a *App) serve(ctx context.Context, opts *serveOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close(context.WithoutCancel(ctx))

	srv, err := server.New(rt.engine, cfg.Server, server.WithSubscriber(rt.publisher))
	if err != nil {
		return err
	}

	var watcher *infraconfig.Watcher
	if opts.watch && a.configPath != "" {
		watcher, err = infraconfig.NewWatcher(a.configPath, a.loader(), applyLive)
		if err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}
	return g.Wait()
}

// applyLive applies the settings that can change while serving.
func applyLive(cfg *config.Config) {
	logging.SetLevel(cfg.Logging.Level)
	logging.Info().
		Add(logging.Component("cli")).
		Add(logging.Str("level", cfg.Logging.Level)).
		Msg("log level applied")
}
