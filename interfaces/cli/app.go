// Package cli provides the orbit command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/orbit"
	"github.com/felixgeelhaar/orbit/domain/config"
	infraconfig "github.com/felixgeelhaar/orbit/infrastructure/config"
	"github.com/felixgeelhaar/orbit/infrastructure/logging"
)

// Version information set at build time.
var (
	Version   = orbit.Version
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// App represents the CLI application.
type App struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	envDir     string
	environ    func(string) (string, bool)
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "orbit",
		Short: "Conversational agent for the command line and HTTP",
		Long: `orbit classifies each request, then either answers it, proposes a
shell command guarded by a safety gate, or plans and executes a multi-step
workflow with tools. Every stage is checkpointed so interrupted threads can
be inspected and resumed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.envDir == "" {
				return infraconfig.LoadDotEnvFromCwd()
			}
			return infraconfig.LoadDotEnv(app.envDir)
		},
	}

	flags := app.root.PersistentFlags()
	flags.StringVarP(&app.configPath, "config", "c", "", "Path to configuration file")
	flags.StringVar(&app.logLevel, "log-level", "", "Override the configured log level")
	flags.StringVar(&app.envDir, "env-dir", "", "Directory holding the .env file (default: working directory)")

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newValidateCmd(),
		app.newRunCmd(),
		app.newResumeCmd(),
		app.newCheckpointsCmd(),
		app.newHistoryCmd(),
		app.newSafetyCmd(),
		app.newToolsCmd(),
		app.newServeCmd(),
		app.newGraphCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// WithEnviron replaces the environment consulted for configuration
// overrides.
func (a *App) WithEnviron(lookup func(string) (string, bool)) *App {
	a.environ = lookup
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

func (a *App) loader(opts ...infraconfig.LoaderOption) *infraconfig.Loader {
	if a.environ != nil {
		opts = append(opts, infraconfig.WithEnviron(a.environ))
	}
	return infraconfig.NewLoaderWithOptions(opts...)
}

// loadConfig reads the configuration and installs the logger it names.
func (a *App) loadConfig() (*config.Config, error) {
	cfg, err := a.loader().LoadFile(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.Output = a.stderr
	logging.Init(logCfg)
	return cfg, nil
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "orbit version %s\n", Version)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(a.stdout, "  Build date: %s\n", BuildDate)
		},
	}
}
