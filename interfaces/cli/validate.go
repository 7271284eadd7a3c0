package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	infraconfig "github.com/felixgeelhaar/orbit/infrastructure/config"
)

// ErrConfigRequired is returned by validate without a -c flag.
var ErrConfigRequired = errors.New("configuration file path is required (-c flag)")

// validateOptions holds options for the validate command.
type validateOptions struct {
	strict bool
}

// newValidateCmd creates the validate command.
func (a *App) newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Validate an orbit configuration file for correctness.

This command checks:
  - File format (YAML or JSON)
  - Provider, storage backend and exporter names
  - API keys required by the chosen provider
  - Field ranges such as ports, limits and timeouts
  - Environment variable references (in strict mode)

Environment overrides (ORBIT_*) and the .env file are applied first, so the
result matches what run and serve would use.

Examples:
  # Validate a configuration file
  orbit validate -c orbit.yaml

  # Strict validation (fail on missing env vars)
  orbit validate -c orbit.yaml --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.validateConfig(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Enable strict validation (fail on missing env vars)")

	return cmd
}

func (a *App) validateConfig(opts *validateOptions) error {
	if a.configPath == "" {
		return ErrConfigRequired
	}

	cfg, err := a.loader(infraconfig.WithStrictEnv(opts.strict)).LoadFile(a.configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(a.stdout, "✓ Configuration is valid\n")
	fmt.Fprintf(a.stdout, "\nConfiguration summary:\n")
	fmt.Fprintf(a.stdout, "  LLM: %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
	if cfg.LLM.RateLimit > 0 {
		fmt.Fprintf(a.stdout, "  Rate limiting: %.1f/s (burst=%d)\n", cfg.LLM.RateLimit, cfg.LLM.Burst)
	}
	fmt.Fprintf(a.stdout, "  Storage: %s\n", cfg.Storage.Backend)
	if cfg.Bridge.Disabled {
		fmt.Fprintf(a.stdout, "  Bridge: disabled\n")
	} else {
		fmt.Fprintf(a.stdout, "  Bridge: %s\n", cfg.Bridge.URL)
	}
	fmt.Fprintf(a.stdout, "  Server: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(a.stdout, "  Max iterations: %d\n", cfg.Agent.MaxIterations)
	fmt.Fprintf(a.stdout, "  Max plan steps: %d\n", cfg.Agent.MaxPlanSteps)
	if cfg.Telemetry.Enabled {
		fmt.Fprintf(a.stdout, "  Telemetry: %s\n", cfg.Telemetry.Exporter)
	}

	return nil
}
