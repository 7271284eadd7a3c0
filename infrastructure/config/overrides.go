package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/felixgeelhaar/orbit/domain/config"
)

// override maps environment variables onto one config field. The first
// variable that is set wins, so ORBIT_* names take precedence over the
// legacy names the service has always read.
type override struct {
	keys  []string
	apply func(*config.Config, string) error
}

var overrides = []override{
	{[]string{"ORBIT_LLM_PROVIDER", "DEFAULT_LLM_PROVIDER"}, func(c *config.Config, v string) error {
		c.LLM.Provider = config.Provider(v)
		return nil
	}},
	{[]string{"ORBIT_LLM_MODEL"}, func(c *config.Config, v string) error {
		c.LLM.Model = v
		return nil
	}},
	{[]string{"ORBIT_LLM_BASE_URL"}, func(c *config.Config, v string) error {
		c.LLM.BaseURL = v
		return nil
	}},
	{[]string{"ORBIT_LLM_API_KEY"}, func(c *config.Config, v string) error {
		c.LLM.APIKey = v
		return nil
	}},
	{[]string{"ORBIT_LLM_RATE_LIMIT"}, func(c *config.Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		c.LLM.RateLimit = f
		return err
	}},
	{[]string{"ORBIT_BRIDGE_URL", "BRIDGE_URL"}, func(c *config.Config, v string) error {
		c.Bridge.URL = v
		return nil
	}},
	{[]string{"ORBIT_BRIDGE_API_KEY", "BRIDGE_API_KEY"}, func(c *config.Config, v string) error {
		c.Bridge.APIKey = v
		return nil
	}},
	{[]string{"ORBIT_BRIDGE_TIMEOUT"}, func(c *config.Config, v string) error {
		d, err := time.ParseDuration(v)
		c.Bridge.Timeout = d
		return err
	}},
	{[]string{"ORBIT_PORT", "PORT"}, func(c *config.Config, v string) error {
		n, err := strconv.Atoi(v)
		c.Server.Port = n
		return err
	}},
	{[]string{"ORBIT_HOST"}, func(c *config.Config, v string) error {
		c.Server.Host = v
		return nil
	}},
	{[]string{"ORBIT_STORAGE_BACKEND"}, func(c *config.Config, v string) error {
		c.Storage.Backend = config.Backend(v)
		return nil
	}},
	{[]string{"ORBIT_STORAGE_DSN", "DATABASE_URL"}, func(c *config.Config, v string) error {
		c.Storage.DSN = v
		return nil
	}},
	{[]string{"ORBIT_STORAGE_DIR"}, func(c *config.Config, v string) error {
		c.Storage.Dir = v
		return nil
	}},
	{[]string{"ORBIT_REDIS_ADDRESS"}, func(c *config.Config, v string) error {
		c.Storage.Address = v
		return nil
	}},
	{[]string{"ORBIT_LOG_LEVEL"}, func(c *config.Config, v string) error {
		c.Logging.Level = v
		return nil
	}},
	{[]string{"ORBIT_LOG_FORMAT"}, func(c *config.Config, v string) error {
		c.Logging.Format = v
		return nil
	}},
	{[]string{"ORBIT_PERMISSION_LEVEL"}, func(c *config.Config, v string) error {
		n, err := strconv.Atoi(v)
		c.Agent.PermissionLevel = n
		return err
	}},
	{[]string{"ORBIT_MAX_ITERATIONS"}, func(c *config.Config, v string) error {
		n, err := strconv.Atoi(v)
		c.Agent.MaxIterations = n
		return err
	}},
	{[]string{"ORBIT_TELEMETRY_ENDPOINT"}, func(c *config.Config, v string) error {
		c.Telemetry.Enabled = true
		c.Telemetry.Exporter = "otlp"
		c.Telemetry.Endpoint = v
		return nil
	}},
}

// providerKeys are the vendor API key variables consulted when no
// explicit key is configured.
var providerKeys = map[config.Provider]string{
	config.ProviderOpenAI:    "OPENAI_API_KEY",
	config.ProviderAnthropic: "ANTHROPIC_API_KEY",
	config.ProviderGemini:    "GOOGLE_API_KEY",
}

// ApplyOverrides applies environment overrides to cfg.
func ApplyOverrides(cfg *config.Config, lookup func(string) (string, bool)) error {
	for _, o := range overrides {
		for _, key := range o.keys {
			v, ok := lookup(key)
			if !ok || v == "" {
				continue
			}
			if err := o.apply(cfg, v); err != nil {
				return fmt.Errorf("%w: %s=%q: %v", config.ErrInvalidFormat, key, v, err)
			}
			break
		}
	}

	if cfg.LLM.APIKey == "" {
		if key, ok := providerKeys[cfg.LLM.Provider]; ok {
			if v, ok := lookup(key); ok {
				cfg.LLM.APIKey = v
			}
		}
	}
	return nil
}
