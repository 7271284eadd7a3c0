package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDefault_IsValidWithKey(t *testing.T) {
	t.Parallel()

	c := Default()
	c.LLM.APIKey = "key"
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if c.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", c.Server.Port)
	}
	if c.LLM.Provider != ProviderGemini {
		t.Errorf("LLM.Provider = %s, want gemini", c.LLM.Provider)
	}
	if c.Bridge.URL != "http://localhost:3001" {
		t.Errorf("Bridge.URL = %s, want http://localhost:3001", c.Bridge.URL)
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	c := &Config{LLM: LLMConfig{Provider: ProviderOpenAI}, Agent: AgentConfig{MaxIterations: 3}}
	c.ApplyDefaults()

	if c.Agent.MaxIterations != 3 {
		t.Errorf("MaxIterations = %d, want 3 (explicit value kept)", c.Agent.MaxIterations)
	}
	if c.Agent.MaxPlanSteps != 5 {
		t.Errorf("MaxPlanSteps = %d, want 5", c.Agent.MaxPlanSteps)
	}
	if c.LLM.Model != "gpt-4-turbo-preview" {
		t.Errorf("LLM.Model = %s, want provider default", c.LLM.Model)
	}
	if c.Agent.ToolTimeout != 30*time.Second {
		t.Errorf("ToolTimeout = %v, want 30s", c.Agent.ToolTimeout)
	}
}

func TestValidator_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Config)
		wantPath string
	}{
		{"permission out of range", func(c *Config) { c.Agent.PermissionLevel = 9 }, "agent.permission_level"},
		{"zero iterations", func(c *Config) { c.Agent.MaxIterations = 0 }, "agent.max_iterations"},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "palm" }, "llm.provider"},
		{"missing api key", func(c *Config) { c.LLM.APIKey = "" }, "llm.api_key"},
		{"bad bridge url", func(c *Config) { c.Bridge.URL = "localhost" }, "bridge.url"},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = BackendPostgres }, "storage.dsn"},
		{"badger without dir", func(c *Config) { c.Storage.Backend = BackendBadger }, "storage.dir"},
		{"redis without address", func(c *Config) { c.Storage.Backend = BackendRedis }, "storage.address"},
		{"negative pool size", func(c *Config) { c.Storage.PoolSize = -1 }, "storage.pool_size"},
		{"negative storage timeout", func(c *Config) { c.Storage.Timeout = -time.Second }, "storage.timeout"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"otlp without endpoint", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Exporter = "otlp"
		}, "telemetry.endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := Default()
			c.LLM.APIKey = "key"
			tt.mutate(c)

			errs := NewValidator().Validate(c)
			found := false
			for _, e := range errs {
				if e.Path == tt.wantPath {
					found = true
				}
			}
			if !found {
				t.Errorf("Validate() = %v, want error at %s", errs, tt.wantPath)
			}
		})
	}
}

func TestValidate_MockNeedsNoKeyAndDisabledBridgeNeedsNoURL(t *testing.T) {
	t.Parallel()

	c := Default()
	c.LLM.Provider = ProviderMock
	c.Bridge.Disabled = true
	c.Bridge.URL = ""
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidationErrors(t *testing.T) {
	t.Parallel()

	errs := ValidationErrors{{Path: "a", Message: "x"}, {Path: "b", Message: "y"}}
	if !strings.HasPrefix(errs.Error(), "2 validation errors") {
		t.Errorf("Error() = %q", errs.Error())
	}
	if !errors.Is(errs, ErrValidationFailed) {
		t.Error("errors.Is(errs, ErrValidationFailed) = false")
	}
	if got := (ValidationError{Message: "m"}).Error(); got != "m" {
		t.Errorf("Error() = %q, want m", got)
	}
}
