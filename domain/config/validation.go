package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the dotted path to the invalid field.
	Path string
	// Message describes the validation error.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Unwrap lets callers match ErrValidationFailed with errors.Is.
func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(c *Config) ValidationErrors {
	v.errors = nil

	v.validateAgent(c.Agent)
	v.validateLLM(c.LLM)
	v.validateBridge(c.Bridge)
	v.validateStorage(c.Storage)
	v.validateServer(c.Server)
	v.validateLogging(c.Logging)
	v.validateTelemetry(c.Telemetry)

	return v.errors
}

// Validate is a convenience wrapper around Validator.
func (c *Config) Validate() error {
	if errs := NewValidator().Validate(c); errs.HasErrors() {
		return errs
	}
	return nil
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validateAgent(a AgentConfig) {
	if a.PermissionLevel < 0 || a.PermissionLevel > 5 {
		v.addError("agent.permission_level", "must be between 0 and 5")
	}
	if a.MaxIterations < 1 {
		v.addError("agent.max_iterations", "must be at least 1")
	}
	if a.MaxPlanSteps < 1 {
		v.addError("agent.max_plan_steps", "must be at least 1")
	}
	if a.ChunkSize < 1 {
		v.addError("agent.chunk_size", "must be at least 1")
	}
	if a.ToolTimeout < 0 {
		v.addError("agent.tool_timeout", "must not be negative")
	}
}

func (v *Validator) validateLLM(l LLMConfig) {
	if !l.Provider.IsValid() {
		v.addError("llm.provider", fmt.Sprintf("unsupported provider %q", l.Provider))
		return
	}
	switch l.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
		if l.APIKey == "" {
			v.addError("llm.api_key", fmt.Sprintf("required for provider %s", l.Provider))
		}
	}
	if l.RateLimit < 0 {
		v.addError("llm.rate_limit", "must not be negative")
	}
	if l.BaseURL != "" {
		v.validateURL("llm.base_url", l.BaseURL)
	}
}

func (v *Validator) validateBridge(b BridgeConfig) {
	if b.Disabled {
		return
	}
	if b.URL == "" {
		v.addError("bridge.url", "url is required unless the bridge is disabled")
		return
	}
	v.validateURL("bridge.url", b.URL)
}

func (v *Validator) validateStorage(s StorageConfig) {
	if !s.Backend.IsValid() {
		v.addError("storage.backend", fmt.Sprintf("unsupported backend %q", s.Backend))
		return
	}
	if s.PoolSize < 0 {
		v.addError("storage.pool_size", "must not be negative")
	}
	if s.Timeout < 0 {
		v.addError("storage.timeout", "must not be negative")
	}
	switch s.Backend {
	case BackendPostgres, BackendSQLite, BackendMongoDB:
		if s.DSN == "" {
			v.addError("storage.dsn", fmt.Sprintf("required for backend %s", s.Backend))
		}
	case BackendBadger:
		if s.Dir == "" {
			v.addError("storage.dir", "required for backend badger")
		}
	case BackendRedis:
		if s.Address == "" {
			v.addError("storage.address", "required for backend redis")
		}
	}
}

func (v *Validator) validateServer(s ServerConfig) {
	if s.Port < 1 || s.Port > 65535 {
		v.addError("server.port", "must be between 1 and 65535")
	}
}

func (v *Validator) validateLogging(l LoggingConfig) {
	switch l.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		v.addError("logging.level", fmt.Sprintf("unknown level %q", l.Level))
	}
	if l.Format != "json" && l.Format != "console" {
		v.addError("logging.format", "must be json or console")
	}
}

func (v *Validator) validateTelemetry(t TelemetryConfig) {
	if !t.Enabled {
		return
	}
	switch t.Exporter {
	case "stdout":
	case "otlp":
		if t.Endpoint == "" {
			v.addError("telemetry.endpoint", "required for the otlp exporter")
		}
	default:
		v.addError("telemetry.exporter", "must be stdout or otlp")
	}
}

func (v *Validator) validateURL(path, raw string) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		v.addError(path, fmt.Sprintf("invalid url %q", raw))
	}
}
