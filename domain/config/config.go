// Package config provides domain models for agent configuration.
package config

import "time"

// Config represents the complete orbit configuration.
type Config struct {
	Agent      AgentConfig      `json:"agent" yaml:"agent"`
	LLM        LLMConfig        `json:"llm" yaml:"llm"`
	Bridge     BridgeConfig     `json:"bridge" yaml:"bridge"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Server     ServerConfig     `json:"server" yaml:"server"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Telemetry  TelemetryConfig  `json:"telemetry" yaml:"telemetry"`
	Resilience ResilienceConfig `json:"resilience" yaml:"resilience"`
}

// AgentConfig contains core agent behavior settings.
type AgentConfig struct {
	// PermissionLevel is the permission assumed for callers that send none.
	PermissionLevel int `json:"permission_level" yaml:"permission_level"`
	// MaxIterations bounds executor/evaluator cycles per run.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`
	// MaxPlanSteps caps the number of steps a plan may contain.
	MaxPlanSteps int `json:"max_plan_steps" yaml:"max_plan_steps"`
	// ChunkSize is the rune length of streamed response chunks.
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`
	// ContextWindow is how many trailing messages prompts include.
	ContextWindow int `json:"context_window" yaml:"context_window"`
	// ToolTimeout bounds tools that declare no timeout of their own.
	ToolTimeout time.Duration `json:"tool_timeout" yaml:"tool_timeout"`
}

// Provider names a completion backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderOllama    Provider = "ollama"
	ProviderMock      Provider = "mock"
)

// IsValid returns true if the provider is supported.
func (p Provider) IsValid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderOllama, ProviderMock:
		return true
	default:
		return false
	}
}

// LLMConfig configures the completion service.
type LLMConfig struct {
	Provider  Provider      `json:"provider" yaml:"provider"`
	Model     string        `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey    string        `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL   string        `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
	MaxTokens int           `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	// RateLimit is the sustained requests per second (0 = unlimited).
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	Burst     int     `json:"burst,omitempty" yaml:"burst,omitempty"`
}

// BridgeConfig configures the command bridge that runs shell commands and
// file operations on the user's machine.
type BridgeConfig struct {
	URL     string        `json:"url" yaml:"url"`
	APIKey  string        `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// Disabled keeps the shell and file tools out of the registry.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Backend names a persistence backend.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
	BackendBadger   Backend = "badger"
	BackendRedis    Backend = "redis"
	BackendMongoDB  Backend = "mongodb"
)

// IsValid returns true if the backend is supported.
func (b Backend) IsValid() bool {
	switch b {
	case BackendMemory, BackendPostgres, BackendSQLite, BackendBadger, BackendRedis, BackendMongoDB:
		return true
	default:
		return false
	}
}

// StorageConfig selects and configures the checkpoint/tool-call backend.
type StorageConfig struct {
	Backend Backend `json:"backend" yaml:"backend"`
	// DSN is the connection string for postgres, sqlite and mongodb.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// Schema is the postgres schema (default "public").
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
	// Dir is the badger data directory.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
	// Database is the mongodb database name.
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
	// Address, Password and DB configure redis.
	Address  string `json:"address,omitempty" yaml:"address,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
	// KeyPrefix namespaces redis and badger keys.
	KeyPrefix string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
	// PoolSize caps postgres and redis connections. Zero keeps the driver default.
	PoolSize int `json:"pool_size,omitempty" yaml:"pool_size,omitempty"`
	// Timeout bounds postgres connects and redis dials, reads and writes.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// SyncWrites makes badger fsync every commit.
	SyncWrites bool `json:"sync_writes,omitempty" yaml:"sync_writes,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// TelemetryConfig configures tracing and metrics.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"service_name" yaml:"service_name"`
	// Exporter is "stdout" or "otlp".
	Exporter string `json:"exporter" yaml:"exporter"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Insecure bool   `json:"insecure,omitempty" yaml:"insecure,omitempty"`
}

// ResilienceConfig tunes retries, circuit breakers and tool concurrency.
type ResilienceConfig struct {
	MaxConcurrent    int           `json:"max_concurrent" yaml:"max_concurrent"`
	RetryAttempts    int           `json:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay       time.Duration `json:"retry_delay" yaml:"retry_delay"`
	BreakerThreshold int           `json:"breaker_threshold" yaml:"breaker_threshold"`
	BreakerTimeout   time.Duration `json:"breaker_timeout" yaml:"breaker_timeout"`
}

// Default returns the baseline configuration. The model is left empty and
// resolved by ApplyDefaults once the provider is known.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			PermissionLevel: 1,
			MaxIterations:   10,
			MaxPlanSteps:    5,
			ChunkSize:       50,
			ContextWindow:   10,
			ToolTimeout:     30 * time.Second,
		},
		LLM: LLMConfig{
			Provider: ProviderGemini,
			Timeout:  120 * time.Second,
		},
		Bridge: BridgeConfig{
			URL:     "http://localhost:3001",
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Backend:   BackendMemory,
			Schema:    "public",
			Database:  "orbit_agent",
			KeyPrefix: "orbit:",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "orbit",
			Exporter:    "stdout",
		},
		Resilience: ResilienceConfig{
			MaxConcurrent:    10,
			RetryAttempts:    3,
			RetryDelay:       100 * time.Millisecond,
			BreakerThreshold: 5,
			BreakerTimeout:   30 * time.Second,
		},
	}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return "gpt-4-turbo-preview"
	case ProviderAnthropic:
		return "claude-3-opus-20240229"
	case ProviderGemini:
		return "gemini-flash-lite-latest"
	case ProviderOllama:
		return "llama3.2"
	default:
		return ""
	}
}

// ApplyDefaults fills zero values from Default.
func (c *Config) ApplyDefaults() {
	d := Default()

	if c.Agent.PermissionLevel == 0 {
		c.Agent.PermissionLevel = d.Agent.PermissionLevel
	}
	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = d.Agent.MaxIterations
	}
	if c.Agent.MaxPlanSteps == 0 {
		c.Agent.MaxPlanSteps = d.Agent.MaxPlanSteps
	}
	if c.Agent.ChunkSize == 0 {
		c.Agent.ChunkSize = d.Agent.ChunkSize
	}
	if c.Agent.ContextWindow == 0 {
		c.Agent.ContextWindow = d.Agent.ContextWindow
	}
	if c.Agent.ToolTimeout == 0 {
		c.Agent.ToolTimeout = d.Agent.ToolTimeout
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = d.LLM.Provider
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel(c.LLM.Provider)
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = d.LLM.Timeout
	}

	if c.Bridge.URL == "" {
		c.Bridge.URL = d.Bridge.URL
	}
	if c.Bridge.Timeout == 0 {
		c.Bridge.Timeout = d.Bridge.Timeout
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Storage.Schema == "" {
		c.Storage.Schema = d.Storage.Schema
	}
	if c.Storage.Database == "" {
		c.Storage.Database = d.Storage.Database
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = d.Storage.KeyPrefix
	}

	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}

	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = d.Telemetry.ServiceName
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = d.Telemetry.Exporter
	}

	if c.Resilience.MaxConcurrent == 0 {
		c.Resilience.MaxConcurrent = d.Resilience.MaxConcurrent
	}
	if c.Resilience.RetryAttempts == 0 {
		c.Resilience.RetryAttempts = d.Resilience.RetryAttempts
	}
	if c.Resilience.RetryDelay == 0 {
		c.Resilience.RetryDelay = d.Resilience.RetryDelay
	}
	if c.Resilience.BreakerThreshold == 0 {
		c.Resilience.BreakerThreshold = d.Resilience.BreakerThreshold
	}
	if c.Resilience.BreakerTimeout == 0 {
		c.Resilience.BreakerTimeout = d.Resilience.BreakerTimeout
	}
}
