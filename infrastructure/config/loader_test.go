package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/orbit/domain/config"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestLoader_LoadFile_YAML(t *testing.T) {
	t.Parallel()

	content := `
agent:
  permission_level: 3
  max_iterations: 4
llm:
  provider: openai
  api_key: sk-test
  rate_limit: 2.5
bridge:
  url: http://bridge:3001
  timeout: 45s
storage:
  backend: sqlite
  dsn: file:orbit.db
server:
  port: 9000
`
	path := filepath.Join(t.TempDir(), "orbit.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := NewLoaderWithOptions(WithEnviron(env(nil))).LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Agent.PermissionLevel != 3 || cfg.Agent.MaxIterations != 4 {
		t.Errorf("Agent = %+v", cfg.Agent)
	}
	if cfg.Agent.MaxPlanSteps != 5 {
		t.Errorf("MaxPlanSteps = %d, want default 5", cfg.Agent.MaxPlanSteps)
	}
	if cfg.LLM.Model != "gpt-4-turbo-preview" {
		t.Errorf("LLM.Model = %s, want openai default", cfg.LLM.Model)
	}
	if cfg.Bridge.Timeout != 45*time.Second {
		t.Errorf("Bridge.Timeout = %v, want 45s", cfg.Bridge.Timeout)
	}
	if cfg.Storage.Backend != config.BackendSQLite || cfg.Server.Port != 9000 {
		t.Errorf("Storage/Server = %+v / %+v", cfg.Storage, cfg.Server)
	}
}

func TestLoader_StorageTuning(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoaderWithOptions(WithEnviron(env(nil))).LoadString(`
llm:
  provider: mock
storage:
  backend: redis
  address: cache:6379
  pool_size: 20
  timeout: 2s
  sync_writes: true
`)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	if cfg.Storage.PoolSize != 20 {
		t.Errorf("PoolSize = %d, want 20", cfg.Storage.PoolSize)
	}
	if cfg.Storage.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want 2s", cfg.Storage.Timeout)
	}
	if !cfg.Storage.SyncWrites {
		t.Error("SyncWrites = false, want true")
	}
}

func TestLoader_LoadFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := NewLoader().LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, config.ErrConfigNotFound) {
		t.Errorf("LoadFile() error = %v, want ErrConfigNotFound", err)
	}
}

func TestLoader_EmptyPathUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoaderWithOptions(WithEnviron(env(map[string]string{
		"GOOGLE_API_KEY": "g-key",
	}))).LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.LLM.APIKey != "g-key" {
		t.Errorf("LLM.APIKey = %q, want key from GOOGLE_API_KEY", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "gemini-flash-lite-latest" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
}

func TestLoader_InvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := NewLoader().LoadString("agent: [")
	if !errors.Is(err, config.ErrInvalidFormat) {
		t.Errorf("LoadString() error = %v, want ErrInvalidFormat", err)
	}
}

func TestLoader_ValidationFailure(t *testing.T) {
	t.Parallel()

	_, err := NewLoaderWithOptions(WithEnviron(env(nil))).LoadString("llm:\n  provider: mock\nserver:\n  port: -1\n")
	if !errors.Is(err, config.ErrValidationFailed) {
		t.Errorf("LoadString() error = %v, want ErrValidationFailed", err)
	}
}

func TestLoader_JSONDocument(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoaderWithOptions(WithEnviron(env(nil))).
		LoadString(`{"llm": {"provider": "mock"}, "storage": {"backend": "memory"}}`)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	if cfg.LLM.Provider != config.ProviderMock {
		t.Errorf("LLM.Provider = %s, want mock", cfg.LLM.Provider)
	}
}

func TestLoader_Switches(t *testing.T) {
	t.Parallel()

	const doc = "llm:\n  provider: mock\n  model: \"${ORBIT_TEST_UNSET_MODEL:-m1}\"\n"
	environ := WithEnviron(env(map[string]string{"ORBIT_LLM_MODEL": "from-env"}))

	tests := []struct {
		name      string
		opts      []LoaderOption
		wantModel string
	}{
		{"defaults", nil, "from-env"},
		{"no overrides", []LoaderOption{WithOverrides(false)}, "m1"},
		{"no expansion", []LoaderOption{WithOverrides(false), WithEnvExpansion(false)}, "${ORBIT_TEST_UNSET_MODEL:-m1}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := NewLoaderWithOptions(append([]LoaderOption{environ}, tt.opts...)...).LoadString(doc)
			if err != nil {
				t.Fatalf("LoadString() error = %v", err)
			}
			if cfg.LLM.Model != tt.wantModel {
				t.Errorf("LLM.Model = %q, want %q", cfg.LLM.Model, tt.wantModel)
			}
		})
	}
}

func TestLoader_WithoutValidation(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoaderWithOptions(WithEnviron(env(nil)), WithValidation(false)).
		LoadString("llm:\n  provider: skynet\n")
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	if cfg.LLM.Provider != "skynet" {
		t.Errorf("LLM.Provider = %s, want skynet", cfg.LLM.Provider)
	}
}

func TestApplyOverrides(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	err := ApplyOverrides(cfg, env(map[string]string{
		"ORBIT_LLM_PROVIDER":     "anthropic",
		"ANTHROPIC_API_KEY":      "a-key",
		"ORBIT_BRIDGE_URL":       "http://orbit-bridge:3001",
		"BRIDGE_URL":             "http://ignored:3001",
		"PORT":                   "8080",
		"DATABASE_URL":           "postgres://localhost/orbit",
		"ORBIT_PERMISSION_LEVEL": "4",
	}))
	if err != nil {
		t.Fatalf("ApplyOverrides() error = %v", err)
	}

	if cfg.LLM.Provider != config.ProviderAnthropic || cfg.LLM.APIKey != "a-key" {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.Bridge.URL != "http://orbit-bridge:3001" {
		t.Errorf("Bridge.URL = %s, want ORBIT_ value to win", cfg.Bridge.URL)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.DSN != "postgres://localhost/orbit" {
		t.Errorf("Storage.DSN = %s", cfg.Storage.DSN)
	}
	if cfg.Agent.PermissionLevel != 4 {
		t.Errorf("PermissionLevel = %d, want 4", cfg.Agent.PermissionLevel)
	}
}

func TestApplyOverrides_BadNumber(t *testing.T) {
	t.Parallel()

	err := ApplyOverrides(config.Default(), env(map[string]string{"ORBIT_PORT": "eighty"}))
	if !errors.Is(err, config.ErrInvalidFormat) {
		t.Errorf("ApplyOverrides() error = %v, want ErrInvalidFormat", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("LoadDotEnv() without file error = %v", err)
	}

	t.Setenv("ORBIT_DOTENV_KEEP", "from-env")
	content := "ORBIT_DOTENV_KEEP=from-file\nORBIT_DOTENV_NEW=loaded\n"
	if err := os.WriteFile(filepath.Join(dir, EnvFileName), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("ORBIT_DOTENV_NEW") })

	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("ORBIT_DOTENV_NEW"); got != "loaded" {
		t.Errorf("ORBIT_DOTENV_NEW = %q, want loaded", got)
	}
	if got := os.Getenv("ORBIT_DOTENV_KEEP"); got != "from-env" {
		t.Errorf("ORBIT_DOTENV_KEEP = %q, want existing value kept", got)
	}
}
