package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	pkgerrors "github.com/cfarm/ccp-test/internal/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CCP_POLICY_PATH", "CCP_INPUT_DIR", "CCP_OUTPUT_DIR",
		"STATE_STORE_TYPE", "SQLITE_PATH",
		"API_ENABLED", "API_PORT", "CCP_API_KEY", "API_READ_ONLY",
		"LOG_LEVEL", "METRICS_PORT", "HEALTH_CHECK_PORT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	// Point at a nonexistent policy so no extension-key defaults apply.
	t.Setenv("CCP_POLICY_PATH", filepath.Join(t.TempDir(), "absent.snyk"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.InputDir != "reports" || cfg.OutputDir != "processed" {
		t.Errorf("dirs = %q, %q", cfg.InputDir, cfg.OutputDir)
	}
	if cfg.Queue.BufferSize != 1000 {
		t.Errorf("BufferSize = %d", cfg.Queue.BufferSize)
	}
	if cfg.Worker.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v", cfg.Worker.PollInterval)
	}
	if cfg.Worker.RetryAttempts != 3 || cfg.Worker.Concurrency != 3 {
		t.Errorf("RetryAttempts = %d, Concurrency = %d", cfg.Worker.RetryAttempts, cfg.Worker.Concurrency)
	}
	if cfg.Worker.RetryBackoff != 10*time.Second {
		t.Errorf("RetryBackoff = %v", cfg.Worker.RetryBackoff)
	}
	if cfg.StateStore.Type != "sqlite" || cfg.StateStore.SQLitePath != "ccp.db" {
		t.Errorf("StateStore = %+v", cfg.StateStore)
	}
	if cfg.StateStore.ReprocessInterval != 24*time.Hour {
		t.Errorf("ReprocessInterval = %v", cfg.StateStore.ReprocessInterval)
	}
	if !cfg.API.Enabled || cfg.API.Port != 8080 || cfg.API.ReadOnly {
		t.Errorf("API = %+v", cfg.API)
	}
	if cfg.Observability.LogLevel != "info" ||
		cfg.Observability.MetricsPort != 9090 ||
		cfg.Observability.HealthCheckPort != 8081 {
		t.Errorf("Observability = %+v", cfg.Observability)
	}
}

func TestLoad_PolicyDocumentDefaults(t *testing.T) {
	clearEnv(t)

	policyPath := filepath.Join(t.TempDir(), ".snyk")
	content := `version: v1.25.0
x-worker-poll-interval: 30s
x-reprocessInterval: 12h
x-worker-concurrency: 8
x-worker-retry-attempts: 5
x-worker-retry-backoff: 2m
x-queue-buffer-size: 500
`
	if err := os.WriteFile(policyPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CCP_POLICY_PATH", policyPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Worker.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v", cfg.Worker.PollInterval)
	}
	if cfg.StateStore.ReprocessInterval != 12*time.Hour {
		t.Errorf("ReprocessInterval = %v", cfg.StateStore.ReprocessInterval)
	}
	if cfg.Worker.Concurrency != 8 || cfg.Worker.RetryAttempts != 5 {
		t.Errorf("Concurrency = %d, RetryAttempts = %d", cfg.Worker.Concurrency, cfg.Worker.RetryAttempts)
	}
	if cfg.Worker.RetryBackoff != 2*time.Minute {
		t.Errorf("RetryBackoff = %v", cfg.Worker.RetryBackoff)
	}
	if cfg.Queue.BufferSize != 500 {
		t.Errorf("BufferSize = %d", cfg.Queue.BufferSize)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CCP_POLICY_PATH", filepath.Join(t.TempDir(), "absent.snyk"))
	t.Setenv("CCP_INPUT_DIR", "/data/in")
	t.Setenv("CCP_OUTPUT_DIR", "/data/out")
	t.Setenv("STATE_STORE_TYPE", "memory")
	t.Setenv("API_ENABLED", "false")
	t.Setenv("API_PORT", "9999")
	t.Setenv("CCP_API_KEY", "secret")
	t.Setenv("API_READ_ONLY", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.InputDir != "/data/in" || cfg.OutputDir != "/data/out" {
		t.Errorf("dirs = %q, %q", cfg.InputDir, cfg.OutputDir)
	}
	if cfg.StateStore.Type != "memory" {
		t.Errorf("store type = %q", cfg.StateStore.Type)
	}
	if cfg.API.Enabled || cfg.API.Port != 9999 || cfg.API.APIKey != "secret" || !cfg.API.ReadOnly {
		t.Errorf("API = %+v", cfg.API)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.Observability.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	policyPath := filepath.Join(dir, ".snyk")
	if err := os.WriteFile(policyPath, []byte("version: v1.25.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	inputDir := filepath.Join(dir, "reports")
	if err := os.Mkdir(inputDir, 0o755); err != nil {
		t.Fatal(err)
	}

	valid := func() *Config {
		return &Config{
			PolicyPath: policyPath,
			InputDir:   inputDir,
			OutputDir:  filepath.Join(dir, "processed"),
			StateStore: StateStoreConfig{Type: "sqlite", SQLitePath: "ccp.db"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty policy path",
			mutate:  func(c *Config) { c.PolicyPath = "" },
			wantErr: true,
		},
		{
			name:    "missing policy file",
			mutate:  func(c *Config) { c.PolicyPath = filepath.Join(dir, "absent.snyk") },
			wantErr: true,
		},
		{
			name:    "empty input dir",
			mutate:  func(c *Config) { c.InputDir = "" },
			wantErr: true,
		},
		{
			name:    "missing input dir",
			mutate:  func(c *Config) { c.InputDir = filepath.Join(dir, "absent") },
			wantErr: true,
		},
		{
			name:    "empty output dir",
			mutate:  func(c *Config) { c.OutputDir = "" },
			wantErr: true,
		},
		{
			name:    "unknown store type",
			mutate:  func(c *Config) { c.StateStore.Type = "redis" },
			wantErr: true,
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.StateStore.SQLitePath = "" },
			wantErr: true,
		},
		{
			name: "memory store needs no sqlite path",
			mutate: func(c *Config) {
				c.StateStore.Type = "memory"
				c.StateStore.SQLitePath = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Validate() expected error, got nil")
				}
				if !pkgerrors.IsPermanent(err) {
					t.Errorf("Validate() error = %v, want permanent", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	clearEnv(t)

	t.Setenv("API_PORT", "not-a-number")
	if got := getEnvInt("API_PORT", 8080); got != 8080 {
		t.Errorf("getEnvInt with garbage = %d, want default", got)
	}

	for _, truthy := range []string{"true", "1", "yes"} {
		t.Setenv("API_READ_ONLY", truthy)
		if !getEnvBool("API_READ_ONLY", false) {
			t.Errorf("getEnvBool(%q) = false, want true", truthy)
		}
	}
	t.Setenv("API_READ_ONLY", "no")
	if getEnvBool("API_READ_ONLY", true) {
		t.Error("getEnvBool(\"no\") = true, want false")
	}
}
