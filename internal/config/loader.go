package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cfarm/ccp-test/internal/errors"
	"github.com/cfarm/ccp-test/internal/policy"
)

// Load loads configuration from environment variables and extension-key
// defaults carried in the policy document itself.
func Load() (*Config, error) {
	policyPath := getEnv("CCP_POLICY_PATH", ".snyk")

	var workerPollInterval time.Duration
	var reprocessInterval time.Duration
	var workerConcurrency int
	var workerRetryAttempts int
	var workerRetryBackoff time.Duration
	var queueBufferSize int

	// Try to load the policy document for defaults
	if doc, err := policy.Load(policyPath); err == nil {
		if interval, err := doc.WorkerPollInterval(); err == nil {
			workerPollInterval = interval
		}
		if interval, err := doc.ReprocessInterval(); err == nil {
			reprocessInterval = interval
		}
		workerConcurrency = doc.WorkerConcurrency()
		workerRetryAttempts = doc.WorkerRetryAttempts()
		if backoff, err := doc.WorkerRetryBackoff(); err == nil {
			workerRetryBackoff = backoff
		}
		queueBufferSize = doc.QueueBufferSize()
	}

	// Use defaults from the policy file, or fall back to hardcoded defaults
	if workerPollInterval == 0 {
		workerPollInterval = 5 * time.Second
	}
	if reprocessInterval == 0 {
		reprocessInterval = 24 * time.Hour
	}
	if workerConcurrency == 0 {
		workerConcurrency = 3
	}
	if workerRetryAttempts == 0 {
		workerRetryAttempts = 3
	}
	if workerRetryBackoff == 0 {
		workerRetryBackoff = 10 * time.Second
	}
	if queueBufferSize == 0 {
		queueBufferSize = 1000
	}

	cfg := &Config{
		PolicyPath: policyPath,
		InputDir:   getEnv("CCP_INPUT_DIR", "reports"),
		OutputDir:  getEnv("CCP_OUTPUT_DIR", "processed"),
		Queue: QueueConfig{
			BufferSize: queueBufferSize,
		},
		Worker: WorkerConfig{
			PollInterval:  workerPollInterval,
			RetryAttempts: workerRetryAttempts,
			RetryBackoff:  workerRetryBackoff,
			Concurrency:   workerConcurrency,
		},
		StateStore: StateStoreConfig{
			Type:              getEnv("STATE_STORE_TYPE", "sqlite"),
			SQLitePath:        getEnv("SQLITE_PATH", "ccp.db"),
			ReprocessInterval: reprocessInterval,
		},
		API: APIConfig{
			Enabled:  getEnvBool("API_ENABLED", true),
			Port:     getEnvInt("API_PORT", 8080),
			APIKey:   getEnv("CCP_API_KEY", ""),
			ReadOnly: getEnvBool("API_READ_ONLY", false),
		},
		Observability: ObservabilityConfig{
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			MetricsPort:     getEnvInt("METRICS_PORT", 9090),
			HealthCheckPort: getEnvInt("HEALTH_CHECK_PORT", 8081),
		},
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.PolicyPath == "" {
		return errors.NewPermanentf("policy path is required")
	}

	if _, err := os.Stat(c.PolicyPath); os.IsNotExist(err) {
		return errors.NewPermanentf("policy file not found: %s", c.PolicyPath)
	}

	if c.InputDir == "" {
		return errors.NewPermanentf("CCP_INPUT_DIR environment variable is required (directory containing scan reports)")
	}

	if _, err := os.Stat(c.InputDir); os.IsNotExist(err) {
		return errors.NewPermanentf("input directory not found: %s", c.InputDir)
	}

	if c.OutputDir == "" {
		return errors.NewPermanentf("output directory is required")
	}

	if c.StateStore.Type != "sqlite" && c.StateStore.Type != "memory" {
		return errors.NewPermanentf("invalid state store type: %s (must be sqlite or memory)", c.StateStore.Type)
	}

	if c.StateStore.Type == "sqlite" && c.StateStore.SQLitePath == "" {
		return errors.NewPermanentf("sqlite path is required when using sqlite state store")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
