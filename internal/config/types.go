package config

import (
	"time"
)

// Config represents the complete application configuration
type Config struct {
	PolicyPath    string
	InputDir      string
	OutputDir     string
	Queue         QueueConfig
	Worker        WorkerConfig
	StateStore    StateStoreConfig
	API           APIConfig
	Observability ObservabilityConfig
}

// QueueConfig configures the in-memory task queue
type QueueConfig struct {
	BufferSize int
}

// WorkerConfig configures the worker behavior
type WorkerConfig struct {
	PollInterval  time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
	Concurrency   int
}

// StateStoreConfig configures the state store
type StateStoreConfig struct {
	Type              string
	SQLitePath        string
	ReprocessInterval time.Duration
}

// APIConfig configures the HTTP API server
type APIConfig struct {
	Enabled  bool
	Port     int
	APIKey   string
	ReadOnly bool
}

// ObservabilityConfig configures logging and metrics
type ObservabilityConfig struct {
	LogLevel        string
	MetricsPort     int
	HealthCheckPort int
}
