package policy

import (
	"fmt"
	"time"
)

// Extension keys the service reads from the policy document itself. The
// external scanner ignores unknown top-level keys, which makes the policy
// file a convenient home for processing defaults.
const (
	extGate              = "x-gate"
	extReprocessInterval = "x-reprocessInterval"
	extWorkerConcurrency = "x-worker-concurrency"
	extWorkerPoll        = "x-worker-poll-interval"
	extRetryAttempts     = "x-worker-retry-attempts"
	extRetryBackoff      = "x-worker-retry-backoff"
	extQueueBufferSize   = "x-queue-buffer-size"
)

// GateSettings is a CEL-based gate configuration embedded in the policy file.
type GateSettings struct {
	Expression     string `yaml:"expression"`
	FailureMessage string `yaml:"failureMessage,omitempty"`
}

// GateSettings returns the embedded gate configuration, if any.
func (d *Document) GateSettings() (*GateSettings, bool) {
	extra, ok := d.extras[extGate]
	if !ok || extra.valueNode == nil {
		return nil, false
	}
	var settings GateSettings
	if err := extra.valueNode.Decode(&settings); err != nil {
		return nil, false
	}
	return &settings, true
}

// ReprocessInterval returns how often already-processed reports should be
// re-filtered; re-filtering matters because suppressions expire between runs.
// Falls back to 24h when unset or unparseable.
func (d *Document) ReprocessInterval() (time.Duration, error) {
	raw, ok := d.extraString(extReprocessInterval)
	if !ok {
		return 24 * time.Hour, nil
	}
	return parseInterval(raw)
}

// WorkerPollInterval returns the watcher poll interval, defaulting to zero
// when unset so the caller can apply its own fallback.
func (d *Document) WorkerPollInterval() (time.Duration, error) {
	raw, ok := d.extraString(extWorkerPoll)
	if !ok {
		return 0, nil
	}
	return parseInterval(raw)
}

// WorkerRetryBackoff returns the retry backoff base, zero when unset.
func (d *Document) WorkerRetryBackoff() (time.Duration, error) {
	raw, ok := d.extraString(extRetryBackoff)
	if !ok {
		return 0, nil
	}
	return parseInterval(raw)
}

// WorkerConcurrency returns the worker concurrency, zero when unset.
func (d *Document) WorkerConcurrency() int {
	return d.extraInt(extWorkerConcurrency)
}

// WorkerRetryAttempts returns the retry attempt limit, zero when unset.
func (d *Document) WorkerRetryAttempts() int {
	return d.extraInt(extRetryAttempts)
}

// QueueBufferSize returns the task queue buffer size, zero when unset.
func (d *Document) QueueBufferSize() int {
	return d.extraInt(extQueueBufferSize)
}

func (d *Document) extraString(key string) (string, bool) {
	extra, ok := d.extras[key]
	if !ok || extra.valueNode == nil {
		return "", false
	}
	var s string
	if err := extra.valueNode.Decode(&s); err != nil {
		return "", false
	}
	return s, true
}

func (d *Document) extraInt(key string) int {
	extra, ok := d.extras[key]
	if !ok || extra.valueNode == nil {
		return 0
	}
	var n int
	if err := extra.valueNode.Decode(&n); err != nil {
		return 0
	}
	return n
}

// parseInterval parses interval notation (e.g., "30s", "2m", "3h", "7d")
// into a time.Duration.
func parseInterval(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("invalid interval format: %s", interval)
	}

	unit := interval[len(interval)-1]
	valueStr := interval[:len(interval)-1]

	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return 0, fmt.Errorf("invalid interval value: %s", interval)
	}

	if value <= 0 {
		return 0, fmt.Errorf("interval value must be positive: %s", interval)
	}

	switch unit {
	case 's':
		return time.Duration(value) * time.Second, nil
	case 'm':
		return time.Duration(value) * time.Minute, nil
	case 'h':
		return time.Duration(value) * time.Hour, nil
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid interval unit (must be s, m, h, or d): %s", interval)
	}
}
