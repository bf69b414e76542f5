package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestObservabilityServerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	logger := NewLoggerTo(io.Discard, "error")
	healthChecker := NewHealthChecker(logger)

	healthChecker.RegisterPipelineComponents()
	for _, name := range PipelineComponents {
		healthChecker.UpdateComponentHealth(name, StatusHealthy, "")
	}
	metricsPort := 19090
	healthPort := 18081

	server := NewServer(metricsPort, healthPort, logger, healthChecker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = server.Start(ctx)
	}()

	// Wait for server to start
	time.Sleep(100 * time.Millisecond)

	t.Run("metrics endpoint", func(t *testing.T) {
		resp, err := http.Get(fmt.Sprintf("http://localhost:%d/metrics", metricsPort))
		if err != nil {
			t.Fatalf("failed to get metrics: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("failed to read response: %v", err)
		}

		if len(body) == 0 {
			t.Error("expected non-empty metrics response")
		}
	})

	t.Run("health endpoint", func(t *testing.T) {
		resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health", healthPort))
		if err != nil {
			t.Fatalf("failed to get health: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", resp.StatusCode)
		}

		var health HealthStatus
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode health response: %v", err)
		}
		if health.Service != "ccp-test" {
			t.Errorf("expected service ccp-test, got %q", health.Service)
		}
		if len(health.Components) != len(PipelineComponents) {
			t.Errorf("expected %d components, got %d", len(PipelineComponents), len(health.Components))
		}
	})

	t.Run("ready endpoint", func(t *testing.T) {
		resp, err := http.Get(fmt.Sprintf("http://localhost:%d/ready", healthPort))
		if err != nil {
			t.Fatalf("failed to get ready: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", resp.StatusCode)
		}
	})

	// An unhealthy pipeline stage flips readiness to 503
	t.Run("ready flips on unhealthy component", func(t *testing.T) {
		healthChecker.UpdateComponentHealth("statestore", StatusUnhealthy, "database locked")
		defer healthChecker.UpdateComponentHealth("statestore", StatusHealthy, "")

		resp, err := http.Get(fmt.Sprintf("http://localhost:%d/ready", healthPort))
		if err != nil {
			t.Fatalf("failed to get ready: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", resp.StatusCode)
		}
	})

	cancel()
	time.Sleep(100 * time.Millisecond)
}
