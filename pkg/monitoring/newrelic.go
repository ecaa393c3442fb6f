package monitoring

import (
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// Config holds New Relic configuration
type Config struct {
	LicenseKey string
	AppName    string
	Enabled    bool
	LogLevel   string
}

// NewRelicApp wraps the New Relic application
type NewRelicApp struct {
	*newrelic.Application
	enabled bool
}

// New creates a new New Relic application
func New(cfg Config) (*NewRelicApp, error) {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		// Return disabled app
		return &NewRelicApp{nil, false}, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigAppLogForwardingEnabled(true),
		newrelic.ConfigDistributedTracerEnabled(true),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create New Relic application: %w", err)
	}

	return &NewRelicApp{app, true}, nil
}

// StartTransaction starts a new transaction
func (nr *NewRelicApp) StartTransaction(name string) *newrelic.Transaction {
	if !nr.enabled || nr.Application == nil {
		return nil
	}
	return nr.Application.StartTransaction(name)
}

// RecordCustomEvent records a custom event
func (nr *NewRelicApp) RecordCustomEvent(eventType string, params map[string]interface{}) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.RecordCustomEvent(eventType, params)
}

// RecordCustomMetric records a custom metric
func (nr *NewRelicApp) RecordCustomMetric(name string, value float64) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.RecordCustomMetric(name, value)
}

// Shutdown gracefully shuts down the New Relic application
func (nr *NewRelicApp) Shutdown(timeout time.Duration) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.Shutdown(timeout)
}

// Custom metric helpers

// RecordRideRequested records a rider entering a queue
func (nr *NewRelicApp) RecordRideRequested(beeperID string, groupSize int) {
	nr.RecordCustomEvent("RideRequested", map[string]interface{}{
		"beeper_id":  beeperID,
		"group_size": groupSize,
		"timestamp":  time.Now().Unix(),
	})
}

// RecordCommandApplied records a queue transition
func (nr *NewRelicApp) RecordCommandApplied(command string, latencyMs float64) {
	nr.RecordCustomEvent("QueueCommandApplied", map[string]interface{}{
		"command":    command,
		"latency_ms": latencyMs,
	})
}

// RecordQueueDepth records a beeper's live queue depth
func (nr *NewRelicApp) RecordQueueDepth(depth int) {
	nr.RecordCustomMetric("custom/queue/depth", float64(depth))
}

// RecordCounterDrift records drift found by the reconciliation pass
func (nr *NewRelicApp) RecordCounterDrift(beeperID string, drift int) {
	nr.RecordCustomEvent("QueueSizeDrift", map[string]interface{}{
		"beeper_id": beeperID,
		"drift":     drift,
	})
}

// IsEnabled returns whether New Relic is enabled
func (nr *NewRelicApp) IsEnabled() bool {
	return nr.enabled
}
