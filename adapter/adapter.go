// Package adapter defines the results-delivery boundary for the sweep
// orchestrator.
//
// Adapters publish scenario completion notifications to downstream systems,
// so long-running sweeps can feed dashboards or queues without anyone
// tailing the CSV. The orchestrator owns adapter lifecycle; users provide
// configuration only.
package adapter

import "context"

// ScenarioCompletedEvent is the payload published when one sweep scenario
// finishes.
type ScenarioCompletedEvent struct {
	EventType      string  `json:"event_type"` // always "scenario_completed"
	Mode           string  `json:"mode"`
	Operation      string  `json:"operation"`
	VolumeMB       int     `json:"volume_mb"`
	ServerWorkers  int     `json:"server_workers"`
	ClientWorkers  int     `json:"client_workers"`
	AvgSeconds     float64 `json:"avg_seconds"`
	ThroughputBps  float64 `json:"throughput_bps"`
	Success        int     `json:"success"`
	Fail           int     `json:"fail"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Timestamp      string  `json:"timestamp"` // ISO 8601
}

// EventType is the discriminant stamped on every published event.
const EventType = "scenario_completed"

// Adapter publishes scenario completion events to a downstream system.
type Adapter interface {
	// Publish sends a scenario completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *ScenarioCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
