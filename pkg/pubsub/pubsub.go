// Package pubsub fans simulation lifecycle events out to subscribers,
// with optional per-topic replay buffers for late joiners.
package pubsub

import (
	"context"
	"encoding/json"
)

// TopicSimulationStatus carries run lifecycle events.
const TopicSimulationStatus = "simulation_status"

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic (e.g., "simulation_status")
	Type    string          `json:"type"`    // Event type (e.g., "running", "completed", "failed")
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// SimulationStatus reports where a run stands
type SimulationStatus struct {
	State     string      `json:"state"`   // idle, running, completed, failed
	Message   string      `json:"message"` // Human-readable status message
	RequestID string      `json:"requestId,omitempty"`
	Summary   *RunSummary `json:"summary,omitempty"` // Set on completed events
}

// RunSummary carries the headline numbers of a finished run
type RunSummary struct {
	Iterations int  `json:"iterations"`
	Converged  bool `json:"converged"`
	Nodes      int  `json:"nodes"`
	Comparison bool `json:"comparison"` // true for baseline/scenario runs
}
