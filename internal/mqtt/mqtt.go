// Package mqtt publishes charge limiter events with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/charge-limiter/internal/logic"
)

// Topic is the MQTT topic for charge limit events.
const Topic = "power/charge-limiter/events"

// TopicSystem is the MQTT topic for daemon lifecycle events.
const TopicSystem = "power/charge-limiter/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a controller event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// IsConnected reports whether the broker connection is up.
	IsConnected() bool

	// Close disconnects from the broker.
	Close() error
}

// SystemEvent represents a lifecycle event (startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM" (shutdown only)
	RawPayload []byte // pre-formatted JSON; returned as is by FormatSystemPayload
	Retained   bool
}

// Payload is the MQTT message body for a controller event.
type Payload struct {
	Charger ChargerPayload `json:"charger"`
}

// ChargerPayload contains the event details.
type ChargerPayload struct {
	Timestamp   string `json:"timestamp"`
	Event       string `json:"event"`
	SessionID   string `json:"session_id,omitempty"`
	Profile     string `json:"profile,omitempty"`
	TempMilliC  int    `json:"temp_millic,omitempty"`
	TempUnknown bool   `json:"temp_unknown,omitempty"`
	LimitMA     *int   `json:"limit_ma,omitempty"`
	PreviousMA  *int   `json:"previous_ma,omitempty"`
	Bracket     *int   `json:"bracket,omitempty"`
}

// FormatPayload creates the JSON payload for a controller event. Limit
// fields are only present on LIMIT_CHANGED and LIMIT_APPLIED.
func FormatPayload(event logic.Event) ([]byte, error) {
	p := ChargerPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
		SessionID: event.SessionID,
		Profile:   string(event.Charger),
	}
	if event.Type == logic.EventLimitChanged || event.Type == logic.EventLimitApplied {
		limit, prev, bracket := event.LimitMA, event.PreviousMA, event.Bracket
		p.LimitMA = &limit
		p.PreviousMA = &prev
		p.Bracket = &bracket
		p.TempMilliC = event.TempMilliC
		p.TempUnknown = event.TempUnknown
	}
	return json.Marshal(Payload{Charger: p})
}

// SystemPayload is the body for simple lifecycle events (LWT, RECONNECTED)
// that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the lifecycle event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a lifecycle event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// NopPublisher discards everything. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(logic.Event) error       { return nil }
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }
func (NopPublisher) IsConnected() bool               { return false }
func (NopPublisher) Close() error                    { return nil }
