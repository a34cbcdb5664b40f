// Package mqtt publishes controller events and lifecycle status over
// MQTT, with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/cover-controller/internal/controller"
)

// Topic is the MQTT topic for controller events.
const Topic = "astro/cover/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "astro/cover/system"

// Publisher is the telemetry sink for the daemon. A failed publish is
// reported to the caller and never stops the control loop.
type Publisher interface {
	Publish(event controller.Event) error
	PublishSystem(event SystemEvent) error
	Close() error
}

// ConnectionStatus is implemented by publishers that know their broker
// link state.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a lifecycle message on TopicSystem.
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // STARTUP, SHUTDOWN, HEARTBEAT, RECONNECTED
	Reason     string // shutdown reason, e.g. SIGTERM
	RawPayload []byte // full status JSON; sent as-is when set
	Retained   bool
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Cover CoverPayload `json:"cover"`
}

// CoverPayload contains the controller event details.
type CoverPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Source    string `json:"source,omitempty"`
	Button    string `json:"button,omitempty"`
	Command   string `json:"command,omitempty"`
	State     string `json:"state,omitempty"`
	From      string `json:"from,omitempty"`
	Error     string `json:"error,omitempty"`
}

// FormatPayload creates the JSON payload for a controller event.
func FormatPayload(event controller.Event) ([]byte, error) {
	payload := Payload{
		Cover: CoverPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Source:    event.Source,
			Button:    event.Button,
			Command:   event.Command,
			State:     event.State,
			From:      event.From,
			Error:     event.Err,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the short form used for the will and RECONNECTED,
// which carry no status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload encodes event, preferring its RawPayload.
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
