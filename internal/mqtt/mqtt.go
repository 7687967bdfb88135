// Package mqtt bridges the engine to an MQTT broker: state updates and
// lifecycle events go out, appliance toggle commands come in.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/energy-dashboard/internal/engine"
)

// TopicPrefix is the root of every topic the service uses.
const TopicPrefix = "energy/home/dashboard"

// Topic is the MQTT topic for real-time state updates.
const Topic = TopicPrefix + "/realtime"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = TopicPrefix + "/system"

// TopicToggle is the subscription filter for toggle commands. The single
// level wildcard is the appliance id.
const TopicToggle = TopicPrefix + "/appliances/+/toggle"

// Publisher publishes engine output to MQTT.
type Publisher interface {
	// PublishUpdate sends a state update to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishUpdate(u engine.Update) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Toggler is the engine operation invoked by toggle commands.
type Toggler interface {
	ToggleAppliance(id int) (engine.ToggleResult, error)
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// FormatPayload creates the JSON payload for a state update.
func FormatPayload(u engine.Update) ([]byte, error) {
	return json.Marshal(u)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
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

// ParseToggleTopic extracts the appliance id from a toggle command topic.
func ParseToggleTopic(topic string) (int, error) {
	rest, ok := strings.CutPrefix(topic, TopicPrefix+"/appliances/")
	if !ok {
		return 0, fmt.Errorf("topic %q: not a toggle command", topic)
	}
	idStr, ok := strings.CutSuffix(rest, "/toggle")
	if !ok || idStr == "" || strings.Contains(idStr, "/") {
		return 0, fmt.Errorf("topic %q: not a toggle command", topic)
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, fmt.Errorf("topic %q: bad appliance id: %w", topic, err)
	}
	return id, nil
}
