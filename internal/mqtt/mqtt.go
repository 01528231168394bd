// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/antenna-control/internal/pattern"
)

// TopicPattern is the MQTT topic for switch pattern changes.
const TopicPattern = "antenna/control/switch_pattern"

// TopicMode carries the current DF mode (retained).
const TopicMode = "antenna/control/df_mode"

// TopicModeSet is subscribed for DF mode commands.
const TopicModeSet = "antenna/control/df_mode/set"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "antenna/control/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishPattern sends a switch pattern change to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishPattern(change pattern.Change) error

	// PublishMode sends the current DF mode to the broker.
	PublishMode(event ModeEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ModeEvent reports the DF mode flag.
type ModeEvent struct {
	Timestamp time.Time
	Enabled   bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the switch pattern message.
type Payload struct {
	SwitchPattern PatternPayload `json:"switch_pattern"`
}

// PatternPayload contains the switch pattern details.
type PatternPayload struct {
	Timestamp string `json:"timestamp"`
	Value     uint8  `json:"value"`
	Antenna   string `json:"antenna,omitempty"`
}

// FormatPayload creates the JSON payload for a switch pattern change.
func FormatPayload(change pattern.Change) ([]byte, error) {
	payload := Payload{
		SwitchPattern: PatternPayload{
			Timestamp: change.Timestamp.UTC().Format(time.RFC3339),
			Value:     uint8(change.Code),
			Antenna:   change.Code.Pair(),
		},
	}
	return json.Marshal(payload)
}

// ModePayload represents the DF mode message.
type ModePayload struct {
	DFMode ModeInner `json:"df_mode"`
}

// ModeInner contains the DF mode details.
type ModeInner struct {
	Timestamp string `json:"timestamp"`
	Enabled   bool   `json:"enabled"`
}

// FormatModePayload creates the JSON payload for a DF mode event.
func FormatModePayload(event ModeEvent) ([]byte, error) {
	return json.Marshal(ModePayload{
		DFMode: ModeInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Enabled:   event.Enabled,
		},
	})
}

// ParseModeCommand decodes a DF mode command: true/false, 1/0, on/off
// (case-insensitive) or a JSON object {"enabled": bool}.
func ParseModeCommand(payload []byte) (bool, error) {
	s := strings.TrimSpace(string(payload))
	switch strings.ToLower(s) {
	case "true", "1", "on":
		return true, nil
	case "false", "0", "off":
		return false, nil
	}

	var cmd struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.Unmarshal([]byte(s), &cmd); err != nil || cmd.Enabled == nil {
		return false, fmt.Errorf("invalid df_mode command %q", s)
	}
	return *cmd.Enabled, nil
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
