package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	DeviceKind    string       `json:"device_kind"`
	DeviceModel   string       `json:"device_model"`
	DFMode        bool         `json:"df_mode"`
	Loop          string       `json:"loop"`
	SwitchPattern PatternJSON  `json:"switch_pattern"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// PatternJSON is the current switch pattern.
type PatternJSON struct {
	Value   uint8  `json:"value"`
	Antenna string `json:"antenna,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of monitor counters.
type CountsJSON struct {
	Samples    int `json:"samples"`
	Changes    int `json:"changes"`
	ReadErrors int `json:"read_errors"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs        int64    `json:"poll_ms"`
	StopTimeoutMs int64    `json:"stop_timeout_ms"`
	HeartbeatMs   int64    `json:"heartbeat_ms"`
	Broker        string   `json:"broker"`
	HTTPAddr      string   `json:"http_addr"`
	Chip          string   `json:"chip"`
	Pins          PinsJSON `json:"pins"`
}

// PinsJSON names each configured line offset by role.
type PinsJSON struct {
	Mode     int `json:"mode"`
	Pattern0 int `json:"pattern0"`
	Pattern1 int `json:"pattern1"`
	Pattern2 int `json:"pattern2"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		DeviceKind:  DeviceKind,
		DeviceModel: DeviceModel,
		DFMode:      snap.DFMode,
		Loop:        snap.Loop,
		SwitchPattern: PatternJSON{
			Value:   uint8(snap.Pattern),
			Antenna: snap.Pattern.Pair(),
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Samples:    snap.Counts.Samples,
			Changes:    snap.Counts.Changes,
			ReadErrors: snap.Counts.ReadErrors,
		},
		Config: ConfigJSON{
			PollMs:        snap.Config.PollMs,
			StopTimeoutMs: snap.Config.StopTimeoutMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
			Chip:          snap.Config.Chip,
			Pins: PinsJSON{
				Mode:     snap.Config.Pins[0],
				Pattern0: snap.Config.Pins[1],
				Pattern1: snap.Config.Pins[2],
				Pattern2: snap.Config.Pins[3],
			},
		},
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// Build returns the status envelope for the web endpoint.
func Build(snap Snapshot) StatusJSON {
	return StatusJSON{Status: buildInner(snap)}
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
