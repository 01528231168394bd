// Package status provides a thread-safe status tracker for the antenna-control daemon.
// It is read by HTTP handlers and by the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/antenna-control/internal/pattern"
)

// Device identification reported in status payloads.
const (
	DeviceKind  = "Pi GPIO Control"
	DeviceModel = "raspberry pi"
)

// NetworkInfo contains network state.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs        int64
	StopTimeoutMs int64
	HeartbeatMs   int64
	Broker        string
	HTTPAddr      string
	Chip          string
	Pins          [4]int // mode, pattern0, pattern1, pattern2
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	DFMode        bool
	Loop          string
	Pattern       pattern.Code
	Counts        pattern.Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Loop:      "STOPPED",
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update sets the mode, loop state, current pattern and counters.
// Called from runLoop on every tick.
func (t *Tracker) Update(dfMode bool, loop string, code pattern.Code, counts pattern.Counts) {
	t.mu.Lock()
	t.snap.DFMode = dfMode
	t.snap.Loop = loop
	t.snap.Pattern = code
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
