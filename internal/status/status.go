// Package status provides a thread-safe status tracker for the prox-fusion
// daemon. It is designed to be read by HTTP handlers and MQTT snapshot
// payloads.
package status

import (
	"sync"
	"time"
)

// State is the displayed fused proximity state.
type State string

const (
	StateNear State = "NEAR"
	StateFar  State = "FAR"
)

// EventCounts tracks the number of fused transitions since startup.
type EventCounts struct {
	Near int
	Far  int
}

// NetworkInfo contains network state as reported by pi-helper.
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
	SampleMs     int64
	HeartbeatMs  int64
	Broker       string
	HTTPAddr     string
	PrimaryPin   int
	SecondaryPin int // -1 when no secondary sensor is configured
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Near          State // "" until the first fused event
	Registered    bool
	SecondarySafe bool
	Listeners     int
	Counts        EventCounts
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
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the fusion state fields. Called from the daemon listener after
// every fused event and from the heartbeat path.
func (t *Tracker) Update(near State, registered, secondarySafe bool, listeners int) {
	t.mu.Lock()
	t.snap.Near = near
	t.snap.Registered = registered
	t.snap.SecondarySafe = secondarySafe
	t.snap.Listeners = listeners
	t.mu.Unlock()
}

// RecordEvent increments the transition counter for the given polarity.
func (t *Tracker) RecordEvent(near bool) {
	t.mu.Lock()
	if near {
		t.snap.Counts.Near++
	} else {
		t.snap.Counts.Far++
	}
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

// Snapshot returns a copy of the current state with Now set.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	snap := t.snap
	t.mu.RUnlock()
	snap.Now = time.Now()
	return snap
}
