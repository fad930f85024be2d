// Package status provides a thread-safe status tracker for the relay daemon.
// It is written by the device loop and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/piface-relay/internal/logic"
	"github.com/sweeney/piface-relay/internal/telemetry"
)

// RelayCount mirrors relay.Count without importing the hardware layer.
const RelayCount = 4

// Config contains daemon configuration for display.
type Config struct {
	Device       string
	Bus          string
	TickMs       int64
	ArmTimeoutMs int64
	Broker       string
	TopicPrefix  string
	HTTPAddr     string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Connected     bool
	Relays        [RelayCount]logic.State // "" until first read
	Group         logic.GroupState
	Armed         logic.Action
	Counter       int
	Time          telemetry.TimeInfo
	System        *telemetry.SystemInfo
	Network       *telemetry.NetworkInfo
	LastMessage   string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
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
			Group:     logic.GroupIdle,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetConnected records whether the board is connected. Disconnecting
// forgets the relay states since they can no longer be read.
func (t *Tracker) SetConnected(connected bool) {
	t.mu.Lock()
	t.snap.Connected = connected
	if !connected {
		t.snap.Relays = [RelayCount]logic.State{}
	}
	t.mu.Unlock()
}

// SetRelays records all relay states at once.
func (t *Tracker) SetRelays(states [RelayCount]bool) {
	t.mu.Lock()
	for i, on := range states {
		t.snap.Relays[i] = logic.StateOf(on)
	}
	t.mu.Unlock()
}

// SetRelay records one relay state. index is 1-based; out of range is ignored.
func (t *Tracker) SetRelay(index int, on bool) {
	if index < 1 || index > RelayCount {
		return
	}
	t.mu.Lock()
	t.snap.Relays[index-1] = logic.StateOf(on)
	t.mu.Unlock()
}

// SetGroup records the switch group state and the armed action.
func (t *Tracker) SetGroup(group logic.GroupState, armed logic.Action) {
	t.mu.Lock()
	t.snap.Group = group
	t.snap.Armed = armed
	t.mu.Unlock()
}

// SetTick records the cadence counter and wall-clock fields.
func (t *Tracker) SetTick(counter int, now telemetry.TimeInfo) {
	t.mu.Lock()
	t.snap.Counter = counter
	t.snap.Time = now
	t.mu.Unlock()
}

// SetSystem records the last system telemetry.
func (t *Tracker) SetSystem(info telemetry.SystemInfo) {
	t.mu.Lock()
	t.snap.System = &info
	t.mu.Unlock()
}

// SetNetwork records the last network telemetry.
func (t *Tracker) SetNetwork(info telemetry.NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = &info
	t.mu.Unlock()
}

// SetMessage records the last client message.
func (t *Tracker) SetMessage(text string) {
	t.mu.Lock()
	t.snap.LastMessage = text
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	if s.System != nil {
		sys := *s.System
		s.System = &sys
	}
	if s.Network != nil {
		net := *s.Network
		s.Network = &net
	}
	s.Now = time.Now()
	return s
}
