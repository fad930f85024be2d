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
	Device        string       `json:"device"`
	Connected     bool         `json:"connected"`
	Relays        []RelayJSON  `json:"relays"`
	Switch        SwitchJSON   `json:"switch"`
	Counter       int          `json:"counter"`
	LocalTime     string       `json:"local_time,omitempty"`
	UTCOffset     string       `json:"utc_offset,omitempty"`
	LastMessage   string       `json:"last_message,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	System        *SystemJSON  `json:"system,omitempty"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// RelayJSON is the state of one relay.
type RelayJSON struct {
	Relay int    `json:"relay"`
	State string `json:"state"`
}

// SwitchJSON is the destructive switch group state.
type SwitchJSON struct {
	State string `json:"state"`
	Armed string `json:"armed,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// SystemJSON is the JSON representation of system telemetry.
type SystemJSON struct {
	Hardware    string `json:"hardware"`
	Uptime      string `json:"uptime"`
	Load        string `json:"load"`
	FreeMemory  string `json:"free_memory"`
	Temperature string `json:"temperature"`
}

// NetworkJSON is the JSON representation of network telemetry.
type NetworkJSON struct {
	Hostname string `json:"hostname"`
	LocalIP  string `json:"local_ip"`
	PublicIP string `json:"public_ip"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Bus          string `json:"bus"`
	TickMs       int64  `json:"tick_ms"`
	ArmTimeoutMs int64  `json:"arm_timeout_ms"`
	Broker       string `json:"broker"`
	TopicPrefix  string `json:"topic_prefix"`
	HTTPAddr     string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	relays := make([]RelayJSON, len(snap.Relays))
	for i, s := range snap.Relays {
		state := string(s)
		if state == "" {
			state = "UNKNOWN"
		}
		relays[i] = RelayJSON{Relay: i + 1, State: state}
	}

	inner := StatusInner{
		Device:        snap.Config.Device,
		Connected:     snap.Connected,
		Relays:        relays,
		Switch:        SwitchJSON{State: string(snap.Group), Armed: string(snap.Armed)},
		Counter:       snap.Counter,
		LocalTime:     snap.Time.LocalTime,
		UTCOffset:     snap.Time.UTCOffset,
		LastMessage:   snap.LastMessage,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			Bus:          snap.Config.Bus,
			TickMs:       snap.Config.TickMs,
			ArmTimeoutMs: snap.Config.ArmTimeoutMs,
			Broker:       snap.Config.Broker,
			TopicPrefix:  snap.Config.TopicPrefix,
			HTTPAddr:     snap.Config.HTTPAddr,
		},
	}
	if snap.System != nil {
		inner.System = &SystemJSON{
			Hardware:    snap.System.Hardware,
			Uptime:      snap.System.Uptime,
			Load:        snap.System.Load,
			FreeMemory:  snap.System.FreeMemory,
			Temperature: snap.System.Temperature,
		}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Hostname: snap.Network.Hostname,
			LocalIP:  snap.Network.LocalIP,
			PublicIP: snap.Network.PublicIP,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
