// Package mqtt publishes relay state and telemetry to the supervising
// client and receives its commands, with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/piface-relay/internal/logic"
	"github.com/sweeney/piface-relay/internal/telemetry"
)

var (
	// ErrPublishFailed is returned when the broker did not accept a message.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when the command subscription failed.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "piface-relay"

// Topics builds topic names under a prefix.
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultPrefix
	}
	return t.Prefix
}

// Relay is the retained state topic for relay index (1-based).
func (t Topics) Relay(index int) string { return fmt.Sprintf("%s/relay/%d", t.prefix(), index) }

// Switch is the destructive switch group state topic.
func (t Topics) Switch() string { return t.prefix() + "/switch" }

// Time is the wall-clock topic.
func (t Topics) Time() string { return t.prefix() + "/time" }

// SystemInfo is the system telemetry topic.
func (t Topics) SystemInfo() string { return t.prefix() + "/sysinfo" }

// NetworkInfo is the network telemetry topic.
func (t Topics) NetworkInfo() string { return t.prefix() + "/netinfo" }

// Message is the topic for human-readable client messages.
func (t Topics) Message() string { return t.prefix() + "/message" }

// System is the retained lifecycle topic (STARTUP, SHUTDOWN, OFFLINE).
func (t Topics) System() string { return t.prefix() + "/system" }

// Command is the topic the daemon subscribes to for client commands.
func (t Topics) Command() string { return t.prefix() + "/cmd" }

// Publisher pushes device properties to the client.
type Publisher interface {
	// PublishRelay sends the state of one relay (retained).
	PublishRelay(index int, state logic.State) error

	// PublishSwitchGroup sends the destructive switch group state.
	PublishSwitchGroup(group SwitchGroup) error

	// PublishTime sends the wall-clock fields.
	PublishTime(info telemetry.TimeInfo) error

	// PublishSystemInfo sends the system telemetry.
	PublishSystemInfo(info telemetry.SystemInfo) error

	// PublishNetworkInfo sends the network telemetry.
	PublishNetworkInfo(info telemetry.NetworkInfo) error

	// PublishMessage sends a human-readable message.
	PublishMessage(text string, at time.Time) error

	// PublishSystem sends a lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// CommandSource delivers raw command payloads from the client.
type CommandSource interface {
	// SubscribeCommands registers handler for command payloads. The
	// handler runs on the transport's goroutine.
	SubscribeCommands(handler func(payload []byte)) error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SwitchGroup is the visual state of the destructive switch group.
type SwitchGroup struct {
	State logic.GroupState
	Armed logic.Action // "" when idle
}

// SystemEvent represents a lifecycle event (startup, shutdown, offline).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "OFFLINE"
	Reason     string // e.g., "SIGTERM", "LWT"
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// RelayPayload is the JSON body of a relay state message.
type RelayPayload struct {
	Relay int    `json:"relay"`
	State string `json:"state"`
}

// SwitchPayload is the JSON body of a switch group message.
type SwitchPayload struct {
	State string `json:"state"`
	Armed string `json:"armed,omitempty"`
}

// TimePayload is the JSON body of a time message.
type TimePayload struct {
	LocalTime string `json:"local_time"`
	UTCOffset string `json:"utc_offset"`
}

// SystemInfoPayload is the JSON body of a system info message.
type SystemInfoPayload struct {
	Hardware    string `json:"hardware"`
	Uptime      string `json:"uptime"`
	Load        string `json:"load"`
	FreeMemory  string `json:"free_memory"`
	Temperature string `json:"temperature"`
}

// NetworkInfoPayload is the JSON body of a network info message.
type NetworkInfoPayload struct {
	Hostname string `json:"hostname"`
	LocalIP  string `json:"local_ip"`
	PublicIP string `json:"public_ip"`
}

// MessagePayload is the JSON body of a client message.
type MessagePayload struct {
	Timestamp string `json:"timestamp"`
	Device    string `json:"device"`
	Message   string `json:"message"`
}

// SystemPayload is the JSON body of a lifecycle event without a snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatRelay creates the JSON payload for a relay state.
func FormatRelay(index int, state logic.State) ([]byte, error) {
	return json.Marshal(RelayPayload{Relay: index, State: string(state)})
}

// FormatSwitchGroup creates the JSON payload for the switch group.
func FormatSwitchGroup(group SwitchGroup) ([]byte, error) {
	return json.Marshal(SwitchPayload{State: string(group.State), Armed: string(group.Armed)})
}

// FormatTime creates the JSON payload for the wall-clock fields.
func FormatTime(info telemetry.TimeInfo) ([]byte, error) {
	return json.Marshal(TimePayload{LocalTime: info.LocalTime, UTCOffset: info.UTCOffset})
}

// FormatSystemInfo creates the JSON payload for system telemetry.
func FormatSystemInfo(info telemetry.SystemInfo) ([]byte, error) {
	return json.Marshal(SystemInfoPayload{
		Hardware:    info.Hardware,
		Uptime:      info.Uptime,
		Load:        info.Load,
		FreeMemory:  info.FreeMemory,
		Temperature: info.Temperature,
	})
}

// FormatNetworkInfo creates the JSON payload for network telemetry.
func FormatNetworkInfo(info telemetry.NetworkInfo) ([]byte, error) {
	return json.Marshal(NetworkInfoPayload{
		Hostname: info.Hostname,
		LocalIP:  info.LocalIP,
		PublicIP: info.PublicIP,
	})
}

// FormatMessage creates the JSON payload for a client message.
func FormatMessage(device, text string, at time.Time) ([]byte, error) {
	return json.Marshal(MessagePayload{
		Timestamp: at.UTC().Format(time.RFC3339),
		Device:    device,
		Message:   text,
	})
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
