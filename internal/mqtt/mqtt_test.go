package mqtt

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/piface-relay/internal/logic"
	"github.com/sweeney/piface-relay/internal/telemetry"
)

func TestTopics(t *testing.T) {
	topics := Topics{Prefix: "lab/pi"}
	tests := []struct {
		got, want string
	}{
		{topics.Relay(1), "lab/pi/relay/1"},
		{topics.Relay(4), "lab/pi/relay/4"},
		{topics.Switch(), "lab/pi/switch"},
		{topics.Time(), "lab/pi/time"},
		{topics.SystemInfo(), "lab/pi/sysinfo"},
		{topics.NetworkInfo(), "lab/pi/netinfo"},
		{topics.Message(), "lab/pi/message"},
		{topics.System(), "lab/pi/system"},
		{topics.Command(), "lab/pi/cmd"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestTopicsDefaultPrefix(t *testing.T) {
	var topics Topics
	if got := topics.System(); got != "piface-relay/system" {
		t.Errorf("System() = %q", got)
	}
}

func TestFormatRelayExactJSON(t *testing.T) {
	payload, err := FormatRelay(2, logic.StateOn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := `{"relay":2,"state":"ON"}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSwitchGroup(t *testing.T) {
	tests := []struct {
		group SwitchGroup
		want  string
	}{
		{SwitchGroup{State: logic.GroupIdle}, `{"state":"IDLE"}`},
		{SwitchGroup{State: logic.GroupAlert, Armed: logic.ActionShutdown}, `{"state":"ALERT","armed":"SHUTDOWN"}`},
	}
	for _, tt := range tests {
		payload, err := FormatSwitchGroup(tt.group)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(payload) != tt.want {
			t.Errorf("got %s, want %s", payload, tt.want)
		}
	}
}

func TestFormatTimeExactJSON(t *testing.T) {
	payload, err := FormatTime(telemetry.TimeInfo{LocalTime: "2026-02-03T10:30:45", UTCOffset: "1.00"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := `{"local_time":"2026-02-03T10:30:45","utc_offset":"1.00"}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemInfoExactJSON(t *testing.T) {
	payload, err := FormatSystemInfo(telemetry.SystemInfo{
		Hardware:    "BCM2835",
		Uptime:      "1 day, 02:03",
		Load:        "0.10 0.20 0.30",
		FreeMemory:  "512000 kB",
		Temperature: "48.3'C",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := `{"hardware":"BCM2835","uptime":"1 day, 02:03","load":"0.10 0.20 0.30","free_memory":"512000 kB","temperature":"48.3'C"}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatNetworkInfoExactJSON(t *testing.T) {
	payload, err := FormatNetworkInfo(telemetry.NetworkInfo{
		Hostname: "relaypi",
		LocalIP:  "192.168.1.20",
		PublicIP: telemetry.Unavailable,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := `{"hostname":"relaypi","local_ip":"192.168.1.20","public_ip":"unavailable"}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatMessageExactJSON(t *testing.T) {
	at := time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC)
	payload, err := FormatMessage("PiFace Relay", "PiFace Relay Relay 2: ON", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := `{"timestamp":"2026-02-03T10:30:45Z","device":"PiFace Relay","message":"PiFace Relay Relay 2: ON"}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "STARTUP",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"STARTUP"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"snapshot":true}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("got %s, want raw payload", payload)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    logic.Command
	}{
		{"toggle", `{"command":"toggle","relay":2}`, logic.Command{Kind: logic.CommandToggle, Relay: 2}},
		{"activate", `{"command":"activate","action":"SHUTDOWN"}`, logic.Command{Kind: logic.CommandActivate, Action: logic.ActionShutdown}},
		{"activate lower case", `{"command":"Activate","action":"all_off"}`, logic.Command{Kind: logic.CommandActivate, Action: logic.ActionAllOff}},
		{"connect", `{"command":"connect"}`, logic.Command{Kind: logic.CommandConnect}},
		{"disconnect", `{"command":" disconnect "}`, logic.Command{Kind: logic.CommandDisconnect}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand([]byte(tt.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseCommandInvalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `toggle 2`},
		{"unknown command", `{"command":"explode"}`},
		{"toggle without relay", `{"command":"toggle"}`},
		{"unknown action", `{"command":"activate","action":"LAUNCH"}`},
		{"missing action", `{"command":"activate"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommand([]byte(tt.payload))
			if !errors.Is(err, logic.ErrInvalidCommand) {
				t.Errorf("expected ErrInvalidCommand, got %v", err)
			}
		})
	}
}

func TestFakePublisher(t *testing.T) {
	fake := NewFakePublisher()
	at := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)

	if err := fake.PublishRelay(3, logic.StateOn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := fake.PublishSwitchGroup(SwitchGroup{State: logic.GroupAlert, Armed: logic.ActionRestart}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := fake.PublishMessage("hello", at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fake.PublishTime(telemetry.TimeInfo{})
	fake.PublishSystemInfo(telemetry.SystemInfo{})
	fake.PublishNetworkInfo(telemetry.NetworkInfo{})

	if len(fake.Relays) != 1 || fake.Relays[0] != (RelayUpdate{Index: 3, State: logic.StateOn}) {
		t.Errorf("unexpected relays: %+v", fake.Relays)
	}
	if g, ok := fake.LastGroup(); !ok || g.Armed != logic.ActionRestart {
		t.Errorf("unexpected group: %+v", g)
	}
	if texts := fake.MessageTexts(); len(texts) != 1 || texts[0] != "hello" {
		t.Errorf("unexpected messages: %v", texts)
	}
	if times, sys, net := fake.Counts(); times != 1 || sys != 1 || net != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1", times, sys, net)
	}
}

func TestFakePublisherError(t *testing.T) {
	fake := NewFakePublisher()
	fake.PublishError = errors.New("broker down")

	if err := fake.PublishRelay(1, logic.StateOff); err == nil {
		t.Error("expected error")
	}
	if len(fake.Relays) != 0 {
		t.Error("should not record on error")
	}
}

func TestFakePublisherDeliver(t *testing.T) {
	fake := NewFakePublisher()
	if fake.Deliver([]byte("x")) {
		t.Error("Deliver without subscription should report false")
	}

	var got []byte
	if err := fake.SubscribeCommands(func(p []byte) { got = p }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fake.Deliver([]byte(`{"command":"connect"}`)) {
		t.Fatal("Deliver should report true")
	}
	if string(got) != `{"command":"connect"}` {
		t.Errorf("handler got %q", got)
	}
}

func TestFakePublisherReset(t *testing.T) {
	fake := NewFakePublisher()
	fake.PublishRelay(1, logic.StateOn)
	fake.PublishSystem(SystemEvent{Event: "STARTUP"})
	fake.Close()
	fake.SubscribeCommands(func([]byte) {})

	fake.Reset()

	if len(fake.Relays) != 0 || len(fake.SystemEvents) != 0 || fake.Closed {
		t.Error("Reset should clear recorded calls")
	}
	if !fake.Deliver(nil) {
		t.Error("Reset should keep the subscription")
	}
}

func TestWillPayloadFormat(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "OFFLINE",
		Reason:    "LWT",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"OFFLINE","reason":"LWT"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}
