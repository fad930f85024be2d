package mqtt

import (
	"sync"
	"time"

	"github.com/sweeney/piface-relay/internal/logic"
	"github.com/sweeney/piface-relay/internal/telemetry"
)

// RelayUpdate is one recorded PublishRelay call.
type RelayUpdate struct {
	Index int
	State logic.State
}

// Message is one recorded PublishMessage call.
type Message struct {
	Text string
	At   time.Time
}

// FakePublisher records published properties for test assertions.
// It is safe for concurrent use so web and loop tests can share one.
type FakePublisher struct {
	mu sync.Mutex

	Relays       []RelayUpdate
	Groups       []SwitchGroup
	Times        []telemetry.TimeInfo
	SystemInfos  []telemetry.SystemInfo
	NetworkInfos []telemetry.NetworkInfo
	Messages     []Message

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, is returned by every property publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// SubscribeError, if set, will be returned by SubscribeCommands.
	SubscribeError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	handler func(payload []byte)
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishRelay records the relay state.
func (f *FakePublisher) PublishRelay(index int, state logic.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Relays = append(f.Relays, RelayUpdate{Index: index, State: state})
	return nil
}

// PublishSwitchGroup records the switch group state.
func (f *FakePublisher) PublishSwitchGroup(group SwitchGroup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Groups = append(f.Groups, group)
	return nil
}

// PublishTime records the time fields.
func (f *FakePublisher) PublishTime(info telemetry.TimeInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Times = append(f.Times, info)
	return nil
}

// PublishSystemInfo records the system telemetry.
func (f *FakePublisher) PublishSystemInfo(info telemetry.SystemInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.SystemInfos = append(f.SystemInfos, info)
	return nil
}

// PublishNetworkInfo records the network telemetry.
func (f *FakePublisher) PublishNetworkInfo(info telemetry.NetworkInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.NetworkInfos = append(f.NetworkInfos, info)
	return nil
}

// PublishMessage records the message.
func (f *FakePublisher) PublishMessage(text string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Messages = append(f.Messages, Message{Text: text, At: at})
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// SubscribeCommands stores handler for Deliver.
func (f *FakePublisher) SubscribeCommands(handler func(payload []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeError != nil {
		return f.SubscribeError
	}
	f.handler = handler
	return nil
}

// Deliver invokes the subscribed command handler as the broker would.
// It reports false when nothing is subscribed.
func (f *FakePublisher) Deliver(payload []byte) bool {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(payload)
	return true
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// MessageTexts returns the recorded message texts in order.
func (f *FakePublisher) MessageTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Messages))
	for i, m := range f.Messages {
		out[i] = m.Text
	}
	return out
}

// Counts returns how many time, system and network publishes were recorded.
func (f *FakePublisher) Counts() (times, system, network int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Times), len(f.SystemInfos), len(f.NetworkInfos)
}

// LastGroup returns the most recent switch group state.
func (f *FakePublisher) LastGroup() (SwitchGroup, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Groups) == 0 {
		return SwitchGroup{}, false
	}
	return f.Groups[len(f.Groups)-1], true
}

// Reset clears recorded calls. The subscribed handler is kept.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Relays = nil
	f.Groups = nil
	f.Times = nil
	f.SystemInfos = nil
	f.NetworkInfos = nil
	f.Messages = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.SubscribeError = nil
}
