package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/piface-relay/internal/logic"
	"github.com/sweeney/piface-relay/internal/telemetry"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	retryInterval  = 5 * time.Second

	// DefaultBufferSize is how many messages are held while disconnected.
	DefaultBufferSize = 100
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	Prefix     string
	Device     string // name used in message payloads
	BufferSize int
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are held in an outbox and flushed on
// reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	device string

	mu      sync.Mutex
	pending *outbox
	handler func(payload []byte)
}

// NewRealPublisher creates a publisher for the given broker. An
// unreachable broker is not fatal: the client keeps retrying in the
// background and messages are queued until it connects.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker is required")
	}
	if o.ClientID == "" {
		o.ClientID = DefaultPrefix
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}

	p := &RealPublisher{
		topics:  Topics{Prefix: o.Prefix},
		device:  o.Device,
		pending: newOutbox(o.BufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "LWT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(retryInterval).
		SetBinaryWill(p.topics.System(), will, 1, true).
		SetOnConnectHandler(func(_ paho.Client) { p.handleConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", o.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// handleConnect restores the command subscription and flushes the outbox.
func (p *RealPublisher) handleConnect() {
	p.mu.Lock()
	handler := p.handler
	queued, dropped := p.pending.drain()
	p.mu.Unlock()

	log.Printf("mqtt: connected")
	if handler != nil {
		if err := p.subscribe(handler); err != nil {
			log.Printf("mqtt: %v", err)
		}
	}
	if dropped > 0 {
		log.Printf("mqtt: %d queued messages were dropped while offline", dropped)
	}
	for _, m := range queued {
		p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
	if len(queued) > 0 {
		log.Printf("mqtt: flushed %d queued messages", len(queued))
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// SubscribeCommands registers handler on the command topic. The
// subscription is restored after every reconnect.
func (p *RealPublisher) SubscribeCommands(handler func(payload []byte)) error {
	p.mu.Lock()
	p.handler = handler
	p.mu.Unlock()

	if !p.client.IsConnectionOpen() {
		return nil
	}
	return p.subscribe(handler)
}

func (p *RealPublisher) subscribe(handler func(payload []byte)) error {
	token := p.client.Subscribe(p.topics.Command(), 1, wrapHandler(handler))
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: %s: timeout", ErrSubscribeFailed, p.topics.Command())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, p.topics.Command(), err)
	}
	return nil
}

// wrapHandler keeps a panicking command handler from killing paho's
// dispatch goroutine.
func wrapHandler(handler func(payload []byte)) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("mqtt: command handler panic on %s: %v", msg.Topic(), r)
			}
		}()
		handler(msg.Payload())
	}
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.pending.push(queuedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: %s: timeout", ErrPublishFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// PublishRelay sends one relay state, retained.
func (p *RealPublisher) PublishRelay(index int, state logic.State) error {
	payload, err := FormatRelay(index, state)
	if err != nil {
		return fmt.Errorf("format relay: %w", err)
	}
	return p.publish(p.topics.Relay(index), 1, true, payload)
}

// PublishSwitchGroup sends the switch group state, retained.
func (p *RealPublisher) PublishSwitchGroup(group SwitchGroup) error {
	payload, err := FormatSwitchGroup(group)
	if err != nil {
		return fmt.Errorf("format switch group: %w", err)
	}
	return p.publish(p.topics.Switch(), 1, true, payload)
}

// PublishTime sends the wall-clock fields. QoS 0: the next tick supersedes it.
func (p *RealPublisher) PublishTime(info telemetry.TimeInfo) error {
	payload, err := FormatTime(info)
	if err != nil {
		return fmt.Errorf("format time: %w", err)
	}
	return p.publish(p.topics.Time(), 0, false, payload)
}

// PublishSystemInfo sends system telemetry.
func (p *RealPublisher) PublishSystemInfo(info telemetry.SystemInfo) error {
	payload, err := FormatSystemInfo(info)
	if err != nil {
		return fmt.Errorf("format system info: %w", err)
	}
	return p.publish(p.topics.SystemInfo(), 0, true, payload)
}

// PublishNetworkInfo sends network telemetry.
func (p *RealPublisher) PublishNetworkInfo(info telemetry.NetworkInfo) error {
	payload, err := FormatNetworkInfo(info)
	if err != nil {
		return fmt.Errorf("format network info: %w", err)
	}
	return p.publish(p.topics.NetworkInfo(), 0, true, payload)
}

// PublishMessage sends a human-readable message.
func (p *RealPublisher) PublishMessage(text string, at time.Time) error {
	payload, err := FormatMessage(p.device, text, at)
	if err != nil {
		return fmt.Errorf("format message: %w", err)
	}
	return p.publish(p.topics.Message(), 1, false, payload)
}

// PublishSystem sends a lifecycle event.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1: shutdown events must reach the broker before disconnect
	return p.publish(p.topics.System(), 1, event.Retained, payload)
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
