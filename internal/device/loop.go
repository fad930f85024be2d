package device

import (
	"context"
	"log"
	"time"

	"github.com/sweeney/piface-relay/internal/logic"
	"github.com/sweeney/piface-relay/internal/mqtt"
)

const (
	// DefaultSubmitTimeout bounds how long a Client waits for the loop.
	DefaultSubmitTimeout = 10 * time.Second

	// DefaultCommandQueue is how many MQTT commands may wait for Forward.
	DefaultCommandQueue = 16
)

// Request carries one command into the loop. The result is sent on Reply,
// which must be buffered.
type Request struct {
	Command logic.Command
	Reply   chan<- error
}

// Run is the device's control loop. It serves requests until ctx is
// cancelled. Ticks are consumed only while connected, so the cadence
// halts on disconnect and resumes from the top on the next connect.
func (d *Device) Run(ctx context.Context, tick <-chan time.Time, requests <-chan Request) error {
	for {
		ticks := tick
		if !d.Connected() {
			ticks = nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case now := <-ticks:
			d.Tick(ctx, now)

		case req := <-requests:
			wasConnected := d.Connected()
			err := d.Handle(ctx, req.Command)
			if !wasConnected && d.Connected() {
				drainTick(tick)
			}
			if err != nil {
				log.Printf("device: %s: %v", req.Command.Kind, err)
			}
			if req.Reply != nil {
				req.Reply <- err
			}
		}
	}
}

// drainTick discards a tick buffered while disconnected, so the first
// tick after a connect arrives one full period later.
func drainTick(tick <-chan time.Time) {
	select {
	case <-tick:
	default:
	}
}

// Close disconnects the board if it is connected.
func (d *Device) Close() error {
	return d.Disconnect()
}

// Client submits commands to a running loop from other goroutines.
type Client struct {
	requests chan<- Request
	timeout  time.Duration
	pending  chan queued
}

// queued is a command waiting for Forward. A non-nil done marks a flush.
type queued struct {
	cmd  logic.Command
	done chan struct{}
}

// NewClient creates a Client feeding requests. A timeout <= 0 uses
// DefaultSubmitTimeout.
func NewClient(requests chan<- Request, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	return &Client{
		requests: requests,
		timeout:  timeout,
		pending:  make(chan queued, DefaultCommandQueue),
	}
}

// Submit sends cmd to the loop and waits for its result.
func (c *Client) Submit(ctx context.Context, cmd logic.Command) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply := make(chan error, 1)
	select {
	case c.requests <- Request{Command: cmd, Reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandlePayload parses an MQTT command payload and queues it for Forward.
// It never waits on the loop, so it is safe as a paho message handler with
// ordered delivery. A command arriving with the queue full is dropped.
func (c *Client) HandlePayload(payload []byte) {
	cmd, err := mqtt.ParseCommand(payload)
	if err != nil {
		log.Printf("device: ignoring command %q: %v", payload, err)
		return
	}
	select {
	case c.pending <- queued{cmd: cmd}:
	default:
		log.Printf("device: command queue full, dropping %s", cmd.Kind)
	}
}

// Forward submits queued MQTT commands in arrival order until ctx is
// cancelled.
func (c *Client) Forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-c.pending:
			if q.done != nil {
				close(q.done)
				continue
			}
			if err := c.Submit(ctx, q.cmd); err != nil {
				log.Printf("device: command %s failed: %v", q.cmd.Kind, err)
			}
		}
	}
}

// Flush waits until Forward has handled every command queued before it.
func (c *Client) Flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case c.pending <- queued{done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
