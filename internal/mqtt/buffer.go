package mqtt

import "log"

// queuedMsg is a serialized message held for replay after reconnection.
type queuedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a fixed-capacity FIFO holding messages while the broker is
// unreachable. When full, the oldest message is dropped.
// Not safe for concurrent use: caller must synchronize.
type outbox struct {
	buf     []queuedMsg
	head    int // next write position
	count   int
	dropped int // messages dropped since last drain
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{buf: make([]queuedMsg, capacity)}
}

func (o *outbox) push(msg queuedMsg) {
	capacity := len(o.buf)
	if o.count == capacity {
		if o.dropped == 0 {
			log.Printf("mqtt: outbox full (%d messages), dropping oldest", capacity)
		}
		o.dropped++
		// head already points at the oldest entry
		o.buf[o.head] = msg
		o.head = (o.head + 1) % capacity
		return
	}
	o.buf[o.head] = msg
	o.head = (o.head + 1) % capacity
	o.count++
}

// drain returns queued messages oldest first and empties the outbox,
// along with how many were dropped while it was full.
func (o *outbox) drain() ([]queuedMsg, int) {
	dropped := o.dropped
	o.dropped = 0
	if o.count == 0 {
		return nil, dropped
	}

	capacity := len(o.buf)
	out := make([]queuedMsg, o.count)
	start := (o.head - o.count + capacity) % capacity
	for i := range out {
		out[i] = o.buf[(start+i)%capacity]
	}

	o.count = 0
	o.head = 0
	return out, dropped
}

func (o *outbox) len() int {
	return o.count
}
