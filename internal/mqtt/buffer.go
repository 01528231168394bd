package mqtt

import "log"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO holding pattern and mode messages while
// the broker is unreachable. The oldest message is dropped when full.
// Not safe for concurrent use; RealPublisher guards it with its mutex.
type ringBuffer struct {
	buf     []bufferedMsg
	head    int // next write position
	count   int
	dropped int // messages dropped since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{buf: make([]bufferedMsg, capacity)}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	capacity := len(r.buf)
	r.buf[r.head] = msg
	r.head = (r.head + 1) % capacity
	if r.count < capacity {
		r.count++
		return
	}
	// Full: the slot just written held the oldest message.
	r.dropped++
	if r.dropped == 1 {
		log.Printf("mqtt: buffer full (%d messages), dropping oldest", capacity)
	}
}

// drainAll returns buffered messages oldest first and empties the buffer.
// The drop count is reset.
func (r *ringBuffer) drainAll() []bufferedMsg {
	r.dropped = 0
	if r.count == 0 {
		return nil
	}

	capacity := len(r.buf)
	start := (r.head - r.count + capacity) % capacity
	out := make([]bufferedMsg, r.count)
	for i := range out {
		out[i] = r.buf[(start+i)%capacity]
	}

	r.count = 0
	r.head = 0
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}
