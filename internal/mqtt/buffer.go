package mqtt

import "go.uber.org/zap"

// bufferedMsg is a publish held back while the broker is unreachable.
type bufferedMsg struct {
	kind     string
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// replayBuffer keeps the most recent publishes made while offline so they
// can be sent once the connection is back. When full, the oldest entry is
// evicted. Callers synchronize access.
type replayBuffer struct {
	slots   []bufferedMsg
	next    int
	size    int
	dropped int // evictions since the last drain
	log     *zap.Logger
}

func newReplayBuffer(capacity int, log *zap.Logger) *replayBuffer {
	if capacity < 1 {
		capacity = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &replayBuffer{slots: make([]bufferedMsg, capacity), log: log}
}

// push stores msg. If the buffer was full it returns the oldest message,
// which msg replaced, and true.
func (r *replayBuffer) push(msg bufferedMsg) (evicted bufferedMsg, ok bool) {
	capacity := len(r.slots)
	if r.size == capacity {
		evicted, ok = r.slots[r.next], true
		r.dropped++
		if r.dropped == 1 {
			r.log.Warn("mqtt replay buffer full, evicting oldest",
				zap.Int("capacity", capacity),
				zap.String("kind", evicted.kind))
		}
	} else {
		r.size++
	}
	r.slots[r.next] = msg
	r.next = (r.next + 1) % capacity
	return evicted, ok
}

// drain returns the buffered messages oldest first along with the number
// evicted since the previous drain, and empties the buffer.
func (r *replayBuffer) drain() ([]bufferedMsg, int) {
	dropped := r.dropped
	r.dropped = 0
	if r.size == 0 {
		return nil, dropped
	}

	capacity := len(r.slots)
	out := make([]bufferedMsg, r.size)
	start := (r.next - r.size + capacity) % capacity
	for i := range out {
		out[i] = r.slots[(start+i)%capacity]
		r.slots[(start+i)%capacity] = bufferedMsg{}
	}
	r.size = 0
	r.next = 0
	return out, dropped
}

func (r *replayBuffer) len() int {
	return r.size
}
