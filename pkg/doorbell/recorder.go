package doorbell

import (
	"sync"
	"time"
)

// Ring is one recorded physical doorbell write.
type Ring struct {
	Bell  Bell
	Value uint32
}

// Recorder is a Ringer that remembers every write. It is used in tests and
// by the simulated CP to observe the AP.
type Recorder struct {
	mu    sync.Mutex
	rings []Ring
	ch    chan Ring
}

// NewRecorder returns a Recorder that also buffers up to buffer writes for Next.
func NewRecorder(buffer int) *Recorder {
	return &Recorder{ch: make(chan Ring, buffer)}
}

// Ring records the write. When the buffer is full the write is still recorded
// but not delivered to Next.
func (r *Recorder) Ring(bell Bell, value uint32) {
	ring := Ring{Bell: bell, Value: value}
	r.mu.Lock()
	r.rings = append(r.rings, ring)
	r.mu.Unlock()

	select {
	case r.ch <- ring:
	default:
	}
}

// --- Test inspection methods ---

// Rings returns a copy of every recorded write.
func (r *Recorder) Rings() []Ring {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Ring, len(r.rings))
	copy(out, r.rings)
	return out
}

// Count returns the number of writes to bell.
func (r *Recorder) Count(bell Bell) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ring := range r.rings {
		if ring.Bell == bell {
			n++
		}
	}
	return n
}

// Next waits up to timeout for the next buffered write.
func (r *Recorder) Next(timeout time.Duration) (Ring, bool) {
	select {
	case ring := <-r.ch:
		return ring, true
	case <-time.After(timeout):
		return Ring{}, false
	}
}

// Reset forgets all recorded writes.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.rings = nil
	r.mu.Unlock()
	for {
		select {
		case <-r.ch:
		default:
			return
		}
	}
}
