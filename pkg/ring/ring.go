// Package ring implements the AP side of the message ring: a single-producer,
// single-consumer circular buffer of fixed-size entries living in the shared
// region. The AP owns the head index, the CP owns the tail index.
package ring

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gobeyondidentity/ipclink/pkg/layout"
	"github.com/gobeyondidentity/ipclink/pkg/message"
)

var (
	// ErrRingFull is returned when every usable slot is outstanding. It is
	// transient: the slot frees up once the CP acknowledges older entries.
	ErrRingFull = errors.New("ring: full")

	// ErrOutOfOrder is returned when a slot is published out of reservation order.
	ErrOutOfOrder = errors.New("ring: slot published out of order")
)

// Ring tracks which slots are free and publishes entries into the region.
//
// Slots are handed out in index order by Reserve and come back through
// Release. A reserved slot stays unavailable until it is released, even when
// releases arrive out of order.
type Ring struct {
	region   *layout.Region
	capacity uint32

	mu       sync.Mutex
	next     uint32 // next slot Reserve hands out
	free     uint32 // oldest slot not yet released
	released []bool
}

// New returns a ring over region that starts empty and resets the shared head.
func New(region *layout.Region) *Ring {
	r := &Ring{
		region:   region,
		capacity: layout.MsgEntries,
		released: make([]bool, layout.MsgEntries),
	}
	r.next = region.MsgHead() % r.capacity
	r.free = r.next
	return r
}

// Capacity returns the number of slots, one of which always stays empty.
func (r *Ring) Capacity() uint32 { return r.capacity }

// Reserve claims the next producer slot.
func (r *Ring) Reserve() (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if (r.next+1)%r.capacity == r.free {
		return 0, ErrRingFull
	}
	slot := r.next
	r.next = (r.next + 1) % r.capacity
	return slot, nil
}

// Cancel gives back the most recent reservation before it is published.
func (r *Ring) Cancel(slot uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if (slot+1)%r.capacity != r.next {
		return fmt.Errorf("ring: cancel of slot %d, last reserved is %d", slot, (r.next+r.capacity-1)%r.capacity)
	}
	r.next = slot
	return nil
}

// Publish writes args into slot and then advances the shared head past it.
// Slots must be published in the order they were reserved.
func (r *Ring) Publish(slot uint32, args message.Args) error {
	if head := r.region.MsgHead(); head != slot {
		return fmt.Errorf("%w: head is %d, slot is %d", ErrOutOfOrder, head, slot)
	}
	if err := message.Encode(r.region.Entry(slot), args); err != nil {
		return err
	}
	// The atomic store orders the entry write before the index update.
	r.region.SetMsgHead((slot + 1) % r.capacity)
	return nil
}

// Release returns slot to the free pool.
func (r *Ring) Release(slot uint32) {
	if slot >= r.capacity {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	// Ignore slots that are not currently reserved.
	if (slot+r.capacity-r.free)%r.capacity >= (r.next+r.capacity-r.free)%r.capacity {
		return
	}
	r.released[slot] = true
	for r.free != r.next && r.released[r.free] {
		r.released[r.free] = false
		r.free = (r.free + 1) % r.capacity
	}
}

// Outstanding returns the number of reserved slots not yet released.
func (r *Ring) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int((r.next + r.capacity - r.free) % r.capacity)
}

// DrainAcked lists the slots in [from, to) in ring order. from and to are
// consumer indices, so from == to means nothing was acknowledged.
func (r *Ring) DrainAcked(from, to uint32) []uint32 {
	if from >= r.capacity || to >= r.capacity {
		return nil
	}
	var slots []uint32
	for i := from; i != to; i = (i + 1) % r.capacity {
		slots = append(slots, i)
	}
	return slots
}
