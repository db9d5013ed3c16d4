package transport

import (
	"fmt"
	"sync"
	"unsafe"
)

// Mapping is a block of shared memory and the address the CP sees it at.
type Mapping struct {
	Mem     []byte
	BusAddr uint64

	release func() error
}

// IRQHandler receives interrupt vectors raised by the CP.
type IRQHandler interface {
	HandleIRQ(vector int)
}

// Link publishes a mapping to the CP and routes its interrupts back.
type Link interface {
	Bind(m *Mapping, irq IRQHandler) error
	Unbind()
}

// Allocator provides DMA-capable shared memory.
type Allocator interface {
	Alloc(size int) (*Mapping, error)
	Free(m *Mapping) error
}

// DefaultBusBase is the first synthetic bus address handed out by HeapAllocator.
const DefaultBusBase = 0x8000_0000

const busAlign = 0x1000

// HeapAllocator hands out process memory. Bus addresses are synthetic,
// page-aligned and never reused within one allocator.
type HeapAllocator struct {
	mu   sync.Mutex
	next uint64
}

// NewHeapAllocator returns an allocator whose first mapping is at base.
func NewHeapAllocator(base uint64) *HeapAllocator {
	if base == 0 {
		base = DefaultBusBase
	}
	return &HeapAllocator{next: base}
}

// Alloc returns size zeroed, 8-byte aligned bytes.
func (a *HeapAllocator) Alloc(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: invalid size %d", ErrAllocation, size)
	}
	words := make([]uint64, (size+7)/8)
	mem := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)

	a.mu.Lock()
	addr := a.next
	a.next += (uint64(size) + busAlign - 1) &^ (busAlign - 1)
	a.mu.Unlock()

	return &Mapping{Mem: mem, BusAddr: addr}, nil
}

// Free drops the mapping. The memory is reclaimed by the garbage collector.
func (a *HeapAllocator) Free(m *Mapping) error {
	if m == nil {
		return nil
	}
	m.Mem = nil
	return nil
}
