package transport

import "sync"

// MockAllocator is an Allocator for tests. It supports error injection and
// records every allocation and release.
type MockAllocator struct {
	heap *HeapAllocator

	mu       sync.Mutex
	allocErr error
	freeErr  error
	allocs   []*Mapping
	frees    []*Mapping
}

// MockAllocatorOption configures a MockAllocator.
type MockAllocatorOption func(*MockAllocator)

// WithAllocError injects an error that will be returned by Alloc.
func WithAllocError(err error) MockAllocatorOption {
	return func(m *MockAllocator) {
		m.allocErr = err
	}
}

// WithFreeError injects an error that will be returned by Free.
func WithFreeError(err error) MockAllocatorOption {
	return func(m *MockAllocator) {
		m.freeErr = err
	}
}

// WithBusBase sets the bus address of the first mapping.
func WithBusBase(base uint64) MockAllocatorOption {
	return func(m *MockAllocator) {
		m.heap = NewHeapAllocator(base)
	}
}

// NewMockAllocator creates a MockAllocator backed by process memory.
func NewMockAllocator(opts ...MockAllocatorOption) *MockAllocator {
	m := &MockAllocator{heap: NewHeapAllocator(DefaultBusBase)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Alloc returns heap memory, or the injected error.
func (m *MockAllocator) Alloc(size int) (*Mapping, error) {
	m.mu.Lock()
	err := m.allocErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	mapping, err := m.heap.Alloc(size)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.allocs = append(m.allocs, mapping)
	m.mu.Unlock()
	return mapping, nil
}

// Free records the release, or returns the injected error.
func (m *MockAllocator) Free(mapping *Mapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frees = append(m.frees, mapping)
	return m.freeErr
}

// --- Test inspection methods ---

// SetAllocError changes the error returned by subsequent Alloc calls.
func (m *MockAllocator) SetAllocError(err error) {
	m.mu.Lock()
	m.allocErr = err
	m.mu.Unlock()
}

// Allocs returns every mapping handed out.
func (m *MockAllocator) Allocs() []*Mapping {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Mapping, len(m.allocs))
	copy(out, m.allocs)
	return out
}

// Frees returns every mapping released.
func (m *MockAllocator) Frees() []*Mapping {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Mapping, len(m.frees))
	copy(out, m.frees)
	return out
}

// Outstanding returns how many mappings were allocated and not freed.
func (m *MockAllocator) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.allocs) - len(m.frees)
}
