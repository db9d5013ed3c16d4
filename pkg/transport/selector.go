package transport

// Config contains options for allocator selection.
type Config struct {
	// MockAllocator, if non-nil, is returned directly by NewAllocator.
	// Used for test injection.
	MockAllocator Allocator

	// RegionFile, if set, backs the region with a shared file mapping.
	RegionFile string

	// RemoveOnFree deletes RegionFile when the mapping is released.
	RemoveOnFree bool

	// BusBase is the bus address reported for the region. Zero selects DefaultBusBase.
	BusBase uint64
}

// NewAllocator picks an allocator. Selection follows this priority:
//  1. MockAllocator from config (test injection)
//  2. FileAllocator if a region file is configured
//  3. HeapAllocator
func NewAllocator(cfg *Config) Allocator {
	if cfg == nil {
		cfg = &Config{}
	}

	// Priority 1: Mock allocator for testing
	if cfg.MockAllocator != nil {
		return cfg.MockAllocator
	}

	base := cfg.BusBase
	if base == 0 {
		base = DefaultBusBase
	}

	// Priority 2: shared file mapping
	if cfg.RegionFile != "" {
		return &FileAllocator{Path: cfg.RegionFile, BusAddr: base, Remove: cfg.RemoveOnFree}
	}

	return NewHeapAllocator(base)
}
