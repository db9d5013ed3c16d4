//go:build !unix

package transport

// FileAllocator maps a shared file so other processes can attach to the region.
type FileAllocator struct {
	Path    string
	BusAddr uint64
	Remove  bool
}

// Alloc always fails on this platform.
func (a *FileAllocator) Alloc(size int) (*Mapping, error) {
	return nil, ErrMappingNotSupported
}

// Free is a no-op on this platform.
func (a *FileAllocator) Free(m *Mapping) error { return nil }
