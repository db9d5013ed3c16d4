//go:build unix

package transport

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FileAllocator maps a shared file so other processes can attach to the region.
type FileAllocator struct {
	// Path of the backing file. It is created if missing and truncated to size.
	Path string
	// BusAddr is reported as the mapping's bus address.
	BusAddr uint64
	// Remove deletes the file when the mapping is freed.
	Remove bool
}

// Alloc maps size bytes of the file read-write and shared.
func (a *FileAllocator) Alloc(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: invalid size %d", ErrAllocation, size)
	}
	f, err := os.OpenFile(a.Path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrAllocation, a.Path, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("%w: truncate %s: %v", ErrAllocation, a.Path, err)
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %s: %v", ErrAllocation, a.Path, err)
	}
	clear(mem)

	path, remove := a.Path, a.Remove
	return &Mapping{
		Mem:     mem,
		BusAddr: a.BusAddr,
		release: func() error {
			err := unix.Munmap(mem)
			if remove {
				if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
					err = errors.Join(err, rmErr)
				}
			}
			return err
		},
	}, nil
}

// Free unmaps the region.
func (a *FileAllocator) Free(m *Mapping) error {
	if m == nil || m.release == nil {
		return nil
	}
	err := m.release()
	m.release = nil
	m.Mem = nil
	return err
}
