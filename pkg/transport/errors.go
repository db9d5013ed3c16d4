// This file has no build tags so errors are available in all build configurations.
package transport

import "errors"

var (
	// ErrAllocation is returned when no shared memory could be mapped.
	ErrAllocation = errors.New("transport: shared memory allocation failed")

	// ErrMappingNotSupported is returned by FileAllocator on platforms without mmap.
	ErrMappingNotSupported = errors.New("transport: file mappings not supported on this platform")

	// ErrMaxRetriesExceeded is joined with the last error once Retry gives up.
	ErrMaxRetriesExceeded = errors.New("retry: max attempts exceeded")
)
