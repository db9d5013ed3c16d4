// Package transport provides the memory and bus seams the link protocol runs on.
//
// The protocol never touches hardware directly. It asks an [Allocator] for a
// DMA-capable [Mapping] of the shared region, and hands that mapping to a
// [Link], which tells the CP where the region lives and delivers interrupt
// vectors back through an [IRQHandler].
//
// # Allocators
//
// Three allocators are available:
//
//   - HeapAllocator: process memory with synthetic bus addresses. Used with
//     the simulated CP.
//
//   - FileAllocator: a shared file mapping (for example under /dev/shm) so
//     another process can attach to the same region.
//
//   - MockAllocator: test double with error injection and recording.
//
// # Usage
//
//	alloc := transport.NewAllocator(&transport.Config{RegionFile: "/dev/shm/ipclink"})
//	m, err := alloc.Alloc(layout.RegionSize)
//	defer alloc.Free(m)
//
// Transient failures are retried with [Retry].
package transport
