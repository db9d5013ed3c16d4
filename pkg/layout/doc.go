// Package layout describes the shared memory region the AP and CP exchange
// control traffic through.
//
// The region is allocated by the AP and handed to the CP by its bus address.
// It holds, in order:
//
//	context info   addresses of every other block, ring size, IRQ vectors
//	device info    execution stage, IPC status, sleep notification (CP-written)
//	msg head       producer index of the message ring (AP-written)
//	head array     per-pipe producer indices
//	msg tail       consumer index of the message ring (CP-written)
//	tail array     per-pipe consumer indices
//	message ring   MsgEntries entries of EntrySize bytes
//
// All multi-byte integers are little-endian. Index cells are accessed with
// atomic 32-bit loads and stores so a reader never observes a torn value.
package layout
