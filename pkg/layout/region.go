package layout

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"sync/atomic"
	"unsafe"
)

// ErrMisaligned is returned when the backing memory cannot hold atomic cells.
var ErrMisaligned = errors.New("layout: region memory is not 8-byte aligned")

var littleEndianHost = binary.NativeEndian.Uint16([]byte{0x01, 0x00}) == 0x0001

// le32 converts between host order and the little-endian wire order.
func le32(v uint32) uint32 {
	if littleEndianHost {
		return v
	}
	return bits.ReverseBytes32(v)
}

// Region is a view over the shared memory backing one device link.
type Region struct {
	mem  []byte
	base uint64
}

// NewRegion wraps mem, which the CP sees at bus address base.
func NewRegion(mem []byte, base uint64) (*Region, error) {
	if len(mem) < RegionSize {
		return nil, fmt.Errorf("%w: region needs %d bytes, got %d", ErrShortBuffer, RegionSize, len(mem))
	}
	if uintptr(unsafe.Pointer(&mem[0]))%8 != 0 {
		return nil, ErrMisaligned
	}
	return &Region{mem: mem[:RegionSize], base: base}, nil
}

// Bytes returns the raw region.
func (r *Region) Bytes() []byte { return r.mem }

// Base returns the CP-visible address of the first byte.
func (r *Region) Base() uint64 { return r.base }

// Offset translates a CP-visible address back to a region offset.
func (r *Region) Offset(addr uint64) (int, error) {
	if addr < r.base || addr-r.base >= uint64(len(r.mem)) {
		return 0, fmt.Errorf("layout: address 0x%x outside region [0x%x, 0x%x)", addr, r.base, r.base+uint64(len(r.mem)))
	}
	return int(addr - r.base), nil
}

func (r *Region) cell(off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&r.mem[off]))
}

// Load32 atomically reads the little-endian cell at off.
func (r *Region) Load32(off int) uint32 {
	return le32(atomic.LoadUint32(r.cell(off)))
}

// Store32 atomically writes the little-endian cell at off. Every plain write
// issued before Store32 is visible to a reader that observes the new value.
func (r *Region) Store32(off int, v uint32) {
	atomic.StoreUint32(r.cell(off), le32(v))
}

// WriteContextInfo stores ci at the start of the region.
func (r *Region) WriteContextInfo(ci ContextInfo) {
	ci.put(r.mem[ContextInfoOffset : ContextInfoOffset+ContextInfoSize])
}

// ContextInfo decodes the context block.
func (r *Region) ContextInfo() ContextInfo {
	var ci ContextInfo
	_ = ci.UnmarshalBinary(r.mem[ContextInfoOffset:])
	return ci
}

func (r *Region) MsgHead() uint32     { return r.Load32(MsgHeadOffset) }
func (r *Region) SetMsgHead(v uint32) { r.Store32(MsgHeadOffset, v) }
func (r *Region) MsgTail() uint32     { return r.Load32(MsgTailOffset) }
func (r *Region) SetMsgTail(v uint32) { r.Store32(MsgTailOffset, v) }

func (r *Region) ExecStage() ExecStage          { return ExecStage(r.Load32(ExecStageOffset)) }
func (r *Region) SetExecStage(s ExecStage)      { r.Store32(ExecStageOffset, uint32(s)) }
func (r *Region) IPCStatus() IPCStatus          { return IPCStatus(r.Load32(IPCStatusOffset)) }
func (r *Region) SetIPCStatus(s IPCStatus)      { r.Store32(IPCStatusOffset, uint32(s)) }
func (r *Region) SleepNotification() uint32     { return r.Load32(SleepNotificationOffset) }
func (r *Region) SetSleepNotification(v uint32) { r.Store32(SleepNotificationOffset, v) }

// PipeHead returns the producer index of data pipe p. p must be below MaxPipes.
func (r *Region) PipeHead(p int) uint32 { return r.Load32(HeadArrayOffset + 4*p) }

// SetPipeHead stores the producer index of data pipe p.
func (r *Region) SetPipeHead(p int, v uint32) { r.Store32(HeadArrayOffset+4*p, v) }

// PipeTail returns the consumer index of data pipe p.
func (r *Region) PipeTail(p int) uint32 { return r.Load32(TailArrayOffset + 4*p) }

// SetPipeTail stores the consumer index of data pipe p.
func (r *Region) SetPipeTail(p int, v uint32) { r.Store32(TailArrayOffset+4*p, v) }

// Entry returns the bytes of ring slot. slot must be below MsgEntries.
func (r *Region) Entry(slot uint32) []byte {
	off := EntryOffset(slot)
	return r.mem[off : off+EntrySize : off+EntrySize]
}
