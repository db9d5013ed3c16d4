package layout

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned when a buffer is too small for the block being decoded.
var ErrShortBuffer = errors.New("layout: buffer too short")

// ContextInfo is the first block of the region. It tells the CP where every
// other block lives, in CP-visible bus addresses.
type ContextInfo struct {
	DeviceInfoAddr      uint64 `json:"device_info_addr" yaml:"device_info_addr" cbor:"device_info_addr"`
	HeadArrayAddr       uint64 `json:"head_array_addr" yaml:"head_array_addr" cbor:"head_array_addr"`
	TailArrayAddr       uint64 `json:"tail_array_addr" yaml:"tail_array_addr" cbor:"tail_array_addr"`
	MsgHeadAddr         uint64 `json:"msg_head_addr" yaml:"msg_head_addr" cbor:"msg_head_addr"`
	MsgTailAddr         uint64 `json:"msg_tail_addr" yaml:"msg_tail_addr" cbor:"msg_tail_addr"`
	MsgRingAddr         uint64 `json:"msg_ring_addr" yaml:"msg_ring_addr" cbor:"msg_ring_addr"`
	MsgRingEntries      uint16 `json:"msg_ring_entries" yaml:"msg_ring_entries" cbor:"msg_ring_entries"`
	MsgIRQVector        uint8  `json:"msg_irq_vector" yaml:"msg_irq_vector" cbor:"msg_irq_vector"`
	DeviceInfoIRQVector uint8  `json:"device_info_irq_vector" yaml:"device_info_irq_vector" cbor:"device_info_irq_vector"`
}

// NewContextInfo fills in the addresses of a region mapped at base.
func NewContextInfo(base uint64, msgVector, deviceVector uint8) ContextInfo {
	return ContextInfo{
		DeviceInfoAddr:      base + DeviceInfoOffset,
		HeadArrayAddr:       base + HeadArrayOffset,
		TailArrayAddr:       base + TailArrayOffset,
		MsgHeadAddr:         base + MsgHeadOffset,
		MsgTailAddr:         base + MsgTailOffset,
		MsgRingAddr:         base + MsgRingOffset,
		MsgRingEntries:      MsgEntries,
		MsgIRQVector:        msgVector,
		DeviceInfoIRQVector: deviceVector,
	}
}

// MarshalBinary encodes the block in its wire form. The trailing padding is zero.
func (ci ContextInfo) MarshalBinary() ([]byte, error) {
	b := make([]byte, ContextInfoSize)
	ci.put(b)
	return b, nil
}

func (ci ContextInfo) put(b []byte) {
	le := binary.LittleEndian
	le.PutUint64(b[0:], ci.DeviceInfoAddr)
	le.PutUint64(b[8:], ci.HeadArrayAddr)
	le.PutUint64(b[16:], ci.TailArrayAddr)
	le.PutUint64(b[24:], ci.MsgHeadAddr)
	le.PutUint64(b[32:], ci.MsgTailAddr)
	le.PutUint64(b[40:], ci.MsgRingAddr)
	le.PutUint16(b[48:], ci.MsgRingEntries)
	b[50] = ci.MsgIRQVector
	b[51] = ci.DeviceInfoIRQVector
	clear(b[52:ContextInfoSize])
}

// UnmarshalBinary decodes a block written by MarshalBinary.
func (ci *ContextInfo) UnmarshalBinary(b []byte) error {
	if len(b) < ContextInfoSize {
		return fmt.Errorf("%w: context info needs %d bytes, got %d", ErrShortBuffer, ContextInfoSize, len(b))
	}
	le := binary.LittleEndian
	ci.DeviceInfoAddr = le.Uint64(b[0:])
	ci.HeadArrayAddr = le.Uint64(b[8:])
	ci.TailArrayAddr = le.Uint64(b[16:])
	ci.MsgHeadAddr = le.Uint64(b[24:])
	ci.MsgTailAddr = le.Uint64(b[32:])
	ci.MsgRingAddr = le.Uint64(b[40:])
	ci.MsgRingEntries = le.Uint16(b[48:])
	ci.MsgIRQVector = b[50]
	ci.DeviceInfoIRQVector = b[51]
	return nil
}
