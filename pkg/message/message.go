// Package message encodes and decodes message ring entries.
//
// Every entry is a fixed EntrySize-byte tagged union. The type byte and the
// completion status sit at the same offsets for every kind; the remaining
// bytes are interpreted per kind.
package message

import (
	"encoding/binary"
	"fmt"

	"github.com/gobeyondidentity/ipclink/pkg/layout"
)

// Type is the wire tag of a ring entry.
type Type uint8

const (
	TypeOpenPipe   Type = 0x01
	TypeClosePipe  Type = 0x02
	TypeAbortPipe  Type = 0x03
	TypeHostSleep  Type = 0x04
	TypeFeatureSet Type = 0xF0
)

func (t Type) String() string {
	switch t {
	case TypeOpenPipe:
		return "open_pipe"
	case TypeClosePipe:
		return "close_pipe"
	case TypeAbortPipe:
		return "abort_pipe"
	case TypeHostSleep:
		return "host_sleep"
	case TypeFeatureSet:
		return "feature_set"
	default:
		return fmt.Sprintf("type(0x%02x)", uint8(t))
	}
}

// Status is the completion status the CP writes back into an entry.
type Status uint32

const (
	StatusInvalid Status = 0
	StatusSuccess Status = 1
	StatusError   Status = 2

	// StatusLinkBroken never appears on the wire. It resolves requests that
	// were abandoned because the link failed or the protocol was torn down.
	StatusLinkBroken Status = 0xFFFFFFFF
)

func (s Status) String() string {
	switch s {
	case StatusInvalid:
		return "invalid"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusLinkBroken:
		return "link_broken"
	default:
		return fmt.Sprintf("status(%d)", uint32(s))
	}
}

// Entry field offsets shared by all kinds.
const (
	offTDRAddr    = 0
	offTDREntries = 8
	offTarget     = 8
	offState      = 9
	offPipeNr     = 10
	offFeature    = 10
	offType       = 11
	offIRQVector  = 12
	offBackoff    = 16
	offStatus     = 20
)

// Args is the per-kind payload of a request.
type Args interface {
	Type() Type
	encode(e []byte)
}

// Encode zeroes e and writes args into it. e must be EntrySize bytes long.
func Encode(e []byte, args Args) error {
	if len(e) != layout.EntrySize {
		return fmt.Errorf("message: entry is %d bytes, want %d", len(e), layout.EntrySize)
	}
	clear(e)
	args.encode(e)
	e[offType] = byte(args.Type())
	return nil
}

// TypeOf reads the tag of an encoded entry.
func TypeOf(e []byte) Type { return Type(e[offType]) }

// StatusOf reads the completion status of an encoded entry.
func StatusOf(e []byte) Status {
	return Status(binary.LittleEndian.Uint32(e[offStatus:]))
}

// SetStatus writes the completion status. Only the CP side does this.
func SetStatus(e []byte, s Status) {
	binary.LittleEndian.PutUint32(e[offStatus:], uint32(s))
}

// Decode returns the typed view of an encoded entry.
func Decode(e []byte) (Args, error) {
	if len(e) != layout.EntrySize {
		return nil, fmt.Errorf("message: entry is %d bytes, want %d", len(e), layout.EntrySize)
	}
	le := binary.LittleEndian
	switch t := TypeOf(e); t {
	case TypeOpenPipe:
		return PipeOpen{
			TDRAddr:             le.Uint64(e[offTDRAddr:]),
			TDREntries:          le.Uint16(e[offTDREntries:]),
			PipeNr:              e[offPipeNr],
			IRQVector:           le.Uint32(e[offIRQVector:]),
			AccumulationBackoff: le.Uint32(e[offBackoff:]),
		}, nil
	case TypeClosePipe:
		return PipeClose{PipeNr: e[offPipeNr]}, nil
	case TypeAbortPipe:
		return PipeAbort{PipeNr: e[offPipeNr]}, nil
	case TypeHostSleep:
		return HostSleep{Target: SleepTarget(e[offTarget]), State: SleepState(e[offState])}, nil
	case TypeFeatureSet:
		return FeatureSet{ResetEnable: e[offFeature]&0x01 != 0}, nil
	default:
		return nil, fmt.Errorf("message: unknown entry %s", t)
	}
}
