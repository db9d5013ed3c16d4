package message

import "encoding/binary"

// PipeOpen asks the CP to start using a transfer descriptor ring.
type PipeOpen struct {
	TDRAddr             uint64
	TDREntries          uint16
	PipeNr              uint8
	IRQVector           uint32
	AccumulationBackoff uint32
}

func (PipeOpen) Type() Type { return TypeOpenPipe }

func (a PipeOpen) encode(e []byte) {
	le := binary.LittleEndian
	le.PutUint64(e[offTDRAddr:], a.TDRAddr)
	le.PutUint16(e[offTDREntries:], a.TDREntries)
	e[offPipeNr] = a.PipeNr
	le.PutUint32(e[offIRQVector:], a.IRQVector)
	le.PutUint32(e[offBackoff:], a.AccumulationBackoff)
}

// PipeClose asks the CP to stop using a pipe after draining it.
type PipeClose struct {
	PipeNr uint8
}

func (PipeClose) Type() Type { return TypeClosePipe }

func (a PipeClose) encode(e []byte) { e[offPipeNr] = a.PipeNr }

// PipeAbort asks the CP to drop a pipe without draining.
type PipeAbort struct {
	PipeNr uint8
}

func (PipeAbort) Type() Type { return TypeAbortPipe }

func (a PipeAbort) encode(e []byte) { e[offPipeNr] = a.PipeNr }

// SleepTarget selects which side a host sleep message refers to.
type SleepTarget uint8

const (
	TargetHost   SleepTarget = 0
	TargetDevice SleepTarget = 1
)

// SleepState is the requested transition of a host sleep message.
type SleepState uint8

const (
	EnterSleep           SleepState = 0
	ExitSleep            SleepState = 1
	EnterSleepNoProtocol SleepState = 2
	ExitSleepNoProtocol  SleepState = 3
)

func (s SleepState) String() string {
	switch s {
	case EnterSleep:
		return "enter_sleep"
	case ExitSleep:
		return "exit_sleep"
	case EnterSleepNoProtocol:
		return "enter_sleep_no_protocol"
	case ExitSleepNoProtocol:
		return "exit_sleep_no_protocol"
	default:
		return "unknown"
	}
}

// HostSleep tells the CP the host is entering or leaving sleep.
type HostSleep struct {
	Target SleepTarget
	State  SleepState
}

func (HostSleep) Type() Type { return TypeHostSleep }

func (a HostSleep) encode(e []byte) {
	e[offTarget] = byte(a.Target)
	e[offState] = byte(a.State)
}

// FeatureSet toggles CP features.
type FeatureSet struct {
	ResetEnable bool
}

func (FeatureSet) Type() Type { return TypeFeatureSet }

func (a FeatureSet) encode(e []byte) {
	if a.ResetEnable {
		e[offFeature] |= 0x01
	}
}
