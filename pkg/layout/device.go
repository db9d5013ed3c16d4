package layout

import "fmt"

// ExecStage is the CP execution stage published in device info.
type ExecStage uint32

const (
	StageRun     ExecStage = 0x600DF00D
	StageCrash   ExecStage = 0x8BADF00D
	StageCDReady ExecStage = 0xBADC0DED
	StageBoot    ExecStage = 0xFEEDB007
	StagePSI     ExecStage = 0xFEEDBEEF
	StageEBL     ExecStage = 0xFEEDCAFE
	StageInvalid ExecStage = 0xFFFFFFFF
)

func (s ExecStage) String() string {
	switch s {
	case StageRun:
		return "RUN"
	case StageCrash:
		return "CRASH"
	case StageCDReady:
		return "CD_READY"
	case StageBoot:
		return "BOOT"
	case StagePSI:
		return "PSI"
	case StageEBL:
		return "EBL"
	case StageInvalid:
		return "INVALID"
	default:
		return fmt.Sprintf("STAGE(0x%08X)", uint32(s))
	}
}

// IPCStatus is the CP view of the IPC state machine.
type IPCStatus uint32

const (
	IPCUninit   IPCStatus = 0
	IPCInit     IPCStatus = 1
	IPCRunning  IPCStatus = 2
	IPCRecovery IPCStatus = 3
	IPCError    IPCStatus = 4
	IPCDontCare IPCStatus = 5
	IPCInvalid  IPCStatus = 0xFFFFFFFF
)

func (s IPCStatus) String() string {
	switch s {
	case IPCUninit:
		return "UNINIT"
	case IPCInit:
		return "INIT"
	case IPCRunning:
		return "RUNNING"
	case IPCRecovery:
		return "RECOVERY"
	case IPCError:
		return "ERROR"
	case IPCDontCare:
		return "DONT_CARE"
	case IPCInvalid:
		return "INVALID"
	default:
		return fmt.Sprintf("IPC(%d)", uint32(s))
	}
}
