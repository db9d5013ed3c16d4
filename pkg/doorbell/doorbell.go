// Package doorbell turns logical notifications into physical doorbell writes.
//
// The physical side is a Ringer: writing a value to one of the CP's doorbell
// registers. Before any ring-update or control doorbell is issued the Signaler
// asks a PowerGate to keep the link awake; if the device is asleep the update
// is recorded and replayed by the gate once the device is back.
package doorbell

import "fmt"

// Bell is a physical doorbell register on the CP.
type Bell int

const (
	// BellHPDA announces new work in the shared region.
	BellHPDA Bell = 0
	// BellIPC carries IPC control codes.
	BellIPC Bell = 1
	// BellSleep carries power management requests.
	BellSleep Bell = 2
)

func (b Bell) String() string {
	switch b {
	case BellHPDA:
		return "hpda"
	case BellIPC:
		return "ipc"
	case BellSleep:
		return "sleep"
	default:
		return fmt.Sprintf("bell(%d)", int(b))
	}
}

// Identifier tells the CP why a ring-update doorbell was rung.
type Identifier uint32

const (
	IdentMessageRing Identifier = iota
	IdentPMTrigger
	IdentWakeupSpecTimer
	IdentTDUpdateTimerStart
	IdentTDUpdateTimer
	IdentFastTDUpdateTimer
	IdentULWriteTD
	IdentDLProcess
	IdentNetChannelInit
	IdentCDevOpen
)

var identNames = [...]string{
	"message_ring",
	"pm_trigger",
	"wakeup_spec_timer",
	"td_update_timer_start",
	"td_update_timer",
	"fast_td_update_timer",
	"ul_write_td",
	"dl_process",
	"net_channel_init",
	"cdev_open",
}

func (id Identifier) String() string {
	if int(id) < len(identNames) {
		return identNames[id]
	}
	return fmt.Sprintf("identifier(%d)", uint32(id))
}

// Ringer writes value to a physical doorbell.
type Ringer interface {
	Ring(bell Bell, value uint32)
}

// RingerFunc adapts a function to Ringer.
type RingerFunc func(bell Bell, value uint32)

func (f RingerFunc) Ring(bell Bell, value uint32) { f(bell, value) }

// PowerGate is the power management view the Signaler needs.
type PowerGate interface {
	// Wake marks a doorbell as in flight and reports whether the link is
	// usable right now. When it is not, the gate has started waking the device.
	Wake() bool
	// WakeOrDefer is Wake, except that when the link is not usable the ring
	// update is recorded for replay in the same step, so a device that wakes
	// in between cannot miss it.
	WakeOrDefer() bool
	// Idle ends the in-flight doorbell started by a successful Wake.
	Idle()
	// HostAsleep reports whether the host side is suspended.
	HostAsleep() bool
	// DeferUpdate records a ring update to replay once the device is active.
	DeferUpdate()
}
