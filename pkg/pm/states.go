package pm

import "fmt"

// Unit is a reason for keeping the device awake.
type Unit int

const (
	// UnitIRQ is held while a doorbell is being issued.
	UnitIRQ Unit = iota
	// UnitHostSleep is pulsed to wake the device ahead of a host sleep message.
	UnitHostSleep
	// UnitLink follows the device's own sleep notifications.
	UnitLink
)

func (u Unit) String() string {
	switch u {
	case UnitIRQ:
		return "irq"
	case UnitHostSleep:
		return "host_sleep"
	case UnitLink:
		return "link"
	default:
		return fmt.Sprintf("unit(%d)", int(u))
	}
}

// DeviceState is a device power state, as used in sleep notifications and
// sleep doorbell requests.
type DeviceState uint32

const (
	DeviceActive      DeviceState = 0
	DeviceSleep       DeviceState = 1
	DeviceWakeup      DeviceState = 2
	DeviceHostSleep   DeviceState = 3
	DeviceActiveWait  DeviceState = 4
	DeviceForceSleep  DeviceState = 7
	DeviceForceActive DeviceState = 8
)

func (s DeviceState) String() string {
	switch s {
	case DeviceActive:
		return "ACTIVE"
	case DeviceSleep:
		return "SLEEP"
	case DeviceWakeup:
		return "WAKEUP"
	case DeviceHostSleep:
		return "HOST_SLEEP"
	case DeviceActiveWait:
		return "ACTIVE_WAIT"
	case DeviceForceSleep:
		return "FORCE_SLEEP"
	case DeviceForceActive:
		return "FORCE_ACTIVE"
	default:
		return "INVALID"
	}
}

// HostState is the host side of the suspend/resume state machine.
type HostState int

const (
	HostActive HostState = iota
	HostActiveWait
	HostSleepWaitIdle
	HostSleepWaitD3
	HostSleep
	HostSleepWaitExitSleep
)

func (s HostState) String() string {
	switch s {
	case HostActive:
		return "ACTIVE"
	case HostActiveWait:
		return "ACTIVE_WAIT"
	case HostSleepWaitIdle:
		return "SLEEP_WAIT_IDLE"
	case HostSleepWaitD3:
		return "SLEEP_WAIT_D3"
	case HostSleep:
		return "SLEEP"
	case HostSleepWaitExitSleep:
		return "SLEEP_WAIT_EXIT_SLEEP"
	default:
		return fmt.Sprintf("host(%d)", int(s))
	}
}
