// Package pm tracks the power state of the AP/CP link.
//
// The manager combines three wake conditions (doorbell in flight, host sleep
// pulse, device link) into AP and CP device states. When a doorbell is needed
// while the device sleeps, it asks the device to wake through the sleep
// doorbell and replays the deferred ring update once the device reports
// ACTIVE again.
package pm

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gobeyondidentity/ipclink/pkg/doorbell"
)

// ErrUnrecognizedNotification is returned for sleep notifications that have
// no transition from the current device state.
var ErrUnrecognizedNotification = errors.New("pm: unrecognized sleep notification")

// DefaultActiveTimeout bounds WaitForDeviceActive when no timeout is given.
const DefaultActiveTimeout = 500 * time.Millisecond

type conditions struct {
	irq  bool
	hs   bool
	link bool
}

// Manager is the power management state of one link. It implements doorbell.PowerGate.
type Manager struct {
	ringer doorbell.Ringer
	logger *slog.Logger

	mu           sync.Mutex
	cond         conditions
	apState      DeviceState
	cpState      DeviceState
	host         HostState
	notification DeviceState
	pending      bool
	active       chan struct{} // closed while apState is DeviceActive
	closed       chan struct{}
}

// New returns a manager for a device that starts out active.
// If logger is nil, slog.Default() is used.
func New(r doorbell.Ringer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	active := make(chan struct{})
	close(active)
	return &Manager{
		ringer:       r,
		logger:       logger,
		cond:         conditions{link: true},
		apState:      DeviceActive,
		cpState:      DeviceActive,
		host:         HostActive,
		notification: DeviceActive,
		active:       active,
		closed:       make(chan struct{}),
	}
}

// setAPLocked moves the AP view of the device and maintains the active channel.
func (m *Manager) setAPLocked(s DeviceState) {
	was := m.apState == DeviceActive
	m.apState = s
	switch {
	case s == DeviceActive && !was:
		close(m.active)
	case s != DeviceActive && was:
		m.active = make(chan struct{})
	}
}

// Trigger sets the condition of unit and reports whether the link is up.
func (m *Manager) Trigger(unit Unit, active bool) bool {
	m.mu.Lock()
	link, rings := m.triggerLocked(unit, active)
	m.mu.Unlock()

	m.ring(rings)
	return link
}

func (m *Manager) triggerLocked(unit Unit, active bool) (bool, []doorbell.Ring) {
	old := m.cond
	switch unit {
	case UnitIRQ:
		m.cond.irq = active
	case UnitHostSleep:
		m.cond.hs = active
	case UnitLink:
		m.cond.link = active
	}
	if old == m.cond {
		return m.cond.link, nil
	}

	var rings []doorbell.Ring
	if unit == UnitLink {
		if active {
			m.cpState = DeviceActive
			m.setAPLocked(DeviceActive)
			if m.pending && m.hostAwakeLocked() {
				rings = append(rings, doorbell.Ring{Bell: doorbell.BellHPDA, Value: uint32(doorbell.IdentPMTrigger)})
				m.pending = false
				m.cond.irq = false
			}
			return true, rings
		}
		m.cpState = DeviceSleep
		if m.cond.irq || m.cond.hs {
			m.setAPLocked(DeviceActiveWait)
			rings = append(rings, doorbell.Ring{Bell: doorbell.BellSleep, Value: uint32(DeviceWakeup)})
		} else {
			m.setAPLocked(DeviceSleep)
		}
		return false, rings
	}

	if active && !m.cond.link && m.apState != DeviceActiveWait {
		m.setAPLocked(DeviceActiveWait)
		rings = append(rings, doorbell.Ring{Bell: doorbell.BellSleep, Value: uint32(DeviceWakeup)})
	}
	return m.cond.link, rings
}

func (m *Manager) ring(rings []doorbell.Ring) {
	for _, r := range rings {
		m.logger.Debug("pm doorbell", "bell", r.Bell, "value", r.Value)
		m.ringer.Ring(r.Bell, r.Value)
	}
}

// Wake holds the IRQ unit and reports whether a doorbell can be rung now.
func (m *Manager) Wake() bool { return m.Trigger(UnitIRQ, true) }

// WakeOrDefer holds the IRQ unit and, if the link is down, records a ring
// update to replay once the device is active.
func (m *Manager) WakeOrDefer() bool {
	m.mu.Lock()
	link, rings := m.triggerLocked(UnitIRQ, true)
	if !link {
		m.pending = true
	}
	m.mu.Unlock()

	m.ring(rings)
	return link
}

// Idle releases the IRQ unit.
func (m *Manager) Idle() { m.Trigger(UnitIRQ, false) }

// HostAsleep reports whether the host is past the point of accepting updates.
func (m *Manager) HostAsleep() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.hostAwakeLocked()
}

func (m *Manager) hostAwakeLocked() bool {
	return m.host == HostActive || m.host == HostActiveWait
}

// DeferUpdate records a ring update to replay once the device and host are active.
func (m *Manager) DeferUpdate() {
	m.mu.Lock()
	m.pending = true
	m.mu.Unlock()
}

// PendingUpdate reports whether a deferred ring update is waiting.
func (m *Manager) PendingUpdate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// DeviceNotification applies a sleep notification read from device info.
// It reports whether the notification was a new, recognized transition.
func (m *Manager) DeviceNotification(req DeviceState) (bool, error) {
	m.mu.Lock()
	if req == m.notification {
		m.mu.Unlock()
		return false, nil
	}
	m.notification = req

	var rings []doorbell.Ring
	var err error
	switch m.cpState {
	case DeviceActive:
		switch req {
		case DeviceActive:
		case DeviceSleep:
			_, rings = m.triggerLocked(UnitLink, false)
		default:
			err = fmt.Errorf("%w: %s while device %s", ErrUnrecognizedNotification, req, m.cpState)
		}
	case DeviceSleep:
		switch req {
		case DeviceSleep:
		case DeviceActive:
			_, rings = m.triggerLocked(UnitLink, true)
		default:
			err = fmt.Errorf("%w: %s while device %s", ErrUnrecognizedNotification, req, m.cpState)
		}
	default:
		err = fmt.Errorf("%w: device in state %s", ErrUnrecognizedNotification, m.cpState)
	}
	m.mu.Unlock()

	m.ring(rings)
	if err != nil {
		return false, err
	}
	return true, nil
}

// Notification returns the last sleep notification seen.
func (m *Manager) Notification() DeviceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notification
}

// APState returns the AP view of the device power state.
func (m *Manager) APState() DeviceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apState
}

// CPState returns the last power state the device reported.
func (m *Manager) CPState() DeviceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cpState
}

// PrepareHostSleep moves the host from ACTIVE to SLEEP_WAIT_D3.
func (m *Manager) PrepareHostSleep() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.host != HostActive {
		m.logger.Warn("host sleep refused", "host_state", m.host)
		return false
	}
	m.host = HostSleepWaitD3
	return true
}

// PrepareHostActive moves the host from SLEEP to ACTIVE_WAIT.
func (m *Manager) PrepareHostActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.host != HostSleep {
		m.logger.Warn("host wake refused", "host_state", m.host)
		return false
	}
	m.host = HostActiveWait
	return true
}

// SetHostState forces the host state. Entering ACTIVE replays a deferred update.
func (m *Manager) SetHostState(s HostState) {
	m.mu.Lock()
	m.host = s
	var rings []doorbell.Ring
	if s == HostActive && m.pending && m.cond.link {
		m.pending = false
		rings = append(rings, doorbell.Ring{Bell: doorbell.BellHPDA, Value: uint32(doorbell.IdentPMTrigger)})
	}
	m.mu.Unlock()

	m.ring(rings)
}

// HostState returns the host state.
func (m *Manager) HostState() HostState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.host
}

// WaitForDeviceActive blocks until the AP sees the device active, timeout
// elapses or the manager is closed.
func (m *Manager) WaitForDeviceActive(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultActiveTimeout
	}
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-active:
		return true
	case <-m.closed:
		return false
	case <-timer.C:
		m.logger.Error("device did not become active", "ap_state", m.APState(), "timeout", timeout)
		return false
	}
}

// SetS2IdleSleep records a platform idle-sleep transition. Entering idle
// sleep marks both sides asleep; leaving it marks them active with the link up.
func (m *Manager) SetS2IdleSleep(sleep bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sleep {
		m.setAPLocked(DeviceSleep)
		m.cpState = DeviceSleep
		m.notification = DeviceSleep
		return
	}
	m.setAPLocked(DeviceActive)
	m.cpState = DeviceActive
	m.notification = DeviceActive
	m.cond.link = true
}

// Close releases anyone blocked in WaitForDeviceActive. It is safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.closed:
	default:
		close(m.closed)
	}
}
