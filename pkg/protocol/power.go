package protocol

import (
	"errors"

	"github.com/gobeyondidentity/ipclink/pkg/audit"
	"github.com/gobeyondidentity/ipclink/pkg/doorbell"
	"github.com/gobeyondidentity/ipclink/pkg/layout"
	"github.com/gobeyondidentity/ipclink/pkg/message"
	"github.com/gobeyondidentity/ipclink/pkg/pm"
)

// RequestSuspend tells the CP the host is about to sleep. It returns false,
// leaving the host active, if the link is down, any request is outstanding,
// the CP is not running or the CP does not acknowledge in time.
func (p *Protocol) RequestSuspend() bool {
	p.pmMu.Lock()
	defer p.pmMu.Unlock()

	if reason := p.suspendBlocker(); reason != "" {
		p.refuseSuspend(reason)
		return false
	}
	if !p.pm.PrepareHostSleep() {
		p.refuseSuspend("host not active")
		return false
	}

	// Pulsing the host-sleep unit wakes a sleeping device.
	p.pm.Trigger(pm.UnitHostSleep, true)
	active := p.pm.WaitForDeviceActive(p.cfg.DeviceActiveTimeout)
	p.pm.Trigger(pm.UnitHostSleep, false)
	if !active {
		p.pm.SetHostState(pm.HostActive)
		p.refuseSuspend("device not active")
		return false
	}

	_, err := p.SendBlocking(message.HostSleep{Target: message.TargetHost, State: message.EnterSleep})
	if err != nil {
		p.pm.SetHostState(pm.HostActive)
		p.refuseSuspend(err.Error())
		return false
	}

	p.pm.SetHostState(pm.HostSleep)
	p.logger.Info("host suspended")
	p.emit(audit.NewSuspend(p.instance))
	return true
}

func (p *Protocol) suspendBlocker() string {
	switch {
	case p.Closed():
		return "closed"
	case p.Broken():
		return "link broken"
	case p.ring.Outstanding() > 0 || p.table.Pending() > 0:
		return "requests outstanding"
	case p.region.IPCStatus() != layout.IPCRunning:
		return "device not running"
	}
	return ""
}

func (p *Protocol) refuseSuspend(reason string) {
	p.logger.Warn("suspend refused", "reason", reason)
	p.emit(audit.NewSuspendRefused(p.instance, reason))
}

// RequestResume tells the CP the host is awake again. Ring updates deferred
// while the host slept are replayed once the host is active.
func (p *Protocol) RequestResume() bool {
	p.pmMu.Lock()
	defer p.pmMu.Unlock()

	if p.Closed() {
		return false
	}
	if !p.pm.PrepareHostActive() {
		p.failResume("host not asleep")
		return false
	}

	_, err := p.SendBlocking(message.HostSleep{Target: message.TargetHost, State: message.ExitSleep})
	if err != nil {
		p.pm.SetHostState(pm.HostSleep)
		p.failResume(err.Error())
		return false
	}

	p.pm.SetHostState(pm.HostActive)
	p.logger.Info("host resumed")
	p.emit(audit.NewResume(p.instance))
	return true
}

func (p *Protocol) failResume(reason string) {
	p.logger.Warn("resume failed", "reason", reason)
	p.emit(audit.NewResumeFailed(p.instance, reason))
}

// NoteIdleSleepTransition records that the platform is entering or leaving
// idle sleep, where the device follows the host without a handshake.
func (p *Protocol) NoteIdleSleepTransition(enteringSleep bool) {
	p.logger.Info("idle sleep transition", "entering", enteringSleep)
	p.pm.SetS2IdleSleep(enteringSleep)
}

// HandleDeviceSleepNotification reads the device sleep notification and
// applies it. It returns true once per recognized transition; repeats and
// unrecognized values return false.
func (p *Protocol) HandleDeviceSleepNotification() bool {
	if p.Closed() {
		return false
	}
	req := pm.DeviceState(p.region.SleepNotification())
	prev := p.pm.Notification()

	changed, err := p.pm.DeviceNotification(req)
	if err != nil {
		if errors.Is(err, ErrUnrecognizedNotification) {
			p.logger.Warn("sleep notification dropped", "error", err)
			p.emit(audit.NewNotificationDrop(p.instance, err.Error()))
		}
		return false
	}
	if changed {
		p.logger.Debug("device sleep transition", "from", prev, "to", req)
		p.emit(audit.NewDeviceSleep(p.instance, prev.String(), req.String()))
	}
	return changed
}

// SleepNotificationString returns the name of the last sleep notification handled.
func (p *Protocol) SleepNotificationString() string {
	return p.pm.Notification().String()
}

// HostState returns the host side of the suspend handshake.
func (p *Protocol) HostState() pm.HostState { return p.pm.HostState() }

// DeviceState returns the AP view of the device power state.
func (p *Protocol) DeviceState() pm.DeviceState { return p.pm.APState() }

// TriggerDoorbell rings the HPDA doorbell with id on behalf of tag, waking
// the device first if needed. While the host is suspended the update is
// deferred until resume. It reports whether the doorbell was rung now.
func (p *Protocol) TriggerDoorbell(id doorbell.Identifier, tag string) bool {
	if p.Closed() {
		return false
	}
	rung := p.signaler.Update(id, true)
	p.logger.Debug("doorbell", "identifier", id, "tag", tag, "rung", rung)
	return rung
}
