package doorbell

import "log/slog"

// Signaler issues logical doorbells through a PowerGate.
type Signaler struct {
	ringer Ringer
	gate   PowerGate
	logger *slog.Logger
}

// NewSignaler returns a Signaler ringing r once g lets it.
// If logger is nil, slog.Default() is used.
func NewSignaler(r Ringer, g PowerGate, logger *slog.Logger) *Signaler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Signaler{ringer: r, gate: g, logger: logger}
}

// Update rings the HPDA doorbell with id. With hostSleepCheck set, an update
// issued while the host is suspended is deferred instead of waking the device.
// It reports whether the physical doorbell was rung now.
func (s *Signaler) Update(id Identifier, hostSleepCheck bool) bool {
	if hostSleepCheck && s.gate.HostAsleep() {
		s.logger.Debug("doorbell deferred, host asleep", "identifier", id)
		s.gate.DeferUpdate()
		return false
	}
	if !s.gate.WakeOrDefer() {
		s.logger.Debug("doorbell deferred, device waking", "identifier", id)
		return false
	}
	s.ringer.Ring(BellHPDA, uint32(id))
	s.gate.Idle()
	return true
}

// Control rings the IPC doorbell with code. Control codes are not replayed,
// so it reports false when the device could not be reached.
func (s *Signaler) Control(code uint32) bool {
	if !s.gate.Wake() {
		s.logger.Warn("control doorbell dropped, device asleep", "code", code)
		s.gate.Idle()
		return false
	}
	s.ringer.Ring(BellIPC, code)
	s.gate.Idle()
	return true
}
