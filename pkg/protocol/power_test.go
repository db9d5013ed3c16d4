package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeyondidentity/ipclink/pkg/audit"
	"github.com/gobeyondidentity/ipclink/pkg/cpsim"
	"github.com/gobeyondidentity/ipclink/pkg/doorbell"
	"github.com/gobeyondidentity/ipclink/pkg/message"
	"github.com/gobeyondidentity/ipclink/pkg/pm"
)

func TestSuspendResume_Cycle(t *testing.T) {
	t.Parallel()
	t.Log("Testing a full suspend/resume handshake with a deferred doorbell in between")

	h := booted(t, DefaultConfig())

	require.True(t, h.p.RequestSuspend())
	assert.Equal(t, pm.HostSleep, h.p.HostState())
	assert.Equal(t, 1, h.events.count(audit.EventSuspend))
	assert.Equal(t, 1, h.dev.Processed(), "ENTER_SLEEP was acknowledged")

	t.Log("A doorbell while suspended is deferred")
	hpda := h.dev.Rings(doorbell.BellHPDA)
	assert.False(t, h.p.TriggerDoorbell(doorbell.IdentDLProcess, "dl"))
	assert.Equal(t, hpda, h.dev.Rings(doorbell.BellHPDA))
	assert.False(t, h.p.RequestSuspend(), "already suspended")

	require.True(t, h.p.RequestResume())
	assert.Equal(t, pm.HostActive, h.p.HostState())
	assert.Equal(t, 1, h.events.count(audit.EventResume))
	assert.Equal(t, 2, h.dev.Processed(), "EXIT_SLEEP was acknowledged")
	assert.Equal(t, hpda+2, h.dev.Rings(doorbell.BellHPDA), "EXIT_SLEEP ring plus the replayed update")

	assert.False(t, h.p.RequestResume(), "host is not asleep")
	assert.Equal(t, 1, h.events.count(audit.EventResumeFailed))
}

func TestRequestSuspend_Refused(t *testing.T) {
	t.Parallel()

	t.Run("requests outstanding", func(t *testing.T) {
		t.Parallel()
		h := booted(t, DefaultConfig(), cpsim.WithUnresponsive())
		_, err := h.p.SendDeferred(message.PipeClose{PipeNr: 2}, nil)
		require.NoError(t, err)

		assert.False(t, h.p.RequestSuspend())
		assert.Equal(t, pm.HostActive, h.p.HostState())
		ev, ok := h.events.last(audit.EventSuspendRefused)
		require.True(t, ok)
		assert.Equal(t, "requests outstanding", ev.Details["reason"])
	})

	t.Run("device not running", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, DefaultConfig())
		assert.False(t, h.p.RequestSuspend())
		ev, _ := h.events.last(audit.EventSuspendRefused)
		assert.Equal(t, "device not running", ev.Details["reason"])
	})

	t.Run("device rejects", func(t *testing.T) {
		t.Parallel()
		h := booted(t, DefaultConfig(), cpsim.WithStatus(message.TypeHostSleep, message.StatusError))
		assert.False(t, h.p.RequestSuspend())
		assert.Equal(t, pm.HostActive, h.p.HostState(), "host state restored")
		assert.False(t, h.p.Broken())
	})

	t.Run("link broken", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		cfg.RunTimeout = 20 * time.Millisecond
		h := booted(t, cfg, cpsim.WithUnresponsive())
		_, err := h.p.SendBlocking(message.PipeClose{PipeNr: 0})
		require.ErrorIs(t, err, ErrTimeout)

		h.dev.SetUnresponsive(false)
		h.dev.Kick()
		require.Eventually(t, func() bool { return h.p.Outstanding() == 0 }, waitFor, time.Millisecond)
		assert.False(t, h.p.RequestSuspend())
		ev, _ := h.events.last(audit.EventSuspendRefused)
		assert.Equal(t, "link broken", ev.Details["reason"])
	})
}

func TestRequestResume_FailureKeepsHostAsleep(t *testing.T) {
	t.Parallel()

	h := booted(t, DefaultConfig())
	require.True(t, h.p.RequestSuspend())

	h.dev.SetUnresponsive(true)
	assert.False(t, h.p.RequestResume())
	assert.Equal(t, pm.HostSleep, h.p.HostState())
	assert.True(t, h.p.Broken())
}

func TestHandleDeviceSleepNotification(t *testing.T) {
	t.Parallel()
	t.Log("Testing that each recognized transition is handled exactly once")

	events := &eventLog{}
	p, err := Init(DefaultConfig(), Deps{Ringer: doorbell.NewRecorder(8), Logger: quietLogger(), Events: events})
	require.NoError(t, err)
	defer p.Deinit()

	assert.False(t, p.HandleDeviceSleepNotification(), "ACTIVE is the starting value")

	p.Region().SetSleepNotification(uint32(pm.DeviceSleep))
	assert.True(t, p.HandleDeviceSleepNotification())
	assert.False(t, p.HandleDeviceSleepNotification())
	assert.Equal(t, "SLEEP", p.SleepNotificationString())
	assert.Equal(t, pm.DeviceSleep, p.DeviceState())

	ev, ok := events.last(audit.EventDeviceSleep)
	require.True(t, ok)
	assert.Equal(t, "ACTIVE", ev.Details["from"])
	assert.Equal(t, "SLEEP", ev.Details["to"])

	p.Region().SetSleepNotification(uint32(pm.DeviceActive))
	assert.True(t, p.HandleDeviceSleepNotification())
	assert.Equal(t, "ACTIVE", p.SleepNotificationString())
	assert.Equal(t, 2, events.count(audit.EventDeviceSleep))
}

func TestHandleDeviceSleepNotification_Unrecognized(t *testing.T) {
	t.Parallel()

	events := &eventLog{}
	p, err := Init(DefaultConfig(), Deps{Ringer: doorbell.NewRecorder(8), Logger: quietLogger(), Events: events})
	require.NoError(t, err)
	defer p.Deinit()

	p.Region().SetSleepNotification(uint32(pm.DeviceForceActive))
	assert.False(t, p.HandleDeviceSleepNotification())
	assert.Equal(t, 1, events.count(audit.EventNotificationDrop))
	assert.Equal(t, "FORCE_ACTIVE", p.SleepNotificationString())

	p.Region().SetSleepNotification(0x55)
	assert.False(t, p.HandleDeviceSleepNotification())
	assert.Equal(t, "INVALID", p.SleepNotificationString())
}

func TestDeviceInfoIRQ_IgnoredUntilRunning(t *testing.T) {
	t.Parallel()
	t.Log("Testing that sleep notifications are ignored until IPC is running")

	h := newHarness(t, DefaultConfig())
	h.dev.Sleep()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "ACTIVE", h.p.SleepNotificationString())

	h.dev.Boot()
	require.Eventually(t, func() bool { return h.p.SleepNotificationString() == "SLEEP" }, waitFor, time.Millisecond)
}

func TestNoteIdleSleepTransition(t *testing.T) {
	t.Parallel()

	p, err := Init(DefaultConfig(), Deps{Ringer: doorbell.NewRecorder(8), Logger: quietLogger()})
	require.NoError(t, err)
	defer p.Deinit()

	p.NoteIdleSleepTransition(true)
	assert.Equal(t, pm.DeviceSleep, p.DeviceState())
	assert.Equal(t, "SLEEP", p.SleepNotificationString())

	p.NoteIdleSleepTransition(false)
	assert.Equal(t, pm.DeviceActive, p.DeviceState())
	assert.Equal(t, "ACTIVE", p.SleepNotificationString())
}
