package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeyondidentity/ipclink/pkg/audit"
	"github.com/gobeyondidentity/ipclink/pkg/doorbell"
	"github.com/gobeyondidentity/ipclink/pkg/layout"
	"github.com/gobeyondidentity/ipclink/pkg/message"
	"github.com/gobeyondidentity/ipclink/pkg/transport"
)

type failingLink struct{ unbinds int }

func (l *failingLink) Bind(*transport.Mapping, transport.IRQHandler) error {
	return errors.New("no such device")
}
func (l *failingLink) Unbind() { l.unbinds++ }

func TestInit_PublishesContextInfo(t *testing.T) {
	t.Parallel()
	t.Log("Testing that Init writes CP-visible block addresses into the context info")

	alloc := transport.NewMockAllocator(transport.WithBusBase(0x9000_0000))
	cfg := DefaultConfig()
	cfg.MsgVector = 1
	cfg.DeviceVector = 2
	events := &eventLog{}

	p, err := Init(cfg, Deps{
		Ringer:    doorbell.NewRecorder(8),
		Allocator: alloc,
		Logger:    quietLogger(),
		Events:    events,
	})
	require.NoError(t, err)
	defer p.Deinit()

	assert.Equal(t, layout.NewContextInfo(0x9000_0000, 1, 2), p.Region().ContextInfo())
	assert.Equal(t, uint64(0x9000_0000), p.BusAddr())
	assert.Len(t, p.Region().Bytes(), layout.RegionSize)
	assert.NotEmpty(t, p.Instance(), "instance defaults to a generated id")
	assert.Equal(t, 1, events.count(audit.EventLinkUp))

	s := p.Snapshot()
	assert.False(t, s.Broken)
	assert.Equal(t, "ACTIVE", s.SleepNotification)
	assert.Equal(t, "ACTIVE", s.HostState)
	assert.Equal(t, 0, s.Outstanding)
}

func TestInit_Failures(t *testing.T) {
	t.Parallel()

	t.Run("allocation", func(t *testing.T) {
		alloc := transport.NewMockAllocator(transport.WithAllocError(errors.New("no dma memory")))
		p, err := Init(DefaultConfig(), Deps{Ringer: doorbell.NewRecorder(1), Allocator: alloc, Logger: quietLogger()})
		assert.Nil(t, p)
		assert.ErrorIs(t, err, ErrAllocation)
	})

	t.Run("bind", func(t *testing.T) {
		alloc := transport.NewMockAllocator()
		p, err := Init(DefaultConfig(), Deps{
			Ringer:    doorbell.NewRecorder(1),
			Allocator: alloc,
			Link:      &failingLink{},
			Logger:    quietLogger(),
		})
		assert.Nil(t, p)
		assert.ErrorContains(t, err, "no such device")
		assert.Equal(t, 0, alloc.Outstanding(), "region released")
	})

	t.Run("no ringer", func(t *testing.T) {
		p, err := Init(DefaultConfig(), Deps{Logger: quietLogger()})
		assert.Nil(t, p)
		assert.Error(t, err)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RunTimeout = 0
		p, err := Init(cfg, Deps{Ringer: doorbell.NewRecorder(1), Logger: quietLogger()})
		assert.Nil(t, p)
		assert.ErrorContains(t, err, "run timeout")
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"boot timeout", func(c *Config) { c.BootTimeout = -time.Second }, "boot timeout"},
		{"active timeout", func(c *Config) { c.DeviceActiveTimeout = -1 }, "device active timeout"},
		{"retry attempts", func(c *Config) { c.RingFullRetry.MaxAttempts = -1 }, "retry attempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDeinit(t *testing.T) {
	t.Parallel()
	t.Log("Testing that Deinit fails in-flight requests and releases the region once")

	h := booted(t, DefaultConfig())
	h.dev.SetUnresponsive(true)

	done := make(chan error, 1)
	go func() {
		_, err := h.p.SendBlocking(message.PipeClose{PipeNr: 1})
		done <- err
	}()
	require.Eventually(t, func() bool { return h.p.Outstanding() == 1 }, waitFor, time.Millisecond)

	require.NoError(t, h.p.Deinit())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(waitFor):
		t.Fatal("blocked sender was not released by Deinit")
	}

	assert.Equal(t, 0, h.alloc.Outstanding())
	assert.NoError(t, h.p.Deinit(), "second Deinit is a no-op")
	assert.Len(t, h.alloc.Frees(), 1)

	_, err := h.p.SendDeferred(message.PipeClose{PipeNr: 1}, nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, h.p.TriggerDoorbell(doorbell.IdentDLProcess, "test"))
	assert.True(t, h.p.Snapshot().Closed)

	ev, ok := h.events.last(audit.EventLinkClosed)
	require.True(t, ok)
	assert.Equal(t, "1", ev.Details["abandoned"])
}

func TestPipeIndices(t *testing.T) {
	t.Parallel()

	h := newHarness(t, DefaultConfig())
	require.NoError(t, h.p.SetPipeHead(3, 17))
	head, err := h.p.PipeHead(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(17), head)

	h.p.Region().SetPipeTail(3, 9)
	tail, err := h.p.PipeTail(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), tail)

	require.NoError(t, h.p.ResetPipe(3))
	head, _ = h.p.PipeHead(3)
	tail, _ = h.p.PipeTail(3)
	assert.Zero(t, head)
	assert.Zero(t, tail)

	for _, pipe := range []int{-1, layout.MaxPipes} {
		_, err := h.p.PipeHead(pipe)
		assert.ErrorIs(t, err, ErrInvalidPipe)
		assert.ErrorIs(t, h.p.SetPipeHead(pipe, 1), ErrInvalidPipe)
		_, err = h.p.PipeTail(pipe)
		assert.ErrorIs(t, err, ErrInvalidPipe)
		assert.ErrorIs(t, h.p.ResetPipe(pipe), ErrInvalidPipe)
	}
}

type pipeIRQs struct{ vectors chan int }

func (p *pipeIRQs) HandleIRQ(v int) { p.vectors <- v }

func TestHandleIRQ_PipeVectors(t *testing.T) {
	t.Parallel()

	pipes := &pipeIRQs{vectors: make(chan int, 1)}
	p, err := Init(DefaultConfig(), Deps{Ringer: doorbell.NewRecorder(1), Pipes: pipes, Logger: quietLogger()})
	require.NoError(t, err)
	defer p.Deinit()

	p.HandleIRQ(5)
	assert.Equal(t, 5, <-pipes.vectors)
}

func TestStageChange(t *testing.T) {
	t.Parallel()

	h := booted(t, DefaultConfig())
	h.dev.SetStage(layout.StageCrash)
	require.Eventually(t, func() bool { return h.events.count(audit.EventStageChange) == 2 }, waitFor, time.Millisecond)

	ev, _ := h.events.last(audit.EventStageChange)
	assert.Equal(t, "RUN", ev.Details["from"])
	assert.Equal(t, "CRASH", ev.Details["to"])
}

func TestTriggerDoorbell(t *testing.T) {
	t.Parallel()

	rec := doorbell.NewRecorder(4)
	p, err := Init(DefaultConfig(), Deps{Ringer: rec, Logger: quietLogger()})
	require.NoError(t, err)
	defer p.Deinit()

	assert.True(t, p.TriggerDoorbell(doorbell.IdentNetChannelInit, "net0"))
	assert.Equal(t, []doorbell.Ring{{Bell: doorbell.BellHPDA, Value: uint32(doorbell.IdentNetChannelInit)}}, rec.Rings())
}
