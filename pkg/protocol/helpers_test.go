package protocol

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gobeyondidentity/ipclink/pkg/audit"
	"github.com/gobeyondidentity/ipclink/pkg/cpsim"
	"github.com/gobeyondidentity/ipclink/pkg/layout"
	"github.com/gobeyondidentity/ipclink/pkg/transport"
)

const waitFor = 2 * time.Second

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// eventLog records emitted events.
type eventLog struct {
	mu     sync.Mutex
	events []audit.Event
}

func (l *eventLog) Emit(ev audit.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) count(et audit.EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Type == et {
			n++
		}
	}
	return n
}

func (l *eventLog) last(et audit.EventType) (audit.Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Type == et {
			return l.events[i], true
		}
	}
	return audit.Event{}, false
}

type harness struct {
	p      *Protocol
	dev    *cpsim.Device
	alloc  *transport.MockAllocator
	events *eventLog
}

// newHarness starts a protocol bound to a simulated CP that has not booted yet.
func newHarness(t *testing.T, cfg Config, opts ...cpsim.Option) *harness {
	t.Helper()
	dev := cpsim.New(append([]cpsim.Option{cpsim.WithLogger(quietLogger())}, opts...)...)
	alloc := transport.NewMockAllocator()
	events := &eventLog{}

	p, err := Init(cfg, Deps{
		Ringer:    dev,
		Allocator: alloc,
		Link:      dev,
		Logger:    quietLogger(),
		Events:    events,
		Instance:  t.Name(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { p.Deinit() })

	return &harness{p: p, dev: dev, alloc: alloc, events: events}
}

// booted is newHarness followed by a CP boot to the RUN stage.
func booted(t *testing.T, cfg Config, opts ...cpsim.Option) *harness {
	t.Helper()
	h := newHarness(t, cfg, opts...)
	h.dev.Boot()
	require.Eventually(t, func() bool {
		return h.events.count(audit.EventStageChange) == 1
	}, waitFor, time.Millisecond, "device did not boot")
	require.Equal(t, layout.IPCRunning, h.p.Region().IPCStatus())
	return h
}
