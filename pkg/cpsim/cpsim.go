// Package cpsim is a software CP. It binds to a region published by the AP,
// consumes the message ring when the HPDA doorbell rings, answers wakeup
// requests on the sleep doorbell and raises interrupts back to the AP.
//
// All interrupts are raised from a single device goroutine, so the AP sees
// them serialized the way a real interrupt line delivers them.
package cpsim

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobeyondidentity/ipclink/pkg/doorbell"
	"github.com/gobeyondidentity/ipclink/pkg/layout"
	"github.com/gobeyondidentity/ipclink/pkg/message"
	"github.com/gobeyondidentity/ipclink/pkg/pm"
	"github.com/gobeyondidentity/ipclink/pkg/transport"
)

var (
	// ErrAlreadyBound is returned by Bind when the device already serves a region.
	ErrAlreadyBound = errors.New("cpsim: already bound")

	// ErrBadContext is returned when the context info does not describe the region.
	ErrBadContext = errors.New("cpsim: context info does not match region")
)

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the device logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) { d.logger = l }
}

// WithUnresponsive starts the device ignoring the message ring.
func WithUnresponsive() Option {
	return func(d *Device) { d.unresponsive.Store(true) }
}

// WithStatus makes the device complete every message of type t with s.
func WithStatus(t message.Type, s message.Status) Option {
	return func(d *Device) { d.statuses[t] = s }
}

// WithLatency delays every acknowledgement batch by lat.
func WithLatency(lat time.Duration) Option {
	return func(d *Device) { d.latency = lat }
}

// Device is a simulated CP. It implements doorbell.Ringer and transport.Link.
type Device struct {
	logger   *slog.Logger
	statuses map[message.Type]message.Status
	latency  time.Duration

	unresponsive atomic.Bool
	processed    atomic.Int64

	mu       sync.Mutex
	region   *layout.Region
	irq      transport.IRQHandler
	ctx      layout.ContextInfo
	offs     offsets
	rings    map[doorbell.Bell]int
	controls []uint32
	bound    bool

	kick chan struct{}
	ops  chan func()
	stop chan struct{}
	wg   sync.WaitGroup
}

// offsets are the region offsets the device derived from context info.
type offsets struct {
	devInfo int
	head    int
	tail    int
	ring    int
}

// Device info cells relative to the block start.
const (
	stageCell  = layout.ExecStageOffset - layout.DeviceInfoOffset
	statusCell = layout.IPCStatusOffset - layout.DeviceInfoOffset
	sleepCell  = layout.SleepNotificationOffset - layout.DeviceInfoOffset
)

// New returns an unbound device.
func New(opts ...Option) *Device {
	d := &Device{
		statuses: make(map[message.Type]message.Status),
		rings:    make(map[doorbell.Bell]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Bind locates the shared blocks through the context info in m and starts
// the device goroutine. IRQs are delivered to irq.
func (d *Device) Bind(m *transport.Mapping, irq transport.IRQHandler) error {
	region, err := layout.NewRegion(m.Mem, m.BusAddr)
	if err != nil {
		return err
	}
	ci := region.ContextInfo()
	if int(ci.MsgRingEntries) != layout.MsgEntries {
		return fmt.Errorf("%w: ring has %d entries", ErrBadContext, ci.MsgRingEntries)
	}

	var offs offsets
	for _, f := range []struct {
		addr uint64
		dst  *int
	}{
		{ci.DeviceInfoAddr, &offs.devInfo},
		{ci.MsgHeadAddr, &offs.head},
		{ci.MsgTailAddr, &offs.tail},
		{ci.MsgRingAddr, &offs.ring},
	} {
		off, err := region.Offset(f.addr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadContext, err)
		}
		*f.dst = off
	}
	if offs.ring+layout.MsgRingSize > len(region.Bytes()) {
		return fmt.Errorf("%w: ring runs past the region", ErrBadContext)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bound {
		return ErrAlreadyBound
	}
	d.region = region
	d.irq = irq
	d.ctx = ci
	d.offs = offs
	d.bound = true
	d.kick = make(chan struct{}, 1)
	d.ops = make(chan func(), 64)
	d.stop = make(chan struct{})

	d.wg.Add(1)
	go d.run(d.kick, d.ops, d.stop)

	d.logger.Debug("cp bound", "bus_addr", fmt.Sprintf("0x%x", m.BusAddr))
	return nil
}

// Unbind stops the device goroutine and waits for it to exit. No interrupt
// is raised after Unbind returns.
func (d *Device) Unbind() {
	d.mu.Lock()
	if !d.bound {
		d.mu.Unlock()
		return
	}
	d.bound = false
	close(d.stop)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Device) run(kick <-chan struct{}, ops <-chan func(), stop <-chan struct{}) {
	defer d.wg.Done()
	for {
		select {
		case <-stop:
			return
		case <-kick:
			if d.latency > 0 {
				select {
				case <-time.After(d.latency):
				case <-stop:
					return
				}
			}
			d.consume()
		case op := <-ops:
			op()
		}
	}
}

// post runs op on the device goroutine.
func (d *Device) post(op func()) {
	d.mu.Lock()
	if !d.bound {
		d.mu.Unlock()
		return
	}
	ops, stop := d.ops, d.stop
	d.mu.Unlock()

	select {
	case ops <- op:
	default:
		// Never block an interrupt handler that rings from the device goroutine.
		go func() {
			select {
			case ops <- op:
			case <-stop:
			}
		}()
	}
}

// Ring implements doorbell.Ringer.
func (d *Device) Ring(bell doorbell.Bell, value uint32) {
	d.mu.Lock()
	d.rings[bell]++
	if bell == doorbell.BellIPC {
		d.controls = append(d.controls, value)
	}
	bound, kick := d.bound, d.kick
	d.mu.Unlock()

	if !bound {
		return
	}
	switch bell {
	case doorbell.BellHPDA:
		select {
		case kick <- struct{}{}:
		default:
		}
	case doorbell.BellSleep:
		if pm.DeviceState(value) == pm.DeviceWakeup {
			d.post(func() { d.setSleep(pm.DeviceActive) })
		}
	}
}

// consume acknowledges every entry between the tail and the AP head.
func (d *Device) consume() {
	if d.unresponsive.Load() {
		return
	}
	r := d.region
	head := r.Load32(d.offs.head)
	tail := r.Load32(d.offs.tail)
	if head >= layout.MsgEntries || tail >= layout.MsgEntries {
		d.logger.Error("cp: index out of range", "head", head, "tail", tail)
		return
	}

	acked := 0
	for tail != head {
		e := d.entry(tail)
		t := message.TypeOf(e)
		status, ok := d.statuses[t]
		if !ok {
			status = message.StatusSuccess
		}
		if args, err := message.Decode(e); err != nil {
			d.logger.Warn("cp: undecodable entry", "slot", tail, "error", err)
			status = message.StatusError
		} else {
			d.logger.Debug("cp: entry", "slot", tail, "type", args.Type(), "status", status)
		}
		message.SetStatus(e, status)
		tail = (tail + 1) % layout.MsgEntries
		// Status is written before the tail moves past the entry.
		r.Store32(d.offs.tail, tail)
		acked++
	}
	if acked == 0 {
		return
	}
	d.processed.Add(int64(acked))
	d.irq.HandleIRQ(int(d.ctx.MsgIRQVector))
}

func (d *Device) entry(slot uint32) []byte {
	off := d.offs.ring + int(slot)*layout.EntrySize
	return d.region.Bytes()[off : off+layout.EntrySize]
}

func (d *Device) setSleep(s pm.DeviceState) {
	d.region.Store32(d.offs.devInfo+sleepCell, uint32(s))
	d.raiseDeviceIRQ()
}

func (d *Device) raiseDeviceIRQ() {
	d.irq.HandleIRQ(int(d.ctx.DeviceInfoIRQVector))
}

// Boot moves the device to the RUN stage with IPC running.
func (d *Device) Boot() {
	d.post(func() {
		d.region.Store32(d.offs.devInfo+stageCell, uint32(layout.StageRun))
		d.region.Store32(d.offs.devInfo+statusCell, uint32(layout.IPCRunning))
		d.raiseDeviceIRQ()
	})
}

// SetStage publishes a new execution stage.
func (d *Device) SetStage(s layout.ExecStage) {
	d.post(func() {
		d.region.Store32(d.offs.devInfo+stageCell, uint32(s))
		d.raiseDeviceIRQ()
	})
}

// SetIPCStatus publishes a new IPC status.
func (d *Device) SetIPCStatus(s layout.IPCStatus) {
	d.post(func() {
		d.region.Store32(d.offs.devInfo+statusCell, uint32(s))
		d.raiseDeviceIRQ()
	})
}

// Sleep announces that the device entered sleep.
func (d *Device) Sleep() {
	d.post(func() { d.setSleep(pm.DeviceSleep) })
}

// SetUnresponsive makes the device ignore (or stop ignoring) the message ring.
func (d *Device) SetUnresponsive(v bool) { d.unresponsive.Store(v) }

// Kick processes the message ring as if the HPDA doorbell had rung.
func (d *Device) Kick() {
	d.mu.Lock()
	bound, kick := d.bound, d.kick
	d.mu.Unlock()
	if !bound {
		return
	}
	select {
	case kick <- struct{}{}:
	default:
	}
}

// Processed returns how many entries the device has acknowledged.
func (d *Device) Processed() int { return int(d.processed.Load()) }

// Rings returns how many times bell was rung.
func (d *Device) Rings(bell doorbell.Bell) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rings[bell]
}

// Controls returns the IPC control codes received, oldest first.
func (d *Device) Controls() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]uint32, len(d.controls))
	copy(out, d.controls)
	return out
}
