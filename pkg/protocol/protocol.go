package protocol

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gobeyondidentity/ipclink/pkg/audit"
	"github.com/gobeyondidentity/ipclink/pkg/doorbell"
	"github.com/gobeyondidentity/ipclink/pkg/layout"
	"github.com/gobeyondidentity/ipclink/pkg/message"
	"github.com/gobeyondidentity/ipclink/pkg/pm"
	"github.com/gobeyondidentity/ipclink/pkg/response"
	"github.com/gobeyondidentity/ipclink/pkg/ring"
	"github.com/gobeyondidentity/ipclink/pkg/transport"
)

// Deps are the collaborators a Protocol is built from.
type Deps struct {
	// Ringer writes the physical doorbells. Required.
	Ringer doorbell.Ringer

	// Allocator provides the shared region. Nil selects a heap allocator.
	Allocator transport.Allocator

	// Link publishes the region to the CP and delivers its interrupts. Optional.
	Link transport.Link

	// Pipes receives interrupt vectors that are neither the message nor the
	// device-info vector. Optional.
	Pipes transport.IRQHandler

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Events receives link events. Nil logs them through Logger.
	Events audit.EventEmitter

	// Instance names this protocol in logs and events. Empty generates a UUID.
	Instance string
}

// Protocol is one AP/CP link. It is safe for concurrent use.
type Protocol struct {
	cfg      Config
	retry    transport.RetryConfig
	instance string
	logger   *slog.Logger
	events   audit.EventEmitter

	alloc   transport.Allocator
	link    transport.Link
	pipes   transport.IRQHandler
	mapping *transport.Mapping
	region  *layout.Region

	ring     *ring.Ring
	table    *response.Table
	pm       *pm.Manager
	signaler *doorbell.Signaler

	// sendMu makes reservation and head advance one critical section, and
	// orders them against markBroken.
	sendMu sync.Mutex
	closed bool

	sweepMu  sync.Mutex
	lastTail uint32

	devMu     sync.Mutex
	lastStage layout.ExecStage

	// pmMu serializes suspend and resume.
	pmMu sync.Mutex

	broken    atomic.Bool
	done      atomic.Bool
	closeOnce sync.Once
}

// Init allocates the shared region, publishes the context info and binds the
// region to the link. On failure nothing is left allocated.
func Init(cfg Config, deps Deps) (*Protocol, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.Ringer == nil {
		return nil, errors.New("protocol: doorbell ringer is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	instance := deps.Instance
	if instance == "" {
		instance = uuid.New().String()
	}
	logger = logger.With("instance", instance)

	alloc := deps.Allocator
	if alloc == nil {
		alloc = transport.NewHeapAllocator(transport.DefaultBusBase)
	}
	events := deps.Events
	if events == nil {
		events = audit.LogEmitter{Logger: logger}
	}

	m, err := alloc.Alloc(layout.RegionSize)
	if err != nil {
		if errors.Is(err, ErrAllocation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrAllocation, err)
	}
	region, err := layout.NewRegion(m.Mem, m.BusAddr)
	if err != nil {
		alloc.Free(m)
		return nil, fmt.Errorf("%w: %w", ErrAllocation, err)
	}

	// File-backed regions may hold a previous run's contents.
	clear(region.Bytes())
	region.WriteContextInfo(layout.NewContextInfo(m.BusAddr, cfg.MsgVector, cfg.DeviceVector))

	mgr := pm.New(deps.Ringer, logger)
	p := &Protocol{
		cfg:       cfg,
		retry:     cfg.RingFullRetry,
		instance:  instance,
		logger:    logger,
		events:    events,
		alloc:     alloc,
		link:      deps.Link,
		pipes:     deps.Pipes,
		mapping:   m,
		region:    region,
		ring:      ring.New(region),
		table:     response.NewTable(layout.MsgEntries),
		pm:        mgr,
		signaler:  doorbell.NewSignaler(deps.Ringer, mgr, logger),
		lastStage: region.ExecStage(),
	}

	if p.link != nil {
		if err := p.link.Bind(m, p); err != nil {
			mgr.Close()
			alloc.Free(m)
			return nil, fmt.Errorf("bind region: %w", err)
		}
	}

	logger.Info("link up", "bus_addr", fmt.Sprintf("0x%x", m.BusAddr), "region_size", layout.RegionSize)
	p.emit(audit.NewLinkUp(instance, m.BusAddr))
	return p, nil
}

// Deinit unbinds the link, fails every in-flight request with the
// link-broken status and releases the region. Later calls are no-ops.
func (p *Protocol) Deinit() error {
	var err error
	p.closeOnce.Do(func() {
		p.sendMu.Lock()
		p.closed = true
		p.done.Store(true)
		p.sendMu.Unlock()

		if p.link != nil {
			p.link.Unbind()
		}
		n := p.table.ResolveAll(message.StatusLinkBroken)
		p.pm.Close()

		p.logger.Info("link closed", "abandoned", n)
		p.emit(audit.NewLinkClosed(p.instance, n))
		if ferr := p.alloc.Free(p.mapping); ferr != nil {
			err = fmt.Errorf("free region: %w", ferr)
		}
	})
	return err
}

// Instance returns the instance name used in logs and events.
func (p *Protocol) Instance() string { return p.instance }

// BusAddr returns the CP-visible base address of the region.
func (p *Protocol) BusAddr() uint64 { return p.region.Base() }

// Region returns the shared region.
func (p *Protocol) Region() *layout.Region { return p.region }

// Broken reports whether the link has been declared broken.
func (p *Protocol) Broken() bool { return p.broken.Load() }

// Closed reports whether Deinit has run.
func (p *Protocol) Closed() bool { return p.done.Load() }

// Outstanding returns the number of ring slots not yet acknowledged.
func (p *Protocol) Outstanding() int { return p.ring.Outstanding() }

// Snapshot is a point-in-time view of a link for diagnostics.
type Snapshot struct {
	Instance          string `json:"instance" yaml:"instance" cbor:"instance"`
	BusAddr           uint64 `json:"bus_addr" yaml:"bus_addr" cbor:"bus_addr"`
	Broken            bool   `json:"broken" yaml:"broken" cbor:"broken"`
	Closed            bool   `json:"closed" yaml:"closed" cbor:"closed"`
	Outstanding       int    `json:"outstanding" yaml:"outstanding" cbor:"outstanding"`
	Pending           int    `json:"pending" yaml:"pending" cbor:"pending"`
	ExecStage         string `json:"exec_stage" yaml:"exec_stage" cbor:"exec_stage"`
	IPCStatus         string `json:"ipc_status" yaml:"ipc_status" cbor:"ipc_status"`
	SleepNotification string `json:"sleep_notification" yaml:"sleep_notification" cbor:"sleep_notification"`
	HostState         string `json:"host_state" yaml:"host_state" cbor:"host_state"`
	DeviceState       string `json:"device_state" yaml:"device_state" cbor:"device_state"`
}

// Snapshot returns the current link state.
func (p *Protocol) Snapshot() Snapshot {
	s := Snapshot{
		Instance:          p.instance,
		BusAddr:           p.region.Base(),
		Broken:            p.Broken(),
		Closed:            p.Closed(),
		Outstanding:       p.ring.Outstanding(),
		Pending:           p.table.Pending(),
		SleepNotification: p.SleepNotificationString(),
		HostState:         p.pm.HostState().String(),
		DeviceState:       p.pm.APState().String(),
	}
	if !s.Closed {
		s.ExecStage = p.region.ExecStage().String()
		s.IPCStatus = p.region.IPCStatus().String()
	}
	return s
}

// markBroken declares the link broken and fails every outstanding request.
func (p *Protocol) markBroken(reason string) {
	p.sendMu.Lock()
	if !p.broken.CompareAndSwap(false, true) {
		p.sendMu.Unlock()
		return
	}
	n := p.table.ResolveAll(message.StatusLinkBroken)
	p.sendMu.Unlock()
	p.logger.Error("link broken", "reason", reason, "abandoned", n)
	p.emit(audit.NewLinkBroken(p.instance, reason, n))
}

func (p *Protocol) emit(ev audit.Event) {
	if err := p.events.Emit(ev); err != nil {
		p.logger.Warn("event emit failed", "event", string(ev.Type), "error", err)
	}
}
