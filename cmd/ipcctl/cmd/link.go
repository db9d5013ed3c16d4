package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gobeyondidentity/ipclink/pkg/audit"
	"github.com/gobeyondidentity/ipclink/pkg/clierror"
	"github.com/gobeyondidentity/ipclink/pkg/cpsim"
	"github.com/gobeyondidentity/ipclink/pkg/journal"
	"github.com/gobeyondidentity/ipclink/pkg/layout"
	"github.com/gobeyondidentity/ipclink/pkg/protocol"
	"github.com/gobeyondidentity/ipclink/pkg/transport"
)

// bootTimeout bounds how long a simulated CP may take to reach RUN.
const bootTimeout = 2 * time.Second

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openEvents builds the event pipeline from the loaded config: the log
// always, the journal unless disabled, syslog when enabled and reachable.
// extra backends are appended last.
func openEvents(logger *slog.Logger, extra ...audit.EventEmitter) (audit.EventEmitter, func(), error) {
	backends := []audit.EventEmitter{audit.LogEmitter{Logger: logger}}
	var closers []func() error

	if !cfg.Journal.Disabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, nil, clierror.JournalUnavailable(cfg.Journal.Path, err)
		}
		backends = append(backends, j)
		closers = append(closers, j.Close)
	}

	if cfg.Syslog.Enabled {
		sc, err := cfg.SyslogWriterConfig()
		if err != nil {
			return nil, nil, clierror.ConfigInvalid(err)
		}
		w, err := audit.NewSyslogWriter(sc)
		if err != nil {
			logger.Warn("syslog unavailable, continuing without it", "error", err)
		} else {
			backends = append(backends, w)
			closers = append(closers, w.Close)
		}
	}

	backends = append(backends, extra...)
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("event backend close failed", "error", err)
			}
		}
	}
	return audit.NewFanout(logger, backends...), closeAll, nil
}

// startLink initializes the AP side against a fresh simulated CP and waits
// for the CP to boot.
func startLink(logger *slog.Logger, events audit.EventEmitter, opts ...cpsim.Option) (*protocol.Protocol, *cpsim.Device, error) {
	dev := cpsim.New(append([]cpsim.Option{cpsim.WithLogger(logger)}, opts...)...)

	p, err := protocol.Init(cfg.Protocol(), protocol.Deps{
		Ringer:    dev,
		Allocator: transport.NewAllocator(cfg.Allocator()),
		Link:      dev,
		Logger:    logger,
		Events:    events,
	})
	if err != nil {
		return nil, nil, err
	}

	dev.Boot()
	if err := waitRunning(p, bootTimeout); err != nil {
		p.Deinit()
		return nil, nil, err
	}
	return p, dev, nil
}

func waitRunning(p *protocol.Protocol, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		r := p.Region()
		if r.ExecStage() == layout.StageRun && r.IPCStatus() == layout.IPCRunning {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("device did not reach RUN within %v", timeout)
		}
		time.Sleep(time.Millisecond)
	}
}
