package audit

import (
	"context"
	"log/slog"
	"sort"
)

// EventEmitter accepts structured link events for recording.
type EventEmitter interface {
	Emit(Event) error
}

// NopEmitter discards all events. Use when no event backend is configured.
type NopEmitter struct{}

// Emit discards the event.
func (NopEmitter) Emit(Event) error { return nil }

// LogEmitter writes events to a slog logger at a level derived from severity.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit logs the event. It never fails.
func (e LogEmitter) Emit(ev Event) error {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"event", string(ev.Type), "instance", ev.Instance}
	keys := make([]string, 0, len(ev.Details))
	for k := range ev.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, k, ev.Details[k])
	}
	logger.Log(context.Background(), levelFor(ev.Severity), "link event", attrs...)
	return nil
}

func levelFor(s Severity) slog.Level {
	switch {
	case s <= SeverityError:
		return slog.LevelError
	case s == SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Fanout forwards events to several backends. Backend failures are logged
// and never returned, so a broken backend cannot stall the link.
type Fanout struct {
	backends []EventEmitter
	logger   *slog.Logger
}

// NewFanout creates an emitter that forwards events to the given backends.
// If logger is nil, slog.Default() is used for error reporting.
func NewFanout(logger *slog.Logger, backends ...EventEmitter) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{
		backends: backends,
		logger:   logger,
	}
}

// Emit writes ev to every backend.
func (f *Fanout) Emit(ev Event) error {
	for _, b := range f.backends {
		if err := b.Emit(ev); err != nil {
			f.logger.Error("event emit failed", "event", string(ev.Type), "error", err)
		}
	}
	return nil
}
