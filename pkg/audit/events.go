package audit

import (
	"strconv"
	"time"
)

// Severity represents syslog severity levels per RFC 5424.
type Severity int

const (
	SeverityWarning Severity = 4
	SeverityNotice  Severity = 5
	SeverityInfo    Severity = 6
)

// String returns the human-readable name for a severity level.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "ERROR"
	case SeverityInfo:
		return "INFO"
	case SeverityNotice:
		return "NOTICE"
	case SeverityWarning:
		return "WARNING"
	default:
		return "UNKNOWN"
	}
}

// EventType identifies a notable change in the state of a link.
type EventType string

const (
	EventLinkUp           EventType = "link.up"
	EventLinkBroken       EventType = "link.broken"
	EventLinkClosed       EventType = "link.closed"
	EventMessageTimeout   EventType = "msg.timeout"
	EventSuspend          EventType = "pm.suspend"
	EventSuspendRefused   EventType = "pm.suspend_refused"
	EventResume           EventType = "pm.resume"
	EventResumeFailed     EventType = "pm.resume_failed"
	EventDeviceSleep      EventType = "pm.device_sleep"
	EventStageChange      EventType = "device.stage"
	EventNotificationDrop EventType = "pm.notification_unrecognized"
)

// AllEventTypes returns every defined event type for iteration and validation.
func AllEventTypes() []EventType {
	return []EventType{
		EventLinkUp,
		EventLinkBroken,
		EventLinkClosed,
		EventMessageTimeout,
		EventSuspend,
		EventSuspendRefused,
		EventResume,
		EventResumeFailed,
		EventDeviceSleep,
		EventStageChange,
		EventNotificationDrop,
	}
}

var severityMap = map[EventType]Severity{
	EventLinkUp:           SeverityNotice,
	EventLinkBroken:       SeverityError,
	EventLinkClosed:       SeverityNotice,
	EventMessageTimeout:   SeverityError,
	EventSuspend:          SeverityInfo,
	EventSuspendRefused:   SeverityWarning,
	EventResume:           SeverityInfo,
	EventResumeFailed:     SeverityWarning,
	EventDeviceSleep:      SeverityInfo,
	EventStageChange:      SeverityNotice,
	EventNotificationDrop: SeverityWarning,
}

// SeverityFor returns the syslog severity for a given event type.
// Unknown event types return SeverityWarning.
func SeverityFor(et EventType) Severity {
	if s, ok := severityMap[et]; ok {
		return s
	}
	return SeverityWarning
}

// Event is one recorded link event.
type Event struct {
	Type      EventType
	Severity  Severity
	Timestamp time.Time
	Instance  string            // protocol instance ID
	Details   map[string]string // event-specific fields
}

func newEvent(et EventType, instance string, details map[string]string) Event {
	if details == nil {
		details = map[string]string{}
	}
	return Event{
		Type:      et,
		Severity:  SeverityFor(et),
		Timestamp: time.Now(),
		Instance:  instance,
		Details:   details,
	}
}

// NewLinkUp creates a link.up event once the shared region is published.
func NewLinkUp(instance string, busAddr uint64) Event {
	return newEvent(EventLinkUp, instance, map[string]string{
		"bus_addr": "0x" + strconv.FormatUint(busAddr, 16),
	})
}

// NewLinkBroken creates a link.broken event. The link stays broken.
func NewLinkBroken(instance, reason string, abandoned int) Event {
	return newEvent(EventLinkBroken, instance, map[string]string{
		"reason":    reason,
		"abandoned": strconv.Itoa(abandoned),
	})
}

// NewLinkClosed creates a link.closed event for protocol teardown.
func NewLinkClosed(instance string, abandoned int) Event {
	return newEvent(EventLinkClosed, instance, map[string]string{
		"abandoned": strconv.Itoa(abandoned),
	})
}

// NewMessageTimeout creates a msg.timeout event for a request the CP never acknowledged.
func NewMessageTimeout(instance string, slot uint32, msgType string, timeout time.Duration) Event {
	return newEvent(EventMessageTimeout, instance, map[string]string{
		"slot":    strconv.FormatUint(uint64(slot), 10),
		"type":    msgType,
		"timeout": timeout.String(),
	})
}

// NewSuspend creates a pm.suspend event for a completed host suspend.
func NewSuspend(instance string) Event {
	return newEvent(EventSuspend, instance, nil)
}

// NewSuspendRefused creates a pm.suspend_refused event.
func NewSuspendRefused(instance, reason string) Event {
	return newEvent(EventSuspendRefused, instance, map[string]string{"reason": reason})
}

// NewResume creates a pm.resume event for a completed host resume.
func NewResume(instance string) Event {
	return newEvent(EventResume, instance, nil)
}

// NewResumeFailed creates a pm.resume_failed event.
func NewResumeFailed(instance, reason string) Event {
	return newEvent(EventResumeFailed, instance, map[string]string{"reason": reason})
}

// NewDeviceSleep creates a pm.device_sleep event for a sleep notification transition.
func NewDeviceSleep(instance, from, to string) Event {
	return newEvent(EventDeviceSleep, instance, map[string]string{"from": from, "to": to})
}

// NewStageChange creates a device.stage event when the CP execution stage moves.
func NewStageChange(instance, from, to string) Event {
	return newEvent(EventStageChange, instance, map[string]string{"from": from, "to": to})
}

// NewNotificationDrop creates an event for a sleep notification that was not understood.
func NewNotificationDrop(instance, reason string) Event {
	return newEvent(EventNotificationDrop, instance, map[string]string{"reason": reason})
}
