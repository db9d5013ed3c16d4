package audit

import (
	"strconv"
	"time"
)

// Remaining RFC 5424 severities; events.go defines the ones link events use.
const (
	SeverityEmergency Severity = 0
	SeverityAlert     Severity = 1
	SeverityCritical  Severity = 2
	SeverityError     Severity = 3
	SeverityDebug     Severity = 7
)

// Facility represents RFC 5424 syslog facility codes.
type Facility int

const (
	FacDaemon Facility = 3
	FacLocal0 Facility = 16
)

// SDParam is a single key-value parameter within a structured data element.
type SDParam struct {
	Name  string
	Value string
}

// SDElement is a structured data element with an ID and parameters.
type SDElement struct {
	ID     string // e.g., "ipclink"
	Params []SDParam
}

// Message represents an RFC 5424 syslog message.
type Message struct {
	Facility  Facility
	Severity  Severity
	Timestamp time.Time
	Hostname  string
	AppName   string
	ProcessID string // "" is written as NILVALUE
	MessageID string // event type, e.g. "link.broken"
	SD        []SDElement
	Text      string
}

// timestampFormat is RFC 3339 with fixed 3-digit milliseconds in UTC.
const timestampFormat = "2006-01-02T15:04:05.000Z"

// Header field limits from RFC 5424 Section 6.
const (
	maxHostname  = 255
	maxAppName   = 48
	maxProcessID = 128
	maxMessageID = 32
)

// FormatMessage serializes m to RFC 5424 wire format without a trailing newline.
func FormatMessage(m Message) []byte {
	return AppendMessage(make([]byte, 0, 256), m)
}

// AppendMessage appends the wire form of m to dst.
func AppendMessage(dst []byte, m Message) []byte {
	dst = append(dst, '<')
	dst = strconv.AppendInt(dst, int64(m.Facility)*8+int64(m.Severity), 10)
	dst = append(dst, ">1 "...)
	if m.Timestamp.IsZero() {
		dst = append(dst, '-')
	} else {
		dst = m.Timestamp.UTC().AppendFormat(dst, timestampFormat)
	}

	dst = appendHeaderField(dst, m.Hostname, maxHostname)
	dst = appendHeaderField(dst, m.AppName, maxAppName)
	dst = appendHeaderField(dst, m.ProcessID, maxProcessID)
	dst = appendHeaderField(dst, m.MessageID, maxMessageID)

	dst = append(dst, ' ')
	if len(m.SD) == 0 {
		dst = append(dst, '-')
	}
	for _, elem := range m.SD {
		dst = append(dst, '[')
		dst = append(dst, elem.ID...)
		for _, p := range elem.Params {
			dst = append(dst, ' ')
			dst = append(dst, p.Name...)
			dst = append(dst, '=', '"')
			dst = appendEscaped(dst, p.Value)
			dst = append(dst, '"')
		}
		dst = append(dst, ']')
	}

	if m.Text != "" {
		dst = append(dst, ' ')
		dst = append(dst, m.Text...)
	}
	return dst
}

func appendHeaderField(dst []byte, val string, max int) []byte {
	dst = append(dst, ' ')
	if val == "" {
		return append(dst, '-')
	}
	if len(val) > max {
		val = val[:max]
	}
	return append(dst, val...)
}

// appendEscaped escapes '"', '\' and ']' per RFC 5424 Section 6.3.3.
func appendEscaped(dst []byte, val string) []byte {
	for i := 0; i < len(val); i++ {
		switch val[i] {
		case '"', '\\', ']':
			dst = append(dst, '\\')
		}
		dst = append(dst, val[i])
	}
	return dst
}

// isPrintUSASCII reports whether every byte is visible ASCII (33-126).
func isPrintUSASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 33 || s[i] > 126 {
			return false
		}
	}
	return true
}
