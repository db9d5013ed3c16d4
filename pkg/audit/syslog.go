package audit

import (
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"
)

const (
	reconnectBackoffInit = 100 * time.Millisecond
	reconnectBackoffMax  = 30 * time.Second
)

// SyslogWriter writes link events to the local syslog daemon as RFC 5424
// messages with structured data.
//
// On write failure it reconnects to the socket with exponential backoff
// (100ms initial, 30s cap) so a restarting syslog daemon is survived without
// tight-looping.
type SyslogWriter struct {
	conn       net.Conn
	hostname   string
	appName    string
	procID     string
	facility   Facility
	socketPath string

	mu              sync.Mutex
	backoff         time.Duration
	lastReconnectAt time.Time
}

// SyslogConfig holds configuration for the syslog writer.
type SyslogConfig struct {
	SocketPath string   // Default: "/dev/log"
	Hostname   string   // Default: os.Hostname()
	AppName    string   // Default: "ipcctl"
	Facility   Facility // Default: FacDaemon
}

// NewSyslogWriter connects to the syslog socket. Callers should carry on
// without syslog when it is unavailable.
func NewSyslogWriter(cfg SyslogConfig) (*SyslogWriter, error) {
	if cfg.SocketPath == "" {
		cfg.SocketPath = "/dev/log"
	}
	if cfg.Hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			h = "unknown"
		}
		cfg.Hostname = h
	}
	if cfg.AppName == "" {
		cfg.AppName = "ipcctl"
	}
	if cfg.Facility == 0 {
		cfg.Facility = FacDaemon
	}

	conn, err := dialSyslog(cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("syslog connect: %w", err)
	}

	return &SyslogWriter{
		conn:       conn,
		hostname:   cfg.Hostname,
		appName:    cfg.AppName,
		procID:     strconv.Itoa(os.Getpid()),
		facility:   cfg.Facility,
		socketPath: cfg.SocketPath,
	}, nil
}

// Emit writes ev as one syslog message. Safe to call on a nil receiver.
func (w *SyslogWriter) Emit(ev Event) error {
	if w == nil {
		return nil
	}
	params := make([]SDParam, 0, len(ev.Details)+1)
	if ev.Instance != "" {
		params = append(params, SDParam{Name: "instance", Value: ev.Instance})
	}
	keys := make([]string, 0, len(ev.Details))
	for k := range ev.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		params = append(params, SDParam{Name: k, Value: ev.Details[k]})
	}

	msg := Message{
		Facility:  w.facility,
		Severity:  ev.Severity,
		Timestamp: ev.Timestamp,
		Hostname:  w.hostname,
		AppName:   w.appName,
		ProcessID: w.procID,
		MessageID: string(ev.Type),
		SD:        []SDElement{{ID: "ipclink", Params: params}},
	}
	return w.writeOrReconnect(FormatMessage(msg))
}

// writeOrReconnect writes data, reconnecting once (subject to backoff) on failure.
func (w *SyslogWriter) writeOrReconnect(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := w.conn.Write(data)
	if err == nil {
		w.backoff = 0
		return nil
	}

	if reconnErr := w.reconnectLocked(); reconnErr != nil {
		return fmt.Errorf("syslog write failed (%v), reconnect failed: %w", err, reconnErr)
	}

	_, err = w.conn.Write(data)
	if err == nil {
		w.backoff = 0
	}
	return err
}

// reconnectLocked replaces the dead connection. Must be called with w.mu held.
func (w *SyslogWriter) reconnectLocked() error {
	if w.backoff > 0 && time.Since(w.lastReconnectAt) < w.backoff {
		return fmt.Errorf("syslog reconnect backoff: retry in %v", w.backoff-time.Since(w.lastReconnectAt))
	}

	w.conn.Close()

	conn, err := dialSyslog(w.socketPath)
	if err != nil {
		w.lastReconnectAt = time.Now()
		w.backoff = min(max(w.backoff*2, reconnectBackoffInit), reconnectBackoffMax)
		return fmt.Errorf("syslog reconnect: %w", err)
	}

	w.conn = conn
	w.backoff = 0
	w.lastReconnectAt = time.Time{}
	return nil
}

// Close closes the syslog connection. Safe to call on a nil receiver.
func (w *SyslogWriter) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Close()
}

// dialSyslog tries a datagram socket first, then a stream socket.
func dialSyslog(socketPath string) (net.Conn, error) {
	conn, err := net.Dial("unixgram", socketPath)
	if err == nil {
		return conn, nil
	}
	return net.Dial("unix", socketPath)
}
