// Package audit records notable link events: the link coming up or breaking,
// request timeouts, suspend and resume outcomes, and device state changes.
//
// Events go to one or more [EventEmitter] backends: slog ([LogEmitter]), the
// local syslog daemon ([SyslogWriter], RFC 5424) and the SQLite journal in
// package journal. [Fanout] combines them.
package audit
