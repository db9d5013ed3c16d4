// Package clierror provides structured error handling for CLI commands.
//
// CLI errors include a stable code, an exit code, a user-facing message and
// an optional troubleshooting hint. This separates internal error details
// from what gets displayed to operators.
//
// # Usage
//
//	if errors.Is(err, protocol.ErrTimeout) {
//	    return clierror.RequestTimeout(err.Error())
//	}
package clierror
