package clierror

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Exit codes returned by ipcctl.
const (
	ExitSuccess    = 0 // Operation completed successfully
	ExitGeneral    = 1 // Unknown/unhandled error
	ExitConfig     = 2 // Bad flags or configuration file
	ExitLinkBroken = 3 // The link broke or timed out
	ExitRejected   = 4 // The device refused a request
	ExitBusy       = 5 // Transient condition, try again
)

// Error codes (strings) for programmatic error handling
const (
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeAllocationFailed   = "ALLOCATION_FAILED"
	CodeLinkBroken         = "LINK_BROKEN"
	CodeRequestTimeout     = "REQUEST_TIMEOUT"
	CodeRequestRejected    = "REQUEST_REJECTED"
	CodeRingFull           = "RING_FULL"
	CodeSuspendRefused     = "SUSPEND_REFUSED"
	CodeJournalUnavailable = "JOURNAL_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// CLIError represents a structured error for CLI output.
type CLIError struct {
	Code      string `json:"code" yaml:"code"`
	Message   string `json:"message" yaml:"message"`
	Hint      string `json:"hint,omitempty" yaml:"hint,omitempty"`
	Retryable bool   `json:"retryable" yaml:"retryable"`
	ExitCode  int    `json:"-" yaml:"-"` // Not serialized, used for os.Exit
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	return e.Message
}

// ConfigInvalid creates an error for unusable flags or configuration.
func ConfigInvalid(err error) *CLIError {
	return &CLIError{
		Code:     CodeConfigInvalid,
		Message:  fmt.Sprintf("invalid configuration: %v", err),
		Hint:     "Check the config file and IPCCTL_* environment variables",
		ExitCode: ExitConfig,
	}
}

// AllocationFailed creates an error when the shared region cannot be mapped.
func AllocationFailed(err error) *CLIError {
	return &CLIError{
		Code:     CodeAllocationFailed,
		Message:  fmt.Sprintf("shared region allocation failed: %v", err),
		Hint:     "Check that the region file path is writable",
		ExitCode: ExitGeneral,
	}
}

// LinkBroken creates an error for requests made on a broken link.
func LinkBroken() *CLIError {
	return &CLIError{
		Code:     CodeLinkBroken,
		Message:  "link is broken",
		Hint:     "The device stopped responding; re-initialize the link",
		ExitCode: ExitLinkBroken,
	}
}

// RequestTimeout creates an error for a request the device never acknowledged.
func RequestTimeout(detail string) *CLIError {
	return &CLIError{
		Code:     CodeRequestTimeout,
		Message:  fmt.Sprintf("request timed out: %s", detail),
		Hint:     "The link is now broken; check that the device is running",
		ExitCode: ExitLinkBroken,
	}
}

// RequestRejected creates an error for a request completed with a failure status.
func RequestRejected(detail string) *CLIError {
	return &CLIError{
		Code:     CodeRequestRejected,
		Message:  fmt.Sprintf("request rejected: %s", detail),
		ExitCode: ExitRejected,
	}
}

// RingFull creates an error when no message slot became free in time.
func RingFull() *CLIError {
	return &CLIError{
		Code:      CodeRingFull,
		Message:   "message ring is full",
		Hint:      "Wait for outstanding requests to complete",
		Retryable: true,
		ExitCode:  ExitBusy,
	}
}

// SuspendRefused creates an error for a suspend the link could not perform.
func SuspendRefused() *CLIError {
	return &CLIError{
		Code:      CodeSuspendRefused,
		Message:   "suspend refused",
		Hint:      "Suspend needs a running device with no outstanding requests",
		Retryable: true,
		ExitCode:  ExitBusy,
	}
}

// JournalUnavailable creates an error when the event journal cannot be opened.
func JournalUnavailable(path string, err error) *CLIError {
	return &CLIError{
		Code:     CodeJournalUnavailable,
		Message:  fmt.Sprintf("cannot open journal '%s': %v", path, err),
		Hint:     "Pass --journal with a writable path",
		ExitCode: ExitGeneral,
	}
}

// InternalError creates an error for unexpected internal errors.
func InternalError(err error) *CLIError {
	msg := "an unexpected internal error occurred"
	if err != nil {
		msg = fmt.Sprintf("internal error: %s", err.Error())
	}
	return &CLIError{
		Code:     CodeInternalError,
		Message:  msg,
		ExitCode: ExitGeneral,
	}
}

// FormatError returns the error formatted for the given output format.
// "json" and "yaml" produce structured output, anything else a human-readable line.
func FormatError(err *CLIError, outputFormat string) string {
	switch outputFormat {
	case "json":
		data, jsonErr := json.MarshalIndent(err, "", "  ")
		if jsonErr != nil {
			// Fallback to simple JSON if marshaling fails
			return fmt.Sprintf(`{"code":"%s","message":"%s"}`, err.Code, err.Message)
		}
		return string(data)
	case "yaml":
		data, yamlErr := yaml.Marshal(err)
		if yamlErr != nil {
			return fmt.Sprintf("code: %s\nmessage: %s", err.Code, err.Message)
		}
		return string(data)
	}

	output := fmt.Sprintf("Error [%s]: %s", err.Code, err.Message)
	if err.Hint != "" {
		output += fmt.Sprintf("\nHint: %s", err.Hint)
	}
	return output
}

// FprintError writes the error to w in the appropriate format.
func FprintError(w io.Writer, err *CLIError, outputFormat string) {
	fmt.Fprintln(w, FormatError(err, outputFormat))
}

// PrintError prints the error to stderr in the appropriate format.
func PrintError(err *CLIError, outputFormat string) {
	FprintError(os.Stderr, err, outputFormat)
}
