package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gobeyondidentity/ipclink/pkg/clierror"
	"github.com/gobeyondidentity/ipclink/pkg/protocol"
)

func TestRootCommand_Help(t *testing.T) {
	// Cannot run in parallel - uses shared cobra command state
	t.Log("Test that --help lists every subcommand")
	isolate(t)

	result := run(t, "--help")
	result.AssertSuccess(t)
	for _, sub := range []string{"layout", "simulate", "events", "serve", "version", "completion"} {
		result.AssertContains(t, sub)
	}
}

func TestRootCommand_UnknownOutputFormat(t *testing.T) {
	// Cannot run in parallel - uses shared cobra command state
	isolate(t)

	result := run(t, "layout", "-o", "xml")
	result.AssertError(t)

	var ce *clierror.CLIError
	if !errors.As(result.Err, &ce) {
		t.Fatalf("expected CLIError, got %T: %v", result.Err, result.Err)
	}
	if ce.Code != clierror.CodeConfigInvalid {
		t.Errorf("expected code %s, got %s", clierror.CodeConfigInvalid, ce.Code)
	}
	if got := ExitCode(result.Err); got != clierror.ExitConfig {
		t.Errorf("expected exit code %d, got %d", clierror.ExitConfig, got)
	}
}

func TestRootCommand_BadConfigFile(t *testing.T) {
	// Cannot run in parallel - uses shared cobra command state
	isolate(t)

	result := run(t, "layout", "--config", "/nonexistent/ipcctl.yaml")
	result.AssertError(t)
	if got := ExitCode(result.Err); got != clierror.ExitConfig {
		t.Errorf("expected exit code %d, got %d", clierror.ExitConfig, got)
	}
}

func TestRootCommand_Completion(t *testing.T) {
	// Cannot run in parallel - uses shared cobra command state
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		result := run(t, "completion", shell)
		result.AssertSuccess(t)
		result.AssertContains(t, "ipcctl")
	}

	result := run(t, "completion", "tcsh")
	result.AssertError(t)
}

func TestExitCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, clierror.ExitSuccess},
		{"timeout", fmt.Errorf("send: %w", protocol.ErrTimeout), clierror.ExitLinkBroken},
		{"broken", protocol.ErrLinkBroken, clierror.ExitLinkBroken},
		{"closed", protocol.ErrClosed, clierror.ExitLinkBroken},
		{"rejected", protocol.ErrRejected, clierror.ExitRejected},
		{"ring full", protocol.ErrRingFull, clierror.ExitBusy},
		{"cli error", clierror.SuspendRefused(), clierror.ExitBusy},
		{"other", errors.New("boom"), clierror.ExitGeneral},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.code {
			t.Errorf("%s: ExitCode = %d, want %d", tt.name, got, tt.code)
		}
	}
}

func TestAsCLIError_Codes(t *testing.T) {
	t.Parallel()
	if got := asCLIError(protocol.ErrTimeout).Code; got != clierror.CodeRequestTimeout {
		t.Errorf("timeout mapped to %s", got)
	}
	if got := asCLIError(fmt.Errorf("init: %w", protocol.ErrAllocation)).Code; got != clierror.CodeAllocationFailed {
		t.Errorf("allocation mapped to %s", got)
	}
	if got := asCLIError(protocol.ErrRingFull); !got.Retryable {
		t.Error("ring full should be retryable")
	}
}
