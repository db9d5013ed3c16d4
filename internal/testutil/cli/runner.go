package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// CommandResult captures the output and error from a command execution.
type CommandResult struct {
	Stdout string
	Stderr string
	Err    error
}

// Run executes cmd with args, capturing what it writes through
// cmd.OutOrStdout and cmd.ErrOrStderr.
func Run(cmd *cobra.Command, args ...string) *CommandResult {
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return &CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
		Err:    err,
	}
}

// CommandRunner runs a command whose flags were reset.
type CommandRunner struct {
	cmd *cobra.Command
}

// Reset restores every flag of cmd and its subcommands to its default
// value and clears the pending args.
func Reset(cmd *cobra.Command) *CommandRunner {
	resetFlags(cmd)
	cmd.SetArgs([]string{})
	return &CommandRunner{cmd: cmd}
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		// Slice-valued flags would append their default; none are used here.
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// Run executes the command with the given arguments.
func (r *CommandRunner) Run(args ...string) *CommandResult {
	return Run(r.cmd, args...)
}

// AssertSuccess fails the test if the command returned an error.
func (r *CommandResult) AssertSuccess(t *testing.T) {
	t.Helper()
	if r.Err != nil {
		t.Fatalf("expected command to succeed, got error: %v\nstdout: %s\nstderr: %s",
			r.Err, r.Stdout, r.Stderr)
	}
}

// AssertError fails the test if the command did not return an error.
func (r *CommandResult) AssertError(t *testing.T) {
	t.Helper()
	if r.Err == nil {
		t.Fatalf("expected command to fail, but it succeeded\nstdout: %s", r.Stdout)
	}
}

// AssertContains fails the test if stdout does not contain want.
func (r *CommandResult) AssertContains(t *testing.T, want string) {
	t.Helper()
	if !strings.Contains(r.Stdout, want) {
		t.Errorf("expected stdout to contain %q, got:\n%s", want, r.Stdout)
	}
}

// AssertNotContains fails the test if stdout contains unwanted.
func (r *CommandResult) AssertNotContains(t *testing.T, unwanted string) {
	t.Helper()
	if strings.Contains(r.Stdout, unwanted) {
		t.Errorf("expected stdout NOT to contain %q, got:\n%s", unwanted, r.Stdout)
	}
}

// AssertPrefix fails the test if stdout, ignoring surrounding whitespace,
// does not start with prefix.
func (r *CommandResult) AssertPrefix(t *testing.T, prefix string) {
	t.Helper()
	if !strings.HasPrefix(strings.TrimSpace(r.Stdout), prefix) {
		t.Errorf("expected stdout to start with %q, got:\n%s", prefix, r.Stdout)
	}
}

// AssertStderrContains fails the test if stderr does not contain want.
func (r *CommandResult) AssertStderrContains(t *testing.T, want string) {
	t.Helper()
	if !strings.Contains(r.Stderr, want) {
		t.Errorf("expected stderr to contain %q, got:\n%s", want, r.Stderr)
	}
}

// DecodeJSON unmarshals stdout into v and fails the test if it is not valid JSON.
func (r *CommandResult) DecodeJSON(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(r.Stdout), v); err != nil {
		t.Fatalf("expected JSON on stdout: %v\n%s", err, r.Stdout)
	}
}

// TempConfigDir creates <tmp>/.config/<app>/ and returns <tmp>.
func TempConfigDir(t *testing.T, app string) string {
	t.Helper()
	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, ".config", app), 0755); err != nil {
		t.Fatalf("failed to create temp config dir: %v", err)
	}
	return base
}

// WriteConfigFile writes content to <base>/.config/<app>/<name> and returns its path.
func WriteConfigFile(t *testing.T, base, app, name, content string) string {
	t.Helper()
	path := filepath.Join(base, ".config", app, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}
