package cmd

import (
	"path/filepath"
	"testing"

	"github.com/gobeyondidentity/ipclink/internal/testutil/cli"
)

// isolate points config, data and cache lookups at a temp dir and clears
// IPCCTL_* overrides. It returns a journal path inside that dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	for _, name := range []string{
		"IPCCTL_RUN_TIMEOUT", "IPCCTL_BOOT_TIMEOUT", "IPCCTL_DEVICE_ACTIVE_TIMEOUT",
		"IPCCTL_REGION_FILE", "IPCCTL_BUS_BASE", "IPCCTL_JOURNAL",
		"IPCCTL_SYSLOG_SOCKET", "IPCCTL_LISTEN",
	} {
		t.Setenv(name, "")
	}
	return filepath.Join(dir, "journal.db")
}

// run executes rootCmd with fresh flags.
func run(t *testing.T, args ...string) *cli.CommandResult {
	t.Helper()
	cfg = nil
	t.Cleanup(func() { cli.Reset(rootCmd) })
	return cli.Reset(rootCmd).Run(args...)
}
