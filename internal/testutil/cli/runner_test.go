package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func TestRun_Captures(t *testing.T) {
	t.Parallel()
	t.Log("Testing that Run captures stdout, stderr and the returned error")

	cmd := &cobra.Command{
		Use:          "test",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println("hello world")
			cmd.PrintErrln("warning")
			return errors.New("command failed")
		},
	}

	result := Run(cmd)
	result.AssertError(t)
	if result.Stdout != "hello world\n" {
		t.Errorf("expected stdout 'hello world\\n', got %q", result.Stdout)
	}
	result.AssertStderrContains(t, "warning")
	if result.Err.Error() != "command failed" {
		t.Errorf("expected error 'command failed', got %v", result.Err)
	}
}

func TestRun_ArgsAndSubcommands(t *testing.T) {
	t.Parallel()

	var got []string
	root := &cobra.Command{Use: "root"}
	sub := &cobra.Command{
		Use: "sub",
		Run: func(cmd *cobra.Command, args []string) {
			got = args
			cmd.Print("sub ran")
		},
	}
	root.AddCommand(sub)

	result := Run(root, "sub", "a", "b")
	result.AssertSuccess(t)
	result.AssertPrefix(t, "sub ran")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected args [a b], got %v", got)
	}
}

func TestReset_RestoresFlagDefaults(t *testing.T) {
	t.Parallel()
	t.Log("Testing that Reset undoes flag values left by an earlier run")

	var (
		format string
		count  int
	)
	root := &cobra.Command{Use: "root"}
	root.PersistentFlags().StringVarP(&format, "output", "o", "table", "")
	sub := &cobra.Command{
		Use: "sub",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("%s %d", format, count)
		},
	}
	sub.Flags().IntVarP(&count, "count", "n", 3, "")
	root.AddCommand(sub)

	Run(root, "sub", "-o", "json", "-n", "9").AssertContains(t, "json 9")

	// Without a reset the old values stick.
	Run(root, "sub").AssertContains(t, "json 9")

	result := Reset(root).Run("sub")
	result.AssertSuccess(t)
	result.AssertContains(t, "table 3")
	if sub.Flags().Changed("count") {
		t.Error("expected Changed to be cleared")
	}
}

func TestAssertNotContains(t *testing.T) {
	t.Parallel()
	result := &CommandResult{Stdout: "link UP"}
	result.AssertNotContains(t, "BROKEN")
	result.AssertContains(t, "UP")
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()
	result := &CommandResult{Stdout: `{"region_size": 3200, "fields": ["a", "b"]}`}

	var v struct {
		RegionSize int      `json:"region_size"`
		Fields     []string `json:"fields"`
	}
	result.DecodeJSON(t, &v)
	if v.RegionSize != 3200 || len(v.Fields) != 2 {
		t.Errorf("unexpected decode: %+v", v)
	}
}

func TestConfigFiles(t *testing.T) {
	t.Parallel()
	base := TempConfigDir(t, "ipcctl")

	info, err := os.Stat(filepath.Join(base, ".config", "ipcctl"))
	if err != nil || !info.IsDir() {
		t.Fatalf("expected config dir, got %v", err)
	}

	path := WriteConfigFile(t, base, "ipcctl", "config.yaml", "link:\n  run_timeout: 500ms\n")
	if path != filepath.Join(base, ".config", "ipcctl", "config.yaml") {
		t.Errorf("unexpected path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "link:\n  run_timeout: 500ms\n" {
		t.Errorf("unexpected content %q", data)
	}
}
