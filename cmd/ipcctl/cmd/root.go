// Package cmd implements the ipcctl CLI commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gobeyondidentity/ipclink/internal/config"
	"github.com/gobeyondidentity/ipclink/internal/version"
	"github.com/gobeyondidentity/ipclink/pkg/clierror"
)

var (
	// Global flags
	outputFormat string
	configFile   string
	journalFlag  string
	noJournal    bool

	// cfg is loaded before every command except help and completion.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ipcctl",
	Short: "Inspect and exercise the AP/CP shared-memory control link",
	Long: `ipcctl works with the shared-memory control link between an
application processor (AP) and a communication processor (CP).

It prints the shared region layout, runs the AP side of the link against a
simulated CP, lists recorded link events and serves a gRPC health endpoint
that follows the link state.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "completion" || cmd.Name() == "help" {
			return nil
		}
		switch outputFormat {
		case "table", "json", "yaml", "cbor":
		default:
			return clierror.ConfigInvalid(fmt.Errorf("unknown output format %q", outputFormat))
		}

		c, err := config.Load(configFile)
		if err != nil {
			return clierror.ConfigInvalid(err)
		}
		if err := c.LoadFromEnv(); err != nil {
			return clierror.ConfigInvalid(err)
		}
		if journalFlag != "" {
			c.Journal.Path = journalFlag
		}
		if noJournal {
			c.Journal.Disabled = true
		}
		if err := c.Validate(); err != nil {
			return clierror.ConfigInvalid(err)
		}
		cfg = c
		return nil
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for ipcctl.

To load completions:

Bash:
  # Add to ~/.bashrc:
  source <(ipcctl completion bash)

Zsh:
  # Add to ~/.zshrc:
  source <(ipcctl completion zsh)

Fish:
  ipcctl completion fish > ~/.config/fish/completions/ipcctl.fish

PowerShell:
  ipcctl completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		default:
			return fmt.Errorf("unknown shell: %s", args[0])
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml, cbor")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ~/.config/ipcctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&journalFlag, "journal", "", "Event journal path (default: ~/.local/share/ipcctl/journal.db)")
	rootCmd.PersistentFlags().BoolVar(&noJournal, "no-journal", false, "Do not record link events")
	rootCmd.AddCommand(completionCmd)
}

// Execute runs the root command and prints any error in the selected format.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		clierror.FprintError(os.Stderr, asCLIError(err), outputFormat)
	}
	return err
}

// formatOutput writes data in the structured format selected by --output.
// Table output is handled by each command.
func formatOutput(w io.Writer, data interface{}) error {
	switch outputFormat {
	case "json":
		return outputJSON(w, data)
	case "yaml":
		return outputYAML(w, data)
	case "cbor":
		return outputCBOR(w, data)
	default:
		return nil
	}
}

func outputJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func outputYAML(w io.Writer, data interface{}) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func outputCBOR(w io.Writer, data interface{}) error {
	out, err := cbor.Marshal(data)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
