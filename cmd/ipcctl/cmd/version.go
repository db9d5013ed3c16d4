package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gobeyondidentity/ipclink/internal/version"
	"github.com/gobeyondidentity/ipclink/internal/versioncheck"
)

func init() {
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return newVersionCmdWithChecker(nil)
}

// newVersionCmdWithChecker builds the version command. A nil checker uses
// versioncheck.NewChecker when --check is given.
func newVersionCmdWithChecker(checker *versioncheck.Checker) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Show the ipcctl version and build details.

Examples:
  ipcctl version
  ipcctl version --check
  ipcctl version -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			info := version.Get()

			if !check {
				if outputFormat != "table" {
					return formatOutput(out, info)
				}
				fmt.Fprintf(out, "ipcctl version %s\n", version.Version)
				if info.Revision != "" {
					fmt.Fprintf(out, "revision:  %s\n", info.Revision)
				}
				fmt.Fprintf(out, "go:        %s\n", info.GoVersion)
				fmt.Fprintf(out, "platform:  %s\n", info.Platform)
				return nil
			}

			c := checker
			if c == nil {
				c = versioncheck.NewChecker()
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			res, err := c.Check(ctx, version.Version)
			if outputFormat != "table" && res != nil {
				return formatOutput(out, res)
			}

			fmt.Fprintf(out, "ipcctl version %s\n", version.Version)
			switch {
			case res == nil:
				fmt.Fprintf(out, "Could not check for updates: %v\n", err)
			case res.UpdateAvailable:
				fmt.Fprintf(out, "A newer version is available: %s\n", res.Latest)
				if res.ReleaseURL != "" {
					fmt.Fprintf(out, "Release notes: %s\n", res.ReleaseURL)
				}
			default:
				fmt.Fprintln(out, "You are running the latest version")
			}
			// Update checks never fail the command.
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Check for a newer release")
	return cmd
}
