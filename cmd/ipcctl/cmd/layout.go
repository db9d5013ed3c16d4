package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gobeyondidentity/ipclink/pkg/layout"
	"github.com/gobeyondidentity/ipclink/pkg/transport"
)

func init() {
	rootCmd.AddCommand(layoutCmd)
}

// layoutInfo is the structured form of `ipcctl layout`.
type layoutInfo struct {
	RegionSize  int                `json:"region_size" yaml:"region_size" cbor:"region_size"`
	RingEntries int                `json:"ring_entries" yaml:"ring_entries" cbor:"ring_entries"`
	EntrySize   int                `json:"entry_size" yaml:"entry_size" cbor:"entry_size"`
	MaxPipes    int                `json:"max_pipes" yaml:"max_pipes" cbor:"max_pipes"`
	Fields      []layout.Field     `json:"fields" yaml:"fields" cbor:"fields"`
	Context     layout.ContextInfo `json:"context_info" yaml:"context_info" cbor:"context_info"`
}

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Show the shared region layout",
	Long: `Show the offset, size and writer of every block in the shared region,
and the context info the AP would publish for the configured bus base.

Examples:
  ipcctl layout
  ipcctl layout -o yaml
  ipcctl layout -o cbor > layout.cbor`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		base := cfg.Region.BusBase
		if base == 0 {
			base = transport.DefaultBusBase
		}
		info := layoutInfo{
			RegionSize:  layout.RegionSize,
			RingEntries: layout.MsgEntries,
			EntrySize:   layout.EntrySize,
			MaxPipes:    layout.MaxPipes,
			Fields:      layout.Fields(),
			Context:     layout.NewContextInfo(base, cfg.Link.MsgVector, cfg.Link.DeviceVector),
		}

		out := cmd.OutOrStdout()
		if outputFormat != "table" {
			return formatOutput(out, info)
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "BLOCK\tOFFSET\tSIZE\tWRITER")
		for _, f := range info.Fields {
			fmt.Fprintf(w, "%s\t%#06x\t%d\t%s\n", f.Name, f.Offset, f.Size, f.Writer)
		}
		w.Flush()

		fmt.Fprintf(out, "\nRegion: %d bytes at bus address %#x\n", info.RegionSize, base)
		fmt.Fprintf(out, "Ring:   %d entries x %d bytes (%d usable)\n", info.RingEntries, info.EntrySize, info.RingEntries-1)
		return nil
	},
}
