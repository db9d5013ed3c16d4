package cmd

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gobeyondidentity/ipclink/pkg/audit"
	"github.com/gobeyondidentity/ipclink/pkg/clierror"
	"github.com/gobeyondidentity/ipclink/pkg/journal"
	"github.com/gobeyondidentity/ipclink/pkg/timeutil"
)

var (
	eventsType     string
	eventsInstance string
	eventsSince    time.Duration
	eventsLimit    int

	pruneOlderThan time.Duration
)

func init() {
	eventsCmd.Flags().StringVar(&eventsType, "type", "", "Only show events of this type (e.g. link.broken)")
	eventsCmd.Flags().StringVar(&eventsInstance, "instance", "", "Only show events of this link instance")
	eventsCmd.Flags().DurationVar(&eventsSince, "since", 0, "Only show events newer than this (e.g. 1h)")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "Maximum number of events (0 for all)")

	eventsPruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 30*24*time.Hour, "Delete events older than this")

	eventsCmd.AddCommand(eventsPruneCmd)
	rootCmd.AddCommand(eventsCmd)
}

func openJournal() (*journal.Journal, error) {
	if cfg.Journal.Disabled {
		return nil, clierror.ConfigInvalid(fmt.Errorf("the event journal is disabled"))
	}
	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, clierror.JournalUnavailable(cfg.Journal.Path, err)
	}
	return j, nil
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recorded link events",
	Long: `List link events recorded in the journal, newest first.

Examples:
  ipcctl events
  ipcctl events --type link.broken --since 24h
  ipcctl events -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if eventsType != "" && !knownEventType(audit.EventType(eventsType)) {
			return clierror.ConfigInvalid(fmt.Errorf("unknown event type %q", eventsType))
		}

		j, err := openJournal()
		if err != nil {
			return err
		}
		defer j.Close()

		filter := journal.Filter{
			Type:     audit.EventType(eventsType),
			Instance: eventsInstance,
			Limit:    eventsLimit,
		}
		if eventsSince > 0 {
			filter.Since = time.Now().Add(-eventsSince)
		}
		entries, err := j.Query(filter)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if outputFormat != "table" {
			if entries == nil {
				entries = []journal.Entry{}
			}
			return formatOutput(out, entries)
		}

		if len(entries) == 0 {
			fmt.Fprintln(out, "No events recorded.")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tSEVERITY\tTYPE\tINSTANCE\tDETAILS")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				timeutil.Relative(e.Timestamp), e.Severity, e.Type, shortID(e.Instance), formatDetails(e.Details))
		}
		return w.Flush()
	},
}

var eventsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old link events",
	Long: `Delete journal entries older than --older-than.

Examples:
  ipcctl events prune
  ipcctl events prune --older-than 168h`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if pruneOlderThan <= 0 {
			return clierror.ConfigInvalid(fmt.Errorf("--older-than must be positive"))
		}
		j, err := openJournal()
		if err != nil {
			return err
		}
		defer j.Close()

		n, err := j.Prune(time.Now().Add(-pruneOlderThan))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if outputFormat != "table" {
			return formatOutput(out, map[string]int64{"deleted": n})
		}
		fmt.Fprintf(out, "Deleted %d event(s)\n", n)
		return nil
	},
}

func knownEventType(et audit.EventType) bool {
	for _, t := range audit.AllEventTypes() {
		if t == et {
			return true
		}
	}
	return false
}

// shortID trims UUID instance names for table output.
func shortID(id string) string {
	if len(id) == 36 && strings.Count(id, "-") == 4 {
		return id[:8]
	}
	return id
}

func formatDetails(d map[string]string) string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+d[k])
	}
	return strings.Join(parts, " ")
}
