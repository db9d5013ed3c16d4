package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gobeyondidentity/ipclink/pkg/cpsim"
	"github.com/gobeyondidentity/ipclink/pkg/layout"
	"github.com/gobeyondidentity/ipclink/pkg/message"
	"github.com/gobeyondidentity/ipclink/pkg/protocol"
)

var (
	simRequests     int
	simUnresponsive bool
	simReject       bool
	simSuspend      bool
	simVerbose      bool
)

func init() {
	simulateCmd.Flags().IntVarP(&simRequests, "requests", "n", 8, "Number of blocking requests to send")
	simulateCmd.Flags().BoolVar(&simUnresponsive, "unresponsive", false, "Simulated CP stops acknowledging after boot")
	simulateCmd.Flags().BoolVar(&simReject, "reject", false, "Simulated CP rejects feature-set requests")
	simulateCmd.Flags().BoolVar(&simSuspend, "suspend", false, "Run a suspend/resume cycle after the requests")
	simulateCmd.Flags().BoolVarP(&simVerbose, "verbose", "v", false, "Log link activity to stderr")
	rootCmd.AddCommand(simulateCmd)
}

// requestResult is one blocking request in a simulation report.
type requestResult struct {
	Seq     int           `json:"seq" yaml:"seq" cbor:"seq"`
	Type    string        `json:"type" yaml:"type" cbor:"type"`
	Status  string        `json:"status" yaml:"status" cbor:"status"`
	Latency time.Duration `json:"latency_ns" yaml:"latency" cbor:"latency_ns"`
	Error   string        `json:"error,omitempty" yaml:"error,omitempty" cbor:"error,omitempty"`
}

// powerResult records a suspend/resume cycle.
type powerResult struct {
	Suspended bool   `json:"suspended" yaml:"suspended" cbor:"suspended"`
	Resumed   bool   `json:"resumed" yaml:"resumed" cbor:"resumed"`
	HostState string `json:"host_state" yaml:"host_state" cbor:"host_state"`
}

// simReport is the structured output of `ipcctl simulate`.
type simReport struct {
	Instance  string            `json:"instance" yaml:"instance" cbor:"instance"`
	Requests  []requestResult   `json:"requests" yaml:"requests" cbor:"requests"`
	Power     *powerResult      `json:"power,omitempty" yaml:"power,omitempty" cbor:"power,omitempty"`
	Processed int               `json:"processed" yaml:"processed" cbor:"processed"`
	Link      protocol.Snapshot `json:"link" yaml:"link" cbor:"link"`
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the AP side of the link against a simulated CP",
	Long: `Bring up the link against an in-process simulated CP, send a series of
blocking requests and report how each completed.

With --unresponsive the CP stops acknowledging after boot, so the first
request times out and the link is declared broken. With --suspend the run
ends with a host suspend and resume handshake.

Link events are written to the journal unless --no-journal is given.

Examples:
  ipcctl simulate
  ipcctl simulate -n 64 --suspend
  ipcctl simulate --unresponsive -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if simRequests < 0 {
			return fmt.Errorf("--requests must not be negative")
		}
		logger := newLogger(cmd.ErrOrStderr(), simVerbose)

		events, closeEvents, err := openEvents(logger)
		if err != nil {
			return err
		}
		defer closeEvents()

		var opts []cpsim.Option
		if simReject {
			opts = append(opts, cpsim.WithStatus(message.TypeFeatureSet, message.StatusError))
		}
		p, dev, err := startLink(logger, events, opts...)
		if err != nil {
			return err
		}
		defer p.Deinit()
		dev.SetUnresponsive(simUnresponsive)

		report := simReport{Instance: p.Instance()}
		var firstErr error
		for i := 0; i < simRequests; i++ {
			res, err := sendOne(p, i)
			report.Requests = append(report.Requests, res)
			if err != nil {
				firstErr = err
				if p.Broken() {
					break
				}
			}
		}

		if simSuspend && !p.Broken() {
			pr := &powerResult{Suspended: p.RequestSuspend()}
			if pr.Suspended {
				pr.Resumed = p.RequestResume()
			}
			pr.HostState = p.HostState().String()
			report.Power = pr
		}

		report.Processed = dev.Processed()
		report.Link = p.Snapshot()

		out := cmd.OutOrStdout()
		if outputFormat != "table" {
			if err := formatOutput(out, report); err != nil {
				return err
			}
		} else {
			printSimReport(out, report)
		}
		return firstErr
	},
}

// simArgs cycles through every message kind. Pipe numbers wrap at MaxPipes.
func simArgs(seq int) message.Args {
	pipe := uint8(seq / 4 % layout.MaxPipes)
	switch seq % 4 {
	case 0:
		return message.FeatureSet{ResetEnable: true}
	case 1:
		return message.PipeOpen{
			TDRAddr:    0x9000_0000 + uint64(pipe)*0x1000,
			TDREntries: 64,
			PipeNr:     pipe,
			IRQVector:  uint32(pipe) + 1,
		}
	case 2:
		return message.PipeClose{PipeNr: pipe}
	default:
		return message.PipeAbort{PipeNr: pipe}
	}
}

func sendOne(p *protocol.Protocol, seq int) (requestResult, error) {
	args := simArgs(seq)
	start := time.Now()
	status, err := p.SendBlocking(args)
	res := requestResult{
		Seq:     seq,
		Type:    args.Type().String(),
		Status:  status.String(),
		Latency: time.Since(start),
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res, err
}

func printSimReport(out io.Writer, r simReport) {
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(out, "Instance: %s\n\n", r.Instance)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tTYPE\tSTATUS\tLATENCY\tRESULT")
	for _, req := range r.Requests {
		result := ok("OK")
		if req.Error != "" {
			result = bad(req.Error)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", req.Seq, req.Type, req.Status, req.Latency.Round(time.Microsecond), result)
	}
	w.Flush()

	if r.Power != nil {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Suspend: %s\n", yesNo(r.Power.Suspended, ok, bad))
		fmt.Fprintf(out, "Resume:  %s\n", yesNo(r.Power.Resumed, ok, bad))
		fmt.Fprintf(out, "Host:    %s\n", r.Power.HostState)
	}

	state := ok("UP")
	if r.Link.Broken {
		state = bad("BROKEN")
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Link:      %s\n", state)
	fmt.Fprintf(out, "Processed: %d\n", r.Processed)
	fmt.Fprintf(out, "Stage:     %s (%s)\n", r.Link.ExecStage, r.Link.IPCStatus)
}

func yesNo(v bool, ok, bad func(a ...interface{}) string) string {
	if v {
		return ok("yes")
	}
	return bad("no")
}
