package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/gobeyondidentity/ipclink/internal/version"
	"github.com/gobeyondidentity/ipclink/pkg/audit"
	"github.com/gobeyondidentity/ipclink/pkg/cpsim"
	"github.com/gobeyondidentity/ipclink/pkg/message"
)

// linkService is the health service name that tracks the link.
const linkService = "ipclink.Link"

var (
	serveListen    string
	serveHeartbeat time.Duration
	serveVerbose   bool
)

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "gRPC listen address (default from config, :50061)")
	serveCmd.Flags().DurationVar(&serveHeartbeat, "heartbeat", time.Second, "Interval between link heartbeat requests (0 disables)")
	serveCmd.Flags().BoolVarP(&serveVerbose, "verbose", "v", false, "Log link activity to stderr")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a gRPC health endpoint that follows the link state",
	Long: `Bring up the link against a simulated CP and serve the standard gRPC
health service. The "` + linkService + `" service reports SERVING while the link
is up and NOT_SERVING once it breaks or closes. A periodic heartbeat request
detects a CP that stopped responding.

Examples:
  ipcctl serve
  ipcctl serve --listen 127.0.0.1:50061 --heartbeat 250ms
  grpc-health-probe -addr=:50061 -service=` + linkService,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveListen
		if addr == "" {
			addr = cfg.Serve.ListenAddr
		}
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runServe(ctx, lis, newLogger(cmd.ErrOrStderr(), serveVerbose), cmd.OutOrStdout())
	},
}

// healthEmitter mirrors link events onto the health server.
type healthEmitter struct {
	hs *health.Server
}

func (h healthEmitter) Emit(ev audit.Event) error {
	switch ev.Type {
	case audit.EventLinkUp:
		h.hs.SetServingStatus(linkService, grpc_health_v1.HealthCheckResponse_SERVING)
	case audit.EventLinkBroken, audit.EventLinkClosed:
		h.hs.SetServingStatus(linkService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
	return nil
}

// runServe serves health on lis until ctx is done. Link state changes are
// reported on out.
func runServe(ctx context.Context, lis net.Listener, logger *slog.Logger, out io.Writer, opts ...cpsim.Option) error {
	log.Printf("ipcctl %s serving link health", version.String())

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(linkService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	// Enable reflection for grpcurl
	reflection.Register(grpcServer)

	events, closeEvents, err := openEvents(logger, healthEmitter{hs: healthServer})
	if err != nil {
		return err
	}
	defer closeEvents()

	p, dev, err := startLink(logger, events, opts...)
	if err != nil {
		return err
	}
	defer func() {
		p.Deinit()
		healthServer.Shutdown()
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("gRPC server listening on %s", lis.Addr())
		serveErr <- grpcServer.Serve(lis)
	}()

	up := color.New(color.FgGreen).SprintFunc()
	down := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(out, "link %s %s\n", p.Instance(), up("UP"))

	var tick <-chan time.Time
	if serveHeartbeat > 0 {
		t := time.NewTicker(serveHeartbeat)
		defer t.Stop()
		tick = t.C
	}

	reported := false
	for {
		select {
		case <-ctx.Done():
			log.Printf("Shutting down...")
			grpcServer.GracefulStop()
			return nil
		case err := <-serveErr:
			return err
		case <-tick:
			if p.Broken() {
				continue
			}
			if _, err := p.SendBlocking(message.FeatureSet{}); err != nil {
				logger.Warn("heartbeat failed", "error", err, "processed", dev.Processed())
			}
		}
		if p.Broken() && !reported {
			reported = true
			fmt.Fprintf(out, "link %s %s\n", p.Instance(), down("BROKEN"))
		}
	}
}
