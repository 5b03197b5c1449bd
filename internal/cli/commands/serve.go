package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/teamstreem/realm/internal/dashboard"
	"github.com/teamstreem/realm/internal/state"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the kids' dashboard server",
		Long: `Start a local web server for the kids' dashboard.

Endpoints:
  /api/kids     what the kids can see
  /api/dad      everything
  /api/updates  live progress stream with milestone celebrations
  /healthz      health check
  /metrics      Prometheus metrics

The build is reloaded every refresh interval. With --watch, changes another
realm process writes to the state database show up immediately.`,
		Example: `  # Default port 8080
  realm serve

  # Custom port, refresh every minute
  realm serve --port 3000 --refresh 1m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	// Values flow through the config loader; defaults live there.
	cmd.Flags().Int("port", 0, fmt.Sprintf("Port to serve on (default: %d)", dashboard.DefaultPort))
	cmd.Flags().Duration("refresh", 0, "Reload interval (default: 5m)")
	cmd.Flags().Bool("watch", true, "Re-apply local overrides when the state database changes")
	return cmd
}

func runServe(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	metrics := dashboard.NewMetrics()
	if err := metrics.Register(cmdCtx.Registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	cfg := cmdCtx.Cfg
	server := dashboard.NewServer(dashboard.Config{
		Source:          cmdCtx.Reconciler,
		Port:            cfg.Serve.Port,
		RefreshInterval: cfg.Serve.RefreshInterval,
		Watch:           cfg.Serve.Watch && cfg.StatePath != state.MemoryPath,
		StatePath:       cfg.StatePath,
		Gatherer:        cmdCtx.Registry,
		Metrics:         metrics,
		Logger:          cmdCtx.Logger,
	})

	cmdCtx.Renderer.Println(fmt.Sprintf("Dashboard on http://localhost:%d", server.Port()))
	cmdCtx.Renderer.Println("Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Serve(ctx)
}
