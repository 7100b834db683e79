package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the status server without periodic cycles",
	Long: `Start an HTTP server that runs cycles only on demand.

The server provides the following endpoints:
  GET  /health  - Health check with host and pipeline information
  GET  /status  - Orchestrator state and the last result
  POST /cycle   - Run one cycle; a multipart "image" field supplies the frame
  GET  /ws      - Live result feed; accepts "trigger" and "status" commands
  GET  /metrics - Prometheus metrics

Examples:
  linecheck serve
  linecheck serve --port 8080
  linecheck serve --host 0.0.0.0 --requests-per-minute 30`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := GetConfig()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		n, err := newNode(ctx, cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer func() { _ = n.Close() }()

		if err := serveHTTP(ctx, cfg, n.server()); err != nil {
			return err
		}
		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addCycleFlags(serveCmd)
	addServerFlags(serveCmd)
}
