package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/linecheck/internal/cycle"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run inspection cycles on a fixed interval",
	Long: `Run the edge node: trigger a cycle every interval, emit each result to the
configured sinks and serve status, metrics and manual triggers over HTTP.

A tick that arrives while a cycle is still running is dropped.

Examples:
  linecheck run
  linecheck run --interval 500ms --source dir --source-path ./frames
  linecheck run --no-server --format yaml`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := GetConfig()
		noServer, _ := cmd.Flags().GetBool("no-server")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		n, err := newNode(ctx, cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer func() { _ = n.Close() }()

		g, gctx := errgroup.WithContext(ctx)
		triggers := make(chan cycle.Request)

		g.Go(func() error {
			return n.orch.Run(gctx, triggers)
		})
		g.Go(func() error {
			dropped := cycle.Ticker{Interval: cfg.Cycle.Interval, Trigger: "tick"}.Run(gctx, triggers)
			slog.Info("Ticker stopped", "dropped", dropped)
			return nil
		})
		if !noServer {
			g.Go(func() error {
				return serveHTTP(gctx, cfg, n.server())
			})
		}

		slog.Info("Edge node running",
			"interval", cfg.Cycle.Interval.String(),
			"source", cfg.Cycle.Source.Type,
			"server", !noServer)

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("edge node stopped: %w", err)
		}
		slog.Info("Edge node stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addCycleFlags(runCmd)
	addServerFlags(runCmd)
	runCmd.Flags().Duration("interval", 0, "time between triggered cycles (default from config)")
	runCmd.Flags().Bool("no-server", false, "do not start the status server")
	bindFlag(runCmd.Flags(), "interval", "cycle.interval")
}

// addCycleFlags registers the flags shared by every command that runs cycles.
func addCycleFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.String("source", "", "frame source: synthetic, file or dir")
	fs.String("source-path", "", "image file or directory for file and dir sources")
	fs.String("codec", "", "serial codec printed in the barcode: plain or base64")
	fs.Duration("timeout", 0, "cycle timeout")
	fs.StringP("format", "f", "", "result output format: json, yaml, csv or none")
	fs.StringP("output", "o", "", "append results to this file instead of stdout")
	fs.String("ocr-backend", "", "field OCR backend: onnx, tesseract, cloudvision or none")
	fs.Float64("conf-threshold", 0, "detector confidence threshold (0..1)")
	fs.Bool("barcode", true, "recover the printed barcode")

	bindFlag(fs, "source", "cycle.source.type")
	bindFlag(fs, "source-path", "cycle.source.path")
	bindFlag(fs, "codec", "cycle.codec")
	bindFlag(fs, "timeout", "cycle.timeout")
	bindFlag(fs, "format", "output.format")
	bindFlag(fs, "output", "output.file")
	bindFlag(fs, "ocr-backend", "ocr.backend")
	bindFlag(fs, "conf-threshold", "detector.conf_threshold")
	bindFlag(fs, "barcode", "barcode.enabled")
}

// addServerFlags registers the status server flags.
func addServerFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringP("host", "H", "", "server host")
	fs.IntP("port", "p", 0, "server port")
	fs.String("cors-origin", "", "CORS allowed origins")
	fs.Int("max-upload-size", 0, "maximum upload size in MB")
	fs.Int("shutdown-timeout", 0, "shutdown timeout in seconds")
	fs.Int("requests-per-minute", 0, "manual triggers per minute per client (0 disables)")
	fs.Int("max-requests-per-day", 0, "manual triggers per day per client (0 disables)")
	fs.Int64("max-data-per-day", 0, "uploaded bytes per day per client (0 disables)")

	bindFlag(fs, "host", "server.host")
	bindFlag(fs, "port", "server.port")
	bindFlag(fs, "cors-origin", "server.cors_origin")
	bindFlag(fs, "max-upload-size", "server.max_upload_mb")
	bindFlag(fs, "shutdown-timeout", "server.shutdown_timeout")
	bindFlag(fs, "requests-per-minute", "server.requests_per_minute")
	bindFlag(fs, "max-requests-per-day", "server.max_requests_per_day")
	bindFlag(fs, "max-data-per-day", "server.max_data_per_day")
}
