package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/MeKo-Tech/linecheck/internal/capture"
	"github.com/MeKo-Tech/linecheck/internal/config"
	"github.com/MeKo-Tech/linecheck/internal/cycle"
	"github.com/MeKo-Tech/linecheck/internal/pipeline"
	"github.com/MeKo-Tech/linecheck/internal/server"
	"github.com/MeKo-Tech/linecheck/internal/upload"
)

// node is a fully wired edge node: pipeline, orchestrator and sinks.
type node struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	orch     *cycle.Orchestrator
	hub      *server.Hub
	closers  []io.Closer
}

// newNode builds the pipeline and the orchestrator. Results in the configured
// output format are written to out unless output.file is set.
// A failed build releases whatever was acquired before the failure.
func newNode(ctx context.Context, cfg *config.Config, out io.Writer) (*node, error) {
	n := &node{cfg: cfg, hub: server.NewHub()}
	if err := n.build(ctx, out); err != nil {
		_ = n.Close()
		return nil, err
	}
	return n, nil
}

func (n *node) build(ctx context.Context, out io.Writer) error {
	cfg := n.cfg
	p, err := pipeline.NewBuilderFrom(cfg.ToPipelineConfig()).Build(ctx)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	n.pipeline = p
	n.closers = append(n.closers, p)

	source, err := newSource(cfg.Cycle.Source)
	if err != nil {
		return err
	}
	n.closers = append(n.closers, source)

	codec, err := cfg.Codec()
	if err != nil {
		return err
	}

	sinks, err := n.sinks(ctx, out)
	if err != nil {
		return err
	}

	opts := []cycle.Option{cycle.WithSource(source), cycle.WithSinks(sinks...)}
	if codec != nil {
		opts = append(opts, cycle.WithCodec(codec))
	}
	n.orch, err = p.Orchestrator(cfg.ToCycleConfig(), opts...)
	return err
}

func newSource(cfg config.SourceConfig) (capture.Source, error) {
	switch cfg.Type {
	case config.SourceFile:
		return capture.NewFileSource(cfg.Path)
	case config.SourceDir:
		return capture.NewDirSource(cfg.Path)
	default:
		return capture.NewSyntheticSource(), nil
	}
}

// sinks assembles the emission targets in delivery order.
func (n *node) sinks(ctx context.Context, out io.Writer) ([]cycle.Sink, error) {
	cfg := n.cfg
	sinks := []cycle.Sink{cycle.LogSink{}}

	if cfg.Output.Format != "" && cfg.Output.Format != "none" {
		w := out
		if cfg.Output.File != "" {
			f, err := os.OpenFile(cfg.Output.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // operator-chosen path
			if err != nil {
				return nil, fmt.Errorf("open output file: %w", err)
			}
			n.closers = append(n.closers, f)
			w = f
		}
		ws, err := cycle.NewWriterSink(w, cfg.Output.Format)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ws)
	}

	sinks = append(sinks, n.hub)

	meta := cfg.UploadMeta()
	if cfg.Upload.HTTP.Enabled {
		sinks = append(sinks, upload.NewSink("http", meta,
			upload.NewHTTPUploader(cfg.Upload.HTTP.Endpoint, cfg.Upload.HTTP.Timeout)))
	}
	if cfg.Upload.Redis.Enabled {
		rc := cfg.RedisConfig()
		rdb, err := upload.NewRedisClient(ctx, rc)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		n.closers = append(n.closers, rdb)
		sinks = append(sinks, upload.NewSink("redis", meta, upload.NewRedisUploader(rdb, rc.Stream, rc.MaxLen)))
	}
	return sinks, nil
}

// server returns the status server for this node.
func (n *node) server() *server.Server {
	return server.New(n.cfg.ToServerConfig(), n.orch, n.hub, server.WithInfo(n.pipeline.Info))
}

// Close releases resources in reverse acquisition order.
func (n *node) Close() error {
	if n == nil {
		return nil
	}
	if n.hub != nil {
		n.hub.Close()
	}
	var errs []error
	for i := len(n.closers) - 1; i >= 0; i-- {
		if err := n.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	n.closers = nil
	return errors.Join(errs...)
}

// serveHTTP runs the status server until ctx is done, then shuts it down
// gracefully.
func serveHTTP(ctx context.Context, cfg *config.Config, srv *server.Server) error {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting status server", "host", cfg.Server.Host, "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server shutdown completed")
	}
	if err := srv.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}
	return nil
}
