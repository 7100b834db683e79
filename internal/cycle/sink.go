package cycle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Sink receives every emitted result. Emit must not retain or modify res
// after returning unless it copies it.
type Sink interface {
	Name() string
	Emit(ctx context.Context, res *Result) error
}

// SinkFunc adapts a function into a Sink.
type SinkFunc struct {
	ID string
	Fn func(ctx context.Context, res *Result) error
}

func (s SinkFunc) Name() string { return s.ID }

func (s SinkFunc) Emit(ctx context.Context, res *Result) error { return s.Fn(ctx, res) }

// LogSink writes a one-line summary of each result.
type LogSink struct {
	Logger *slog.Logger
}

func (LogSink) Name() string { return "log" }

func (s LogSink) Emit(_ context.Context, res *Result) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"cycle_id", res.ID.String(),
		"elapsed_ms", res.ElapsedMs,
		"detections", len(res.Detections),
		"barcodes", len(res.Barcodes),
		"failures", len(res.Failures),
		"simulated", res.Simulated,
	}
	if res.Serial != "" {
		attrs = append(attrs, "serial", res.Serial)
	}
	if res.Verification != nil {
		attrs = append(attrs, "matched", res.Verification.Matched)
	}
	for k, v := range res.Fields() {
		attrs = append(attrs, "field_"+k, v)
	}
	if res.Degraded() {
		logger.Warn("Cycle emitted with failures", append(attrs, "first_failure", res.Failures[0].String())...)
		return nil
	}
	logger.Info("Cycle emitted", attrs...)
	return nil
}

// WriterSink renders results in a fixed format to a writer, one document per
// cycle.
type WriterSink struct {
	mu     sync.Mutex
	w      io.Writer
	format string
}

// NewWriterSink validates format (json, yaml or csv).
func NewWriterSink(w io.Writer, format string) (*WriterSink, error) {
	switch format {
	case "", "json", "yaml", "yml", "csv":
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	return &WriterSink{w: w, format: format}, nil
}

func (s *WriterSink) Name() string { return "writer" }

func (s *WriterSink) Emit(_ context.Context, res *Result) error {
	out, err := Format(res, s.format)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.format {
	case "yaml", "yml":
		_, err = fmt.Fprintf(s.w, "---\n%s", out)
	case "csv":
		_, err = io.WriteString(s.w, out)
	default:
		_, err = fmt.Fprintln(s.w, out)
	}
	return err
}
