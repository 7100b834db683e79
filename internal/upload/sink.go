package upload

import (
	"context"

	"github.com/MeKo-Tech/linecheck/internal/cycle"
)

// Sink delivers every cycle result through an Uploader, stamped with the
// line metadata and the cycle start time.
type Sink struct {
	name     string
	meta     Meta
	uploader Uploader
}

// NewSink wraps uploader as a cycle sink.
func NewSink(name string, meta Meta, uploader Uploader) *Sink {
	return &Sink{name: name, meta: meta, uploader: uploader}
}

func (s *Sink) Name() string { return s.name }

func (s *Sink) Emit(ctx context.Context, res *cycle.Result) error {
	return s.uploader.Upload(ctx, NewRecord(s.meta, res, res.StartedAt))
}
