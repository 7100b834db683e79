// Package capture supplies frames to the inspection cycle: still files, a
// directory played round-robin, or synthetic labels rendered on demand.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/linecheck/internal/frame"
	"github.com/MeKo-Tech/linecheck/internal/synth"
	"github.com/MeKo-Tech/linecheck/internal/utils"
)

// ErrNoImages is returned by a directory source with nothing to play.
var ErrNoImages = errors.New("no supported images found")

// Hint carries what the line expects to see in the next frame. Real sources
// ignore it; the synthetic source prints Content as the barcode.
type Hint struct {
	Content string
}

// Source yields one frame per call.
type Source interface {
	Next(ctx context.Context, hint Hint) (*frame.Frame, error)
	Close() error
}

// FileSource re-reads the same file on every call so an external process can
// overwrite it between cycles.
type FileSource struct {
	path string
}

// NewFileSource checks that path is a supported image.
func NewFileSource(path string) (*FileSource, error) {
	if !utils.IsSupportedImage(path) {
		return nil, fmt.Errorf("unsupported image: %s", path)
	}
	return &FileSource{path: path}, nil
}

func (s *FileSource) Next(ctx context.Context, _ Hint) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return load(s.path)
}

func (s *FileSource) Close() error { return nil }

// DirSource cycles through the images of a directory in name order.
type DirSource struct {
	mu    sync.Mutex
	paths []string
	next  int
}

// NewDirSource lists dir once; files added later are not picked up.
func NewDirSource(dir string) (*DirSource, error) {
	paths, err := utils.ListImages(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}
	slog.Debug("Directory source ready", "dir", dir, "images", len(paths))
	return &DirSource{paths: paths}, nil
}

// Len returns the number of images in the rotation.
func (s *DirSource) Len() int { return len(s.paths) }

func (s *DirSource) Next(ctx context.Context, _ Hint) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	path := s.paths[s.next]
	s.next = (s.next + 1) % len(s.paths)
	s.mu.Unlock()
	return load(path)
}

func (s *DirSource) Close() error { return nil }

// SyntheticSource renders a label carrying the hinted content as a QR code.
type SyntheticSource struct {
	Degradation synth.Degradation
}

// NewSyntheticSource returns a source of clean synthetic labels.
func NewSyntheticSource() *SyntheticSource { return &SyntheticSource{} }

func (s *SyntheticSource) Next(ctx context.Context, hint Hint) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content := hint.Content
	if content == "" {
		content = synth.DefaultBarcodeContent
	}
	img, err := synth.Render(synth.DefaultScene(content))
	if err != nil {
		return nil, fmt.Errorf("render synthetic frame: %w", err)
	}
	if s.Degradation != (synth.Degradation{}) {
		img = synth.Degrade(img, s.Degradation)
	}
	return frame.FromImage(img, frame.OrderRGB)
}

func (s *SyntheticSource) Close() error { return nil }

func load(path string) (*frame.Frame, error) {
	img, meta, err := utils.LoadImage(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("Frame loaded", "path", path, "format", meta.Format, "width", meta.Width, "height", meta.Height)
	return frame.FromImage(img, frame.OrderRGB)
}
