package extract

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/MeKo-Tech/linecheck/internal/frame"
	"github.com/MeKo-Tech/linecheck/internal/imgproc"
	"github.com/MeKo-Tech/linecheck/internal/ocr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(t *testing.T, w, h int) *frame.Frame {
	t.Helper()
	f, err := frame.New(w, h, frame.OrderBGR, make([]byte, w*h*frame.Channels))
	require.NoError(t, err)
	return f
}

type call struct {
	size image.Point
	opts ocr.Options
}

// scripted returns one response per call, repeating the last.
func scripted(calls *[]call, responses ...func() ([]ocr.Fragment, error)) ocr.Engine {
	return ocr.EngineFunc(func(_ context.Context, img image.Image, opts ocr.Options) ([]ocr.Fragment, error) {
		*calls = append(*calls, call{size: img.Bounds().Size(), opts: opts})
		i := min(len(*calls), len(responses)) - 1
		return responses[i]()
	})
}

func text(s string, conf float64) func() ([]ocr.Fragment, error) {
	return func() ([]ocr.Fragment, error) { return []ocr.Fragment{{Text: s, Confidence: conf}}, nil }
}

func fail(err error) func() ([]ocr.Fragment, error) {
	return func() ([]ocr.Fragment, error) { return nil, err }
}

func TestExtract_FirstAttemptWins(t *testing.T) {
	var calls []call
	a := NewAdapter(scripted(&calls, text("2026-10-17", 0.8)))

	ex, err := a.Extract(context.Background(), testFrame(t, 200, 100), image.Rect(50, 40, 100, 60))
	require.NoError(t, err)
	require.NotNil(t, ex.Text)
	assert.Equal(t, "2026-10-17", *ex.Text)
	assert.Equal(t, imgproc.StrategyGray, ex.Strategy)
	assert.InDelta(t, 0.8, ex.Confidence, 1e-9)
	assert.Equal(t, image.Rect(45, 35, 105, 65), ex.Region)

	require.Len(t, calls, 1)
	assert.Equal(t, image.Pt(60, 30), calls[0].size)
	assert.True(t, calls[0].opts.RecognitionOnly)
}

func TestExtract_FragmentsConcatenated(t *testing.T) {
	var calls []call
	split := func() ([]ocr.Fragment, error) {
		return []ocr.Fragment{{Text: "2025", Confidence: 0.9}, {Text: "/08", Confidence: 0.8}, {Text: "/17", Confidence: 0.7}}, nil
	}
	a := NewAdapter(scripted(&calls, split))

	ex, err := a.Extract(context.Background(), testFrame(t, 200, 100), image.Rect(50, 40, 100, 60))
	require.NoError(t, err)
	require.NotNil(t, ex.Text)
	assert.Equal(t, "2025/08/17", *ex.Text)
}

func TestExtract_MarginClampedToFrame(t *testing.T) {
	var calls []call
	a := NewAdapter(scripted(&calls, text("x", 1)), WithMargin(10))

	ex, err := a.Extract(context.Background(), testFrame(t, 100, 50), image.Rect(0, 0, 20, 20))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 30, 30), ex.Region)
}

func TestExtract_FallsThroughToUpscale(t *testing.T) {
	var calls []call
	empty := func() ([]ocr.Fragment, error) { return []ocr.Fragment{{Text: "  "}}, nil }
	a := NewAdapter(scripted(&calls, empty, text("MHD", 0.5)))

	ex, err := a.Extract(context.Background(), testFrame(t, 200, 100), image.Rect(10, 10, 30, 20))
	require.NoError(t, err)
	require.NotNil(t, ex.Text)
	assert.Equal(t, "MHD", *ex.Text)
	assert.Equal(t, imgproc.StrategyUpscale2x, ex.Strategy)
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0].size.Mul(2), calls[1].size)
}

func TestExtract_NothingFound(t *testing.T) {
	var calls []call
	none := func() ([]ocr.Fragment, error) { return nil, nil }
	a := NewAdapter(scripted(&calls, none))

	ex, err := a.Extract(context.Background(), testFrame(t, 64, 64), image.Rect(10, 10, 30, 30))
	require.NoError(t, err)
	assert.Nil(t, ex.Text)
	assert.Equal(t, StrategyNone, ex.Strategy)
	assert.Len(t, calls, len(DefaultAttempts))
}

func TestExtract_EngineErrorsBecomeFailure(t *testing.T) {
	var calls []call
	boom := errors.New("engine crashed")
	a := NewAdapter(scripted(&calls, fail(boom)))

	ex, err := a.Extract(context.Background(), testFrame(t, 64, 64), image.Rect(10, 10, 30, 30))
	require.ErrorIs(t, err, ErrExtractionFailure)
	require.ErrorIs(t, err, boom)
	assert.Nil(t, ex.Text)
	assert.Equal(t, StrategyNone, ex.Strategy)
}

func TestExtract_PartialErrorIsNotFailure(t *testing.T) {
	var calls []call
	a := NewAdapter(scripted(&calls, fail(errors.New("transient")), func() ([]ocr.Fragment, error) { return nil, nil }))

	ex, err := a.Extract(context.Background(), testFrame(t, 64, 64), image.Rect(10, 10, 30, 30))
	require.NoError(t, err)
	assert.Nil(t, ex.Text)
}

func TestExtract_PanicIsContained(t *testing.T) {
	engine := ocr.EngineFunc(func(context.Context, image.Image, ocr.Options) ([]ocr.Fragment, error) {
		panic("index out of range")
	})
	a := NewAdapter(engine)

	var ex Extraction
	var err error
	require.NotPanics(t, func() {
		ex, err = a.Extract(context.Background(), testFrame(t, 64, 64), image.Rect(10, 10, 30, 30))
	})
	require.ErrorIs(t, err, ErrExtractionFailure)
	assert.Contains(t, err.Error(), "panic")
	assert.Nil(t, ex.Text)
}

func TestExtract_EmptyCrop(t *testing.T) {
	var calls []call
	a := NewAdapter(scripted(&calls, text("x", 1)))

	_, err := a.Extract(context.Background(), testFrame(t, 64, 64), image.Rect(200, 200, 220, 220))
	require.ErrorIs(t, err, ErrExtractionFailure)
	assert.Empty(t, calls)
}

func TestExtract_InvalidInputs(t *testing.T) {
	_, err := NewAdapter(nil).Extract(context.Background(), testFrame(t, 8, 8), image.Rect(0, 0, 4, 4))
	require.ErrorIs(t, err, ErrExtractionFailure)

	var calls []call
	a := NewAdapter(scripted(&calls, text("x", 1)))
	_, err = a.Extract(context.Background(), nil, image.Rect(0, 0, 4, 4))
	require.ErrorIs(t, err, ErrExtractionFailure)
	require.ErrorIs(t, err, frame.ErrInvalidFrame)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Extract(ctx, testFrame(t, 8, 8), image.Rect(0, 0, 4, 4))
	require.ErrorIs(t, err, ErrExtractionFailure)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWithAttempts(t *testing.T) {
	var calls []call
	only, ok := imgproc.Lookup(imgproc.StrategyThreshold100)
	require.True(t, ok)
	a := NewAdapter(scripted(&calls, func() ([]ocr.Fragment, error) { return nil, nil }), WithAttempts([]imgproc.Strategy{only}))

	_, err := a.Extract(context.Background(), testFrame(t, 32, 32), image.Rect(4, 4, 12, 12))
	require.NoError(t, err)
	assert.Len(t, calls, 1)
}
