package recognizer

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/MeKo-Tech/linecheck/internal/models"
	"github.com/MeKo-Tech/linecheck/internal/ocr"
	"github.com/MeKo-Tech/linecheck/internal/onnx"
	"github.com/MeKo-Tech/linecheck/internal/onnx/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	out    onnx.Tensor
	err    error
	inputs [][]int64
	closed bool
}

func (f *fakeSession) Run(in onnx.Tensor) (onnx.Tensor, error) {
	f.inputs = append(f.inputs, append([]int64(nil), in.Shape...))
	return f.out, f.err
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func digitCharset(t *testing.T) *Charset {
	t.Helper()
	cs, err := NewCharset(strings.Split("0123456789-", ""))
	require.NoError(t, err)
	return cs
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, models.GetRecognitionModelPath(""), cfg.ModelPath)
	assert.Equal(t, models.GetDictionaryPath("", models.Dictionary), cfg.DictPath)
	assert.Equal(t, 48, cfg.ImageHeight)
	assert.Equal(t, 8, cfg.PadWidthMultiple)
}

func TestNewRecognizer_Errors(t *testing.T) {
	_, err := NewRecognizer(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model path cannot be empty")

	cfg := DefaultConfig()
	cfg.ModelPath = "no/such/model.onnx"
	cfg.DictPath = "no/such/dict.txt"
	_, err = NewRecognizer(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open dictionary")
}

func TestRecognize_DecodesBestPath(t *testing.T) {
	cs := digitCharset(t)
	// "2026-10-17" with blanks and repeats in the path
	path := []int{0, 3, 3, 1, 0, 3, 7, 11, 2, 1, 0, 11, 2, 2, 8, 0}
	logits := mock.NewGreedyPathLogits(path, cs.Classes(), 0.96, 0.004)
	sess := &fakeSession{out: onnx.Tensor{Data: logits.Data, Shape: logits.Shape}}

	r, err := NewWithSession(Config{ImageHeight: 32, PadWidthMultiple: 8}, sess, cs)
	require.NoError(t, err)

	crop := grayLine(120, 30, 220)
	frags, err := r.Recognize(context.Background(), crop, ocr.Options{RecognitionOnly: true})
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, "2026-10-17", frags[0].Text)
	assert.InDelta(t, 0.96, frags[0].Confidence, 1e-6)
	assert.Equal(t, crop.Bounds(), frags[0].Box)

	require.Len(t, sess.inputs, 1)
	assert.Equal(t, []int64{1, 3, 32, 128}, sess.inputs[0])

	require.NoError(t, r.Close())
	assert.True(t, sess.closed)
}

func TestRecognize_ClassesFirstLayout(t *testing.T) {
	cs := digitCharset(t)
	path := []int{2, 0, 2, 3}
	classes := cs.Classes()
	tm := mock.NewGreedyPathLogits(path, classes, 5, -5)
	// transpose [1,T,C] to [1,C,T]
	data := make([]float32, len(tm.Data))
	for ti := range path {
		for c := range classes {
			data[c*len(path)+ti] = tm.Data[ti*classes+c]
		}
	}
	sess := &fakeSession{out: onnx.Tensor{Data: data, Shape: []int64{1, int64(classes), int64(len(path))}}}
	r, err := NewWithSession(Config{}, sess, cs)
	require.NoError(t, err)

	frags, err := r.Recognize(context.Background(), grayLine(40, 20, 10), ocr.Options{})
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, "112", frags[0].Text)
}

func TestRecognize_EmptyAndErrors(t *testing.T) {
	cs := digitCharset(t)
	blank := mock.NewGreedyPathLogits([]int{0, 0, 0}, cs.Classes(), 1, 0)
	r, err := NewWithSession(Config{}, &fakeSession{out: onnx.Tensor{Data: blank.Data, Shape: blank.Shape}}, cs)
	require.NoError(t, err)
	frags, err := r.Recognize(context.Background(), grayLine(10, 10, 0), ocr.Options{})
	require.NoError(t, err)
	assert.Empty(t, frags)

	boom := errors.New("session failed")
	r, err = NewWithSession(Config{}, &fakeSession{err: boom}, cs)
	require.NoError(t, err)
	_, err = r.Recognize(context.Background(), grayLine(10, 10, 0), ocr.Options{})
	require.ErrorIs(t, err, boom)

	_, err = r.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 0, 0)), ocr.Options{})
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Recognize(ctx, grayLine(10, 10, 0), ocr.Options{})
	require.ErrorIs(t, err, context.Canceled)

	_, err = NewWithSession(Config{}, nil, cs)
	require.Error(t, err)
	_, err = NewWithSession(Config{}, &fakeSession{}, nil)
	require.Error(t, err)
}
