package cycle

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/linecheck/internal/barcode"
	"github.com/MeKo-Tech/linecheck/internal/detector"
	"github.com/MeKo-Tech/linecheck/internal/router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResult() *Result {
	text := "2026-10-17"
	res := newResult(uuid.MustParse("6f1c2a7e-0b4d-4c1e-9a55-3f0e2d1c0b9a"), time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC))
	res.Width, res.Height = 640, 480
	res.ElapsedMs = 12.5
	flavor := detector.Detection{ClassID: 0, ClassName: "flavor", Confidence: 0.99, Box: detector.Rect{X: 100, Y: 100, W: 200, H: 100}}
	date := detector.Detection{ClassID: 1, ClassName: "date", Confidence: 0.95, Box: detector.Rect{X: 300, Y: 400, W: 150, H: 40}}
	res.Detections = []detector.Detection{flavor, date}
	res.Results = []router.ExtractionResult{
		router.LabelResult{Detection: flavor, Label: "flavor"},
		router.FieldResult{Detection: date, Text: &text, SourceStrategy: "gray", Confidence: 0.8},
	}
	res.Barcodes = []barcode.Readout{{Content: "6401010137", Format: "code128", Strategy: "gray"}}
	return res
}

func TestToJSON(t *testing.T) {
	out, err := ToJSON(sampleResult())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "6f1c2a7e-0b4d-4c1e-9a55-3f0e2d1c0b9a", decoded["id"])
	results := decoded["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "label", results[0].(map[string]any)["kind"])
	field := results[1].(map[string]any)
	assert.Equal(t, "field", field["kind"])
	assert.Equal(t, "2026-10-17", field["text"])
	assert.Equal(t, "gray", field["source_strategy"])
	assert.Equal(t, []any{}, decoded["failures"])
	assert.NotContains(t, decoded, "verification")

	_, err = ToJSON(nil)
	assert.Error(t, err)
}

func TestToYAML(t *testing.T) {
	out, err := ToYAML(sampleResult())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "6f1c2a7e-0b4d-4c1e-9a55-3f0e2d1c0b9a", decoded["id"])
	results := decoded["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "field", results[1].(map[string]any)["kind"])
	assert.Equal(t, "2026-10-17", results[1].(map[string]any)["text"])
}

func TestToCSV(t *testing.T) {
	out, err := ToCSV(sampleResult())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "cycle_id,kind,class_id,class_name,confidence,x,y,w,h,text,source_strategy", lines[0])
	assert.Equal(t, "6f1c2a7e-0b4d-4c1e-9a55-3f0e2d1c0b9a,label,0,flavor,0.990,100,100,200,100,flavor,", lines[1])
	assert.Equal(t, "6f1c2a7e-0b4d-4c1e-9a55-3f0e2d1c0b9a,field,1,date,0.950,300,400,150,40,2026-10-17,gray", lines[2])
}

func TestFormat_Unsupported(t *testing.T) {
	_, err := Format(sampleResult(), "xml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(sampleResult()))
	assert.Error(t, Validate(nil))

	res := sampleResult()
	res.Detections[1].Box.W = 400
	assert.ErrorContains(t, Validate(res), "exceeds frame width")

	res = sampleResult()
	res.Detections[0].Confidence = 1.5
	assert.ErrorContains(t, Validate(res), "confidence")

	res = sampleResult()
	res.ID = uuid.Nil
	assert.Error(t, Validate(res))

	res = sampleResult()
	res.Width, res.Height = 0, 0
	assert.Error(t, Validate(res))
}

func TestResult_Accessors(t *testing.T) {
	res := sampleResult()
	assert.Equal(t, []string{"flavor"}, res.Labels())
	assert.Equal(t, map[string]string{"date": "2026-10-17"}, res.Fields())
	assert.False(t, res.Degraded())

	res.addFailure(FailureTimeout, StageDetect, context.DeadlineExceeded)
	assert.True(t, res.Degraded())
	assert.True(t, res.HasFailure(FailureTimeout))
	assert.False(t, res.HasFailure(FailureEmit))
	assert.Equal(t, "detect/timeout: context deadline exceeded", res.Failures[0].String())
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewWriterSink(&buf, "yaml")
	require.NoError(t, err)
	require.NoError(t, s.Emit(context.Background(), sampleResult()))
	require.NoError(t, s.Emit(context.Background(), sampleResult()))
	assert.Equal(t, 2, strings.Count(buf.String(), "---\n"))

	buf.Reset()
	s, err = NewWriterSink(&buf, "json")
	require.NoError(t, err)
	require.NoError(t, s.Emit(context.Background(), sampleResult()))
	assert.True(t, json.Valid(buf.Bytes()))

	_, err = NewWriterSink(&buf, "xml")
	assert.Error(t, err)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	s := LogSink{Logger: logger}

	require.NoError(t, s.Emit(context.Background(), sampleResult()))
	assert.Contains(t, buf.String(), `"msg":"Cycle emitted"`)
	assert.Contains(t, buf.String(), `"field_date":"2026-10-17"`)

	buf.Reset()
	res := sampleResult()
	res.addFailure(FailureExtraction, StageExtract, assert.AnError)
	require.NoError(t, s.Emit(context.Background(), res))
	assert.Contains(t, buf.String(), `"level":"WARN"`)
}

func TestTicker_DropsWhenBusy(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	out := make(chan Request)
	dropped := Ticker{Interval: 10 * time.Millisecond}.Run(ctx, out)
	assert.Positive(t, dropped, "nobody receives, so every tick is dropped")
}

func TestTicker_Delivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Request)
	go Ticker{Interval: 5 * time.Millisecond, Trigger: "plc"}.Run(ctx, out)
	select {
	case req := <-out:
		assert.Equal(t, "plc", req.Trigger)
	case <-time.After(2 * time.Second):
		t.Fatal("no tick delivered")
	}
}
