package cycle

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MeKo-Tech/linecheck/internal/barcode"
	"github.com/MeKo-Tech/linecheck/internal/detector"
	"github.com/MeKo-Tech/linecheck/internal/router"
	"github.com/MeKo-Tech/linecheck/internal/verify"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// FailureKind classifies a non-fatal problem recorded in a cycle.
type FailureKind string

const (
	FailureInvalidFrame         FailureKind = "invalid_frame"
	FailureInferenceUnavailable FailureKind = "inference_unavailable"
	FailureExtraction           FailureKind = "extraction_failure"
	FailureRecoveryExhausted    FailureKind = "recovery_exhausted"
	FailureTimeout              FailureKind = "timeout"
	FailureEmit                 FailureKind = "emit"
)

// Stage names used in failures and logs.
const (
	StageCapture = "capture"
	StageDetect  = "detect"
	StageExtract = "extract"
	StageRecover = "recover"
	StageVerify  = "verify"
	StageEmit    = "emit"
)

// Failure is one problem encountered while producing a Result.
type Failure struct {
	Kind    FailureKind `json:"kind" yaml:"kind"`
	Stage   string      `json:"stage" yaml:"stage"`
	Message string      `json:"message" yaml:"message"`
}

func (f Failure) String() string {
	return fmt.Sprintf("%s/%s: %s", f.Stage, f.Kind, f.Message)
}

// Result is the single record emitted per cycle.
type Result struct {
	ID           uuid.UUID                 `json:"id" yaml:"id"`
	Trigger      string                    `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	Serial       string                    `json:"serial,omitempty" yaml:"serial,omitempty"`
	StartedAt    time.Time                 `json:"started_at" yaml:"started_at"`
	ElapsedMs    float64                   `json:"elapsed_ms" yaml:"elapsed_ms"`
	Width        int                       `json:"width" yaml:"width"`
	Height       int                       `json:"height" yaml:"height"`
	Simulated    bool                      `json:"simulated" yaml:"simulated"`
	Detections   []detector.Detection      `json:"detections" yaml:"detections"`
	Results      []router.ExtractionResult `json:"results" yaml:"results"`
	Barcodes     []barcode.Readout         `json:"barcodes" yaml:"barcodes"`
	Verification *verify.Outcome           `json:"verification,omitempty" yaml:"verification,omitempty"`
	Failures     []Failure                 `json:"failures" yaml:"failures"`
}

func newResult(id uuid.UUID, started time.Time) *Result {
	return &Result{
		ID:         id,
		StartedAt:  started,
		Detections: []detector.Detection{},
		Results:    []router.ExtractionResult{},
		Barcodes:   []barcode.Readout{},
		Failures:   []Failure{},
	}
}

// Degraded reports whether any failure was recorded.
func (r *Result) Degraded() bool { return len(r.Failures) > 0 }

// HasFailure reports whether a failure of kind was recorded.
func (r *Result) HasFailure(kind FailureKind) bool {
	for _, f := range r.Failures {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

// Fields returns the text of every field result that was read, keyed by
// class name. Later detections of the same class overwrite earlier ones.
func (r *Result) Fields() map[string]string {
	out := make(map[string]string)
	for _, er := range r.Results {
		if fr, ok := er.(router.FieldResult); ok && fr.Text != nil {
			out[fr.Detection.ClassName] = *fr.Text
		}
	}
	return out
}

// Labels returns the label of every label result in detection order.
func (r *Result) Labels() []string {
	var out []string
	for _, er := range r.Results {
		if lr, ok := er.(router.LabelResult); ok {
			out = append(out, lr.Label)
		}
	}
	return out
}

func (r *Result) addFailure(kind FailureKind, stage string, err error) {
	r.Failures = append(r.Failures, Failure{Kind: kind, Stage: stage, Message: err.Error()})
}

// ToJSON serializes a result to pretty JSON.
func ToJSON(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToYAML serializes a result to YAML.
func ToYAML(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := yaml.Marshal(res)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToCSV exports one row per extraction result with a header.
func ToCSV(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"cycle_id", "kind", "class_id", "class_name", "confidence", "x", "y", "w", "h", "text", "source_strategy"})
	for _, er := range res.Results {
		d := er.Source()
		text, _ := router.Text(er)
		strategy := ""
		if fr, ok := er.(router.FieldResult); ok {
			strategy = fr.SourceStrategy
		}
		_ = w.Write([]string{
			res.ID.String(),
			er.Kind(),
			strconv.Itoa(d.ClassID),
			d.ClassName,
			fmt.Sprintf("%.3f", d.Confidence),
			strconv.Itoa(d.Box.X),
			strconv.Itoa(d.Box.Y),
			strconv.Itoa(d.Box.W),
			strconv.Itoa(d.Box.H),
			text,
			strategy,
		})
	}
	w.Flush()
	return buf.String(), w.Error()
}

// Format renders a result as json, yaml or csv.
func Format(res *Result, format string) (string, error) {
	switch format {
	case "", "json":
		return ToJSON(res)
	case "yaml", "yml":
		return ToYAML(res)
	case "csv":
		return ToCSV(res)
	}
	return "", fmt.Errorf("unsupported output format %q", format)
}

func validateBox(d detector.Detection, width, height, i int) error {
	b := d.Box
	if b.W < 0 || b.H < 0 {
		return fmt.Errorf("detection %d has negative size", i)
	}
	if b.X < 0 || b.Y < 0 {
		return fmt.Errorf("detection %d has negative coords", i)
	}
	if b.X+b.W > width {
		return fmt.Errorf("detection %d exceeds frame width", i)
	}
	if b.Y+b.H > height {
		return fmt.Errorf("detection %d exceeds frame height", i)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("detection %d confidence out of range", i)
	}
	return nil
}

// Validate performs consistency checks on an emitted result.
func Validate(res *Result) error {
	if res == nil {
		return errors.New("nil result")
	}
	if res.ID == uuid.Nil {
		return errors.New("missing cycle id")
	}
	if res.ElapsedMs < 0 {
		return fmt.Errorf("negative elapsed time %f", res.ElapsedMs)
	}
	if res.Width == 0 && res.Height == 0 {
		if len(res.Detections) > 0 {
			return errors.New("detections without a frame")
		}
		return nil
	}
	for i, d := range res.Detections {
		if err := validateBox(d, res.Width, res.Height, i); err != nil {
			return err
		}
	}
	return nil
}
