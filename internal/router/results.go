package router

import (
	"encoding/json"

	"github.com/MeKo-Tech/linecheck/internal/detector"
)

// Result kinds as serialized in the "kind" field.
const (
	KindLabel = "label"
	KindField = "field"
)

// ExtractionResult is the per-detection outcome. The set of variants is
// closed: LabelResult and FieldResult.
type ExtractionResult interface {
	Kind() string
	Source() detector.Detection
	sealed()
}

// LabelResult is a detection classified directly by its class name.
type LabelResult struct {
	Detection detector.Detection `json:"detection" yaml:"detection"`
	Label     string             `json:"label" yaml:"label"`
}

// FieldResult is a detection whose text was read by the extraction adapter.
// Text is nil when nothing could be read; SourceStrategy is then "none".
type FieldResult struct {
	Detection      detector.Detection `json:"detection" yaml:"detection"`
	Text           *string            `json:"text" yaml:"text"`
	SourceStrategy string             `json:"source_strategy" yaml:"source_strategy"`
	Confidence     float64            `json:"text_confidence" yaml:"text_confidence"`
}

func (LabelResult) Kind() string { return KindLabel }
func (r LabelResult) Source() detector.Detection { return r.Detection }
func (LabelResult) sealed() {}
func (FieldResult) Kind() string { return KindField }
func (r FieldResult) Source() detector.Detection { return r.Detection }
func (FieldResult) sealed() {}

// MarshalJSON adds the kind discriminator.
func (r LabelResult) MarshalJSON() ([]byte, error) {
	type plain LabelResult
	return json.Marshal(struct {
		Kind string `json:"kind"`
		plain
	}{KindLabel, plain(r)})
}

// MarshalJSON adds the kind discriminator.
func (r FieldResult) MarshalJSON() ([]byte, error) {
	type plain FieldResult
	return json.Marshal(struct {
		Kind string `json:"kind"`
		plain
	}{KindField, plain(r)})
}

// MarshalYAML adds the kind discriminator.
func (r LabelResult) MarshalYAML() (any, error) {
	type plain LabelResult
	return struct {
		Kind  string `yaml:"kind"`
		plain `yaml:",inline"`
	}{KindLabel, plain(r)}, nil
}

// MarshalYAML adds the kind discriminator.
func (r FieldResult) MarshalYAML() (any, error) {
	type plain FieldResult
	return struct {
		Kind  string `yaml:"kind"`
		plain `yaml:",inline"`
	}{KindField, plain(r)}, nil
}

// Text returns the textual value of any result, and false when absent.
func Text(r ExtractionResult) (string, bool) {
	switch v := r.(type) {
	case LabelResult:
		return v.Label, true
	case FieldResult:
		if v.Text == nil {
			return "", false
		}
		return *v.Text, true
	}
	return "", false
}
