// Package upload hands cycle results to the production backend, either over
// HTTP or through a Redis stream.
package upload

import (
	"context"
	"errors"
	"time"
)

// Defaults applied to records with empty metadata.
const (
	DefaultEndpoint   = "http://localhost:8000/api/v1/production/upload"
	DefaultOperatorID = "DEFAULT"
	DefaultSourceType = "AUTO"
	DefaultStream     = "linecheck:results"
)

// ErrRejected is returned when the backend answers but does not accept a record.
var ErrRejected = errors.New("upload rejected")

// Meta identifies where a record comes from.
type Meta struct {
	LineID     string `mapstructure:"line_id"     yaml:"line_id"`
	DeviceID   string `mapstructure:"device_id"   yaml:"device_id"`
	OperatorID string `mapstructure:"operator_id" yaml:"operator_id"`
	SourceType string `mapstructure:"source_type" yaml:"source_type"`
}

// Record is the structured record accepted by the backend.
type Record struct {
	LineID     string `json:"line_id"`
	DeviceID   string `json:"device_id"`
	OperatorID string `json:"operator_id"`
	SourceType string `json:"source_type"`
	Timestamp  int64  `json:"timestamp"`
	Payload    any    `json:"payload"`
}

// NewRecord stamps payload with meta and the unix time of at.
func NewRecord(meta Meta, payload any, at time.Time) Record {
	if meta.OperatorID == "" {
		meta.OperatorID = DefaultOperatorID
	}
	if meta.SourceType == "" {
		meta.SourceType = DefaultSourceType
	}
	return Record{
		LineID:     meta.LineID,
		DeviceID:   meta.DeviceID,
		OperatorID: meta.OperatorID,
		SourceType: meta.SourceType,
		Timestamp:  at.Unix(),
		Payload:    payload,
	}
}

// Uploader delivers records.
type Uploader interface {
	Upload(ctx context.Context, rec Record) error
}
