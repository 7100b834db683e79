// Package verify closes the print-and-read loop: it issues product serials,
// encodes them for printing and checks decoded barcode content against the
// serial that was expected.
package verify

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/linecheck/internal/barcode"
	"github.com/google/uuid"
)

// SerialPrefix starts every issued serial.
const SerialPrefix = "SN-"

// ErrMismatch is reported when no readout decodes to the expected serial.
var ErrMismatch = errors.New("serial mismatch")

// NewSerial returns a serial like SN-1A2B3C4D made from a random UUID.
func NewSerial() string {
	return SerialFrom(uuid.New())
}

// SerialFrom derives the serial for a given UUID.
func SerialFrom(id uuid.UUID) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	return SerialPrefix + strings.ToUpper(hex[:8])
}

// ValidSerial reports whether s has the issued serial shape.
func ValidSerial(s string) bool {
	if len(s) != len(SerialPrefix)+8 || !strings.HasPrefix(s, SerialPrefix) {
		return false
	}
	for _, r := range s[len(SerialPrefix):] {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') {
			return false
		}
	}
	return true
}

// Codec converts a serial to printed content and back.
type Codec interface {
	Name() string
	Encode(serial string) (string, error)
	Decode(content string) (string, error)
}

// PlainCodec prints serials unchanged.
type PlainCodec struct{}

func (PlainCodec) Name() string { return "plain" }
func (PlainCodec) Encode(s string) (string, error) { return s, nil }
func (PlainCodec) Decode(s string) (string, error) { return s, nil }

// Base64Codec prints serials as standard base64.
type Base64Codec struct{}

func (Base64Codec) Name() string { return "base64" }

func (Base64Codec) Encode(s string) (string, error) {
	return base64.StdEncoding.EncodeToString([]byte(s)), nil
}

func (Base64Codec) Decode(s string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}
	return string(b), nil
}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "plain":
		return PlainCodec{}, nil
	case "base64":
		return Base64Codec{}, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

// Outcome is the verification verdict for one cycle.
type Outcome struct {
	Expected string `json:"expected" yaml:"expected"`
	Decoded  string `json:"decoded,omitempty" yaml:"decoded,omitempty"`
	Matched  bool   `json:"matched" yaml:"matched"`
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Reason   string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Verify decodes each readout in order and matches it against expected. The
// first match wins; otherwise the first successfully decoded value is
// reported with Matched=false.
func Verify(expected string, readouts []barcode.Readout, codec Codec) Outcome {
	out := Outcome{Expected: expected}
	if codec == nil {
		codec = PlainCodec{}
	}
	if len(readouts) == 0 {
		out.Reason = "no barcode read"
		return out
	}
	var firstErr error
	for _, r := range readouts {
		decoded, err := codec.Decode(r.Content)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if decoded == expected {
			return Outcome{Expected: expected, Decoded: decoded, Matched: true, Strategy: r.Strategy}
		}
		if out.Decoded == "" {
			out.Decoded = decoded
			out.Strategy = r.Strategy
		}
	}
	switch {
	case out.Decoded != "":
		out.Reason = ErrMismatch.Error()
	case firstErr != nil:
		out.Reason = firstErr.Error()
	}
	return out
}
