// Package barcode decodes 1D and 2D symbols and recovers them from degraded
// prints by searching an ordered table of image transforms.
package barcode

import (
	"context"
	"errors"
	"image"
	"strings"
)

// ErrNoBackend is returned when no decoder backend is configured.
var ErrNoBackend = errors.New("barcode: no decoder backend configured")

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatQR
	FormatDataMatrix
	FormatCode128
	FormatCode39
	FormatEAN8
	FormatEAN13
	FormatUPCA
	FormatUPCE
	FormatITF
	FormatCodabar
)

var formatNames = map[Format]string{
	FormatUnknown:    "unknown",
	FormatQR:         "qr",
	FormatDataMatrix: "datamatrix",
	FormatCode128:    "code128",
	FormatCode39:     "code39",
	FormatEAN8:       "ean8",
	FormatEAN13:      "ean13",
	FormatUPCA:       "upca",
	FormatUPCE:       "upce",
	FormatITF:        "itf",
	FormatCodabar:    "codabar",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return formatNames[FormatUnknown]
}

// ParseFormat accepts the canonical names plus a few common spellings.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "qr", "qrcode", "qr_code":
		return FormatQR, true
	case "datamatrix", "data-matrix":
		return FormatDataMatrix, true
	case "code128", "code-128":
		return FormatCode128, true
	case "code39", "code-39":
		return FormatCode39, true
	case "ean8", "ean-8":
		return FormatEAN8, true
	case "ean13", "ean-13":
		return FormatEAN13, true
	case "upca", "upc-a":
		return FormatUPCA, true
	case "upce", "upc-e":
		return FormatUPCE, true
	case "itf", "interleaved2of5", "i2/5":
		return FormatITF, true
	case "codabar":
		return FormatCodabar, true
	default:
		return FormatUnknown, false
	}
}

// ParseFormats parses a list, ignoring unknown entries. The second return
// lists the entries that were not recognised.
func ParseFormats(names []string) ([]Format, []string) {
	var out []Format
	var unknown []string
	for _, n := range names {
		if f, ok := ParseFormat(n); ok {
			out = append(out, f)
		} else {
			unknown = append(unknown, n)
		}
	}
	return out, unknown
}

// Options controls backend decoding behavior.
type Options struct {
	// Formats constrains the set of symbologies to search. Empty means all.
	Formats []Format

	// TryHarder enables more exhaustive search (slower but more robust).
	TryHarder bool

	// Multi enables multi-symbol detection in a single image.
	Multi bool
}

// Result represents a decoded barcode.
type Result struct {
	Format Format
	Value  string
	BBox   image.Rectangle // in the coordinates of the decoded image; empty if unknown
}

// Backend is the symbol decode boundary. Finding nothing is not an error.
type Backend interface {
	Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error)
}

// NewBackend returns the default gozxing backend.
func NewBackend() Backend { return &gozxingBackend{} }

// NoBackend always fails with ErrNoBackend.
type NoBackend struct{}

func (NoBackend) Decode(context.Context, image.Image, Options) ([]Result, error) {
	return nil, ErrNoBackend
}
