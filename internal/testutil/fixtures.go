package testutil

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/linecheck/internal/frame"
	"github.com/MeKo-Tech/linecheck/internal/synth"
	"github.com/MeKo-Tech/linecheck/internal/utils"
	"github.com/MeKo-Tech/linecheck/internal/verify"
	"github.com/stretchr/testify/require"
)

// ManifestFile lists the fixtures written to a frames directory.
const ManifestFile = "manifest.json"

// SceneFixture is a synthetic production frame together with what a cycle
// over it is expected to report.
type SceneFixture struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	InputFile   string            `json:"input_file"`
	Serial      string            `json:"serial"`
	Codec       string            `json:"codec"`
	Symbology   synth.Symbology   `json:"symbology,omitempty"`
	Degradation synth.Degradation `json:"degradation"`
	// ExpectDecoded is true when the printed code should be recoverable.
	ExpectDecoded bool `json:"expect_decoded"`
}

// DefaultSceneFixtures returns the standard set: one clean label and a
// series of increasingly worn ones.
func DefaultSceneFixtures() []SceneFixture {
	return []SceneFixture{
		{
			Name:          "clean",
			Description:   "Freshly printed label",
			Serial:        "SN-0A1B2C3D",
			Codec:         "base64",
			ExpectDecoded: true,
		},
		{
			Name:          "plain_codec",
			Description:   "Serial printed without encoding",
			Serial:        "SN-11223344",
			Codec:         "plain",
			ExpectDecoded: true,
		},
		{
			Name:          "code128",
			Description:   "Reference Code128 label content",
			Serial:        synth.DefaultBarcodeContent,
			Codec:         "plain",
			Symbology:     synth.SymbologyCode128,
			ExpectDecoded: true,
		},
		{
			Name:        "ink_bleed",
			Description: "Print head over-inking",
			Serial:      "SN-55667788",
			Codec:       "base64",
			Degradation: synth.Degradation{InkBleed: 1},
		},
		{
			Name:        "faded_blurred",
			Description: "Low contrast and out of focus",
			Serial:      "SN-99AABBCC",
			Codec:       "base64",
			Degradation: synth.Degradation{Blur: 1.5, Contrast: -40},
		},
	}
}

// RenderFixture draws the fixture's frame: the serial is encoded with the
// fixture codec and printed on the default scene, as a QR symbol unless
// the fixture names another symbology.
func RenderFixture(f SceneFixture) (*image.NRGBA, error) {
	codec, err := verify.CodecByName(f.Codec)
	if err != nil {
		return nil, err
	}
	content, err := codec.Encode(f.Serial)
	if err != nil {
		return nil, fmt.Errorf("encode serial: %w", err)
	}
	scene := synth.DefaultScene(content)
	if f.Symbology != "" && f.Symbology != synth.SymbologyQR {
		scene.Codes[0] = synth.Code{Content: content, Symbology: f.Symbology, At: image.Pt(330, 40), Width: 280, Height: 80}
	}
	img, err := synth.Render(scene)
	if err != nil {
		return nil, err
	}
	if f.Degradation != (synth.Degradation{}) {
		img = synth.Degrade(img, f.Degradation)
	}
	return img, nil
}

// WriteFixtures renders every fixture as PNG into dir and writes the
// manifest. InputFile is filled in relative to dir.
func WriteFixtures(dir string, fixtures []SceneFixture) ([]SceneFixture, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	out := make([]SceneFixture, 0, len(fixtures))
	for _, f := range fixtures {
		img, err := RenderFixture(f)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", f.Name, err)
		}
		f.InputFile = f.Name + ".png"
		if err := utils.SaveImage(filepath.Join(dir, f.InputFile), img); err != nil {
			return nil, fmt.Errorf("save %s: %w", f.Name, err)
		}
		out = append(out, f)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o600); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadManifest reads the fixtures written by WriteFixtures.
func LoadManifest(dir string) ([]SceneFixture, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile)) //nolint:gosec // fixture directory
	if err != nil {
		return nil, err
	}
	var fixtures []SceneFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return fixtures, nil
}

// FixtureFrame renders a fixture straight into a frame.
func FixtureFrame(t *testing.T, f SceneFixture) *frame.Frame {
	t.Helper()
	img, err := RenderFixture(f)
	require.NoError(t, err)
	fr, err := frame.FromImage(img, frame.OrderRGB)
	require.NoError(t, err)
	return fr
}

// FindFixture returns the named fixture from DefaultSceneFixtures.
func FindFixture(t *testing.T, name string) SceneFixture {
	t.Helper()
	for _, f := range DefaultSceneFixtures() {
		if f.Name == name {
			return f
		}
	}
	require.FailNow(t, "unknown fixture", name)
	return SceneFixture{}
}
