package support

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/MeKo-Tech/linecheck/internal/cycle"
	"github.com/MeKo-Tech/linecheck/internal/frame"
	"github.com/MeKo-Tech/linecheck/internal/pipeline"
	"github.com/MeKo-Tech/linecheck/internal/testutil"
	"github.com/MeKo-Tech/linecheck/internal/verify"
	"github.com/cucumber/godog"
)

func (testCtx *TestContext) aLineNodeWithSimulatedDetection() error {
	dir, err := os.MkdirTemp("", "linecheck-bdd-*")
	if err != nil {
		return err
	}
	testCtx.TempDir = dir
	// The empty models directory forces the simulated detector.
	testCtx.Builder = pipeline.NewBuilder().
		WithModelsDir(dir).
		WithOCRBackend(pipeline.OCRBackendNone).
		WithBarcodes(true, []string{"qr"})
	return nil
}

func (testCtx *TestContext) theSerialCodec(name string) error {
	codec, err := verify.CodecByName(name)
	if err != nil {
		return err
	}
	testCtx.Codec = codec
	return nil
}

func (testCtx *TestContext) barcodeRecoveryIsDisabled() error {
	if testCtx.Builder == nil {
		return fmt.Errorf("no line node configured")
	}
	testCtx.Builder.WithBarcodes(false, nil)
	return nil
}

func (testCtx *TestContext) theFrameFixture(name string) error {
	for _, f := range testutil.DefaultSceneFixtures() {
		if f.Name != name {
			continue
		}
		img, err := testutil.RenderFixture(f)
		if err != nil {
			return err
		}
		testCtx.Frame, err = frame.FromImage(img, frame.OrderRGB)
		return err
	}
	return fmt.Errorf("unknown fixture %q", name)
}

func (testCtx *TestContext) aBlankFrame() error {
	img := image.NewNRGBA(image.Rect(0, 0, 320, 240))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var err error
	testCtx.Frame, err = frame.FromImage(img, frame.OrderRGB)
	return err
}

func (testCtx *TestContext) trigger(serial string) error {
	o, err := testCtx.orchestrator()
	if err != nil {
		return err
	}
	testCtx.LastResult, testCtx.LastError = o.Trigger(context.Background(),
		cycle.Request{Frame: testCtx.Frame, Serial: serial, Trigger: "bdd"})
	return testCtx.LastError
}

func (testCtx *TestContext) aCycleIsTriggered() error {
	return testCtx.trigger("")
}

func (testCtx *TestContext) aCycleIsTriggeredWithSerial(serial string) error {
	return testCtx.trigger(serial)
}

func (testCtx *TestContext) cyclesAreTriggered(n int) error {
	for range n {
		if err := testCtx.trigger(""); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) result() (*cycle.Result, error) {
	if testCtx.LastResult == nil {
		return nil, fmt.Errorf("no cycle result (last error: %v)", testCtx.LastError)
	}
	return testCtx.LastResult, nil
}

func (testCtx *TestContext) theResultShouldBeClean() error {
	res, err := testCtx.result()
	if err != nil {
		return err
	}
	if res.Degraded() {
		return fmt.Errorf("expected a clean result, got failures %v", res.Failures)
	}
	return nil
}

func (testCtx *TestContext) theResultShouldBeDegraded() error {
	res, err := testCtx.result()
	if err != nil {
		return err
	}
	if !res.Degraded() {
		return fmt.Errorf("expected a degraded result")
	}
	return nil
}

func (testCtx *TestContext) theResultShouldReportFailure(kind string) error {
	res, err := testCtx.result()
	if err != nil {
		return err
	}
	if !res.HasFailure(cycle.FailureKind(kind)) {
		return fmt.Errorf("expected failure %q, got %v", kind, res.Failures)
	}
	return nil
}

func (testCtx *TestContext) theResultShouldHaveDetections(n int) error {
	res, err := testCtx.result()
	if err != nil {
		return err
	}
	if len(res.Detections) != n {
		return fmt.Errorf("expected %d detections, got %d", n, len(res.Detections))
	}
	return nil
}

func (testCtx *TestContext) theResultShouldMeasure(w, h int) error {
	res, err := testCtx.result()
	if err != nil {
		return err
	}
	if res.Width != w || res.Height != h {
		return fmt.Errorf("expected %dx%d, got %dx%d", w, h, res.Width, res.Height)
	}
	return nil
}

func (testCtx *TestContext) verification() (*verify.Outcome, error) {
	res, err := testCtx.result()
	if err != nil {
		return nil, err
	}
	if res.Verification == nil {
		return nil, fmt.Errorf("result carries no verification")
	}
	return res.Verification, nil
}

func (testCtx *TestContext) theSerialShouldBeVerified() error {
	v, err := testCtx.verification()
	if err != nil {
		return err
	}
	if !v.Matched {
		return fmt.Errorf("serial %q not verified: decoded %q (%s)", v.Expected, v.Decoded, v.Reason)
	}
	return nil
}

func (testCtx *TestContext) theSerialShouldNotBeVerified() error {
	v, err := testCtx.verification()
	if err != nil {
		return err
	}
	if v.Matched {
		return fmt.Errorf("serial %q unexpectedly verified", v.Expected)
	}
	return nil
}

func (testCtx *TestContext) theDecodedSerialShouldBe(serial string) error {
	v, err := testCtx.verification()
	if err != nil {
		return err
	}
	if v.Decoded != serial {
		return fmt.Errorf("expected decoded serial %q, got %q", serial, v.Decoded)
	}
	return nil
}

func (testCtx *TestContext) theSinkShouldHaveReceived(n int) error {
	if got := len(testCtx.Emitted()); got != n {
		return fmt.Errorf("expected %d emitted results, got %d", n, got)
	}
	return nil
}

func (testCtx *TestContext) theResultsShouldHaveDistinctIDs() error {
	seen := map[string]bool{}
	for _, res := range testCtx.Emitted() {
		id := res.ID.String()
		if seen[id] {
			return fmt.Errorf("duplicate cycle id %s", id)
		}
		seen[id] = true
	}
	return nil
}

// RegisterCycleSteps registers the cycle step definitions.
func (testCtx *TestContext) RegisterCycleSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a line node with simulated detection$`, testCtx.aLineNodeWithSimulatedDetection)
	sc.Step(`^the serial codec "([^"]*)"$`, testCtx.theSerialCodec)
	sc.Step(`^barcode recovery is disabled$`, testCtx.barcodeRecoveryIsDisabled)
	sc.Step(`^the frame fixture "([^"]*)"$`, testCtx.theFrameFixture)
	sc.Step(`^a blank frame$`, testCtx.aBlankFrame)

	sc.Step(`^a cycle is triggered$`, testCtx.aCycleIsTriggered)
	sc.Step(`^a cycle is triggered with serial "([^"]*)"$`, testCtx.aCycleIsTriggeredWithSerial)
	sc.Step(`^(\d+) cycles are triggered$`, testCtx.cyclesAreTriggered)

	sc.Step(`^the result should be clean$`, testCtx.theResultShouldBeClean)
	sc.Step(`^the result should be degraded$`, testCtx.theResultShouldBeDegraded)
	sc.Step(`^the result should report a "([^"]*)" failure$`, testCtx.theResultShouldReportFailure)
	sc.Step(`^the result should have (\d+) detections$`, testCtx.theResultShouldHaveDetections)
	sc.Step(`^the result should be (\d+) by (\d+)$`, testCtx.theResultShouldMeasure)
	sc.Step(`^the serial should be verified$`, testCtx.theSerialShouldBeVerified)
	sc.Step(`^the serial should not be verified$`, testCtx.theSerialShouldNotBeVerified)
	sc.Step(`^the decoded serial should be "([^"]*)"$`, testCtx.theDecodedSerialShouldBe)
	sc.Step(`^the sink should have received (\d+) results$`, testCtx.theSinkShouldHaveReceived)
	sc.Step(`^the results should have distinct ids$`, testCtx.theResultsShouldHaveDistinctIDs)
}
