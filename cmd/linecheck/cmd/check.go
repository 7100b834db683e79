package cmd

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/linecheck/internal/models"
	"github.com/MeKo-Tech/linecheck/internal/onnx"
	"github.com/MeKo-Tech/linecheck/internal/pipeline"
	"github.com/spf13/cobra"
)

// errCheckFailed reports that at least one required dependency is missing.
var errCheckFailed = errors.New("setup check failed")

// checkCmd represents the check command.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check ONNX Runtime and model setup",
	Long: `Check that the ONNX Runtime library and the model files the configuration
points at are present.

Missing files are only fatal when the node could not run without them: the
detector model when simulation is disabled, and the recognizer files when the
onnx OCR backend is selected.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := GetConfig()
		pc := cfg.ToPipelineConfig()
		out := cmd.OutOrStdout()
		failed := false

		report := func(name, detail string, err error, required bool) {
			switch {
			case err == nil:
				_, _ = fmt.Fprintf(out, "[ok]      %-18s %s\n", name, detail)
			case required:
				failed = true
				_, _ = fmt.Fprintf(out, "[missing] %-18s %v\n", name, err)
			default:
				_, _ = fmt.Fprintf(out, "[skip]    %-18s %v\n", name, err)
			}
		}

		lib, err := onnx.ResolveLibraryPath(pc.Detector.LibraryPath, pc.Detector.GPU.UseGPU)
		onnxRequired := !pc.Detector.AllowSimulation || pc.OCR.Backend == pipeline.OCRBackendONNX
		report("onnxruntime", lib, err, onnxRequired)

		report("detector model", pc.Detector.ModelPath,
			models.ValidateModelExists(pc.Detector.ModelPath), !pc.Detector.AllowSimulation)

		recRequired := pc.OCR.Backend == pipeline.OCRBackendONNX
		report("recognizer model", pc.Recognizer.ModelPath,
			models.ValidateModelExists(pc.Recognizer.ModelPath), recRequired)
		report("dictionary", pc.Recognizer.DictPath,
			models.ValidateModelExists(pc.Recognizer.DictPath), recRequired)

		if failed {
			return errCheckFailed
		}
		_, _ = fmt.Fprintln(out, "Setup looks good.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
