package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/linecheck/internal/cycle"
	"github.com/MeKo-Tech/linecheck/internal/frame"
	"github.com/MeKo-Tech/linecheck/internal/utils"
	"github.com/spf13/cobra"
)

// errDegraded is returned with --fail-on-degraded when any cycle reported a
// failure.
var errDegraded = errors.New("one or more cycles were degraded")

// cycleCmd represents the cycle command.
var cycleCmd = &cobra.Command{
	Use:   "cycle [image...]",
	Short: "Run single inspection cycles",
	Long: `Run one cycle per given image, or a single cycle on the configured frame
source when no image is given. Results are printed in the output format.

Examples:
  linecheck cycle
  linecheck cycle frame.png --serial SN-0A1B2C3D --codec base64
  linecheck cycle frames/*.png --format csv --fail-on-degraded`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		serial, _ := cmd.Flags().GetString("serial")
		failOnDegraded, _ := cmd.Flags().GetBool("fail-on-degraded")

		n, err := newNode(cmd.Context(), cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer func() { _ = n.Close() }()

		reqs, err := cycleRequests(args, serial)
		if err != nil {
			return err
		}

		degraded := 0
		for _, req := range reqs {
			res, err := n.orch.Trigger(cmd.Context(), req)
			if err != nil {
				return err
			}
			if res.Degraded() {
				degraded++
			}
		}
		slog.Debug("Cycles completed", "total", len(reqs), "degraded", degraded)

		if failOnDegraded && degraded > 0 {
			return errDegraded
		}
		return nil
	},
}

// cycleRequests turns image paths into requests; no paths means one request
// served by the frame source.
func cycleRequests(paths []string, serial string) ([]cycle.Request, error) {
	if len(paths) == 0 {
		return []cycle.Request{{Serial: serial, Trigger: "cli"}}, nil
	}
	reqs := make([]cycle.Request, 0, len(paths))
	for _, p := range paths {
		img, _, err := utils.LoadImage(p)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", p, err)
		}
		f, err := frame.FromImage(img, frame.OrderRGB)
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", p, err)
		}
		reqs = append(reqs, cycle.Request{Frame: f, Serial: serial, Trigger: "cli"})
	}
	return reqs, nil
}

func init() {
	rootCmd.AddCommand(cycleCmd)
	addCycleFlags(cycleCmd)
	cycleCmd.Flags().String("serial", "", "expected product serial (a fresh one is issued when empty)")
	cycleCmd.Flags().Bool("fail-on-degraded", false, "exit non-zero when any cycle reports a failure")
}
