package cycle

import (
	"context"
	"log/slog"
	"time"
)

// Ticker emits periodic triggers. A tick that cannot be delivered immediately
// because the runner is still busy is dropped, never queued.
type Ticker struct {
	Interval time.Duration
	Trigger  string
}

// Run sends a Request on out every Interval until ctx is done. It returns the
// number of dropped ticks.
func (t Ticker) Run(ctx context.Context, out chan<- Request) int {
	interval := t.Interval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	name := t.Trigger
	if name == "" {
		name = "tick"
	}
	tk := time.NewTicker(interval)
	defer tk.Stop()

	dropped := 0
	for {
		select {
		case <-ctx.Done():
			return dropped
		case <-tk.C:
			select {
			case out <- Request{Trigger: name}:
			default:
				dropped++
				ticksDroppedTotal.Inc()
				slog.Debug("Tick dropped, runner busy", "interval", interval)
			}
		}
	}
}
