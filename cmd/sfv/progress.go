package main

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"swiftsfv/internal/metrics"
	"swiftsfv/internal/task"
)

// await drains a task handle, rendering its progress events on a bar
// whose description is refreshed from the live stats once a second.
func await[T any](h *task.Handle[T], describe string, showBar bool) (T, error) {
	if !showBar {
		for range h.Progress() {
		}
		return h.Wait()
	}

	var bar *progressbar.ProgressBar
	stop := make(chan struct{})
	defer close(stop)

	for p := range h.Progress() {
		if bar == nil {
			bar = progressbar.NewOptions64(
				p.Total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionUseANSICodes(true),
				progressbar.OptionSetDescription(describe),
				progressbar.OptionShowCount(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionThrottle(120*time.Millisecond),
			)
			_ = bar.RenderBlank()

			go func() {
				t := time.NewTicker(1 * time.Second)
				defer t.Stop()
				for {
					select {
					case <-t.C:
						bar.Describe(describeSnapshot(describe, h.Stats()))
					case <-stop:
						return
					}
				}
			}()
		}
		_ = bar.Set64(p.Processed)
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	return h.Wait()
}

func describeSnapshot(describe string, snap metrics.Snapshot) string {
	mbps := 0.0
	if snap.DurationMs > 0 {
		mbps = float64(snap.BytesHashed) / 1_000_000.0 / (float64(snap.DurationMs) / 1000.0)
	}
	return fmt.Sprintf("%s %d/%d | ok=%d mismatch=%d missing=%d err=%d | %.1f MB/s",
		describe, snap.Processed, snap.Total,
		snap.OK, snap.Mismatches, snap.Missing, snap.EntryErrors, mbps,
	)
}
