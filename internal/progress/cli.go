package progress

import (
	"time"

	ansi "github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
)

// CLIRenderer ticks a Meter onto a terminal progress bar, grounded on the
// javi11-nzb-repair and teacher renderCLIProgress usage pattern of
// progressbar/v3 + go-ansi for flicker-free redraws.
type CLIRenderer struct {
	meter *Meter
	bar   *progressbar.ProgressBar
	stop  chan struct{}
	done  chan struct{}
}

// NewCLIRenderer builds a byte-denominated bar sized to the meter's
// eventual total (set via SetTotal before or after construction).
func NewCLIRenderer(meter *Meter) *CLIRenderer {
	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowTotalBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &CLIRenderer{meter: meter, bar: bar, stop: make(chan struct{}), done: make(chan struct{})}
}

// Start renders at 1s intervals until Stop is called.
func (r *CLIRenderer) Start() {
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.render()
			case <-r.stop:
				r.render()
				return
			}
		}
	}()
}

func (r *CLIRenderer) render() {
	snap := r.meter.Snapshot()
	if snap.Total > 0 {
		r.bar.ChangeMax64(snap.Total)
	}
	r.bar.Set64(snap.Done)
}

// Stop halts rendering and blocks until the final frame is drawn.
func (r *CLIRenderer) Stop() {
	close(r.stop)
	<-r.done
	r.bar.Finish()
}
