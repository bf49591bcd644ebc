// Package nzbsched implements the NZB-level scheduler of spec.md §4.5:
// given all of an NZB's files, it sorts them for throughput, fans them out
// at a bounded concurrency, and aggregates their results.
package nzbsched

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	"github.com/datallboy/gonzb/internal/downloader"
	"github.com/datallboy/gonzb/internal/nzbmodel"
	"github.com/datallboy/gonzb/internal/progress"
)

// FileResult pairs a source NzbFile with its DownloadResult (or error).
type FileResult struct {
	File   nzbmodel.NzbFile
	Result nzbmodel.DownloadResult
	Err    error
}

// Scheduler dispatches every file of one NZB through a Downloader.
type Scheduler struct {
	dl    *downloader.Downloader
	meter *progress.Meter
	log   *slog.Logger
}

// New builds a Scheduler.
func New(dl *downloader.Downloader, meter *progress.Meter, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{dl: dl, meter: meter, log: log}
}

// Run implements §4.5 steps 1-6 for one NZB's files, writing output under
// outDir.
func (s *Scheduler) Run(ctx context.Context, files []nzbmodel.NzbFile, outDir string, connections int) ([]FileResult, error) {
	if len(files) == 0 {
		return nil, nzbmodel.ErrInsufficientSegments
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	var total int64
	for i := range files {
		total += files[i].TotalBytes()
	}
	s.meter.SetTotal(total)

	ordered := make([]nzbmodel.NzbFile, len(files))
	copy(ordered, files)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Segments) > len(ordered[j].Segments)
	})

	concurrency := connections / 5
	if concurrency < 2 {
		concurrency = 2
	}

	results := make([]FileResult, len(ordered))
	var completed atomic.Int64

	p := pool.New().WithMaxGoroutines(concurrency)
	for i, f := range ordered {
		i, f := i, f
		p.Go(func() {
			result, err := s.dl.Download(ctx, f, outDir)
			results[i] = FileResult{File: f, Result: result, Err: err}
			if err != nil {
				s.log.Error("file download failed", "subject", f.Subject, "error", err)
			}
			n := completed.Add(1)
			if n%5 == 0 || int(n) == len(ordered) {
				snap := s.meter.Snapshot()
				s.log.Info("download progress", "files_done", n, "files_total", len(ordered), "bytes_done", snap.Done, "bytes_total", snap.Total, "rate_mibps", snap.RateMiBps)
			}
		})
	}
	p.Wait()

	return results, nil
}
