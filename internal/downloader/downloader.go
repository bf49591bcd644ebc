// Package downloader implements the per-file downloader of spec.md §4.4:
// it plans segment batches for one NzbFile, drives pipelined fetches
// across a connection pool, and assembles the result to disk.
package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/datallboy/gonzb/internal/config"
	"github.com/datallboy/gonzb/internal/nntp"
	"github.com/datallboy/gonzb/internal/nzbmodel"
	"github.com/datallboy/gonzb/internal/progress"
)

// subjectFilenameRE pulls a quoted filename token out of an NZB subject
// line, e.g. `[1/20] - "movie.mkv" yEnc (1/500)`.
var subjectFilenameRE = regexp.MustCompile(`"([^"]+)"`)

// filenameFromSubject implements the external get_filename_from_subject
// contract described in spec §6: a best-effort regex extraction with a
// deterministic fallback.
func filenameFromSubject(subject string, date int64) string {
	if m := subjectFilenameRE.FindStringSubmatch(subject); m != nil {
		return m[1]
	}
	return fmt.Sprintf("unknown_file_%d", date)
}

// Downloader drives one NzbFile's segments through a shared pool.
type Downloader struct {
	pool   *nntp.Pool
	cfg    *config.Config
	meter  *progress.Meter
	log    *slog.Logger
}

// New constructs a Downloader bound to a shared connection pool and
// progress meter.
func New(p *nntp.Pool, cfg *config.Config, meter *progress.Meter, log *slog.Logger) *Downloader {
	if log == nil {
		log = slog.Default()
	}
	return &Downloader{pool: p, cfg: cfg, meter: meter, log: log}
}

// Download runs the full §4.4 procedure for one file and returns its
// result plus the path written (or that would have been written, if
// skipped by the resume check).
func (d *Downloader) Download(ctx context.Context, file nzbmodel.NzbFile, outDir string) (nzbmodel.DownloadResult, error) {
	start := time.Now()
	filename := filenameFromSubject(file.Subject, file.Date)
	outPath := filepath.Join(outDir, filename)

	if len(file.Segments) == 0 {
		return nzbmodel.DownloadResult{}, nzbmodel.ErrInsufficientSegments
	}

	total := file.TotalBytes()

	// Resume check (spec §4.4 step 2): size-equality only, never byte
	// comparison — PAR2 owns byte-level correctness.
	if !d.cfg.Download.ForceRedownload {
		if fi, err := os.Stat(outPath); err == nil && fi.Size() == total {
			d.meter.Add(total)
			return nzbmodel.DownloadResult{
				Path:         outPath,
				BytesWritten: total,
				SegmentsOK:   len(file.Segments),
				Skipped:      true,
			}, nil
		}
	}

	writer, err := newFileWriter(outPath, total, d.cfg.Memory.IOBufferSize)
	if err != nil {
		return nzbmodel.DownloadResult{}, fmt.Errorf("downloader: open output: %w", err)
	}
	defer writer.Close()

	group := ""
	if len(file.Groups) > 0 {
		group = file.Groups[0]
	}

	batches := planBatches(file.Segments, group, d.cfg.Tuning.PipelineSize)

	slots := make([][]byte, len(file.Segments))
	var failedIDs []string
	segmentsOK := 0
	segmentsFailed := 0

	waitTimeout := time.Duration(d.cfg.Tuning.ConnectionWaitTimeout) * time.Second
	connections := d.cfg.Usenet.Connections
	if connections <= 0 {
		connections = 1
	}

	p := pool.New().WithMaxGoroutines(connections)
	type batchOutcome struct {
		results []nzbmodel.SegmentResult
	}
	outcomes := make([]batchOutcome, len(batches))

	for bi, batch := range batches {
		bi, batch := bi, batch
		p.Go(func() {
			results := d.runBatch(ctx, batch, waitTimeout)
			outcomes[bi] = batchOutcome{results: results}
		})
	}
	p.Wait()

	for _, oc := range outcomes {
		for _, r := range oc.results {
			idx := r.Number - 1
			if idx < 0 || idx >= len(slots) {
				d.log.Debug("segment number out of range, discarding", "number", r.Number)
				continue
			}
			d.meter.Add(segmentDeclaredBytes(file.Segments, r.Number))
			if r.Data != nil {
				slots[idx] = r.Data
				segmentsOK++
			} else {
				segmentsFailed++
				failedIDs = append(failedIDs, r.MessageID)
			}
		}
	}

	var written int64
	for _, s := range slots {
		if s == nil {
			continue
		}
		n, werr := writer.Write(s)
		written += int64(n)
		if werr != nil {
			return nzbmodel.DownloadResult{}, fmt.Errorf("downloader: write: %w", werr)
		}
	}
	if err := writer.Close(); err != nil {
		return nzbmodel.DownloadResult{}, fmt.Errorf("downloader: close: %w", err)
	}

	elapsed := time.Since(start).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = (float64(written) / (1024 * 1024)) / elapsed
	}

	return nzbmodel.DownloadResult{
		Path:             outPath,
		BytesWritten:     written,
		SegmentsOK:       segmentsOK,
		SegmentsFailed:   segmentsFailed,
		Elapsed:          elapsed,
		AverageRateMiBs:  rate,
		FailedMessageIDs: failedIDs,
	}, nil
}

func segmentDeclaredBytes(segs []nzbmodel.Segment, number int) int64 {
	for _, s := range segs {
		if s.Number == number {
			return s.Bytes
		}
	}
	return 0
}

// planBatches partitions segments (in order) into pipeline_size chunks
// (spec §4.4 step 5).
func planBatches(segs []nzbmodel.Segment, group string, pipelineSize int) [][]nzbmodel.SegmentRequest {
	if pipelineSize <= 0 {
		pipelineSize = 100
	}
	var batches [][]nzbmodel.SegmentRequest
	for i := 0; i < len(segs); i += pipelineSize {
		end := i + pipelineSize
		if end > len(segs) {
			end = len(segs)
		}
		batch := make([]nzbmodel.SegmentRequest, 0, end-i)
		for _, s := range segs[i:end] {
			batch = append(batch, nzbmodel.SegmentRequest{Number: s.Number, MessageID: s.MessageID, Group: group})
		}
		batches = append(batches, batch)
	}
	return batches
}

// runBatch executes the acquisition discipline of spec §4.3 for one batch:
// bounded per-attempt timeout, exponential backoff, periodic notices, and
// a total wait ceiling after which the whole batch is marked failed.
func (d *Downloader) runBatch(ctx context.Context, batch []nzbmodel.SegmentRequest, waitTimeout time.Duration) []nzbmodel.SegmentResult {
	deadline := time.Now().Add(waitTimeout)
	backoff := 500 * time.Millisecond
	attempt := 0

	for {
		attemptCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		conn, err := d.pool.Acquire(attemptCtx)
		cancel()
		if err == nil {
			results, derr := conn.DownloadSegmentsPipelined(batch)
			if derr != nil || conn.Poisoned() {
				d.pool.Destroy(conn)
			} else {
				d.pool.Release(conn)
			}
			return results
		}

		attempt++
		if attempt%5 == 0 {
			d.log.Warn("waiting for connection", "attempts", attempt, "batch_size", len(batch))
		}
		if time.Now().After(deadline) {
			return failAll(batch)
		}

		select {
		case <-ctx.Done():
			return failAll(batch)
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 8*time.Second {
			backoff = 8 * time.Second
		}
	}
}

func failAll(batch []nzbmodel.SegmentRequest) []nzbmodel.SegmentResult {
	out := make([]nzbmodel.SegmentResult, len(batch))
	for i, r := range batch {
		out[i] = nzbmodel.SegmentResult{Number: r.Number, MessageID: r.MessageID}
	}
	return out
}
