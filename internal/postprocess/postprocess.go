// Package postprocess sequences the PAR2, archive-integrity, extraction,
// and deobfuscation phases described in spec.md §4.6.
package postprocess

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/datallboy/gonzb/internal/archive"
	"github.com/datallboy/gonzb/internal/config"
	"github.com/datallboy/gonzb/internal/deobfuscate"
	"github.com/datallboy/gonzb/internal/nzbmodel"
	"github.com/datallboy/gonzb/internal/par2"
)

// Summary captures the outcome of each phase for the external
// post_processing{par2_verified,par2_repaired,rar_extracted,files_renamed}
// JSON shape (spec §6).
type Summary struct {
	Par2Status   par2.Status
	Par2Verified bool
	Par2Repaired bool
	RarExtracted bool
	FilesRenamed int
}

// Run executes spec §4.6's four phases over dir, using perFile to look up
// a file's DownloadResult by path for the archive-integrity gate.
func Run(ctx context.Context, cfg *config.Config, dir string, perFile map[string]nzbmodel.DownloadResult, par2Driver *par2.Driver, log *slog.Logger) (Summary, error) {
	if log == nil {
		log = slog.Default()
	}
	var summary Summary

	// Phase 1: PAR2.
	par2Files, err := findByExt(dir, ".par2")
	if err != nil {
		return summary, err
	}
	summary.Par2Status = par2.NoPar2Files
	if cfg.PostProcessing.AutoPar2Repair && len(par2Files) > 0 {
		index := par2.SelectIndexFile(par2Files)
		status, counts, err := par2Driver.Repair(ctx, index, true,
			func(op par2.Operation, cur, tot int) {
				log.Debug("par2 progress", "op", op, "current", cur, "total", tot)
			},
			func(level par2.MessageLevel, text string) {
				log.Info("par2 message", "level", level, "text", text)
			},
		)
		if err != nil {
			log.Error("par2 repair failed", "error", err)
		}
		summary.Par2Status = status
		summary.Par2Verified = status == par2.Success && counts.Damaged == 0
		summary.Par2Repaired = status == par2.Success && (counts.Damaged > 0 || counts.Repaired > 0)

		if status == par2.Success && cfg.PostProcessing.DeletePar2AfterRepair {
			par2.DeleteAll(par2Files)
		}
	}

	// Phase 2: archive-integrity gate.
	entryPoints, err := findRarEntryPoints(dir)
	if err != nil {
		return summary, err
	}
	anyBroken := false
	for _, ep := range entryPoints {
		if res, ok := perFile[ep]; ok && res.SegmentsFailed > 0 {
			anyBroken = true
		}
	}

	// Phase 3: extraction.
	shouldExtract := cfg.PostProcessing.AutoExtractRar && len(entryPoints) > 0 && summary.Par2Status != par2.Failed &&
		((!anyBroken && summary.Par2Status == par2.NoPar2Files) || summary.Par2Status == par2.Success)

	if shouldExtract {
		// Entry points are independent archives; extract them concurrently
		// and aggregate outcomes with errgroup rather than serializing.
		g, gctx := errgroup.WithContext(ctx)
		var mu sync.Mutex
		for _, ep := range entryPoints {
			ep := ep
			g.Go(func() error {
				events, errc := archive.Extract(gctx, ep, dir, "")
				extractedOK := false
				for ev := range events {
					switch ev.Kind {
					case archive.StartFile:
						log.Debug("extracting", "file", ev.Name)
					case archive.Done:
						extractedOK = true
					}
				}
				if err := <-errc; err != nil {
					log.Error("extraction failed", "archive", ep, "error", err)
					return nil
				}
				mu.Lock()
				summary.RarExtracted = summary.RarExtracted || extractedOK
				mu.Unlock()
				if extractedOK && cfg.PostProcessing.DeleteRarAfterExtract {
					archive.DeleteParts(ep)
				}
				return nil
			})
		}
		g.Wait()
	}

	// Phase 4: deobfuscation.
	if cfg.PostProcessing.DeobfuscateFileNames {
		hint := filepath.Base(dir)
		n, err := deobfuscate.Run(dir, hint)
		if err != nil {
			log.Error("deobfuscate failed", "error", err)
		}
		summary.FilesRenamed = n
	}

	return summary, nil
}

func findByExt(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ext) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

func findRarEntryPoints(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if archive.IsEntryPoint(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}
