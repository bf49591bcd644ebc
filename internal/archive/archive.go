// Package archive implements the RAR extractor of spec.md §4.9, using
// github.com/javi11/rardecode/v2 — a genuine Go stream-reader library
// (unlike the teacher's CLI-shelling unrar wrapper), already a pack
// dependency via javi11-altmount.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/javi11/rardecode/v2"
)

// EventKind enumerates the extraction progress events of spec §4.9 step 2.
type EventKind int

const (
	StartFile EventKind = iota
	FileComplete
	MonitorFile
	Done
)

// Event is delivered over a bounded channel as extraction proceeds.
type Event struct {
	Kind     EventKind
	Name     string
	Bytes    int64
	Total    int64
}

const largeFileThreshold = 64 * 1024 * 1024

var (
	partNNNRE = regexp.MustCompile(`(?i)\.part0*([0-9]+)[^.]*\.rar$`)
	legacyRNNRE = regexp.MustCompile(`(?i)\.r[0-9]{2,}$`)
)

// IsEntryPoint reports whether name is the first archive of a (possibly
// multi-part) RAR set that extraction should start from (spec §4.9).
func IsEntryPoint(name string) bool {
	lower := strings.ToLower(name)
	if legacyRNNRE.MatchString(lower) {
		return false
	}
	if m := partNNNRE.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		return err == nil && n == 1
	}
	return strings.HasSuffix(lower, ".rar")
}

// Extract opens entryPath for listing to compute a byte-level progress
// target, then streams extraction into destDir in a dedicated goroutine
// (decompression is CPU-bound), emitting events on the returned channel.
// On success the channel is closed after a terminal Done event; on failure
// it is closed without one and the error is sent on the error channel.
func Extract(ctx context.Context, entryPath, destDir string, password string) (<-chan Event, <-chan error) {
	events := make(chan Event, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errc)

		var opts []rardecode.Option
		if password != "" {
			opts = append(opts, rardecode.Password(password))
		}

		var total int64
		if info, err := rardecode.ListArchiveInfo(entryPath, opts...); err == nil {
			for _, f := range info {
				total += f.TotalPackedSize
			}
		}

		rc, err := rardecode.OpenReader(entryPath, opts...)
		if err != nil {
			errc <- fmt.Errorf("archive: open %s: %w", entryPath, err)
			return
		}
		defer rc.Close()

		extractedAny := false
		for {
			select {
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			default:
			}

			hdr, err := rc.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				if extractedAny {
					break
				}
				errc <- fmt.Errorf("archive: read header: %w", err)
				return
			}
			if hdr.IsDir {
				continue
			}

			relPath, safe := sanitizePath(hdr.Name)
			if !safe {
				continue
			}
			outPath := filepath.Join(destDir, relPath)
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				errc <- fmt.Errorf("archive: mkdir: %w", err)
				return
			}

			events <- Event{Kind: StartFile, Name: relPath, Total: hdr.UnPackedSize}

			out, err := os.Create(outPath)
			if err != nil {
				errc <- fmt.Errorf("archive: create %s: %w", outPath, err)
				return
			}

			written, werr := copyWithMonitor(ctx, events, relPath, out, rc, hdr.UnPackedSize)
			out.Close()
			if werr != nil {
				errc <- fmt.Errorf("archive: extract %s: %w", relPath, werr)
				return
			}

			events <- Event{Kind: FileComplete, Name: relPath, Bytes: written, Total: hdr.UnPackedSize}
			extractedAny = true
		}

		events <- Event{Kind: Done, Total: total}
	}()

	return events, errc
}

// copyWithMonitor streams src into dst, sampling dst's length every 50ms
// for files larger than largeFileThreshold to produce smooth intra-file
// progress (spec §4.9 step 4).
func copyWithMonitor(ctx context.Context, events chan<- Event, name string, dst *os.File, src io.Reader, total int64) (int64, error) {
	if total < largeFileThreshold {
		return io.Copy(dst, src)
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if fi, err := dst.Stat(); err == nil {
					select {
					case events <- Event{Kind: MonitorFile, Name: name, Bytes: fi.Size(), Total: total}:
					default:
					}
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	n, err := io.Copy(dst, src)
	close(done)
	return n, err
}

// sanitizePath rejects path traversal and absolute/drive-rooted entries,
// returning a clean relative path (spec §4.9 step 3).
func sanitizePath(name string) (string, bool) {
	cleaned := filepath.Clean(strings.ReplaceAll(name, "\\", "/"))
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", false
	}
	for _, part := range strings.Split(cleaned, string(filepath.Separator)) {
		if part == ".." {
			return "", false
		}
	}
	return cleaned, true
}

// DeleteParts removes every file sharing entryPath's base stem that
// matches *.rar or *.rNN (spec §4.9, delete_rar_after_extract).
func DeleteParts(entryPath string) error {
	dir := filepath.Dir(entryPath)
	stem := baseStem(filepath.Base(entryPath))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, stem) {
			continue
		}
		lower := strings.ToLower(name)
		if strings.HasSuffix(lower, ".rar") || legacyRNNRE.MatchString(lower) {
			os.Remove(filepath.Join(dir, name))
		}
	}
	return nil
}

func baseStem(name string) string {
	if m := partNNNRE.FindStringSubmatchIndex(strings.ToLower(name)); m != nil {
		return name[:strings.LastIndex(strings.ToLower(name[:m[1]]), ".part")]
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}
