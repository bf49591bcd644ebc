package downloader

import (
	"bufio"
	"os"
)

// fileWriter is a buffered sequential writer, sized by the configured
// io_buffer_size (spec §4.4 step 3), adapted from the teacher's
// FileWriter/PreAllocate/CloseFile pattern. Unlike the teacher's writer,
// which accepts concurrent WriteAt calls from in-flight segment fetches,
// ours is written to once, in ascending slot order, after a file's
// batches have all completed (spec §4.4 step 8 assembles in memory first)
// — so no internal locking is needed.
type fileWriter struct {
	f  *os.File
	bw *bufio.Writer
}

func newFileWriter(path string, expectedSize int64, bufSize int) (*fileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if bufSize <= 0 {
		bufSize = 1 << 20
	}
	return &fileWriter{f: f, bw: bufio.NewWriterSize(f, bufSize)}, nil
}

func (w *fileWriter) Write(p []byte) (int, error) {
	return w.bw.Write(p)
}

// Close flushes, syncs, and closes the underlying file. It is safe to call
// more than once.
func (w *fileWriter) Close() error {
	if w.f == nil {
		return nil
	}
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		w.f = nil
		return err
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		w.f = nil
		return err
	}
	err := w.f.Close()
	w.f = nil
	return err
}
