package nzbmodel

import "errors"

// NNTP-layer sentinels (spec §7 NntpError taxonomy).
var (
	ErrTimeout         = errors.New("nntp: timeout")
	ErrTLS             = errors.New("nntp: tls error")
	ErrAuthFailed      = errors.New("nntp: authentication failed")
	ErrProtocol        = errors.New("nntp: protocol error")
	ErrGroupNotFound   = errors.New("nntp: group not found")
	ErrArticleNotFound = errors.New("nntp: article not found")
	ErrConnectionBusy  = errors.New("nntp: pool exhausted")
)

// Download-layer sentinels.
var (
	ErrInsufficientSegments = errors.New("download: insufficient segments")
)

// Post-processing sentinels.
var (
	ErrNoPar2Files   = errors.New("postprocess: no par2 files present")
	ErrNoRarArchives = errors.New("postprocess: no rar archives present")
)

// SegmentRequest is the execution record carried through the pool and
// protocol layers: a segment plus the group it should be fetched under.
type SegmentRequest struct {
	Number    int
	MessageID string
	Group     string
}

// SegmentResult is the outcome of one fetch. Data is nil when the fetch
// failed; Number is preserved so callers can reassemble in order.
type SegmentResult struct {
	Number    int
	Data      []byte
	MessageID string
}

// DownloadResult is the per-file outcome of the file downloader.
type DownloadResult struct {
	Path              string
	BytesWritten      int64
	SegmentsOK        int
	SegmentsFailed    int
	Elapsed           float64 // seconds
	AverageRateMiBs   float64
	FailedMessageIDs  []string
	Skipped           bool
}
