// Package statusapi exposes the engine's exhaustive JSON output shapes
// (spec.md §6) over HTTP, following the teacher's echo/v5-based
// internal/api router — serving the download engine's own state instead
// of a Newznab search proxy.
package statusapi

// FileInfo describes one file within an NzbInfo listing.
type FileInfo struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Segments int    `json:"segments"`
	IsPar2   bool   `json:"is_par2"`
}

// NzbInfo is the pre-download summary of an NZB's contents.
type NzbInfo struct {
	File          string     `json:"file"`
	TotalFiles    int        `json:"total_files"`
	TotalSize     int64      `json:"total_size"`
	TotalSegments int        `json:"total_segments"`
	Files         []FileInfo `json:"files"`
}

// DownloadFileResult is one file's outcome within a DownloadSummary.
type DownloadFileResult struct {
	Filename          string `json:"filename"`
	Path              string `json:"path"`
	Size              int64  `json:"size"`
	SegmentsDownloaded int   `json:"segments_downloaded"`
	SegmentsFailed    int    `json:"segments_failed"`
	Success           bool   `json:"success"`
}

// PostProcessingSummary reports the outcome of §4.6's phases.
type PostProcessingSummary struct {
	Par2Verified bool `json:"par2_verified"`
	Par2Repaired bool `json:"par2_repaired"`
	RarExtracted bool `json:"rar_extracted"`
	FilesRenamed int  `json:"files_renamed"`
}

// DownloadSummary is the terminal report for one NZB job.
type DownloadSummary struct {
	Nzb                  string                 `json:"nzb"`
	OutputDir            string                 `json:"output_dir"`
	Success              bool                   `json:"success"`
	TotalSize            int64                  `json:"total_size"`
	DownloadTimeSeconds  float64                `json:"download_time_seconds"`
	AverageSpeedMbps     float64                `json:"average_speed_mbps"`
	Files                []DownloadFileResult   `json:"files"`
	PostProcessing       PostProcessingSummary  `json:"post_processing"`
}

// TestResult is the outcome of a server connectivity test.
type TestResult struct {
	Server        string `json:"server"`
	Port          int    `json:"port"`
	SSL           bool   `json:"ssl"`
	Connected     bool   `json:"connected"`
	Authenticated bool   `json:"authenticated"`
	Healthy       bool   `json:"healthy"`
	Error         string `json:"error,omitempty"`
}

// ConfigInfo reports the presence and headline settings of a config file.
type ConfigInfo struct {
	Path        string `json:"path"`
	Exists      bool   `json:"exists"`
	Server      string `json:"server,omitempty"`
	Connections int    `json:"connections,omitempty"`
}

// ErrorOutput is the uniform error envelope for failed requests.
type ErrorOutput struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
