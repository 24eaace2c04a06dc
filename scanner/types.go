package scanner

import (
	"io"
	"sync"
	"time"

	"phototagger/metadata"
)

// ScanOptions defines the options for indexing a library folder
type ScanOptions struct {
	FolderPath    string
	ForceRewrite  bool
	Prune         bool
	DebugMode     bool
	MaxWorkers    int
	CaptureOffset time.Duration
	Store         metadata.Store
	// Out receives progress and the completion report; nil means stdout
	Out io.Writer
}

// ProcessImageResult holds the result of indexing one image
type ProcessImageResult struct {
	Path    string
	Success bool
	Skipped bool
	Error   error
}

// ScanSummary is what an indexing pass did
type ScanSummary struct {
	Total     int
	Processed int
	Skipped   int
	Errors    int
	Removed   int
	Elapsed   time.Duration
}

// FileStats tracks information about files to be processed
type FileStats struct {
	totalFiles int
	jpegFiles  int
}

// ProgressTracker tracks progress of the scan operation
type ProgressTracker struct {
	processed   int
	skipped     int
	errors      int
	totalFiles  int
	out         io.Writer
	interactive bool
	ticker      *time.Ticker
	done        chan struct{}
	finished    chan struct{}
	mu          sync.Mutex
}
