package scanner

import (
	"fmt"
	"io"
	"time"

	"phototagger/logging"
)

// NewProgressTracker starts consuming results. The progress line is only
// drawn when out is a terminal.
func NewProgressTracker(stats FileStats, out io.Writer, resultsChan <-chan ProcessImageResult) *ProgressTracker {
	tracker := &ProgressTracker{
		ticker:      time.NewTicker(500 * time.Millisecond),
		done:        make(chan struct{}),
		finished:    make(chan struct{}),
		totalFiles:  stats.totalFiles,
		out:         out,
		interactive: isTerminal(out),
	}

	go tracker.displayProgress()
	go tracker.processResults(resultsChan)

	return tracker
}

// displayProgress shows the progress periodically
func (p *ProgressTracker) displayProgress() {
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			if !p.interactive {
				continue
			}
			p.mu.Lock()
			if p.errors > 0 {
				fmt.Fprintf(p.out, "\rProgress: %d/%d (Unchanged: %d, Errors: %d)",
					p.processed, p.totalFiles, p.skipped, p.errors)
			} else {
				fmt.Fprintf(p.out, "\rProgress: %d/%d (Unchanged: %d)",
					p.processed, p.totalFiles, p.skipped)
			}
			p.mu.Unlock()
		}
	}
}

// processResults updates the tracker state based on processing results
func (p *ProgressTracker) processResults(resultsChan <-chan ProcessImageResult) {
	defer close(p.finished)
	for result := range resultsChan {
		p.mu.Lock()
		p.processed++
		switch {
		case !result.Success:
			p.errors++
			if result.Error != nil {
				logging.LogImageProcessed(result.Path, false, result.Error.Error())
			}
		case result.Skipped:
			p.skipped++
		default:
			logging.LogImageProcessed(result.Path, true, "")
		}
		p.mu.Unlock()
	}
}

// Stop waits for the results channel to drain and ends progress display.
// The results channel must be closed first.
func (p *ProgressTracker) Stop() {
	<-p.finished
	p.ticker.Stop()
	close(p.done)
}

// Summary returns the counters collected so far
func (p *ProgressTracker) Summary() ScanSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ScanSummary{
		Total:     p.totalFiles,
		Processed: p.processed,
		Skipped:   p.skipped,
		Errors:    p.errors,
	}
}

// PrintStartupInfo displays information about the scan before starting
func PrintStartupInfo(out io.Writer, stats FileStats, options ScanOptions) {
	fmt.Fprintf(out, "Starting image indexing...\nTotal image files to process: %d (including %d JPEG files)\n",
		stats.totalFiles, stats.jpegFiles)
	fmt.Fprintf(out, "Force rewrite mode: %v\n", options.ForceRewrite)

	if options.DebugMode {
		fmt.Fprintf(out, "Debug mode: enabled\n")
		logging.DebugLog("Found %d image files to process (%d JPEG files) in %s",
			stats.totalFiles, stats.jpegFiles, options.FolderPath)
	}
}

// PrintCompletionStats displays statistics after scan completion
func PrintCompletionStats(out io.Writer, summary ScanSummary, interactive bool) {
	logging.DebugLog("Scan completed in %v. Processed: %d, Unchanged: %d, Errors: %d, Removed: %d",
		summary.Elapsed, summary.Processed, summary.Skipped, summary.Errors, summary.Removed)

	if interactive {
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, "Indexing complete.")
	fmt.Fprintf(out, "Processed %d images in %v (%d unchanged).\n",
		summary.Processed, summary.Elapsed.Round(time.Second), summary.Skipped)

	if summary.Removed > 0 {
		fmt.Fprintf(out, "Removed %d catalogue entries for deleted files.\n", summary.Removed)
	}

	if summary.Errors > 0 {
		fmt.Fprintf(out, "Encountered %d errors during indexing.\n", summary.Errors)
		fmt.Fprintln(out, "Check the log file for details.")
	}
}
