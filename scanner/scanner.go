// Package scanner finds photos on disk: Enumerate yields the candidate
// photos of a tagging run and ScanAndStoreFolder indexes a library folder
// into the catalogue.
package scanner

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"phototagger/database"
	"phototagger/imageprocessor"
	"phototagger/logging"
	"phototagger/metadata"
	"phototagger/types"
)

const defaultWorkers = 8

// ScanAndStoreFolder walks a folder and stores photo information in the
// catalogue. It stops early when ctx is cancelled.
func ScanAndStoreFolder(ctx context.Context, db *sql.DB, options ScanOptions) (ScanSummary, error) {
	if options.Store == nil {
		return ScanSummary{}, errors.New("scanner: no metadata store configured")
	}
	out := options.Out
	if out == nil {
		out = os.Stdout
	}
	workers := options.MaxWorkers
	if workers <= 0 {
		workers = defaultWorkers
	}

	var wg sync.WaitGroup
	resultsChan := make(chan ProcessImageResult, 100)
	semaphore := make(chan struct{}, workers)

	fileStats, err := countFilesToProcess(options)
	if err != nil {
		return ScanSummary{}, err
	}
	PrintStartupInfo(out, fileStats, options)

	tracker := NewProgressTracker(fileStats, out, resultsChan)

	startTime := time.Now()
	var seenMu sync.Mutex
	seen := make(map[string]struct{}, fileStats.totalFiles)

	walkErr := filepath.WalkDir(options.FolderPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.LogError("Error accessing path %s: %v", path, err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !imageprocessor.IsImageFile(path) {
			return nil
		}

		wg.Add(1)
		semaphore <- struct{}{}
		go func(p string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			stored := database.StoredPath(p)
			seenMu.Lock()
			seen[stored] = struct{}{}
			seenMu.Unlock()

			resultsChan <- processAndStoreImage(db, p, stored, options)
		}(path)
		return nil
	})

	wg.Wait()
	close(resultsChan)
	tracker.Stop()

	summary := tracker.Summary()
	if walkErr == nil && options.Prune {
		removed, err := database.RemoveMissing(db, options.FolderPath, seen)
		if err != nil {
			logging.LogError("Cannot prune catalogue: %v", err)
		}
		summary.Removed = removed
	}
	summary.Elapsed = time.Since(startTime)

	PrintCompletionStats(out, summary, tracker.interactive)
	return summary, walkErr
}

// countFilesToProcess counts the files the walk will hand to workers
func countFilesToProcess(options ScanOptions) (FileStats, error) {
	stats := FileStats{}

	if options.DebugMode {
		logging.DebugLog("Starting image scan on folder: %s", options.FolderPath)
		logging.DebugLog("Force rewrite: %v", options.ForceRewrite)
	}

	info, err := os.Stat(options.FolderPath)
	if err != nil {
		return stats, types.NewError(types.CategoryArgument, "index", options.FolderPath, err)
	}
	if !info.IsDir() {
		return stats, types.Errorf(types.CategoryArgument, "index", options.FolderPath, "not a directory")
	}

	filepath.WalkDir(options.FolderPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if imageprocessor.IsImageFile(path) {
			stats.totalFiles++
			if imageprocessor.IsJPEG(path) {
				stats.jpegFiles++
			}
		}
		return nil
	})

	return stats, nil
}

// processAndStoreImage reads one photo's properties and stores them
func processAndStoreImage(db *sql.DB, path, stored string, options ScanOptions) ProcessImageResult {
	result := ProcessImageResult{Path: path}

	if !options.ForceRewrite {
		if skipResult := checkAndSkipIfUnchanged(db, path, stored, options); skipResult != nil {
			return *skipResult
		}
	}

	info, err := ReadImageInfo(options.Store, path, options.CaptureOffset)
	if err != nil {
		result.Error = err
		return result
	}
	info.Path = stored

	// anything reaching this point is new or changed
	if err := database.StoreImageInfo(db, info, true); err != nil {
		result.Error = types.NewError(types.CategoryIO, "store", path, err)
		return result
	}

	result.Success = true
	return result
}

// ReadImageInfo builds the catalogue record for one file. Dimensions the
// metadata does not carry are read from the image header.
func ReadImageInfo(store metadata.Store, path string, offset time.Duration) (types.ImageInfo, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return types.ImageInfo{}, types.NewError(types.CategoryIO, "stat", path, err)
	}

	props, err := store.Open(path)
	if err != nil {
		return types.ImageInfo{}, err
	}

	meta := metadata.ReadPhotoMetadata(props)
	if meta.Width <= 0 || meta.Height <= 0 {
		w, h, err := imageprocessor.DecodeDimensions(path)
		if err != nil {
			return types.ImageInfo{}, types.NewError(types.CategoryDecode, "dimensions", path, err)
		}
		meta.Width, meta.Height = w, h
	}

	contentType := imageprocessor.ContentType(path)
	if v, ok := props.ReadValue(metadata.KeyMIMEType); ok {
		if s, ok := v.Text(); ok && s != "" {
			contentType = s
		}
	}

	info := types.ImageInfo{
		Path:        path,
		FileName:    meta.FileName,
		ContentType: contentType,
		Width:       meta.Width,
		Height:      meta.Height,
		CameraModel: meta.CameraModel,
		Keywords:    metadata.ReadTags(props),
		ModifiedAt:  fileInfo.ModTime(),
		Size:        fileInfo.Size(),
	}
	if !meta.CaptureTime.IsZero() {
		info.CaptureTime = metadata.FormatCaptureTime(meta.CaptureTime, offset)
	}
	return info, nil
}
