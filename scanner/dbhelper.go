package scanner

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"phototagger/database"
	"phototagger/logging"
)

// checkAndSkipIfUnchanged returns a result when the image can be skipped
// because it is catalogued and has not changed since, or when the check
// itself failed. It returns nil when the image must be (re)indexed.
func checkAndSkipIfUnchanged(db *sql.DB, path, stored string, options ScanOptions) *ProcessImageResult {
	exists, storedModTime, err := database.CheckImageExists(db, stored)
	if err != nil {
		return &ProcessImageResult{
			Path:  path,
			Error: fmt.Errorf("database error for %s: %w", path, err),
		}
	}
	if !exists {
		return nil
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		return &ProcessImageResult{
			Path:  path,
			Error: fmt.Errorf("cannot stat file %s: %w", path, err),
		}
	}

	storedTime, err := time.Parse(time.RFC3339, storedModTime)
	if err != nil {
		// unreadable timestamp, index again
		logging.DebugLog("Cannot parse stored time for %s: %v", path, err)
		return nil
	}

	// stored times have second precision
	if !fileInfo.ModTime().Truncate(time.Second).After(storedTime) {
		if options.DebugMode {
			logging.DebugLog("Skipping unchanged image: %s", path)
		}
		return &ProcessImageResult{
			Path:    path,
			Success: true,
			Skipped: true,
		}
	}

	return nil
}
