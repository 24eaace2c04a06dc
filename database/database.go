package database

import (
	"database/sql"
	"fmt"
	"time"

	"phototagger/logging"
	"phototagger/query"
	"phototagger/types"

	_ "github.com/mattn/go-sqlite3"
)

// ImagesTable is the catalogue table predicates are rendered against
const ImagesTable = "images"

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		file_name TEXT NOT NULL,
		file_name_key TEXT,
		content_type TEXT,
		width INTEGER,
		height INTEGER,
		camera_model TEXT,
		capture_time TEXT,
		created_at TEXT,
		modified_at TEXT,
		size INTEGER
	);
	CREATE TABLE IF NOT EXISTS image_keywords (
		image_id INTEGER NOT NULL REFERENCES images(id) ON DELETE CASCADE,
		keyword TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (image_id, position)
	);`

// indexSQL runs after lateColumns so older catalogues have every column
const indexSQL = `
	CREATE INDEX IF NOT EXISTS idx_file_name_key ON images(file_name_key);
	CREATE INDEX IF NOT EXISTS idx_capture ON images(camera_model, capture_time);
	CREATE INDEX IF NOT EXISTS idx_keyword ON image_keywords(keyword);`

// columns added after the first catalogue layout; older files are upgraded in place
var lateColumns = []struct {
	name string
	def  string
}{
	{"camera_model", "TEXT"},
	{"capture_time", "TEXT"},
	{"content_type", "TEXT"},
	{"file_name_key", "TEXT"},
}

// InitDatabase initializes and returns a database connection
func InitDatabase(dbPath string) (*sql.DB, error) {
	db, err := OpenDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	if _, err = db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot create schema in %s: %w", dbPath, err)
	}

	for _, col := range lateColumns {
		var present bool
		err = db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('images') WHERE name = ?", col.name).Scan(&present)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("error checking for %s column: %w", col.name, err)
		}
		if present {
			continue
		}
		if _, err = db.Exec(fmt.Sprintf("ALTER TABLE images ADD COLUMN %s %s;", col.name, col.def)); err != nil {
			db.Close()
			return nil, fmt.Errorf("error adding %s column: %w", col.name, err)
		}
		logging.DebugLog("Added '%s' column to existing database schema", col.name)
	}

	if _, err = db.Exec(indexSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot create indexes in %s: %w", dbPath, err)
	}

	if err := backfillFileNameKeys(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// backfillFileNameKeys fills file_name_key for rows written before the
// column existed
func backfillFileNameKeys(db *sql.DB) error {
	rows, err := db.Query("SELECT id, file_name FROM images WHERE file_name_key IS NULL")
	if err != nil {
		return fmt.Errorf("cannot list rows without name key: %w", err)
	}
	type pending struct {
		id   int64
		name string
	}
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.name); err != nil {
			rows.Close()
			return err
		}
		todo = append(todo, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range todo {
		if _, err := db.Exec("UPDATE images SET file_name_key = ? WHERE id = ?", query.FoldKey(p.name), p.id); err != nil {
			return fmt.Errorf("cannot set name key for row %d: %w", p.id, err)
		}
	}
	if len(todo) > 0 {
		logging.DebugLog("Filled file_name_key for %d existing rows", len(todo))
	}
	return nil
}

// OpenDatabase opens an existing database connection
func OpenDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// a single connection keeps the foreign key pragma and avoids lock churn
	db.SetMaxOpenConns(1)
	return db, nil
}

// CheckImageExists checks if an image already exists in the database and
// returns its stored modification time
func CheckImageExists(db *sql.DB, path string) (bool, string, error) {
	var storedModTime sql.NullString
	err := db.QueryRow("SELECT modified_at FROM images WHERE path = ?", path).Scan(&storedModTime)
	if err == sql.ErrNoRows {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("database error for %s: %w", path, err)
	}
	return true, storedModTime.String, nil
}

// StoreImageInfo stores image information and its keywords in the database.
// An existing row for the same path is only replaced when forceRewrite is set.
func StoreImageInfo(db *sql.DB, info types.ImageInfo, forceRewrite bool) error {
	now := time.Now().Format(time.RFC3339)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("cannot begin transaction for %s: %w", info.Path, err)
	}
	defer tx.Rollback()

	conflict := "DO NOTHING"
	if forceRewrite {
		conflict = `DO UPDATE SET
			file_name = excluded.file_name,
			file_name_key = excluded.file_name_key,
			content_type = excluded.content_type,
			width = excluded.width,
			height = excluded.height,
			camera_model = excluded.camera_model,
			capture_time = excluded.capture_time,
			modified_at = excluded.modified_at,
			size = excluded.size`
	}

	res, err := tx.Exec(`
		INSERT INTO images (
			path, file_name, file_name_key, content_type, width, height, camera_model, capture_time, created_at, modified_at, size
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) `+conflict,
		info.Path,
		info.FileName,
		query.FoldKey(info.FileName),
		info.ContentType,
		info.Width,
		info.Height,
		nullIfEmpty(info.CameraModel),
		nullIfEmpty(info.CaptureTime),
		now,
		info.ModifiedAt.UTC().Format(time.RFC3339),
		info.Size,
	)
	if err != nil {
		return fmt.Errorf("cannot insert data for %s: %w", info.Path, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		// existing row kept as is
		return tx.Commit()
	}

	var id int64
	if err := tx.QueryRow("SELECT id FROM images WHERE path = ?", info.Path).Scan(&id); err != nil {
		return fmt.Errorf("cannot read id for %s: %w", info.Path, err)
	}

	if _, err := tx.Exec("DELETE FROM image_keywords WHERE image_id = ?", id); err != nil {
		return fmt.Errorf("cannot clear keywords for %s: %w", info.Path, err)
	}
	for i, kw := range info.Keywords {
		if _, err := tx.Exec("INSERT INTO image_keywords (image_id, keyword, position) VALUES (?, ?, ?)", id, kw, i); err != nil {
			return fmt.Errorf("cannot insert keyword %q for %s: %w", kw, info.Path, err)
		}
	}

	return tx.Commit()
}

// RemoveMissing deletes catalogue rows under root whose path is not in seen
func RemoveMissing(db *sql.DB, root string, seen map[string]struct{}) (int, error) {
	scope := ScopeRoot(root)
	rows, err := db.Query("SELECT path FROM images WHERE substr(path, 1, ?) = ?", scopeLen(scope), scope)
	if err != nil {
		return 0, fmt.Errorf("cannot list catalogue paths: %w", err)
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, err
		}
		if _, ok := seen[p]; !ok {
			stale = append(stale, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, p := range stale {
		if _, err := db.Exec("DELETE FROM images WHERE path = ?", p); err != nil {
			return 0, fmt.Errorf("cannot remove %s: %w", p, err)
		}
		logging.DebugLog("Removed stale catalogue entry %s", p)
	}
	return len(stale), nil
}

// ScanStats contains statistics about the catalogued images under a root
type ScanStats struct {
	TotalImages     int
	WithCaptureInfo int
	UniqueKeywords  int
}

// GetScanStats retrieves statistics about catalogued images under root
func GetScanStats(db *sql.DB, root string) (*ScanStats, error) {
	var stats ScanStats
	scope := ScopeRoot(root)
	n := scopeLen(scope)

	err := db.QueryRow("SELECT COUNT(*) FROM images WHERE substr(path, 1, ?) = ?", n, scope).Scan(&stats.TotalImages)
	if err != nil {
		return nil, fmt.Errorf("failed to get total images: %w", err)
	}

	err = db.QueryRow(`SELECT COUNT(*) FROM images WHERE substr(path, 1, ?) = ?
		AND camera_model IS NOT NULL AND capture_time IS NOT NULL`, n, scope).Scan(&stats.WithCaptureInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to count capture info: %w", err)
	}

	err = db.QueryRow(`SELECT COUNT(DISTINCT k.keyword) FROM image_keywords k
		JOIN images i ON i.id = k.image_id WHERE substr(i.path, 1, ?) = ?`, n, scope).Scan(&stats.UniqueKeywords)
	if err != nil {
		return nil, fmt.Errorf("failed to count keywords: %w", err)
	}

	return &stats, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
