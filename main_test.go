package main

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"phototagger/config"
	"phototagger/database"
	"phototagger/types"
	"phototagger/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(utils.NormalizeArgs(args))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeTestConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRootWithoutCommand(t *testing.T) {
	out, err := execute(t)
	assert.ErrorIs(t, err, errNoCommand)
	assert.Contains(t, out, "Usage:")
}

func TestConfigShow(t *testing.T) {
	t.Setenv(config.LibraryEnv, "")
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "workers = 3\n")

	out, err := execute(t, "config", "show", "-config", cfgPath, "-library", "/srv/photos")
	require.NoError(t, err)
	assert.Contains(t, out, "workers = 3")
	assert.Contains(t, out, "/srv/photos")
}

func TestMatchRequiresLibrary(t *testing.T) {
	t.Setenv(config.LibraryEnv, "")
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "")

	_, err := execute(t, "match", dir, "-tag", "x", "-config", cfgPath)
	assert.ErrorIs(t, err, types.ErrArgument)
}

func TestMatchRequiresIndex(t *testing.T) {
	t.Setenv(config.LibraryEnv, "")
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "")

	_, err := execute(t, "match", dir, "-tag", "x", "-config", cfgPath,
		"-library", dir, "-database", filepath.Join(dir, "missing.db"))
	assert.ErrorIs(t, err, types.ErrArgument)
}

func TestIndexThenAllTags(t *testing.T) {
	t.Setenv(config.LibraryEnv, "")
	dir := t.TempDir()
	lib := filepath.Join(dir, "library")
	dbPath := filepath.Join(dir, "db", "photos.db")
	cfgPath := writeTestConfig(t, dir, "metadata_backend = \"exif\"\n")

	require.NoError(t, os.MkdirAll(lib, 0o755))
	f, err := os.Create(filepath.Join(lib, "IMG_0001.jpg"))
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, image.NewGray(image.Rect(0, 0, 20, 10)), nil))
	require.NoError(t, f.Close())

	out, err := execute(t, "index", "-config", cfgPath, "-library", lib, "-database", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Catalogue holds 1 photos")

	// the exif backend reads no keywords, so add some directly
	db, err := database.OpenDatabase(dbPath)
	require.NoError(t, err)
	info := types.ImageInfo{
		Path:        database.StoredPath(filepath.Join(lib, "other.jpg")),
		FileName:    "other.jpg",
		ContentType: "image/jpeg",
		Width:       20,
		Height:      10,
		Keywords:    []string{"zebra", "Alps"},
	}
	require.NoError(t, database.StoreImageInfo(db, info, false))
	require.NoError(t, db.Close())

	out, err = execute(t, "alltags", "-config", cfgPath, "-library", lib, "-database", dbPath)
	require.NoError(t, err)
	assert.Equal(t, "Alps\nzebra\n", out)
}

func TestRenderRunSummary(t *testing.T) {
	t.Parallel()

	s := renderRunSummary(types.StatsSnapshot{Scanned: 4, Matched: 2, Tagged: 2, TagsApplied: 3}, true)
	assert.Contains(t, s, "Run summary (simulated)")
	assert.Contains(t, s, "Photos scanned")
	assert.Contains(t, s, "Tags applied")
	assert.Empty(t, renderTable("", nil, nil, nil))
}
