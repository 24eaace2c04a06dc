package tagger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"phototagger/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerContinuesBackupNumbering(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	backups := filepath.Join(dir, "backups")
	require.NoError(t, os.MkdirAll(backups, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(backups, "007_old.jpg"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(backups, "notes_1.txt"), nil, 0o644))

	photo := filepath.Join(dir, "IMG_0001.jpg")
	require.NoError(t, os.WriteFile(photo, []byte("pixels"), 0o644))

	l, err := OpenLedger(backups, LedgerHeader{Library: dir, Source: photo, Tag: "x"})
	require.NoError(t, err)

	entry, err := l.Backup(photo)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Seq)
	assert.Equal(t, filepath.Join(backups, "008_IMG_0001.jpg"), entry.BackupPath)
	assert.Equal(t, []byte("pixels"), readFile(t, entry.BackupPath))

	second, err := l.Backup(photo)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Seq)
	assert.Equal(t, filepath.Join(backups, "009_IMG_0001.jpg"), second.BackupPath)

	assert.Equal(t, []BackupEntry{entry, second}, l.Entries())
	require.NoError(t, l.Close())
}

func TestLedgerLocksFolder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first, err := OpenLedger(dir, LedgerHeader{Tag: "a"})
	require.NoError(t, err)

	_, err = OpenLedger(dir, LedgerHeader{Tag: "b"})
	assert.ErrorIs(t, err, types.ErrArgument)

	require.NoError(t, first.Close())

	again, err := OpenLedger(dir, LedgerHeader{Tag: "c"})
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestLedgerKeepsExistingScript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	existing := filepath.Join(dir, ScriptName)
	require.NoError(t, os.WriteFile(existing, []byte("# earlier run\n"), 0o755))

	l, err := OpenLedger(dir, LedgerHeader{Tag: "x"})
	require.NoError(t, err)
	assert.NotEqual(t, existing, l.ScriptPath())
	assert.True(t, strings.HasPrefix(filepath.Base(l.ScriptPath()), "revert_"))
	assert.Equal(t, dir, l.Dir())
	require.NoError(t, l.Close())

	assert.Equal(t, "# earlier run\n", string(readFile(t, existing)))
}

func TestLedgerScript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l, err := OpenLedger(dir, LedgerHeader{Library: "/photos", Source: "/in/*.jpg", Tag: "it's\nhere"})
	require.NoError(t, err)

	_, err = l.Append("/backups/001_a.jpg", "/photos/it's a.jpg")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	script := string(readFile(t, l.ScriptPath()))
	lines := strings.Split(strings.TrimSuffix(script, "\n"), "\n")
	assert.Equal(t, "# phototagger restore: library /photos, matched from /in/*.jpg, tag it's here", lines[0])
	assert.Contains(t, script, "[y/N]")
	assert.Contains(t, lines, `cp -f -- '/backups/001_a.jpg' '/photos/it'\''s a.jpg' && restored=$((restored + 1))`)
	assert.Equal(t, `echo "Restore complete: $restored of 1 file(s) restored."`, lines[len(lines)-1])
}

func TestLedgerCloseWithoutEntries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l, err := OpenLedger(dir, LedgerHeader{Tag: "x"})
	require.NoError(t, err)
	require.FileExists(t, l.ScriptPath())

	require.NoError(t, l.Close())
	assert.NoFileExists(t, l.ScriptPath())
	assert.NoError(t, l.Close())

	_, err = l.Append(filepath.Join(dir, "001_a.jpg"), "/a.jpg")
	assert.ErrorIs(t, err, types.ErrIO)
}

func TestLedgerBackupFailureRecordsNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l, err := OpenLedger(dir, LedgerHeader{Tag: "x"})
	require.NoError(t, err)

	_, err = l.Backup(filepath.Join(dir, "missing.jpg"))
	assert.ErrorIs(t, err, types.ErrIO)
	assert.Empty(t, l.Entries())

	require.NoError(t, l.Close())
	assert.NoFileExists(t, l.ScriptPath())
}
