package tagger

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"phototagger/logging"
	"phototagger/types"
	"phototagger/utils"

	"github.com/gofrs/flock"
)

const (
	// ScriptName is the restore script written into the backup folder
	ScriptName = "revert.sh"
	// LockFileName guards a backup folder against concurrent runs
	LockFileName = ".phototagger.lock"
)

var backupNamePattern = regexp.MustCompile(`^(\d{3,})_`)

// BackupEntry pairs a backup copy with the file it was taken from
type BackupEntry struct {
	// Seq numbers the entries of this run from 1 in the order they were
	// recorded. It is not the NNN prefix of BackupPath, which continues after
	// the highest number already in the folder.
	Seq          int
	BackupPath   string
	OriginalPath string
}

// LedgerHeader describes the run a ledger belongs to
type LedgerHeader struct {
	Library string
	Source  string
	Tag     string
}

// Ledger records backups in the order they were made and keeps a restore
// script in step with it
type Ledger struct {
	dir        string
	scriptPath string
	lock       *flock.Flock

	mu      sync.Mutex
	entries []BackupEntry
	script  *os.File
	closed  bool

	// reserves backup file numbers; entries get their Seq when recorded
	next atomic.Int64
}

// OpenLedger locks dir, creating it if needed, and starts the restore script
func OpenLedger(dir string, header LedgerHeader) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, types.NewError(types.CategoryIO, "create backup folder", dir, err)
	}

	lock := flock.New(filepath.Join(dir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, types.NewError(types.CategoryIO, "lock backup folder", dir, err)
	}
	if !ok {
		return nil, types.Errorf(types.CategoryArgument, "lock backup folder", dir, "folder is in use by another run")
	}

	l := &Ledger{dir: dir, lock: lock}

	highest, err := highestBackupNumber(dir)
	if err != nil {
		_ = lock.Unlock()
		return nil, types.NewError(types.CategoryIO, "read backup folder", dir, err)
	}
	l.next.Store(int64(highest))

	l.scriptPath = filepath.Join(dir, ScriptName)
	if _, err := os.Stat(l.scriptPath); err == nil {
		l.scriptPath = filepath.Join(dir, fmt.Sprintf("revert_%s.sh", time.Now().Format("20060102-150405")))
	}

	script, err := os.OpenFile(l.scriptPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o755)
	if err != nil {
		_ = lock.Unlock()
		return nil, types.NewError(types.CategoryIO, "create restore script", l.scriptPath, err)
	}
	l.script = script

	if err := l.writeSync(scriptPreamble(header)); err != nil {
		_ = script.Close()
		_ = os.Remove(l.scriptPath)
		_ = lock.Unlock()
		return nil, types.NewError(types.CategoryIO, "write restore script", l.scriptPath, err)
	}

	logging.LogInfo("Backups go to %s, restore with: sh %s", dir, utils.ShellQuote(l.scriptPath))
	return l, nil
}

// Dir returns the backup folder
func (l *Ledger) Dir() string { return l.dir }

// ScriptPath returns the restore script location
func (l *Ledger) ScriptPath() string { return l.scriptPath }

// Backup copies original into the backup folder as NNN_<name>, verifies the
// copy and records it. Nothing is recorded when the copy fails. NNN is
// reserved before copying, so failed copies and earlier runs leave gaps and
// it only matches the entry Seq in an empty folder with no failures.
func (l *Ledger) Backup(original string) (BackupEntry, error) {
	n := l.next.Add(1)
	backupPath := filepath.Join(l.dir, fmt.Sprintf("%03d_%s", n, filepath.Base(original)))

	if err := utils.CopyFileVerified(original, backupPath); err != nil {
		return BackupEntry{}, types.NewError(types.CategoryIO, "backup", original, err)
	}

	entry, err := l.Append(backupPath, original)
	if err != nil {
		_ = os.Remove(backupPath)
		return BackupEntry{}, err
	}
	return entry, nil
}

// Append records a backup that has already been made and writes its
// restore line to the script
func (l *Ledger) Append(backupPath, originalPath string) (BackupEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return BackupEntry{}, types.Errorf(types.CategoryIO, "record backup", originalPath, "ledger is closed")
	}

	entry := BackupEntry{
		Seq:          len(l.entries) + 1,
		BackupPath:   backupPath,
		OriginalPath: originalPath,
	}
	line := fmt.Sprintf("cp -f -- %s %s && restored=$((restored + 1))\n",
		utils.ShellQuote(absolute(backupPath)), utils.ShellQuote(absolute(originalPath)))
	if err := l.writeSync(line); err != nil {
		return BackupEntry{}, types.NewError(types.CategoryIO, "write restore script", l.scriptPath, err)
	}

	l.entries = append(l.entries, entry)
	logging.DebugLog("Backup #%d: %s -> %s", entry.Seq, originalPath, backupPath)
	return entry, nil
}

// Entries returns a copy of the recorded backups in order
func (l *Ledger) Entries() []BackupEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]BackupEntry(nil), l.entries...)
}

// Close finishes the restore script and releases the folder lock. A
// ledger without entries removes its script. Close is safe to call more
// than once.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	var errs []error
	if len(l.entries) > 0 {
		footer := fmt.Sprintf("echo \"Restore complete: $restored of %d file(s) restored.\"\n", len(l.entries))
		if err := l.writeSync(footer); err != nil {
			errs = append(errs, err)
		}
	}
	if err := l.script.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(l.entries) == 0 {
		if err := os.Remove(l.scriptPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := l.lock.Unlock(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return types.NewError(types.CategoryIO, "close ledger", l.scriptPath, errors.Join(errs...))
	}
	return nil
}

func (l *Ledger) writeSync(s string) error {
	w := bufio.NewWriter(l.script)
	if _, err := w.WriteString(s); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return l.script.Sync()
}

func scriptPreamble(h LedgerHeader) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# phototagger restore: library %s, matched from %s, tag %s\n",
		oneLine(h.Library), oneLine(h.Source), oneLine(h.Tag))
	b.WriteString("# Copies every backup below over its original, in the order the backups were made.\n")
	b.WriteString("printf 'Restore the original files backed up in this folder? [y/N] '\n")
	b.WriteString("read answer || answer=\n")
	b.WriteString("case \"$answer\" in\n")
	b.WriteString("  y|Y|yes|YES|Yes) ;;\n")
	b.WriteString("  *) echo 'Restore cancelled.'; exit 1 ;;\n")
	b.WriteString("esac\n")
	b.WriteString("restored=0\n")
	return b.String()
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

func absolute(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// highestBackupNumber finds the largest NNN_ prefix already in dir so a
// new run never reuses a backup name
func highestBackupNumber(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, e := range entries {
		m := backupNamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
			highest = n
		}
	}
	return highest, nil
}
