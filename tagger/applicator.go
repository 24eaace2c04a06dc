package tagger

import (
	"context"
	"sync"

	"phototagger/logging"
	"phototagger/metadata"
	"phototagger/types"
)

// Outcome is what happened when a tag was applied to one file
type Outcome int

const (
	OutcomeTagged Outcome = iota
	OutcomeAlreadyTagged
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeTagged:
		return "tagged"
	case OutcomeAlreadyTagged:
		return "already tagged"
	default:
		return "failed"
	}
}

// TagResult reports one ApplyTag call
type TagResult struct {
	Path    string
	Outcome Outcome
	// Reason explains a failure
	Reason string
	Err    error
	// Backup is set when a backup copy was recorded
	Backup *BackupEntry
}

// ApplyOptions controls a single ApplyTag call
type ApplyOptions struct {
	// Simulate logs the backup and write without performing them
	Simulate bool
}

// Applicator writes tags to library files, backing each one up first when
// it has a ledger
type Applicator struct {
	store  metadata.Store
	ledger *Ledger

	// serializes work on one path when sources are processed in parallel
	pathLocks sync.Map
}

// NewApplicator creates an applicator. ledger may be nil to skip backups.
func NewApplicator(store metadata.Store, ledger *Ledger) *Applicator {
	return &Applicator{store: store, ledger: ledger}
}

// ApplyTag adds tag to the keywords of path unless it is already there.
// Failures are returned as an OutcomeFailed result, never as a panic or
// error, and leave the file untouched when the backup could not be made.
func (a *Applicator) ApplyTag(ctx context.Context, path, tag string, opts ApplyOptions) TagResult {
	if err := ctx.Err(); err != nil {
		return failed(path, "cancelled", err)
	}

	mu := a.lockFor(path)
	mu.Lock()
	defer mu.Unlock()

	props, err := a.store.Open(path)
	if err != nil {
		return failed(path, "cannot read metadata", err)
	}

	tags := metadata.ReadTags(props)
	if tags.Contains(tag) {
		logging.DebugLog("%s already has tag %q", path, tag)
		return TagResult{Path: path, Outcome: OutcomeAlreadyTagged}
	}

	if opts.Simulate {
		if a.ledger != nil {
			logging.LogInfo("Simulate: would back up %s to %s", path, a.ledger.Dir())
		}
		logging.LogInfo("Simulate: would set keywords of %s to %v", path, []string(tags.With(tag)))
		return TagResult{Path: path, Outcome: OutcomeTagged}
	}

	result := TagResult{Path: path, Outcome: OutcomeTagged}
	if a.ledger != nil {
		entry, err := a.ledger.Backup(path)
		if err != nil {
			return failed(path, "backup failed", err)
		}
		result.Backup = &entry
	}

	if err := metadata.WriteTags(props, tags.With(tag)); err != nil {
		r := failed(path, "cannot write keywords", err)
		r.Backup = result.Backup
		return r
	}

	logging.LogInfo("Tagged %s with %q", path, tag)
	return result
}

func (a *Applicator) lockFor(path string) *sync.Mutex {
	mu, _ := a.pathLocks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func failed(path, reason string, err error) TagResult {
	if _, ok := types.CategoryOf(err); !ok && err != nil {
		err = types.NewError(types.CategoryIO, reason, path, err)
	}
	logging.LogError("Cannot tag %s: %s: %v", path, reason, err)
	return TagResult{Path: path, Outcome: OutcomeFailed, Reason: reason, Err: err}
}
