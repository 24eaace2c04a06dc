package tagger

import (
	"context"
	"errors"
	"iter"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"phototagger/logging"
	"phototagger/metadata"
	"phototagger/query"
	"phototagger/types"
)

// SourceState is where a source photo ended up
type SourceState int

const (
	// StateTagged means at least one library copy received the tag
	StateTagged SourceState = iota
	// StateUnchanged means copies were found but none needed or took the tag
	StateUnchanged
	// StateSkipped means no verified copy exists in the library
	StateSkipped
	// StateFailed means the source could not be processed
	StateFailed
)

func (s SourceState) String() string {
	switch s {
	case StateTagged:
		return "tagged"
	case StateUnchanged:
		return "unchanged"
	case StateSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// SourceResult describes the processing of one source photo
type SourceResult struct {
	Path       string
	State      SourceState
	Tier       string
	Candidates int
	Tags       []TagResult
	Rejections []Rejection
	Deleted    bool
	Err        error
}

// Options configures a tagging run
type Options struct {
	// Library is the root the index session is scoped to
	Library string
	// Source is what the operator asked to match, for the restore script header
	Source string
	Tag    string
	// DeleteSource removes a source photo once at least one copy was tagged
	DeleteSource bool
	// BackupDir enables backups and the restore script when set
	BackupDir string
	Simulate  bool
	// Workers above one processes sources in parallel
	Workers       int
	CaptureOffset time.Duration
	// OnResult is called once per source photo, possibly concurrently
	OnResult func(SourceResult)
}

// Orchestrator drives a tagging run over a sequence of source photos
type Orchestrator struct {
	session  IndexSession
	store    metadata.Store
	decoder  ImageDecoder
	verifier *Verifier
	opts     Options
	stats    types.RunStatistics
	// script is the restore script of the last run, empty when nothing was backed up
	script string
}

// NewOrchestrator validates opts and wires the collaborators together
func NewOrchestrator(session IndexSession, store metadata.Store, decoder ImageDecoder, opts Options) (*Orchestrator, error) {
	opts.Tag = strings.TrimSpace(opts.Tag)
	if opts.Tag == "" {
		return nil, types.Errorf(types.CategoryArgument, "match", "", "a tag is required")
	}
	if strings.ContainsAny(opts.Tag, ";\n\r") {
		return nil, types.Errorf(types.CategoryArgument, "match", "", "tag %q contains a list separator", opts.Tag)
	}
	if session == nil || store == nil || decoder == nil {
		return nil, types.Errorf(types.CategoryArgument, "match", "", "index session, metadata store and decoder are required")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	return &Orchestrator{
		session:  session,
		store:    store,
		decoder:  decoder,
		verifier: NewVerifier(decoder),
		opts:     opts,
	}, nil
}

// Stats returns the counters accumulated so far
func (o *Orchestrator) Stats() types.StatsSnapshot {
	return o.stats.Snapshot()
}

// RestoreScript returns the script that restores the files backed up by the
// last Run, or "" when that run backed nothing up
func (o *Orchestrator) RestoreScript() string {
	return o.script
}

// Run processes every source photo yielded by sources. It stops between
// photos when ctx is cancelled. Only an argument error from the sources,
// or a backup folder that cannot be opened, fails the run; every other
// problem is counted and the run continues. The backup ledger is always
// finalized before Run returns.
func (o *Orchestrator) Run(ctx context.Context, sources iter.Seq2[string, error]) (stats types.StatsSnapshot, err error) {
	o.script = ""
	var ledger *Ledger
	if o.opts.BackupDir != "" && !o.opts.Simulate {
		ledger, err = OpenLedger(o.opts.BackupDir, LedgerHeader{
			Library: o.opts.Library,
			Source:  o.opts.Source,
			Tag:     o.opts.Tag,
		})
		if err != nil {
			return o.stats.Snapshot(), err
		}
		defer func() {
			if cerr := ledger.Close(); cerr != nil {
				logging.LogError("Cannot finalize backup ledger: %v", cerr)
				if err == nil {
					err = cerr
				}
				return
			}
			if len(ledger.Entries()) > 0 {
				o.script = ledger.ScriptPath()
			}
		}()
	}
	applicator := NewApplicator(o.store, ledger)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, o.opts.Workers)

	for path, enumErr := range sources {
		if ctx.Err() != nil {
			break
		}
		if enumErr != nil {
			if errors.Is(enumErr, types.ErrArgument) {
				wg.Wait()
				return o.stats.Snapshot(), enumErr
			}
			logging.LogError("Enumeration failed: %v", enumErr)
			o.stats.Failures.Add(1)
			continue
		}

		if o.opts.Workers == 1 {
			o.report(o.safeProcess(ctx, applicator, path))
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}
		go func(p string) {
			defer wg.Done()
			defer func() { <-semaphore }()
			o.report(o.safeProcess(ctx, applicator, p))
		}(path)
	}
	wg.Wait()

	if ctx.Err() != nil {
		logging.LogWarning("Run interrupted: %v", ctx.Err())
	}
	return o.stats.Snapshot(), nil
}

func (o *Orchestrator) report(r SourceResult) {
	if o.opts.OnResult != nil {
		o.opts.OnResult(r)
	}
}

// safeProcess turns a panic while processing path into a failed result
func (o *Orchestrator) safeProcess(ctx context.Context, applicator *Applicator, path string) (res SourceResult) {
	defer func() {
		if r := recover(); r != nil {
			o.stats.Failures.Add(1)
			err := types.Errorf(types.CategoryIO, "match", path, "panic: %v", r)
			logging.LogError("Cannot process %s: %v\n%s", path, err, debug.Stack())
			res = SourceResult{Path: path, State: StateFailed, Err: err}
		}
	}()
	return o.processSource(ctx, applicator, path)
}

// processSource runs one source photo through metadata, fingerprint,
// query, verification and tagging
func (o *Orchestrator) processSource(ctx context.Context, applicator *Applicator, path string) (res SourceResult) {
	res = SourceResult{Path: path}
	o.stats.Scanned.Add(1)

	fail := func(err error) SourceResult {
		o.stats.Failures.Add(1)
		logging.LogError("Cannot process %s: %v", path, err)
		res.State = StateFailed
		res.Err = err
		return res
	}

	props, err := o.store.Open(path)
	if err != nil {
		return fail(err)
	}
	meta := metadata.ReadPhotoMetadata(props)
	if !meta.HasIdentity() {
		return fail(types.Errorf(types.CategoryValidation, "read metadata", path,
			"file name, width and height are required (got %q, %dx%d)", meta.FileName, meta.Width, meta.Height))
	}

	fp, err := o.decoder.FingerprintFile(path)
	if err != nil {
		return fail(err)
	}

	candidates, err := o.findCandidates(ctx, meta)
	if err != nil {
		return fail(err)
	}
	res.Candidates = len(candidates)
	if len(candidates) > 0 {
		res.Tier = candidates[0].Tier
	}

	matches, rejections := o.verifier.Verify(ctx, path, fp, candidates)
	res.Rejections = rejections
	if len(matches) == 0 {
		logging.LogInfo("No library copy of %s", path)
		res.State = StateSkipped
		return res
	}
	o.stats.Matched.Add(1)

	tagged := false
	for _, m := range matches {
		r := applicator.ApplyTag(ctx, m, o.opts.Tag, ApplyOptions{Simulate: o.opts.Simulate})
		res.Tags = append(res.Tags, r)
		switch r.Outcome {
		case OutcomeTagged:
			tagged = true
			o.stats.TagsApplied.Add(1)
		case OutcomeAlreadyTagged:
			o.stats.AlreadyTagged.Add(1)
		default:
			o.stats.Failures.Add(1)
		}
	}

	if !tagged {
		res.State = StateUnchanged
		return res
	}
	o.stats.Tagged.Add(1)
	res.State = StateTagged

	if o.opts.DeleteSource {
		if o.opts.Simulate {
			logging.LogInfo("Simulate: would delete %s", path)
		} else if err := os.Remove(path); err != nil {
			logging.LogError("Cannot delete %s: %v", path, err)
		} else {
			logging.LogInfo("Deleted %s", path)
			o.stats.Deleted.Add(1)
			res.Deleted = true
		}
	}
	return res
}

// findCandidates tries each tier in order and returns the hits of the
// first tier that has any
func (o *Orchestrator) findCandidates(ctx context.Context, meta types.PhotoMetadata) ([]types.MatchCandidate, error) {
	tiers := query.BuildTiers(meta, query.Options{CaptureOffset: o.opts.CaptureOffset})
	for _, tier := range tiers {
		paths, err := o.session.Execute(ctx, tier)
		if err != nil {
			if _, ok := types.CategoryOf(err); !ok {
				err = types.NewError(types.CategoryQuery, "query "+tier.Tier(), "", err)
			}
			return nil, err
		}
		logging.DebugLog("Tier %s (%s) returned %d candidate(s)", tier.Tier(), tier, len(paths))
		if len(paths) == 0 {
			continue
		}
		out := make([]types.MatchCandidate, len(paths))
		for i, p := range paths {
			out[i] = types.MatchCandidate{Path: p, Tier: tier.Tier()}
		}
		return out, nil
	}
	return nil, nil
}
