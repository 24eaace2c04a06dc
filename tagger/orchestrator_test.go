package tagger

import (
	"context"
	"errors"
	"iter"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"phototagger/query"
	"phototagger/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const captured = "2024:07:14 09:30:05"

type scenario struct {
	library string
	sources string
	backups string
	store   *fakeStore
	session *fakeSession

	mu      sync.Mutex
	results []SourceResult
}

func newScenario(t *testing.T) *scenario {
	dir := t.TempDir()
	return &scenario{
		library: filepath.Join(dir, "library"),
		sources: filepath.Join(dir, "incoming"),
		backups: filepath.Join(dir, "backups"),
		store:   newFakeStore(),
		session: newFakeSession(),
	}
}

func (s *scenario) options(tag string) Options {
	return Options{
		Library:   s.library,
		Source:    s.sources,
		Tag:       tag,
		BackupDir: s.backups,
		OnResult: func(r SourceResult) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.results = append(s.results, r)
		},
	}
}

func (s *scenario) run(t *testing.T, opts Options, sources iter.Seq2[string, error]) types.StatsSnapshot {
	t.Helper()
	o, err := NewOrchestrator(s.session, s.store, newDecoder(), opts)
	require.NoError(t, err)
	stats, err := o.Run(context.Background(), sources)
	require.NoError(t, err)
	assert.Equal(t, stats, o.Stats())
	return stats
}

// matchedPair writes a source photo and a byte-identical library copy
func (s *scenario) matchedPair(t *testing.T, name string, seed int, libKeywords ...string) (string, string) {
	src := filepath.Join(s.sources, name)
	lib := filepath.Join(s.library, "2024", "07", name)
	writePhoto(t, src, seed)
	copyPhoto(t, src, lib)
	s.store.set(src, photoFields("X100", captured))
	s.store.set(lib, photoFields("X100", captured, libKeywords...))
	return src, lib
}

func TestRunTagsVerifiedLibraryCopy(t *testing.T) {
	t.Parallel()

	s := newScenario(t)
	src, lib := s.matchedPair(t, "IMG_0001.jpg", 1, "family")
	original := readFile(t, lib)
	s.session.results[query.TierMetadata] = []string{lib}

	stats := s.run(t, s.options("vacation2024"), sourcesOf(src))

	assert.Equal(t, types.StatsSnapshot{Scanned: 1, Matched: 1, Tagged: 1, TagsApplied: 1}, stats)
	assert.Equal(t, []string{"family", "vacation2024"}, s.store.keywords(lib))
	assert.Equal(t, 1, s.session.callCount(query.TierMetadata))
	assert.Zero(t, s.session.callCount(query.TierFileName))
	assert.FileExists(t, src)

	require.Len(t, s.results, 1)
	res := s.results[0]
	assert.Equal(t, StateTagged, res.State)
	assert.Equal(t, query.TierMetadata, res.Tier)
	assert.Equal(t, 1, res.Candidates)
	require.Len(t, res.Tags, 1)
	require.NotNil(t, res.Tags[0].Backup)

	backup := *res.Tags[0].Backup
	assert.Equal(t, BackupEntry{
		Seq:          1,
		BackupPath:   filepath.Join(s.backups, "001_IMG_0001.jpg"),
		OriginalPath: lib,
	}, backup)
	assert.Equal(t, original, readFile(t, backup.BackupPath))
	assert.NotEqual(t, original, readFile(t, lib))

	script := string(readFile(t, filepath.Join(s.backups, ScriptName)))
	assert.Contains(t, script, "tag vacation2024")
	assert.Contains(t, script, "cp -f -- '"+backup.BackupPath+"' '"+lib+"'")
	assert.Contains(t, script, "Restore complete: $restored of 1 file(s) restored.")
}

func TestRunFallsBackToFileNameTier(t *testing.T) {
	t.Parallel()

	s := newScenario(t)
	src, lib := s.matchedPair(t, "DSC_0042.JPG", 2)
	s.session.results[query.TierFileName] = []string{lib}

	stats := s.run(t, s.options("trip"), sourcesOf(src))

	assert.Equal(t, int64(1), stats.Tagged)
	assert.Equal(t, 1, s.session.callCount(query.TierMetadata))
	assert.Equal(t, 1, s.session.callCount(query.TierFileName))
	require.Len(t, s.results, 1)
	assert.Equal(t, query.TierFileName, s.results[0].Tier)
}

func TestRunSkipsMetadataTierWithoutCaptureInfo(t *testing.T) {
	t.Parallel()

	s := newScenario(t)
	src, lib := s.matchedPair(t, "scan.jpg", 3)
	s.store.set(src, photoFields("", ""))
	s.session.results[query.TierFileName] = []string{lib}

	stats := s.run(t, s.options("scans"), sourcesOf(src))

	assert.Equal(t, int64(1), stats.Tagged)
	assert.Zero(t, s.session.callCount(query.TierMetadata))
	assert.Equal(t, 1, s.session.callCount(query.TierFileName))
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	s := newScenario(t)
	src, lib := s.matchedPair(t, "IMG_0001.jpg", 1)
	s.session.results[query.TierMetadata] = []string{lib}

	first := s.run(t, s.options("Vacation"), sourcesOf(src))
	assert.Equal(t, int64(1), first.Tagged)
	afterFirst := readFile(t, lib)

	second := s.run(t, s.options("vacation"), sourcesOf(src))
	assert.Equal(t, types.StatsSnapshot{Scanned: 1, Matched: 1, AlreadyTagged: 1}, second)
	assert.Equal(t, 1, s.store.writeCount(lib))
	assert.Equal(t, afterFirst, readFile(t, lib))

	require.Len(t, s.results, 2)
	assert.Equal(t, StateUnchanged, s.results[1].State)
	assert.Equal(t, OutcomeAlreadyTagged, s.results[1].Tags[0].Outcome)
	assert.Nil(t, s.results[1].Tags[0].Backup)

	// the second run made no backups, so it leaves no script behind
	scripts, err := filepath.Glob(filepath.Join(s.backups, "revert*.sh"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(s.backups, ScriptName)}, scripts)
	backups, err := filepath.Glob(filepath.Join(s.backups, "0*_*"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestRunSimulateChangesNothing(t *testing.T) {
	t.Parallel()

	s := newScenario(t)
	src, lib := s.matchedPair(t, "IMG_0001.jpg", 1)
	s.session.results[query.TierMetadata] = []string{lib}
	original := readFile(t, lib)

	opts := s.options("vacation2024")
	opts.Simulate = true
	opts.DeleteSource = true
	stats := s.run(t, opts, sourcesOf(src))

	assert.Equal(t, types.StatsSnapshot{Scanned: 1, Matched: 1, Tagged: 1, TagsApplied: 1}, stats)
	assert.Equal(t, original, readFile(t, lib))
	assert.Zero(t, s.store.writeCount(lib))
	assert.FileExists(t, src)
	assert.NoDirExists(t, s.backups)
	require.Len(t, s.results, 1)
	assert.False(t, s.results[0].Deleted)
	assert.Nil(t, s.results[0].Tags[0].Backup)
}

func TestRunDeletesSourceOnlyWhenTagged(t *testing.T) {
	t.Parallel()

	s := newScenario(t)
	tagged, taggedLib := s.matchedPair(t, "a.jpg", 1)
	already, alreadyLib := s.matchedPair(t, "b.jpg", 2, "keep")
	s.session.resolve = func(p query.Predicate) []string {
		switch fileNameOf(p) {
		case "a.jpg":
			return []string{taggedLib}
		case "b.jpg":
			return []string{alreadyLib}
		}
		return nil
	}

	opts := s.options("keep")
	opts.DeleteSource = true
	stats := s.run(t, opts, sourcesOf(tagged, already))

	assert.Equal(t, int64(1), stats.Deleted)
	assert.NoFileExists(t, tagged)
	assert.FileExists(t, already)
}

func TestRunRejectsDifferentPhotoWithSameMetadata(t *testing.T) {
	t.Parallel()

	s := newScenario(t)
	src := filepath.Join(s.sources, "IMG_0001.jpg")
	other := filepath.Join(s.library, "IMG_0001.jpg")
	writePhoto(t, src, 1)
	writePhoto(t, other, 5)
	s.store.set(src, photoFields("X100", captured))
	s.store.set(other, photoFields("X100", captured))
	s.session.results[query.TierMetadata] = []string{other}

	stats := s.run(t, s.options("vacation2024"), sourcesOf(src))

	assert.Equal(t, types.StatsSnapshot{Scanned: 1}, stats)
	assert.Zero(t, s.store.writeCount(other))
	require.Len(t, s.results, 1)
	res := s.results[0]
	assert.Equal(t, StateSkipped, res.State)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, "fingerprint mismatch", res.Rejections[0].Reason)
	assert.NoFileExists(t, filepath.Join(s.backups, ScriptName))
}

func TestRunRejectsSelfAndUnreadableCandidates(t *testing.T) {
	t.Parallel()

	s := newScenario(t)
	src, lib := s.matchedPair(t, "IMG_0001.jpg", 1)
	broken := filepath.Join(s.library, "broken", "IMG_0001.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(broken), 0o755))
	require.NoError(t, os.WriteFile(broken, []byte("not a jpeg"), 0o644))
	s.session.results[query.TierMetadata] = []string{src, broken, lib}

	stats := s.run(t, s.options("vacation2024"), sourcesOf(src))

	assert.Equal(t, int64(1), stats.TagsApplied)
	assert.Zero(t, stats.Failures)
	require.Len(t, s.results, 1)
	res := s.results[0]
	assert.Equal(t, 3, res.Candidates)
	require.Len(t, res.Rejections, 2)
	assert.Equal(t, Rejection{Path: src, Reason: "source file"}, res.Rejections[0])
	assert.Equal(t, broken, res.Rejections[1].Path)
	assert.Equal(t, "unreadable", res.Rejections[1].Reason)
	assert.ErrorIs(t, res.Rejections[1].Err, types.ErrDecode)
}

func TestRunCountsPerSourceFailures(t *testing.T) {
	t.Parallel()

	s := newScenario(t)

	noSize := filepath.Join(s.sources, "nosize.jpg")
	writePhoto(t, noSize, 1)
	s.store.set(noSize, map[string]interface{}{})

	garbage := filepath.Join(s.sources, "garbage.jpg")
	require.NoError(t, os.MkdirAll(s.sources, 0o755))
	require.NoError(t, os.WriteFile(garbage, []byte("garbage"), 0o644))
	s.store.set(garbage, photoFields("", ""))

	missing := filepath.Join(s.sources, "missing.jpg")

	stats := s.run(t, s.options("x"), sourcesOf(noSize, garbage, missing))

	assert.Equal(t, types.StatsSnapshot{Scanned: 3, Failures: 3}, stats)
	require.Len(t, s.results, 3)
	assert.ErrorIs(t, s.results[0].Err, types.ErrValidation)
	assert.ErrorIs(t, s.results[1].Err, types.ErrDecode)
	assert.ErrorIs(t, s.results[2].Err, types.ErrIO)
	for _, r := range s.results {
		assert.Equal(t, StateFailed, r.State)
	}
}

func TestRunQueryErrorFailsOnlyThatSource(t *testing.T) {
	t.Parallel()

	s := newScenario(t)
	src, _ := s.matchedPair(t, "IMG_0001.jpg", 1)
	s.session.errs[query.TierMetadata] = errors.New("database is locked")

	stats := s.run(t, s.options("x"), sourcesOf(src, src))

	assert.Equal(t, types.StatsSnapshot{Scanned: 2, Failures: 2}, stats)
	require.Len(t, s.results, 2)
	assert.ErrorIs(t, s.results[0].Err, types.ErrQuery)
}

func TestRunRejectsNarrowSourceWithItsPath(t *testing.T) {
	t.Parallel()

	s := newScenario(t)
	narrow := filepath.Join(s.sources, "narrow.jpg")
	writeSizedPhoto(t, narrow, 3, 20, 1)
	s.store.set(narrow, photoFields("X100", captured))

	stats := s.run(t, s.options("x"), sourcesOf(narrow))

	assert.Equal(t, types.StatsSnapshot{Scanned: 1, Failures: 1}, stats)
	require.Len(t, s.results, 1)
	assert.Equal(t, StateFailed, s.results[0].State)
	assert.ErrorIs(t, s.results[0].Err, types.ErrValidation)
	assert.Contains(t, s.results[0].Err.Error(), narrow)
	assert.Zero(t, s.session.callCount(query.TierMetadata))
}

func TestRunSurvivesPanickingSource(t *testing.T) {
	t.Parallel()

	for _, workers := range []int{1, 2} {
		s := newScenario(t)
		src, lib := s.matchedPair(t, "IMG_0001.jpg", 1)
		crash := filepath.Join(s.sources, "crash.jpg")
		writePhoto(t, crash, 2)
		s.store.set(crash, photoFields("X100", captured))
		s.session.results[query.TierMetadata] = []string{lib}

		opts := s.options("x")
		opts.Workers = workers
		o, err := NewOrchestrator(s.session, s.store, crashingDecoder{ImageDecoder: newDecoder(), path: crash}, opts)
		require.NoError(t, err)
		stats, err := o.Run(context.Background(), sourcesOf(crash, src))
		require.NoError(t, err)

		assert.Equal(t, types.StatsSnapshot{Scanned: 2, Matched: 1, Tagged: 1, TagsApplied: 1, Failures: 1}, stats, "workers=%d", workers)
		require.Len(t, s.results, 2)
		for _, r := range s.results {
			if r.Path == crash {
				assert.Equal(t, StateFailed, r.State)
				assert.ErrorContains(t, r.Err, "decoder crashed")
			} else {
				assert.Equal(t, StateTagged, r.State)
			}
		}

		script := filepath.Join(s.backups, ScriptName)
		assert.Equal(t, script, o.RestoreScript())
		assert.Contains(t, string(readFile(t, script)), "Restore complete")
	}
}

func TestRestoreScriptOnlyAfterBackups(t *testing.T) {
	t.Parallel()

	s := newScenario(t)
	src, lib := s.matchedPair(t, "IMG_0001.jpg", 1)
	s.session.results[query.TierMetadata] = []string{lib}

	opts := s.options("x")
	opts.Simulate = true
	o, err := NewOrchestrator(s.session, s.store, newDecoder(), opts)
	require.NoError(t, err)
	_, err = o.Run(context.Background(), sourcesOf(src))
	require.NoError(t, err)
	assert.Empty(t, o.RestoreScript())

	o, err = NewOrchestrator(s.session, s.store, newDecoder(), s.options("x"))
	require.NoError(t, err)
	_, err = o.Run(context.Background(), sourcesOf(src))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.backups, ScriptName), o.RestoreScript())

	_, err = o.Run(context.Background(), sourcesOf(src))
	require.NoError(t, err)
	assert.Empty(t, o.RestoreScript())
}

func TestRunEnumerationErrors(t *testing.T) {
	t.Parallel()

	s := newScenario(t)
	o, err := NewOrchestrator(s.session, s.store, newDecoder(), s.options("x"))
	require.NoError(t, err)

	ioErr := func(yield func(string, error) bool) {
		yield("", types.Errorf(types.CategoryIO, "read directory", s.sources, "boom"))
	}
	stats, err := o.Run(context.Background(), ioErr)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Failures)

	argErr := func(yield func(string, error) bool) {
		yield("", types.Errorf(types.CategoryArgument, "enumerate", s.sources, "path does not exist"))
	}
	_, err = o.Run(context.Background(), argErr)
	assert.ErrorIs(t, err, types.ErrArgument)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	t.Parallel()

	s := newScenario(t)
	src, lib := s.matchedPair(t, "IMG_0001.jpg", 1)
	s.session.results[query.TierMetadata] = []string{lib}

	o, err := NewOrchestrator(s.session, s.store, newDecoder(), s.options("x"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := o.Run(ctx, sourcesOf(src))
	require.NoError(t, err)
	assert.Equal(t, types.StatsSnapshot{}, stats)
	assert.Zero(t, s.store.writeCount(lib))
}

func TestRunInParallel(t *testing.T) {
	t.Parallel()

	s := newScenario(t)
	byName := map[string]string{}
	var srcs []string
	for i, name := range []string{"p1.jpg", "p2.jpg", "p3.jpg", "p4.jpg", "p5.jpg", "p6.jpg"} {
		src, lib := s.matchedPair(t, name, i+1)
		byName[name] = lib
		srcs = append(srcs, src)
	}
	s.session.resolve = func(p query.Predicate) []string {
		if lib, ok := byName[fileNameOf(p)]; ok {
			return []string{lib}
		}
		return nil
	}

	opts := s.options("batch")
	opts.Workers = 3
	stats := s.run(t, opts, sourcesOf(srcs...))

	assert.Equal(t, types.StatsSnapshot{Scanned: 6, Matched: 6, Tagged: 6, TagsApplied: 6}, stats)
	for _, lib := range byName {
		assert.Equal(t, []string{"batch"}, s.store.keywords(lib))
	}

	seen := map[int]bool{}
	for _, r := range s.results {
		require.Len(t, r.Tags, 1)
		require.NotNil(t, r.Tags[0].Backup)
		seen[r.Tags[0].Backup.Seq] = true
	}
	assert.Len(t, seen, 6)

	script := string(readFile(t, filepath.Join(s.backups, ScriptName)))
	assert.Equal(t, 6, strings.Count(script, "cp -f -- "))
	assert.Contains(t, script, "of 6 file(s) restored.")
}

func TestRevertScriptRestoresOriginals(t *testing.T) {
	t.Parallel()

	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no POSIX shell available")
	}

	s := newScenario(t)
	src, lib := s.matchedPair(t, "IMG_0001.jpg", 1, "family")
	s.session.results[query.TierMetadata] = []string{lib}
	original := readFile(t, lib)

	s.run(t, s.options("vacation2024"), sourcesOf(src))
	tagged := readFile(t, lib)
	require.NotEqual(t, original, tagged)
	script := filepath.Join(s.backups, ScriptName)

	decline := exec.Command(sh, script)
	decline.Stdin = strings.NewReader("n\n")
	out, err := decline.CombinedOutput()
	require.Error(t, err)
	assert.Contains(t, string(out), "Restore cancelled.")
	assert.Equal(t, tagged, readFile(t, lib))

	accept := exec.Command(sh, script)
	accept.Stdin = strings.NewReader("y\n")
	out, err = accept.CombinedOutput()
	require.NoError(t, err, string(out))
	assert.Contains(t, string(out), "Restore complete: 1 of 1 file(s) restored.")
	assert.Equal(t, original, readFile(t, lib))
}

func TestNewOrchestratorValidatesArguments(t *testing.T) {
	t.Parallel()

	store, session, decoder := newFakeStore(), newFakeSession(), newDecoder()
	for _, tag := range []string{"", "   ", "a;b", "line\nbreak"} {
		_, err := NewOrchestrator(session, store, decoder, Options{Tag: tag})
		assert.ErrorIs(t, err, types.ErrArgument, "tag %q", tag)
	}

	_, err := NewOrchestrator(nil, store, decoder, Options{Tag: "x"})
	assert.ErrorIs(t, err, types.ErrArgument)

	_, err = NewOrchestrator(session, store, decoder, Options{Tag: "  spaced tag  "})
	assert.NoError(t, err)
}

func TestSourceStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "tagged", StateTagged.String())
	assert.Equal(t, "unchanged", StateUnchanged.String())
	assert.Equal(t, "skipped", StateSkipped.String())
	assert.Equal(t, "failed", StateFailed.String())
}

var fileNameKey = regexp.MustCompile(`file_name_key = '([^']*)'`)

// fileNameOf returns the folded file name a predicate asks for
func fileNameOf(p query.Predicate) string {
	if m := fileNameKey.FindStringSubmatch(p.String()); m != nil {
		return m[1]
	}
	return ""
}
