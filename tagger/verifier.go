package tagger

import (
	"context"
	"os"
	"path/filepath"

	"phototagger/imageprocessor"
	"phototagger/logging"
	"phototagger/types"
)

// Rejection is a candidate that did not verify
type Rejection struct {
	Path   string
	Reason string
	Err    error
}

// Verifier keeps the candidates whose pixels are identical to the source
type Verifier struct {
	decoder ImageDecoder
}

// NewVerifier creates a verifier decoding candidates with decoder
func NewVerifier(decoder ImageDecoder) *Verifier {
	return &Verifier{decoder: decoder}
}

// Verify fingerprints every candidate and returns the paths equal to
// source, in candidate order, plus the rejected ones. A candidate that is
// the source file itself is rejected. A decode failure only rejects that
// candidate.
func (v *Verifier) Verify(ctx context.Context, sourcePath string, source imageprocessor.Fingerprint, candidates []types.MatchCandidate) ([]string, []Rejection) {
	var matches []string
	var rejected []Rejection

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			rejected = append(rejected, Rejection{Path: c.Path, Reason: "cancelled", Err: err})
			continue
		}

		if samePath(sourcePath, c.Path) {
			logging.DebugLog("Candidate %s is the source itself", c.Path)
			rejected = append(rejected, Rejection{Path: c.Path, Reason: "source file"})
			continue
		}

		fp, err := v.decoder.FingerprintFile(c.Path)
		if err != nil {
			logging.LogWarning("Cannot fingerprint candidate %s: %v", c.Path, err)
			rejected = append(rejected, Rejection{Path: c.Path, Reason: "unreadable", Err: err})
			continue
		}

		if fp != source {
			logging.LogInfo("Candidate %s (%s tier) differs from %s", c.Path, c.Tier, sourcePath)
			logging.DebugLog("Fingerprints %s and %s", fp, source)
			rejected = append(rejected, Rejection{Path: c.Path, Reason: "fingerprint mismatch"})
			continue
		}

		matches = append(matches, c.Path)
	}

	return matches, rejected
}

// samePath reports whether a and b name the same file
func samePath(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}
