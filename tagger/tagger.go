// Package tagger finds library copies of source photos and tags them.
//
// For each source photo the Orchestrator reads its metadata, fingerprints
// its pixels, asks the index for candidates tier by tier, keeps only the
// candidates whose fingerprint is identical (Verifier) and writes the tag to
// each of them (Applicator), backing every file up first into a Ledger that
// can restore the originals.
package tagger

import (
	"context"

	"phototagger/imageprocessor"
	"phototagger/query"
)

// IndexSession resolves predicates to library paths
type IndexSession interface {
	Execute(ctx context.Context, p query.Predicate) ([]string, error)
}

// ImageDecoder fingerprints image files. The error carries the path.
type ImageDecoder interface {
	FingerprintFile(path string) (imageprocessor.Fingerprint, error)
}
