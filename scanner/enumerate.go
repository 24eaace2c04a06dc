package scanner

import (
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"

	"phototagger/logging"
	"phototagger/types"
)

// readBatch is how many directory entries are read at a time
const readBatch = 256

// ValidateTarget reports an argument error when target is not a glob
// pattern and does not exist
func ValidateTarget(target string) error {
	if target == "" {
		return types.Errorf(types.CategoryArgument, "enumerate", target, "a path is required")
	}
	if hasWildcard(target) {
		return nil
	}
	if _, err := os.Stat(target); err != nil {
		return types.Errorf(types.CategoryArgument, "enumerate", target, "path does not exist")
	}
	return nil
}

// Enumerate lazily yields the absolute paths of the photos named by target.
// target may be a glob pattern, a directory (its *.jpg and *.jpeg files,
// matched case-insensitively, not recursive) or a single file. A target
// that does not exist yields one argument error. Iteration stops as soon as
// the consumer stops.
//
// Glob matches come in lexical order. Directory entries come in the order
// the file system returns them, read in batches so large folders are never
// listed in full before the first photo is processed.
func Enumerate(target string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if hasWildcard(target) {
			enumerateGlob(target, yield)
			return
		}

		info, err := os.Stat(target)
		if err != nil {
			yield("", types.NewError(types.CategoryArgument, "enumerate", target, err))
			return
		}
		if !info.IsDir() {
			yield(absPath(target), nil)
			return
		}
		enumerateDir(absPath(target), yield)
	}
}

func enumerateGlob(pattern string, yield func(string, error) bool) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		yield("", types.NewError(types.CategoryArgument, "enumerate", pattern, err))
		return
	}
	if len(matches) == 0 {
		logging.LogWarning("No files match %s", pattern)
	}
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if !yield(absPath(m), nil) {
			return
		}
	}
}

func enumerateDir(dir string, yield func(string, error) bool) {
	f, err := os.Open(dir)
	if err != nil {
		yield("", types.NewError(types.CategoryIO, "open directory", dir, err))
		return
	}
	defer f.Close()

	for {
		entries, err := f.ReadDir(readBatch)
		for _, e := range entries {
			if e.IsDir() || !IsJPEGName(e.Name()) {
				continue
			}
			if !yield(filepath.Join(dir, e.Name()), nil) {
				return
			}
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield("", types.NewError(types.CategoryIO, "read directory", dir, err))
			return
		}
	}
}
