package scanner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
)

// IsJPEGName reports whether a file name has a .jpg or .jpeg extension, in any case
func IsJPEGName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".jpg" || ext == ".jpeg"
}

// hasWildcard reports whether target is a glob pattern rather than a path
func hasWildcard(target string) bool {
	return strings.ContainsAny(target, "*?")
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// isTerminal reports whether w is an interactive terminal
func isTerminal(w interface{}) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
