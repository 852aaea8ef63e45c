// Package pathutil expands and compares user-supplied paths.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Expand expands a leading ~ and environment variables in path and
// returns it absolute.
func Expand(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not get user home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	path = os.ExpandEnv(path)

	return filepath.Abs(path)
}

// NormalizeForLookup returns a canonical form of path for comparisons: it
// is made absolute, symlinks are resolved when the path exists, and on
// case-insensitive systems (macOS, Windows) it is lowercased.
func NormalizeForLookup(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	canonical, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		canonical = absPath
	}

	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		return strings.ToLower(canonical), nil
	}
	return canonical, nil
}

// Same reports whether a and b refer to the same location.
func Same(a, b string) bool {
	na, err := NormalizeForLookup(a)
	if err != nil {
		return false
	}
	nb, err := NormalizeForLookup(b)
	if err != nil {
		return false
	}
	return na == nb
}
