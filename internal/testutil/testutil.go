// Package testutil renders synthetic label scenes for tests and the frame
// generator.
package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

// ErrNoProjectRoot is returned when no go.mod is found above this package.
var ErrNoProjectRoot = errors.New("project root not found")

// GetProjectRoot walks up from this source file to the directory holding go.mod.
func GetProjectRoot() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", ErrNoProjectRoot
	}
	for dir := filepath.Dir(file); ; {
		if FileExists(filepath.Join(dir, "go.mod")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoProjectRoot
		}
		dir = parent
	}
}

// EnsureDir creates dir and its parents.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o750)
}

// FileExists reports whether path is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
