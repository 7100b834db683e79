// Package version carries build metadata injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/MeKo-Tech/linecheck/internal/version.Version=v1.2.0" ./cmd/linecheck
package version

import "fmt"

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns version, commit and build date.
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// String formats the build metadata on one line.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate)
}

// Map returns the build metadata for status endpoints.
func Map() map[string]string {
	return map[string]string{"version": Version, "commit": GitCommit, "built": BuildDate}
}
