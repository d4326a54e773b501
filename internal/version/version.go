// Package version holds the build metadata reported by mediakeyd --version.
package version

import "fmt"

// Set at build time with -ldflags "-X github.com/connorhough/mediakeyd/internal/version.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// String returns the version, git commit and build date on one line.
func String() string {
	return fmt.Sprintf("%s (commit: %s, date: %s)", Version, GitCommit, BuildDate)
}
