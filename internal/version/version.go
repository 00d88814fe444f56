// Package version holds build-time version information.
package version

// Overridable at build time:
// go build -ldflags "-X repomap/internal/version.Version=0.4.0 -X repomap/internal/version.Commit=abc123"
var (
	// Version is the semantic version of repomap.
	Version = "0.3.0"

	// Commit is the git commit hash (set at build time).
	Commit = "unknown"
)

// Info returns a short version string for display.
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}
