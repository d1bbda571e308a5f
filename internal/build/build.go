// Package build holds the version information injected at link time.
package build

// These values are set with -ldflags "-X github.com/tupleflow/tupleflow/internal/build.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
