// Package version exposes build metadata for the kindred binary,
// stamped with -ldflags at release time. The defaults identify a local
// development build.
package version

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
