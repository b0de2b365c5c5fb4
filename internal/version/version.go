// Package version carries build identification, stamped at link time via
// -ldflags "-X github.com/hydroline-data/swathproc/internal/version.Version=...".
package version

var (
	// Version is the release version of the processing tools
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)
