// Package version carries build-time version metadata.
package version

// Version is set via build-time ldflags:
// go build -ldflags "-X git.home.luguber.info/inful/codeworm/internal/version.Version=v0.3.0".
var Version = "dev"

// Build metadata, also ldflags-settable.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)
