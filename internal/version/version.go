// Package version provides the lumen version string.
// The version is set at build time via -ldflags.
package version

// Version is the current lumen version.
// Override at build time: go build -ldflags "-X github.com/lumendb/lumen/internal/version.Version=0.1.0"
var Version = "0.1.0"

// BuildTime is the build timestamp.
// Override at build time: go build -ldflags "-X github.com/lumendb/lumen/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var BuildTime = "unknown"
