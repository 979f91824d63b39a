// Package version holds the CLI version string.
package version

// Version is set at build time via -ldflags for releases.
var Version = "0.1.0-dev"
