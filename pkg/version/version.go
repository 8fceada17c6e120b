// Package version holds the binary version string.
package version

// Version is stamped at release time via -ldflags.
var Version = "0.2.0"
