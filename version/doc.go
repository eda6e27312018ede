// Package version exposes build version information for health reports
// and logs.
//
// Version, git commit, and build time are set at compile time via
// -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/batchkit/version.Version=1.0.0"
//
// When not set, the values are recovered from the embedded VCS build info
// where available.
package version
