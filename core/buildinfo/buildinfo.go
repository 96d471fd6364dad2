// Package buildinfo carries version stamps injected at link time, e.g.
//
//	go build -ldflags "-X github.com/m3rciful/starsbot/core/buildinfo.Version=v0.3.0 \
//	  -X github.com/m3rciful/starsbot/core/buildinfo.Commit=$(git rev-parse --short HEAD)"
package buildinfo

import "strings"

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// Commit is the short source revision.
	Commit = "local"
	// Date is the RFC 3339 build time, empty when not stamped.
	Date = ""
)

// String renders the stamps on one line, e.g. "v0.3.0 (abc1234, 2025-08-30T12:00:00Z)".
func String() string {
	parts := []string{Commit}
	if Date != "" {
		parts = append(parts, Date)
	}
	return Version + " (" + strings.Join(parts, ", ") + ")"
}
