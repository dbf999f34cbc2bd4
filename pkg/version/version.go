// Package version carries build metadata injected at link time:
//
//	go build -ldflags "-X github.com/Sumatoshi-tech/ordmap/pkg/version.Version=v1.0.0"
package version

import "fmt"

// Build metadata, overridden with -ldflags -X.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the metadata as a single line.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}
