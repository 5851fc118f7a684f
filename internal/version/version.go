// Package version holds build information, set at link time:
//
//	go build -ldflags "-X github.com/pulseboard/pulse/internal/version.Version=v1.2.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "development"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// String is the one-line form printed by "pulse version".
func String() string {
	return fmt.Sprintf("pulse %s (commit %s, built %s, %s)", Version, GitCommit, BuildDate, runtime.Version())
}
