// Package version holds build metadata injected at link time via -ldflags.
package version

import "runtime"

var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
	GoInfo        = runtime.Version()
)
