// Package version exposes build-time version information.
package version

import "runtime"

// Populated via -ldflags at build time.
var (
	Version   = "dev"
	GitCommit = ""
	BuiltAt   = ""
)

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuiltAt   string `json:"built_at,omitempty"`
	GoVersion string `json:"go_version"`
}

// GetVersionInfo returns the running build's version information.
func GetVersionInfo() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuiltAt:   BuiltAt,
		GoVersion: runtime.Version(),
	}
}
