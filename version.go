package careerpilot

import "runtime"

// Version represents the current version of CareerPilot
const Version = "v0.3.0"

// 构建时通过 -ldflags "-X" 注入
var (
	GitCommit = ""
	BuildTime = ""
)

// VersionInfo provides detailed version information
type VersionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
}

// GetVersionInfo returns detailed version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GoVersion: runtime.Version(),
		GitCommit: GitCommit,
		BuildTime: BuildTime,
	}
}
