package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

var (
	// These variables are set at build time using -ldflags
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// Info represents build version information.
type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	GoVersion string    `json:"go_version"`
	BuildDate time.Time `json:"build_date"`
}

// Get returns version information, falling back to the embedded VCS build
// info for fields not set via ldflags.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
	}

	if BuildTime != "" {
		if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
			info.BuildDate = t
		}
	}

	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = buildInfo.GoVersion
		for _, setting := range buildInfo.Settings {
			switch setting.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = setting.Value
					if len(info.GitCommit) > 7 {
						info.GitCommit = info.GitCommit[:7]
					}
				}
			case "vcs.time":
				if info.BuildDate.IsZero() {
					if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
						info.BuildDate = t
					}
				}
			}
		}
	}

	return info
}

// String returns a short version string such as "1.2.0-abc1234".
func (i Info) String() string {
	if i.GitCommit != "" {
		return fmt.Sprintf("%s-%s", i.Version, i.GitCommit)
	}
	return i.Version
}

// Short returns the short version string for the current build.
func Short() string {
	return Get().String()
}
