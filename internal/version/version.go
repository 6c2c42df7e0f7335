package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set by ldflags during build.
var (
	Version   = "dev"
	GitCommit = ""
	BuildDate = ""
)

// Info represents version and build information
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func Get() Info {
	return Info{
		Version:   GetVersion(),
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func (i Info) String() string {
	s := "vault " + i.Version
	if i.GitCommit != "" {
		s += " (" + i.GitCommit + ")"
	}
	if i.BuildDate != "" {
		s += " built " + i.BuildDate
	}

	return fmt.Sprintf("%s %s %s", s, i.GoVersion, i.Platform)
}

// GetVersion falls back to module build info when ldflags did not set one.
func GetVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return info.Main.Version
		}
	}

	return "dev"
}

// GetShortVersion appends the abbreviated commit when known.
func GetShortVersion() string {
	version := GetVersion()
	if len(GitCommit) >= 7 {
		return fmt.Sprintf("%s-%s", version, GitCommit[:7])
	}
	return version
}
