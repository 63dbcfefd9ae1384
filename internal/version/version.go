// Package version reports build metadata for the vlpctl and vlp-proxy binaries.
//
// Values set with -ldflags take precedence. Anything left unset is filled from the
// vcs settings the go tool embeds in the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build-time variables set via ldflags
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

type Info struct {
	Version   string `json:"version" example:"v1.0.0"`
	BuildDate string `json:"build_date" example:"2026-01-01T12:00:00Z"`
	GitCommit string `json:"git_commit" example:"abc123"`
	GoVersion string `json:"go_version" example:"go1.26.1"`
	Modified  bool   `json:"modified,omitempty"`
}

// Get returns the current version information
func Get() Info {
	info := Info{
		Version:   version,
		BuildDate: buildDate,
		GitCommit: gitCommit,
		GoVersion: runtime.Version(),
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "unknown" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// String is the form used by the cobra --version flag.
func (i Info) String() string {
	commit := i.GitCommit
	if i.Modified {
		commit += "+dirty"
	}
	return fmt.Sprintf("%s (built %s, commit %s, %s)", i.Version, i.BuildDate, commit, i.GoVersion)
}

// UserAgent returns the User-Agent sent by the api client for the named program.
func UserAgent(program string) string {
	return fmt.Sprintf("%s/%s", program, Get().Version)
}
