// Package version reports which genpipe build is running.
package version

import (
	"runtime/debug"
)

// Version and Commit are set with
// -ldflags "-X github.com/opencode-ai/genpipe/internal/version.Version=v1.2.3".
var (
	Version = "unknown"
	Commit  = ""
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		Version, Commit = fromBuildInfo(info, Version, Commit)
	}
}

// fromBuildInfo fills whatever ldflags left unset: the module version that
// `go install ...@version` records, and the VCS revision that `go build`
// embeds in a checkout. A dirty tree is marked with a "+dirty" suffix.
func fromBuildInfo(info *debug.BuildInfo, version, commit string) (string, string) {
	if version == "unknown" {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			version = v
		}
	}
	if commit != "" {
		return version, commit
	}

	var modified bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if commit != "" && modified {
		commit += "+dirty"
	}
	return version, commit
}

// String is the version line printed by `genpipe --version`.
func String() string {
	if Commit == "" {
		return Version
	}
	return Version + " (" + Commit + ")"
}
