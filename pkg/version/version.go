// Package version reports the build identity of the sipgen binary.
package version

import (
	"runtime/debug"
)

// Build identity, set with -ldflags "-X .../pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

const (
	settingRevision = "vcs.revision"
	settingTime     = "vcs.time"
	shortCommit     = 12
)

// InitBinaryVersion fills the identity from the module build info when
// the linker did not set it.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	apply(info)
}

func apply(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, s := range info.Settings {
		switch s.Key {
		case settingRevision:
			if Commit == "unknown" && s.Value != "" {
				Commit = s.Value
				if len(Commit) > shortCommit {
					Commit = Commit[:shortCommit]
				}
			}
		case settingTime:
			if Date == "unknown" && s.Value != "" {
				Date = s.Value
			}
		}
	}
}

// String is the one-line identity printed by the version command.
func String() string {
	return "sipgen " + Version + " (commit: " + Commit + ", built: " + Date + ")"
}
