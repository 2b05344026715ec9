// Package version carries build metadata stamped through -ldflags.
package version

import (
	"runtime/debug"
	"sync"
)

const unknown = "<unknown>"

// Build metadata. Release builds override these with
// -ldflags "-X github.com/Sumatoshi-tech/treematch/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

var initOnce sync.Once

// InitBinaryVersion fills Commit and Date from the embedded VCS info when
// they were not stamped at link time.
func InitBinaryVersion() {
	initOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}

		fillFromSettings(info.Settings)

		if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			Version = info.Main.Version
		}
	})
}

func fillFromSettings(settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = s.Value
			}
		case "vcs.time":
			if Date == unknown {
				Date = s.Value
			}
		}
	}
}

// String formats the metadata for the version command.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
