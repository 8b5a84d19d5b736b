package version

import "runtime/debug"

// Set at link time:
// go build -ldflags "-X git.home.luguber.info/inful/nextgen/internal/version.Version=v0.4.0".
var (
	Version   = "unknown"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if Version == "unknown" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && GitCommit == "unknown":
			GitCommit = short(s.Value)
		case s.Key == "vcs.time" && BuildTime == "unknown":
			BuildTime = s.Value
		}
	}
}

func short(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// String renders the version line printed by the CLI.
func String() string {
	return "nextgen " + Version + " (commit " + GitCommit + ", built " + BuildTime + ")"
}
